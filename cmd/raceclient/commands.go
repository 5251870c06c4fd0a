package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/dicerace/internal/game"
	"github.com/danmuck/dicerace/internal/protocol"
)

const commandHelp = "create | join CODE | roll [1-6] | quit"

var ErrUnknownCommand = errors.New("unknown command")

// parseCommand turns one input line into an intent. A nil intent with nil
// error means there is nothing to send.
func parseCommand(line, currentCode string) (*protocol.Intent, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	switch strings.ToLower(fields[0]) {
	case "create", "new":
		return &protocol.Intent{Type: protocol.IntentCreateSession}, nil
	case "join":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: join CODE")
		}
		return &protocol.Intent{Type: protocol.IntentJoinSession, Code: game.NormalizeCode(fields[1])}, nil
	case "roll":
		if currentCode == "" {
			return nil, fmt.Errorf("not in a game; create or join first")
		}
		intent := &protocol.Intent{Type: protocol.IntentRollDice, Code: currentCode}
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("dice value must be a number: %q", fields[1])
			}
			intent.DiceValue = &v
		}
		return intent, nil
	case "quit", "exit":
		return nil, ErrQuit
	case "help":
		return nil, fmt.Errorf("commands: %s", commandHelp)
	}
	return nil, fmt.Errorf("%w %q (%s)", ErrUnknownCommand, fields[0], commandHelp)
}

// clientState is what the terminal knows about its own seat.
type clientState struct {
	self    string
	code    string
	joining string
}

// apply folds frame into s and returns the line to print.
func (s *clientState) apply(frame protocol.Frame) string {
	switch frame.Type {
	case protocol.EventConnected:
		var p protocol.ConnectedPayload
		if json.Unmarshal(frame.Payload, &p) == nil {
			s.self = p.ConnectionID
		}
		return fmt.Sprintf("* you are %s", short(s.self))

	case string(game.EventSessionCreated):
		var p game.SessionCreatedPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return badPayload(frame, err)
		}
		s.code = p.Code
		return fmt.Sprintf("* game %s created; share the code and wait for an opponent", p.Code)

	case string(game.EventPlayerJoined):
		var p game.RosterPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return badPayload(frame, err)
		}
		if s.code == "" && s.joining != "" {
			s.code, s.joining = s.joining, ""
		}
		return "* player joined\n" + s.board(p.Players, p.CurrentTurnIndex)

	case string(game.EventPlayerLeft):
		var p game.RosterPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return badPayload(frame, err)
		}
		return "* player left\n" + s.board(p.Players, p.CurrentTurnIndex)

	case string(game.EventGameUpdated):
		var p game.GameUpdatedPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return badPayload(frame, err)
		}
		return fmt.Sprintf("* %s rolled %d\n%s", s.name(p.LastRoll.ConnectionID), p.LastRoll.Value, s.board(p.Players, p.CurrentTurnIndex))

	case string(game.EventGameOver):
		var p game.GameOverPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return badPayload(frame, err)
		}
		if p.WinnerConnectionID == s.self {
			return "* game over: you win!"
		}
		return fmt.Sprintf("* game over: %s wins", short(p.WinnerConnectionID))

	case protocol.EventError:
		var p protocol.ErrorPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return badPayload(frame, err)
		}
		s.joining = ""
		return fmt.Sprintf("! %s", p.Message)
	}
	return fmt.Sprintf("? %s %s", frame.Type, frame.Payload)
}

// board renders each player's track, marking the one whose turn it is.
func (s *clientState) board(players []game.Player, turn int) string {
	var b strings.Builder
	for i, p := range players {
		marker := " "
		if i == turn {
			marker = ">"
		}
		pos := max(0, min(p.Position, game.BoardLength))
		fmt.Fprintf(&b, "%s %-8s |%s%s%s| %2d/%d\n",
			marker,
			s.name(p.ConnectionID),
			strings.Repeat("=", pos),
			"o",
			strings.Repeat(".", game.BoardLength-pos),
			p.Position,
			game.BoardLength,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *clientState) name(conn string) string {
	if conn != "" && conn == s.self {
		return "you"
	}
	return short(conn)
}

func short(conn string) string {
	if len(conn) > 8 {
		return conn[:8]
	}
	return conn
}

func badPayload(frame protocol.Frame, err error) string {
	return fmt.Sprintf("? bad %s payload: %v", frame.Type, err)
}
