package game

import "time"

const (
	// BoardLength is the finishing square; positions live in [0, BoardLength].
	BoardLength = 20
	// MaxPlayers is the seat capacity of one session.
	MaxPlayers = 2

	DieMin = 1
	DieMax = 6
)

// Phase describes where a session sits in its lifecycle.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// Player is one seated connection.
type Player struct {
	ConnectionID string `json:"connectionId"`
	Position     int    `json:"position"`
}

// Roll is the outcome of one accepted roll-dice intent.
type Roll struct {
	ConnectionID string `json:"connectionId"`
	Value        int    `json:"value"`
}

// Session is one race between at most MaxPlayers connections.
type Session struct {
	Code             string
	Players          []*Player
	CurrentTurnIndex int
	Phase            Phase
	Winner           string
	CreatedAt        time.Time

	seq uint64
}

// SessionView is a detached copy of a session for read-only consumers.
type SessionView struct {
	Code             string    `json:"code"`
	Phase            Phase     `json:"phase"`
	Players          []Player  `json:"players"`
	CurrentTurnIndex int       `json:"currentTurnIndex"`
	Winner           string    `json:"winner,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	Seq              uint64    `json:"seq"`
}

func newSession(code, creator string, now time.Time) *Session {
	return &Session{
		Code:      code,
		Players:   []*Player{{ConnectionID: creator}},
		Phase:     PhaseWaiting,
		CreatedAt: now,
	}
}

// IndexOf returns the seat index of conn or -1.
func (s *Session) IndexOf(conn string) int {
	for i, p := range s.Players {
		if p.ConnectionID == conn {
			return i
		}
	}
	return -1
}

// Full reports whether every seat is taken.
func (s *Session) Full() bool {
	return len(s.Players) >= MaxPlayers
}

// Seq returns the sequence number of the last broadcast generated for s.
func (s *Session) Seq() uint64 {
	return s.seq
}

func (s *Session) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Session) removePlayer(conn string) bool {
	idx := s.IndexOf(conn)
	if idx < 0 {
		return false
	}
	s.Players = append(s.Players[:idx], s.Players[idx+1:]...)
	s.clampTurn()
	return true
}

// clampTurn keeps the turn index inside the roster after it shrinks.
func (s *Session) clampTurn() {
	if s.CurrentTurnIndex >= len(s.Players) || s.CurrentTurnIndex < 0 {
		s.CurrentTurnIndex = 0
	}
}

func (s *Session) roster() []Player {
	out := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, *p)
	}
	return out
}

// View returns a copy of s that shares no memory with it.
func (s *Session) View() SessionView {
	return SessionView{
		Code:             s.Code,
		Phase:            s.Phase,
		Players:          s.roster(),
		CurrentTurnIndex: s.CurrentTurnIndex,
		Winner:           s.Winner,
		CreatedAt:        s.CreatedAt,
		Seq:              s.seq,
	}
}
