package protocol

import (
	"errors"

	"github.com/danmuck/dicerace/internal/game"
)

var (
	ErrMalformedMessage = errors.New("protocol: malformed message")
	ErrUnknownIntent    = errors.New("protocol: unknown intent type")
)

// Wire error codes carried in error.payload.code.
const (
	CodeNotFound         = "not_found"
	CodeSessionFull      = "session_full"
	CodeNotYourTurn      = "not_your_turn"
	CodeInvalidCode      = "invalid_code"
	CodeAlreadyInSession = "already_in_session"
	CodeInvalidDice      = "invalid_dice_value"
	CodeGameFinished     = "game_finished"
	CodeMalformed        = "malformed"
	CodeUnknownIntent    = "unknown_intent"
	CodeInternal         = "internal"
)

type errorClass struct {
	target  error
	code    string
	message string
}

// Ordered; first match wins.
var errorClasses = []errorClass{
	{target: game.ErrNotFound, code: CodeNotFound, message: "Game not found"},
	{target: game.ErrSessionFull, code: CodeSessionFull, message: "Game is full"},
	{target: game.ErrNotYourTurn, code: CodeNotYourTurn, message: "Not your turn"},
	{target: game.ErrInvalidCode, code: CodeInvalidCode, message: "Game code must be 6 letters or digits"},
	{target: game.ErrAlreadyInSession, code: CodeAlreadyInSession, message: "Already in a game"},
	{target: game.ErrInvalidDiceValue, code: CodeInvalidDice, message: "Dice value must be between 1 and 6"},
	{target: game.ErrGameFinished, code: CodeGameFinished, message: "Game is over"},
	{target: ErrMalformedMessage, code: CodeMalformed, message: "Malformed message"},
	{target: ErrUnknownIntent, code: CodeUnknownIntent, message: "Unknown message type"},
}

// ErrorCode maps err to its stable wire code.
func ErrorCode(err error) string {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return CodeInternal
}

// ErrorMessage maps err to a human readable message safe to show players.
func ErrorMessage(err error) string {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.message
		}
	}
	return "Internal error"
}
