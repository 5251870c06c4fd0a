package game

import "errors"

var (
	ErrNotFound         = errors.New("game: session not found")
	ErrSessionFull      = errors.New("game: session is full")
	ErrNotYourTurn      = errors.New("game: not your turn")
	ErrInvalidCode      = errors.New("game: invalid session code")
	ErrAlreadyInSession = errors.New("game: connection already in a session")
	ErrInvalidDiceValue = errors.New("game: dice value out of range")
	ErrGameFinished     = errors.New("game: session already finished")
)
