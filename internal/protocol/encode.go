package protocol

import (
	"encoding/json"

	"github.com/danmuck/dicerace/internal/game"
)

// EventEnvelope wraps an engine event for the wire.
func EventEnvelope(ev game.Event) Envelope {
	return Envelope{
		Type:    string(ev.Kind),
		Seq:     ev.Seq,
		Payload: ev.Payload,
	}
}

// ErrorEnvelope builds the error frame sent to the offending connection.
func ErrorEnvelope(err error) Envelope {
	return Envelope{
		Type: EventError,
		Payload: ErrorPayload{
			Message: ErrorMessage(err),
			Code:    ErrorCode(err),
		},
	}
}

func ConnectedEnvelope(conn string) Envelope {
	return Envelope{
		Type:    EventConnected,
		Payload: ConnectedPayload{ConnectionID: conn},
	}
}

func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// EncodeIntent renders a client frame for intent.
func EncodeIntent(intent Intent) ([]byte, error) {
	env := Envelope{Type: string(intent.Type)}
	switch intent.Type {
	case IntentJoinSession:
		env.Payload = JoinPayload{Code: intent.Code}
	case IntentRollDice:
		env.Payload = RollPayload{Code: intent.Code, DiceValue: intent.DiceValue}
	}
	return json.Marshal(env)
}
