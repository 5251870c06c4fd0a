package protocol

import "encoding/json"

// IntentType names a client to server message.
type IntentType string

const (
	IntentCreateSession IntentType = "create-session"
	IntentJoinSession   IntentType = "join-session"
	IntentRollDice      IntentType = "roll-dice"
)

// Server to client types that do not come from the game engine.
const (
	EventConnected = "connected"
	EventError     = "error"
)

// Intent is a decoded, shape-validated client message.
type Intent struct {
	Type      IntentType
	Code      string
	DiceValue *int
}

// Envelope is one outbound frame.
type Envelope struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Frame is a raw frame whose payload is decoded lazily by the reader.
type Frame struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type JoinPayload struct {
	Code string `json:"code"`
}

type RollPayload struct {
	Code      string `json:"code"`
	DiceValue *int   `json:"diceValue,omitempty"`
}

// intentPayload accepts the union of all intent payload fields. gameCode is
// the field name older clients send.
type intentPayload struct {
	Code      string `json:"code"`
	GameCode  string `json:"gameCode"`
	DiceValue *int   `json:"diceValue"`
}

func (p intentPayload) code() string {
	if p.Code != "" {
		return p.Code
	}
	return p.GameCode
}

var intentAliases = map[string]IntentType{
	string(IntentCreateSession): IntentCreateSession,
	string(IntentJoinSession):   IntentJoinSession,
	string(IntentRollDice):      IntentRollDice,
	"create-game":               IntentCreateSession,
	"join-game":                 IntentJoinSession,
}
