package game

// EventKind identifies an outbound event. Values double as wire type names.
type EventKind string

const (
	EventSessionCreated EventKind = "session-created"
	EventPlayerJoined   EventKind = "player-joined"
	EventGameUpdated    EventKind = "game-updated"
	EventPlayerLeft     EventKind = "player-left"
	EventGameOver       EventKind = "game-over"
)

// Event is one engine output. Target set means a single connection;
// empty Target means every member of Code's broadcast group.
type Event struct {
	Kind    EventKind
	Code    string
	Target  string
	Seq     uint64
	Payload any
}

// Broadcast reports whether the event goes to the whole session group.
func (e Event) Broadcast() bool {
	return e.Target == ""
}

type SessionCreatedPayload struct {
	Code string `json:"code"`
}

// RosterPayload carries player-joined and player-left.
type RosterPayload struct {
	Players          []Player `json:"players"`
	CurrentTurnIndex int      `json:"currentTurnIndex"`
}

type GameUpdatedPayload struct {
	Players          []Player `json:"players"`
	CurrentTurnIndex int      `json:"currentTurnIndex"`
	LastRoll         Roll     `json:"lastRoll"`
}

type GameOverPayload struct {
	WinnerConnectionID string `json:"winnerConnectionId"`
}
