package game

import (
	"fmt"
	"math/rand"
	"time"
)

// Rules holds the product decisions that change observable roll behaviour.
type Rules struct {
	// TrustClientDice uses a caller supplied value in [1,6] instead of rolling.
	TrustClientDice bool
	// LockFinishedSessions rejects rolls once a winner is declared.
	LockFinishedSessions bool
}

func DefaultRules() Rules {
	return Rules{
		TrustClientDice:      true,
		LockFinishedSessions: true,
	}
}

// EngineConfig wires the engine's sources of randomness and time.
// Nil fields fall back to defaults.
type EngineConfig struct {
	Rules Rules
	Rand  *rand.Rand
	Codes CodeSource
	Now   func() time.Time
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{Rules: DefaultRules()}
}

func (c EngineConfig) WithDefaults() EngineConfig {
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.Codes == nil {
		c.Codes = RandomCodes(c.Rand)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Engine applies intents to a Store and reports the resulting events.
type Engine struct {
	store *Store
	cfg   EngineConfig
}

func NewEngine(store *Store, cfg EngineConfig) *Engine {
	if store == nil {
		store = NewStore()
	}
	return &Engine{store: store, cfg: cfg.WithDefaults()}
}

// Store exposes the table the engine mutates.
func (e *Engine) Store() *Store {
	return e.store
}

// Rules returns the active rule set.
func (e *Engine) Rules() Rules {
	return e.cfg.Rules
}

// Create seats conn alone in a new session and returns its code.
func (e *Engine) Create(conn string) (string, []Event, error) {
	if _, ok := e.store.SessionOf(conn); ok {
		return "", nil, ErrAlreadyInSession
	}
	code := e.unusedCode()
	sess := newSession(code, conn, e.cfg.Now())
	e.store.put(sess)

	return code, []Event{{
		Kind:    EventSessionCreated,
		Code:    code,
		Target:  conn,
		Payload: SessionCreatedPayload{Code: code},
	}}, nil
}

// Join seats conn in the session identified by code.
func (e *Engine) Join(conn, code string) ([]Event, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	sess, ok := e.store.Get(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if _, seated := e.store.SessionOf(conn); seated {
		return nil, ErrAlreadyInSession
	}
	if sess.Full() {
		return nil, fmt.Errorf("%w: %s", ErrSessionFull, code)
	}

	sess.Players = append(sess.Players, &Player{ConnectionID: conn})
	e.store.seat(conn, sess)
	if sess.Phase == PhaseWaiting && sess.Full() {
		sess.Phase = PhaseActive
	}

	return []Event{e.broadcast(sess, EventPlayerJoined, RosterPayload{
		Players:          sess.roster(),
		CurrentTurnIndex: sess.CurrentTurnIndex,
	})}, nil
}

// Roll moves the player holding the turn. supplied may be nil.
func (e *Engine) Roll(conn, code string, supplied *int) ([]Event, error) {
	code = NormalizeCode(code)
	sess, ok := e.store.Get(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	idx := sess.IndexOf(conn)
	if idx < 0 || idx != sess.CurrentTurnIndex {
		return nil, ErrNotYourTurn
	}
	if sess.Phase == PhaseFinished && e.cfg.Rules.LockFinishedSessions {
		return nil, fmt.Errorf("%w: %s", ErrGameFinished, code)
	}
	value, err := e.dieValue(supplied)
	if err != nil {
		return nil, err
	}

	player := sess.Players[idx]
	player.Position = min(player.Position+value, BoardLength)
	sess.CurrentTurnIndex = (sess.CurrentTurnIndex + 1) % len(sess.Players)

	events := []Event{e.broadcast(sess, EventGameUpdated, GameUpdatedPayload{
		Players:          sess.roster(),
		CurrentTurnIndex: sess.CurrentTurnIndex,
		LastRoll:         Roll{ConnectionID: conn, Value: value},
	})}

	if player.Position == BoardLength {
		sess.Phase = PhaseFinished
		sess.Winner = conn
		events = append(events, e.broadcast(sess, EventGameOver, GameOverPayload{
			WinnerConnectionID: conn,
		}))
	}
	return events, nil
}

// Disconnect removes conn from whatever session it is seated in.
// Unknown connections are a no-op.
func (e *Engine) Disconnect(conn string) []Event {
	sess, ok := e.store.SessionOf(conn)
	if !ok {
		return nil
	}
	sess.removePlayer(conn)
	e.store.unseat(conn)

	if len(sess.Players) == 0 {
		e.store.remove(sess.Code)
		return nil
	}
	if sess.Phase == PhaseActive {
		sess.Phase = PhaseWaiting
	}
	return []Event{e.broadcast(sess, EventPlayerLeft, RosterPayload{
		Players:          sess.roster(),
		CurrentTurnIndex: sess.CurrentTurnIndex,
	})}
}

func (e *Engine) broadcast(sess *Session, kind EventKind, payload any) Event {
	return Event{
		Kind:    kind,
		Code:    sess.Code,
		Seq:     sess.nextSeq(),
		Payload: payload,
	}
}

func (e *Engine) dieValue(supplied *int) (int, error) {
	if supplied != nil && e.cfg.Rules.TrustClientDice {
		v := *supplied
		if v < DieMin || v > DieMax {
			return 0, fmt.Errorf("%w: %d", ErrInvalidDiceValue, v)
		}
		return v, nil
	}
	return DieMin + e.cfg.Rand.Intn(DieMax-DieMin+1), nil
}

// unusedCode draws from the configured source until a free code appears.
// After maxCodeAttempts the engine falls back to its own random source so a
// misbehaving CodeSource cannot stall creation.
func (e *Engine) unusedCode() string {
	for attempt := 0; ; attempt++ {
		var code string
		if attempt < maxCodeAttempts {
			code = NormalizeCode(e.cfg.Codes())
		} else {
			code = randomCode(e.cfg.Rand)
		}
		if ValidCode(code) && !e.store.Has(code) {
			return code
		}
	}
}
