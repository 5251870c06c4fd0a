package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/dicerace/internal/game"
	"github.com/danmuck/dicerace/internal/observability"
	"github.com/danmuck/dicerace/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrStopped        = errors.New("coordinator: stopped")
	ErrInvalidIntent  = errors.New("coordinator: invalid intent")
	ErrAlreadyRunning = errors.New("coordinator: already running")
)

// IntentKind extends the wire intent types with transport-originated kinds.
type IntentKind string

const (
	IntentCreate     IntentKind = IntentKind(protocol.IntentCreateSession)
	IntentJoin       IntentKind = IntentKind(protocol.IntentJoinSession)
	IntentRoll       IntentKind = IntentKind(protocol.IntentRollDice)
	IntentDisconnect IntentKind = "disconnect"
)

// Intent is one request against session state from one connection.
type Intent struct {
	Kind      IntentKind
	Conn      string
	Code      string
	DiceValue *int
}

// FromWire lifts a decoded client message into a coordinator intent.
func FromWire(conn string, in protocol.Intent) Intent {
	return Intent{
		Kind:      IntentKind(in.Type),
		Conn:      conn,
		Code:      in.Code,
		DiceValue: in.DiceValue,
	}
}

// Publisher delivers frames to connections and manages broadcast groups.
// Implementations must not block: the coordinator loop calls them inline.
type Publisher interface {
	Subscribe(code, conn string)
	Unsubscribe(conn string)
	Publish(code string, env protocol.Envelope)
	Send(conn string, env protocol.Envelope)
}

// Config sizes the inbound queue and configures the engine.
type Config struct {
	QueueSize int
	Engine    game.EngineConfig
}

func DefaultConfig() Config {
	return Config{
		QueueSize: 256,
		Engine:    game.DefaultEngineConfig(),
	}
}

func (c Config) WithDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultConfig().QueueSize
	}
	return c
}

type query struct {
	fn   func(*game.Store)
	done chan struct{}
}

// Coordinator is the sole writer of session state. Intents are applied one
// at a time, in arrival order, on the goroutine running Run.
type Coordinator struct {
	engine  *game.Engine
	out     Publisher
	intents chan Intent
	queries chan query
	stopped chan struct{}
	running atomic.Bool
}

// New builds a coordinator over store. The store must not be touched by
// anyone else once Run starts.
func New(store *game.Store, out Publisher, cfg Config) *Coordinator {
	cfg = cfg.WithDefaults()
	return &Coordinator{
		engine:  game.NewEngine(store, cfg.Engine),
		out:     out,
		intents: make(chan Intent, cfg.QueueSize),
		queries: make(chan query),
		stopped: make(chan struct{}),
	}
}

// Run processes intents until ctx ends. It may be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.stopped)
	defer c.engine.Store().Reset()

	log.Info().Msg("coordinator loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("sessions", c.engine.Store().Len()).Msg("coordinator loop stopping")
			observability.SetActiveSessions(0)
			return nil
		case in := <-c.intents:
			c.handle(in)
		case q := <-c.queries:
			q.fn(c.engine.Store())
			close(q.done)
		}
	}
}

// Running reports whether the loop has started and not yet stopped.
func (c *Coordinator) Running() bool {
	if !c.running.Load() {
		return false
	}
	select {
	case <-c.stopped:
		return false
	default:
		return true
	}
}

// Submit queues in for the loop. It blocks while the queue is full until ctx
// ends or the loop stops.
func (c *Coordinator) Submit(ctx context.Context, in Intent) error {
	if in.Conn == "" {
		return fmt.Errorf("%w: missing connection id", ErrInvalidIntent)
	}
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}
	select {
	case c.intents <- in:
		return nil
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a detached copy of every live session.
func (c *Coordinator) Snapshot(ctx context.Context) ([]game.SessionView, error) {
	var out []game.SessionView
	err := c.query(ctx, func(st *game.Store) {
		out = st.Snapshot()
	})
	return out, err
}

// Lookup returns a detached copy of one session.
func (c *Coordinator) Lookup(ctx context.Context, code string) (game.SessionView, bool, error) {
	var (
		view game.SessionView
		ok   bool
	)
	err := c.query(ctx, func(st *game.Store) {
		var sess *game.Session
		if sess, ok = st.Get(game.NormalizeCode(code)); ok {
			view = sess.View()
		}
	})
	return view, ok, err
}

func (c *Coordinator) query(ctx context.Context, fn func(*game.Store)) error {
	q := query{fn: fn, done: make(chan struct{})}
	select {
	case c.queries <- q:
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-q.done:
		return nil
	case <-c.stopped:
		return ErrStopped
	}
}

func (c *Coordinator) handle(in Intent) {
	start := time.Now()
	events, err := c.apply(in)
	if err != nil {
		c.reject(in, err, time.Since(start))
		return
	}
	for _, ev := range events {
		env := protocol.EventEnvelope(ev)
		if ev.Broadcast() {
			c.out.Publish(ev.Code, env)
		} else {
			c.out.Send(ev.Target, env)
		}
		observability.RecordEvent(string(ev.Kind))
		log.Debug().
			Str("code", ev.Code).
			Str("kind", string(ev.Kind)).
			Uint64("seq", ev.Seq).
			Msg("event emitted")
	}
	observability.RecordIntent(string(in.Kind), observability.ResultOK, "", time.Since(start))
	observability.SetActiveSessions(c.engine.Store().Len())
}

// apply runs one intent against the engine. A panic inside the engine is
// contained to the intent that caused it.
func (c *Coordinator) apply(in Intent) (events []game.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("conn", in.Conn).
				Str("kind", string(in.Kind)).
				Interface("panic", r).
				Msg("intent panicked")
			events, err = nil, fmt.Errorf("coordinator: intent %s panicked: %v", in.Kind, r)
		}
	}()

	switch in.Kind {
	case IntentCreate:
		code, evs, err := c.engine.Create(in.Conn)
		if err != nil {
			return nil, err
		}
		c.out.Subscribe(code, in.Conn)
		log.Info().Str("code", code).Str("conn", in.Conn).Msg("session created")
		return evs, nil

	case IntentJoin:
		evs, err := c.engine.Join(in.Conn, in.Code)
		if err != nil {
			return nil, err
		}
		code := evs[0].Code
		c.out.Subscribe(code, in.Conn)
		log.Info().Str("code", code).Str("conn", in.Conn).Msg("player joined")
		return evs, nil

	case IntentRoll:
		evs, err := c.engine.Roll(in.Conn, in.Code, in.DiceValue)
		if err != nil {
			return nil, err
		}
		for _, ev := range evs {
			if ev.Kind == game.EventGameOver {
				log.Info().Str("code", ev.Code).Str("winner", in.Conn).Msg("game over")
			}
		}
		return evs, nil

	case IntentDisconnect:
		c.out.Unsubscribe(in.Conn)
		evs := c.engine.Disconnect(in.Conn)
		log.Debug().Str("conn", in.Conn).Int("events", len(evs)).Msg("connection released")
		return evs, nil
	}
	return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownIntent, in.Kind)
}

func (c *Coordinator) reject(in Intent, err error, took time.Duration) {
	code := protocol.ErrorCode(err)
	result := observability.ResultRejected
	event := log.Debug()
	if code == protocol.CodeInternal {
		result = observability.ResultFailed
		event = log.Error()
	}
	event.
		Str("conn", in.Conn).
		Str("kind", string(in.Kind)).
		Str("code", in.Code).
		Err(err).
		Msg("intent rejected")

	c.out.Send(in.Conn, protocol.ErrorEnvelope(err))
	observability.RecordIntent(string(in.Kind), result, code, took)
}
