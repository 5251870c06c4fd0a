package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/danmuck/dicerace/internal/coordinator"
	"github.com/danmuck/dicerace/internal/observability"
	"github.com/danmuck/dicerace/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrHubClosed = errors.New("transport: hub closed")

// Submitter accepts intents decoded from a connection.
type Submitter interface {
	Submit(ctx context.Context, in coordinator.Intent) error
}

// Hub tracks live connections and broadcast groups. It implements
// coordinator.Publisher.
type Hub struct {
	cfg Config

	mu       sync.RWMutex
	conns    map[string]*conn
	groups   map[string]map[string]struct{}
	memberOf map[string]string
	closed   bool

	active sync.WaitGroup
}

func NewHub(cfg Config) *Hub {
	return &Hub{
		cfg:      cfg.WithDefaults(),
		conns:    make(map[string]*conn),
		groups:   make(map[string]map[string]struct{}),
		memberOf: make(map[string]string),
	}
}

func (h *Hub) Config() Config {
	return h.cfg
}

// Accept owns ws until it closes. It assigns a connection id, announces it
// to the client, pumps frames in both directions and, on exit, submits the
// connection's disconnect. Accept blocks for the life of the connection.
func (h *Hub) Accept(ctx context.Context, ws *websocket.Conn, sub Submitter) error {
	c := newConn(uuid.NewString(), ws, h.cfg)
	if err := h.register(c); err != nil {
		_ = ws.Close()
		return err
	}
	defer h.active.Done()

	log.Debug().Str("conn", c.id).Str("remote", ws.RemoteAddr().String()).Msg("connection accepted")
	h.Send(c.id, protocol.ConnectedEnvelope(c.id))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(ctx, h, sub)
	c.shutdown()
	<-writerDone
	h.unregister(c.id)

	release, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.WriteTimeout)
	defer cancel()
	if err := sub.Submit(release, coordinator.Intent{Kind: coordinator.IntentDisconnect, Conn: c.id}); err != nil {
		log.Debug().Str("conn", c.id).Err(err).Msg("disconnect not delivered")
	}
	log.Debug().Str("conn", c.id).Msg("connection closed")
	return nil
}

func (h *Hub) register(c *conn) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.conns[c.id] = c
	h.active.Add(1)
	n := len(h.conns)
	h.mu.Unlock()
	observability.SetActiveConnections(n)
	return nil
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	n := len(h.conns)
	h.mu.Unlock()
	observability.SetActiveConnections(n)
}

// Subscribe moves conn into code's group, leaving any previous group.
func (h *Hub) Subscribe(code, conn string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conn)
	members, ok := h.groups[code]
	if !ok {
		members = make(map[string]struct{})
		h.groups[code] = members
	}
	members[conn] = struct{}{}
	h.memberOf[conn] = code
}

func (h *Hub) Unsubscribe(conn string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conn)
}

func (h *Hub) leaveLocked(conn string) {
	code, ok := h.memberOf[conn]
	if !ok {
		return
	}
	delete(h.memberOf, conn)
	members := h.groups[code]
	delete(members, conn)
	if len(members) == 0 {
		delete(h.groups, code)
	}
}

// Publish enqueues env for every member of code's group. The frame is
// encoded once.
func (h *Hub) Publish(code string, env protocol.Envelope) {
	frame, err := protocol.Encode(env)
	if err != nil {
		log.Error().Str("code", code).Str("type", env.Type).Err(err).Msg("encode broadcast failed")
		return
	}
	h.mu.RLock()
	targets := make([]*conn, 0, len(h.groups[code]))
	for id := range h.groups[code] {
		if c, ok := h.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, frame)
	}
}

// Send enqueues env for one connection. Unknown connections are ignored.
func (h *Hub) Send(id string, env protocol.Envelope) {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		log.Error().Str("conn", id).Str("type", env.Type).Err(err).Msg("encode frame failed")
		return
	}
	h.enqueue(c, frame)
}

// enqueue drops connections that cannot keep up; their disconnect then
// flows back through the coordinator.
func (h *Hub) enqueue(c *conn, frame []byte) {
	err := c.outbox.Push(frame)
	switch {
	case err == nil:
	case errors.Is(err, ErrOutboxFull):
		observability.RecordOutboxOverflow()
		log.Warn().Str("conn", c.id).Int("queued", c.outbox.Len()).Msg("outbox full, dropping connection")
		c.kill()
	case errors.Is(err, ErrOutboxClosed):
	}
}

// Group returns the connection ids subscribed to code.
func (h *Hub) Group(code string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.groups[code]))
	for id := range h.groups[code] {
		out = append(out, id)
	}
	return out
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close refuses new connections, asks every open one to close and waits for
// their Accept calls to return or ctx to end.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	open := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		open = append(open, c)
	}
	h.mu.Unlock()

	for _, c := range open {
		c.shutdown()
	}

	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, c := range open {
			c.kill()
		}
		return ctx.Err()
	}
}
