package transport

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/dicerace/internal/coordinator"
	"github.com/danmuck/dicerace/internal/protocol"
	"github.com/danmuck/dicerace/internal/testutil/testlog"
	"github.com/gorilla/websocket"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 9, nil); got != 5*time.Second {
		t.Fatalf("attempt9 got=%v", got)
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultBackoffConfig()
	rng := rand.New(rand.NewSource(3))
	for attempt := 1; attempt <= 10; attempt++ {
		base := NextBackoffDelay(BackoffConfig{
			InitialDelay: cfg.InitialDelay,
			Multiplier:   cfg.Multiplier,
			MaxDelay:     cfg.MaxDelay,
		}, attempt, nil)
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < base/2 || got > base*3/2 {
			t.Fatalf("attempt %d: %v outside [%v, %v]", attempt, got, base/2, base*3/2)
		}
	}
	if cfg.Exhausted(cfg.MaxAttempts) || !cfg.Exhausted(cfg.MaxAttempts+1) {
		t.Fatalf("unexpected attempt budget for max=%d", cfg.MaxAttempts)
	}
	if (BackoffConfig{}).Exhausted(1000) {
		t.Fatalf("zero max attempts should retry forever")
	}
}

func TestConfigWithDefaultsKeepsPingBelowPong(t *testing.T) {
	testlog.Start(t)
	cfg := Config{PongWait: 10 * time.Second, PingInterval: 30 * time.Second}.WithDefaults()
	if cfg.PingInterval != 9*time.Second {
		t.Fatalf("ping interval = %v, want 9s", cfg.PingInterval)
	}
	if cfg.OutboxSize != DefaultConfig().OutboxSize || cfg.ReadLimit != DefaultConfig().ReadLimit {
		t.Fatalf("zero fields not defaulted: %+v", cfg)
	}
}

func TestOutboxOrderAndOverflow(t *testing.T) {
	testlog.Start(t)
	o := NewOutbox(3)
	for _, f := range []string{"a", "b", "c"} {
		if err := o.Push([]byte(f)); err != nil {
			t.Fatalf("push %s: %v", f, err)
		}
	}
	if err := o.Push([]byte("d")); !errors.Is(err, ErrOutboxFull) {
		t.Fatalf("expected ErrOutboxFull, got %v", err)
	}
	select {
	case <-o.Ready():
	default:
		t.Fatalf("ready not signalled")
	}

	got := o.Drain()
	if len(got) != 3 || string(got[0]) != "a" || string(got[1]) != "b" || string(got[2]) != "c" {
		t.Fatalf("drain order = %q", got)
	}
	if o.Len() != 0 || o.Drain() != nil {
		t.Fatalf("outbox not empty after drain")
	}

	if err := o.Push([]byte("e")); err != nil {
		t.Fatalf("push after drain: %v", err)
	}
	o.Close()
	o.Close()
	if err := o.Push([]byte("f")); !errors.Is(err, ErrOutboxClosed) {
		t.Fatalf("expected ErrOutboxClosed, got %v", err)
	}
	if got := o.Drain(); len(got) != 1 || string(got[0]) != "e" {
		t.Fatalf("queued frame lost on close: %q", got)
	}
	select {
	case <-o.Done():
	default:
		t.Fatalf("done not closed")
	}
}

type recordingSubmitter struct {
	mu      sync.Mutex
	intents []coordinator.Intent
	seen    chan coordinator.Intent
}

func newRecordingSubmitter() *recordingSubmitter {
	return &recordingSubmitter{seen: make(chan coordinator.Intent, 64)}
}

func (s *recordingSubmitter) Submit(_ context.Context, in coordinator.Intent) error {
	s.mu.Lock()
	s.intents = append(s.intents, in)
	s.mu.Unlock()
	s.seen <- in
	return nil
}

func (s *recordingSubmitter) next(t *testing.T) coordinator.Intent {
	t.Helper()
	select {
	case in := <-s.seen:
		return in
	case <-time.After(2 * time.Second):
		t.Fatalf("no intent submitted")
	}
	return coordinator.Intent{}
}

func startHubServer(t *testing.T, hub *Hub, sub Submitter) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.Accept(r.Context(), ws, sub)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) (*websocket.Conn, string) {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })

	frame := readFrame(t, ws)
	if frame.Type != protocol.EventConnected {
		t.Fatalf("first frame = %q, want connected", frame.Type)
	}
	var p protocol.ConnectedPayload
	if err := json.Unmarshal(frame.Payload, &p); err != nil || p.ConnectionID == "" {
		t.Fatalf("bad connected payload %s: %v", frame.Payload, err)
	}
	return ws, p.ConnectionID
}

func readFrame(t *testing.T, ws *websocket.Conn) protocol.Frame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return frame
}

func TestHubRoutesIntentsAndGroups(t *testing.T) {
	testlog.Start(t)
	hub := NewHub(DefaultConfig())
	sub := newRecordingSubmitter()
	url := startHubServer(t, hub, sub)

	a, aID := dial(t, url)
	b, bID := dial(t, url)
	if aID == bID {
		t.Fatalf("connection ids collide: %s", aID)
	}

	if err := a.WriteMessage(websocket.TextMessage, []byte(`{"type":"join-session","payload":{"code":"abc123"}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	in := sub.next(t)
	if in.Kind != coordinator.IntentJoin || in.Conn != aID || in.Code != "abc123" {
		t.Fatalf("unexpected intent %+v", in)
	}

	// Malformed frames are answered on the same connection and never submitted.
	if err := a.WriteMessage(websocket.TextMessage, []byte(`{"type":`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame := readFrame(t, a); frame.Type != protocol.EventError {
		t.Fatalf("expected error frame, got %q", frame.Type)
	}

	hub.Subscribe("ABC123", aID)
	hub.Subscribe("ABC123", bID)
	if n := len(hub.Group("ABC123")); n != 2 {
		t.Fatalf("group size = %d", n)
	}
	for i := 1; i <= 3; i++ {
		hub.Publish("ABC123", protocol.Envelope{Type: "game-updated", Seq: uint64(i)})
	}
	for _, ws := range []*websocket.Conn{a, b} {
		for want := uint64(1); want <= 3; want++ {
			if frame := readFrame(t, ws); frame.Seq != want {
				t.Fatalf("seq = %d, want %d", frame.Seq, want)
			}
		}
	}

	hub.Unsubscribe(bID)
	hub.Send(bID, protocol.Envelope{Type: "direct"})
	hub.Publish("ABC123", protocol.Envelope{Type: "game-over", Seq: 4})
	if frame := readFrame(t, b); frame.Type != "direct" {
		t.Fatalf("unsubscribed member got %q", frame.Type)
	}
	if frame := readFrame(t, a); frame.Type != "game-over" {
		t.Fatalf("member got %q", frame.Type)
	}

	_ = b.Close()
	left := sub.next(t)
	if left.Kind != coordinator.IntentDisconnect || left.Conn != bID {
		t.Fatalf("expected disconnect for %s, got %+v", bID, left)
	}
}

func TestHubDropsConnectionOnOutboxOverflow(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.OutboxSize = 2
	hub := NewHub(cfg)

	serverSide := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- ws
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	// Registered without pumps so nothing drains the outbox.
	c := newConn("slow", <-serverSide, hub.cfg)
	if err := hub.register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	defer hub.active.Done()

	for i := 0; i < 3; i++ {
		hub.Send("slow", protocol.Envelope{Type: "game-updated", Seq: uint64(i + 1)})
	}
	if err := c.outbox.Push([]byte("x")); !errors.Is(err, ErrOutboxClosed) {
		t.Fatalf("expected overflowing connection to be closed, got %v", err)
	}
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Fatalf("expected client read to fail after drop")
	}
}

func TestHubCloseRejectsNewConnections(t *testing.T) {
	testlog.Start(t)
	hub := NewHub(DefaultConfig())
	sub := newRecordingSubmitter()
	url := startHubServer(t, hub, sub)

	ws, id := dial(t, url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hub.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
	if in := sub.next(t); in.Kind != coordinator.IntentDisconnect || in.Conn != id {
		t.Fatalf("expected disconnect for %s, got %+v", id, in)
	}
	if hub.Count() != 0 {
		t.Fatalf("connections left after close: %d", hub.Count())
	}

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer late.Close()
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Fatalf("closed hub accepted a connection")
	}
}
