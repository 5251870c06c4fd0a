package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/dicerace/internal/protocol"
	"github.com/danmuck/dicerace/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrDialExhausted = errors.New("raceclient: dial attempts exhausted")
	ErrQuit          = errors.New("raceclient: quit")
)

// App is the interactive line client: commands in, decoded events out.
type App struct {
	in      io.Reader
	out     io.Writer
	url     string
	backoff transport.BackoffConfig
	dialer  *websocket.Dialer
	rng     *rand.Rand
	sleep   func(context.Context, time.Duration) error

	mu    sync.Mutex
	state clientState
}

func NewApp(in io.Reader, out io.Writer, url string, backoff transport.BackoffConfig) *App {
	return &App{
		in:      in,
		out:     out,
		url:     url,
		backoff: backoff,
		dialer:  &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepCtx,
	}
}

// Run dials the server, then relays stdin commands until quit, EOF, ctx end
// or the server closing the connection.
func (a *App) Run(ctx context.Context) error {
	ws, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	readErr := make(chan error, 1)
	go func() {
		readErr <- a.readLoop(ws)
	}()

	lines := make(chan string)
	go a.scanLines(lines)

	a.printf("connected to %s. commands: %s\n", a.url, commandHelp)
	for {
		select {
		case <-ctx.Done():
			a.closeGracefully(ws)
			return nil
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.printf("server closed the connection\n")
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok {
				a.closeGracefully(ws)
				return nil
			}
			if err := a.handleLine(ws, line); err != nil {
				if errors.Is(err, ErrQuit) {
					a.closeGracefully(ws)
					return nil
				}
				a.printf("! %v\n", err)
			}
		}
	}
}

// dial retries with backoff until it connects, the attempt budget runs out,
// or ctx ends.
func (a *App) dial(ctx context.Context) (*websocket.Conn, error) {
	for attempt := 1; ; attempt++ {
		ws, _, err := a.dialer.DialContext(ctx, a.url, nil)
		if err == nil {
			return ws, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if a.backoff.Exhausted(attempt + 1) {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrDialExhausted, attempt, err)
		}
		delay := transport.NextBackoffDelay(a.backoff, attempt, a.rng)
		log.Warn().Str("url", a.url).Int("attempt", attempt).Dur("retry_in", delay).Err(err).Msg("dial failed")
		if err := a.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (a *App) handleLine(ws *websocket.Conn, line string) error {
	a.mu.Lock()
	code := a.state.code
	a.mu.Unlock()

	intent, err := parseCommand(line, code)
	if err != nil {
		return err
	}
	if intent == nil {
		return nil
	}
	data, err := protocol.EncodeIntent(*intent)
	if err != nil {
		return err
	}
	if intent.Type == protocol.IntentJoinSession {
		a.mu.Lock()
		a.state.joining = intent.Code
		a.mu.Unlock()
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}

func (a *App) readLoop(ws *websocket.Conn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			a.printf("? unreadable frame: %s\n", data)
			continue
		}
		a.mu.Lock()
		msg := a.state.apply(frame)
		a.mu.Unlock()
		if msg != "" {
			a.printf("%s\n", msg)
		}
	}
}

func (a *App) scanLines(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(a.in)
	for sc.Scan() {
		out <- strings.TrimSpace(sc.Text())
	}
}

func (a *App) closeGracefully(ws *websocket.Conn) {
	_ = ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second),
	)
}

func (a *App) printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
