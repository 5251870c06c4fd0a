package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danmuck/dicerace/internal/coordinator"
	"github.com/danmuck/dicerace/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type conn struct {
	id     string
	ws     *websocket.Conn
	cfg    Config
	outbox *Outbox

	killOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, cfg Config) *conn {
	return &conn{
		id:     id,
		ws:     ws,
		cfg:    cfg,
		outbox: NewOutbox(cfg.OutboxSize),
	}
}

// shutdown lets the writer flush what is queued and send a close frame.
func (c *conn) shutdown() {
	c.outbox.Close()
}

// kill tears the socket down without flushing.
func (c *conn) kill() {
	c.killOnce.Do(func() {
		c.outbox.Close()
		_ = c.ws.Close()
	})
}

func (c *conn) readPump(ctx context.Context, h *Hub, sub Submitter) {
	c.ws.SetReadLimit(c.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Str("conn", c.id).Err(err).Msg("read failed")
			}
			return
		}
		if kind != websocket.TextMessage {
			h.Send(c.id, protocol.ErrorEnvelope(protocol.ErrMalformedMessage))
			continue
		}
		in, err := protocol.DecodeIntent(data)
		if err != nil {
			log.Debug().Str("conn", c.id).Err(err).Msg("frame rejected")
			h.Send(c.id, protocol.ErrorEnvelope(err))
			continue
		}
		if err := sub.Submit(ctx, coordinator.FromWire(c.id, in)); err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn().Str("conn", c.id).Err(err).Msg("intent not accepted")
			}
			return
		}
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.outbox.Ready():
			if err := c.flush(); err != nil {
				log.Debug().Str("conn", c.id).Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.outbox.Done():
			if err := c.flush(); err != nil {
				return
			}
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteTimeout),
			)
			return
		}
	}
}

func (c *conn) flush() error {
	for _, frame := range c.outbox.Drain() {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return nil
}
