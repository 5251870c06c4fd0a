package transport

import (
	"errors"
	"sync"
)

var (
	ErrOutboxFull   = errors.New("transport: outbox full")
	ErrOutboxClosed = errors.New("transport: outbox closed")
)

// Outbox is a bounded FIFO of encoded frames awaiting one connection's
// writer. Push never blocks.
type Outbox struct {
	mu     sync.Mutex
	items  [][]byte
	limit  int
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func NewOutbox(limit int) *Outbox {
	if limit <= 0 {
		limit = DefaultConfig().OutboxSize
	}
	return &Outbox{
		items: make([][]byte, 0, limit),
		limit: limit,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOutboxClosed
	}
	if len(o.items) >= o.limit {
		return ErrOutboxFull
	}
	o.items = append(o.items, frame)
	select {
	case o.ready <- struct{}{}:
	default:
	}
	return nil
}

// Ready fires at least once after each Push.
func (o *Outbox) Ready() <-chan struct{} {
	return o.ready
}

// Done is closed by Close.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Drain removes and returns every queued frame in push order.
func (o *Outbox) Drain() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.items) == 0 {
		return nil
	}
	out := o.items
	o.items = make([][]byte, 0, o.limit)
	return out
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Close stops accepting frames. Queued frames stay drainable.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.done)
}
