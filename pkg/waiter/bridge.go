// Package waiter lets goroutines outside the service loop block until the
// response for a specific request id arrives.
package waiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ipcam/pkg/message"
)

var (
	ErrAlreadyWaiting = errors.New("another goroutine is already waiting for this message")
	ErrTimeout        = errors.New("timed out waiting for response")
)

type waiter struct {
	once      sync.Once
	delivered chan *message.Message
}

func (w *waiter) deliver(msg *message.Message) bool {
	sent := false
	w.once.Do(func() {
		w.delivered <- msg
		sent = true
	})
	return sent
}

// Bridge holds at most one waiter per message id.
type Bridge struct {
	log *slog.Logger

	mu      sync.Mutex
	waiters map[string]*waiter
}

func New(log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}

	return &Bridge{
		log:     log.With("component", "waiter"),
		waiters: make(map[string]*waiter),
	}
}

// Wait is a registered waiter that has not returned yet.
type Wait struct {
	bridge *Bridge
	id     string
	w      *waiter
}

// Prepare registers a waiter for id without blocking, so the caller can send
// the request before waiting. A second registration on the same id fails
// immediately.
func (b *Bridge) Prepare(id string) (*Wait, error) {
	w := &waiter{delivered: make(chan *message.Message, 1)}

	b.mu.Lock()
	if _, ok := b.waiters[id]; ok {
		b.mu.Unlock()
		b.log.Warn("There is already a goroutine waiting for message", "message_id", id)
		return nil, ErrAlreadyWaiting
	}
	b.waiters[id] = w
	b.mu.Unlock()

	return &Wait{bridge: b, id: id, w: w}, nil
}

// WaitFor blocks until Resolve delivers the message for id, the timeout
// elapses or ctx is done. A timeout of zero or less waits without deadline.
// A second concurrent wait on the same id fails immediately.
func (b *Bridge) WaitFor(ctx context.Context, id string, timeout time.Duration) (*message.Message, error) {
	pending, err := b.Prepare(id)
	if err != nil {
		return nil, err
	}
	return pending.Wait(ctx, timeout)
}

// Wait blocks like Bridge.WaitFor and unregisters the waiter on return.
func (p *Wait) Wait(ctx context.Context, timeout time.Duration) (*message.Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	defer p.Cancel()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case msg := <-p.w.delivered:
		return msg, nil
	case <-deadline:
		if msg, ok := p.delivered(); ok {
			return msg, nil
		}
		return nil, ErrTimeout
	case <-ctx.Done():
		if msg, ok := p.delivered(); ok {
			return msg, nil
		}
		return nil, ctx.Err()
	}
}

// delivered returns a message resolved before the wait gave up.
func (p *Wait) delivered() (*message.Message, bool) {
	select {
	case msg := <-p.w.delivered:
		return msg, true
	default:
		return nil, false
	}
}

// Cancel unregisters the waiter. It is safe to call more than once.
func (p *Wait) Cancel() {
	p.bridge.remove(p.id, p.w)
}

// Resolve hands msg to the goroutine waiting on id, if any.
func (b *Bridge) Resolve(id string, msg *message.Message) bool {
	b.mu.Lock()
	w, ok := b.waiters[id]
	b.mu.Unlock()

	if !ok {
		return false
	}

	return w.deliver(msg)
}

func (b *Bridge) remove(id string, w *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.waiters[id]; ok && current == w {
		delete(b.waiters, id)
	}
}

// Waiting reports whether a goroutine currently waits on id.
func (b *Bridge) Waiting(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.waiters[id]
	return ok
}

func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters)
}
