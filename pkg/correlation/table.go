// Package correlation tracks outstanding requests until a matching response
// arrives or a sweep finds them past their timeout.
package correlation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ipcam/pkg/message"
)

var (
	ErrNotRequest = errors.New("only requests can be registered")
	ErrDuplicate  = errors.New("request id already pending")
)

// Callback receives either the response (timedOut false) or nil with timedOut
// true. It fires at most once per registered request.
type Callback func(owner any, resp *message.Message, timedOut bool)

type pending struct {
	registeredAt time.Time
	timeout      time.Duration
	owner        any
	callback     Callback
}

func (p *pending) expired(now time.Time) bool {
	return now.Sub(p.registeredAt) >= p.timeout
}

// Option configures a Table.
type Option func(*Table)

// WithClock replaces the time source used to stamp registrations.
func WithClock(now func() time.Time) Option {
	return func(t *Table) {
		if now != nil {
			t.now = now
		}
	}
}

// Table is the registry of requests awaiting an asynchronous response.
type Table struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*pending
}

func New(opts ...Option) *Table {
	t := &Table{
		now:     time.Now,
		entries: make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register records req so that cb fires once its response arrives or timeout
// elapses. An id already pending is never overwritten.
func (t *Table) Register(req *message.Message, owner any, cb Callback, timeout time.Duration) error {
	if !req.IsRequest() {
		return ErrNotRequest
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[req.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, req.ID)
	}

	t.entries[req.ID] = &pending{
		registeredAt: t.now(),
		timeout:      timeout,
		owner:        owner,
		callback:     cb,
	}
	return nil
}

// Handle completes the request matching resp. It reports false for responses
// nobody is waiting on.
func (t *Table) Handle(resp *message.Message) bool {
	if !resp.IsResponse() {
		return false
	}

	t.mu.Lock()
	entry, ok := t.entries[resp.ID]
	if ok {
		delete(t.entries, resp.ID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}

	if entry.callback != nil {
		entry.callback(entry.owner, resp, false)
	}
	return true
}

// Sweep evicts every entry whose age at now has reached its timeout and
// notifies its callback. Eviction latency is bounded by the sweep cadence.
func (t *Table) Sweep(now time.Time) int {
	var expired []*pending

	t.mu.Lock()
	for id, entry := range t.entries {
		if entry.expired(now) {
			expired = append(expired, entry)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()

	for _, entry := range expired {
		if entry.callback != nil {
			entry.callback(entry.owner, nil, true)
		}
	}

	return len(expired)
}

// SweepNow sweeps using the table clock.
func (t *Table) SweepNow() int {
	return t.Sweep(t.now())
}

// Remove drops id without notifying its callback.
func (t *Table) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	return true
}

func (t *Table) Contains(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
