// Package timer holds named periodic callbacks and the pump that drives them.
package timer

import (
	"context"
	"sync"
)

// Callback runs when the named timer fires. owner is the value passed to Add.
type Callback func(ctx context.Context, owner any)

type registration struct {
	owner    any
	callback Callback
}

// Manager maps timer ids to callbacks. Several callbacks may share one id.
type Manager struct {
	mu     sync.RWMutex
	timers map[string][]registration
}

func NewManager() *Manager {
	return &Manager{timers: make(map[string][]registration)}
}

func (m *Manager) Add(id string, owner any, cb Callback) {
	if cb == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[id] = append(m.timers[id], registration{owner: owner, callback: cb})
}

// Trigger runs every callback registered under id and returns how many ran.
func (m *Manager) Trigger(ctx context.Context, id string) int {
	m.mu.RLock()
	regs := append([]registration(nil), m.timers[id]...)
	m.mu.RUnlock()

	for _, reg := range regs {
		reg.callback(ctx, reg.owner)
	}
	return len(regs)
}

func (m *Manager) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.timers[id]) > 0
}
