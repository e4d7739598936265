package handler

import (
	"context"
	"sort"
	"sync"

	"ipcam/pkg/message"
)

// Handler runs one dispatched request or notice. Instances are built fresh for
// every message and discarded once Run returns.
type Handler interface {
	Run(ctx context.Context, msg *message.Message) error
}

// Func adapts a plain function to Handler.
type Func func(ctx context.Context, msg *message.Message) error

func (f Func) Run(ctx context.Context, msg *message.Message) error {
	return f(ctx, msg)
}

// Factory builds a handler bound to the owning service.
type Factory[S any] func(svc S) Handler

// Registry maps action or event names to handler factories.
type Registry[S any] struct {
	mu        sync.RWMutex
	factories map[string]Factory[S]
}

func NewRegistry[S any]() *Registry[S] {
	return &Registry[S]{factories: make(map[string]Factory[S])}
}

// Register stores factory under name unless the name is already taken.
// The first registration wins; it reports whether factory was stored.
func (r *Registry[S]) Register(name string, factory Factory[S]) bool {
	if factory == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[name]; ok {
		return false
	}
	r.factories[name] = factory
	return true
}

func (r *Registry[S]) Lookup(name string) (Factory[S], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	return factory, ok
}

// Dispatch builds a handler for name bound to svc and runs it with msg.
// It reports false without error when no handler is registered for name.
func (r *Registry[S]) Dispatch(ctx context.Context, name string, msg *message.Message, svc S) (bool, error) {
	factory, ok := r.Lookup(name)
	if !ok {
		return false, nil
	}

	h := factory(svc)
	if h == nil {
		return false, nil
	}

	return true, h.Run(ctx, msg)
}

// Names returns the registered names in sorted order.
func (r *Registry[S]) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
