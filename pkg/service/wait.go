package service

import (
	"context"
	"errors"
	"time"

	"ipcam/pkg/message"
)

// ErrServiceContext is returned when a blocking wait is attempted on the
// goroutine that delivers responses.
var ErrServiceContext = errors.New("cannot wait for a response from the service goroutine")

type serviceKey struct{}

func (s *Service) markServiceContext(ctx context.Context) context.Context {
	if s.InServiceContext(ctx) {
		return ctx
	}
	return context.WithValue(ctx, serviceKey{}, s)
}

// InServiceContext reports whether ctx belongs to this service's dispatch
// goroutine (handlers, timer callbacks).
func (s *Service) InServiceContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(serviceKey{}).(*Service)
	return owner == s
}

// WaitResponse blocks until the response with id arrives, the timeout elapses
// or ctx is done. It must not be called from a handler of this service.
//
// The service goroutine is recognized by the context it hands to handlers and
// timer callbacks, so those must pass that ctx (or one derived from it). A
// handler that waits on context.Background() blocks the loop until the
// timeout, and forever when timeout is zero or less.
func (s *Service) WaitResponse(ctx context.Context, id string, timeout time.Duration) (*message.Message, error) {
	if s.InServiceContext(ctx) {
		s.log.Warn("WaitResponse called from the service goroutine", "component", "waiter", "message_id", id)
		return nil, ErrServiceContext
	}

	return s.bridge.WaitFor(ctx, id, timeout)
}

// Call sends req and blocks for its response. The waiter is registered before
// sending, so a fast reply cannot be missed. Like WaitResponse it rejects the
// handler context with ErrServiceContext; handlers must pass the ctx they were
// given for that check to apply.
func (s *Service) Call(ctx context.Context, req *message.Message, endpoint string, timeout time.Duration, opts ...SendOption) (*message.Message, error) {
	if !req.IsRequest() {
		return nil, errors.New("call requires a request message")
	}
	if s.InServiceContext(ctx) {
		s.log.Warn("Call made from the service goroutine", "component", "waiter", "message_id", req.ID)
		return nil, ErrServiceContext
	}

	pending, err := s.bridge.Prepare(req.ID)
	if err != nil {
		return nil, err
	}

	if err := s.Send(ctx, req, endpoint, opts...); err != nil {
		pending.Cancel()
		return nil, err
	}

	return pending.Wait(ctx, timeout)
}
