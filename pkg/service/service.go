// Package service is the messaging core shared by every camera service: it
// routes inbound messages to handlers, correlates responses with outstanding
// requests and lets other goroutines block on a specific response.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"ipcam/pkg/config"
	"ipcam/pkg/correlation"
	"ipcam/pkg/handler"
	"ipcam/pkg/timer"
	"ipcam/pkg/transport"
	"ipcam/pkg/waiter"
)

// SweepTimerID is the timer that evicts timed-out requests.
const SweepTimerID = "clear_message_manager"

// Factory builds a request or notice handler bound to the service.
type Factory = handler.Factory[*Service]

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the base logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock replaces the clock used to stamp outstanding requests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	name  string
	cfg   *config.Config
	tr    transport.Transport
	log   *slog.Logger
	now   func() time.Time
	token string

	requests *handler.Registry[*Service]
	notices  *handler.Registry[*Service]
	table    *correlation.Table
	bridge   *waiter.Bridge
	timers   *timer.Manager

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// New builds a service named name, connects it to the timer pump, schedules
// the request sweep and applies the endpoint topology from cfg. The timer
// pump must already be bound on the transport.
func New(name string, cfg *config.Config, tr transport.Transport, opts ...Option) (*Service, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("service name is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if tr == nil {
		return nil, errors.New("transport is required")
	}

	s := &Service{
		name:     name,
		cfg:      cfg,
		tr:       tr,
		log:      slog.Default(),
		now:      time.Now,
		requests: handler.NewRegistry[*Service](),
		notices:  handler.NewRegistry[*Service](),
		timers:   timer.NewManager(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.With("service", name)
	s.table = correlation.New(correlation.WithClock(s.now))
	s.bridge = waiter.New(s.log)

	cfg.MergeDefault("token", name)
	s.token = cfg.Get("token")

	if err := tr.Connect(timer.ClientName, timer.PumpAddress, s.token); err != nil {
		return nil, fmt.Errorf("connect to timer pump: %w", err)
	}
	if err := s.AddTimer(SweepTimerID, cfg.Sweep(), sweepPending); err != nil {
		return nil, err
	}
	if err := s.applyTopology(); err != nil {
		return nil, err
	}

	return s, nil
}

func sweepPending(_ context.Context, owner any) {
	s, ok := owner.(*Service)
	if !ok {
		return
	}
	if evicted := s.table.SweepNow(); evicted > 0 {
		s.log.Debug("Evicted timed out requests", "component", "service.sweeper", "count", evicted)
	}
}

// applyTopology binds, connects, publishes and subscribes the endpoints
// named in the config, in that order.
func (s *Service) applyTopology() error {
	steps := []struct {
		key   string
		apply func(name, address string) error
	}{
		{"bind", s.tr.Bind},
		{"connect", func(name, address string) error { return s.tr.Connect(name, address, s.token) }},
		{"publish", s.tr.Publish},
		{"subscribe", s.tr.Subscribe},
	}

	for _, step := range steps {
		endpoints := s.cfg.Collection(step.key)
		names := make([]string, 0, len(endpoints))
		for name := range endpoints {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if err := step.apply(name, endpoints[name]); err != nil {
				return fmt.Errorf("%s %s at %s: %w", step.key, name, endpoints[name], err)
			}
		}
	}

	return nil
}

// RegisterRequestHandler maps a request action to a handler factory. The
// first registration for an action wins.
func (s *Service) RegisterRequestHandler(action string, factory Factory) bool {
	return s.requests.Register(action, factory)
}

// RegisterNoticeHandler maps a notice event to a handler factory. The first
// registration for an event wins.
func (s *Service) RegisterNoticeHandler(event string, factory Factory) bool {
	return s.notices.Register(event, factory)
}

func (s *Service) Name() string           { return s.name }
func (s *Service) Token() string          { return s.token }
func (s *Service) Config() *config.Config { return s.cfg }
func (s *Service) Logger() *slog.Logger   { return s.log }

// Pending returns the number of requests awaiting a callback.
func (s *Service) Pending() int { return s.table.Len() }

// Waiting returns the number of goroutines blocked in WaitResponse or Call.
func (s *Service) Waiting() int { return s.bridge.Len() }
