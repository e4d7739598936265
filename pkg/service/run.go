package service

import (
	"context"
	"errors"
	"time"

	"ipcam/pkg/transport"
)

var ErrAlreadyRunning = errors.New("service is already running")

// Run drives the service goroutine until ctx is done. All handler dispatch,
// response matching and sweeps happen on that goroutine, one message at a
// time.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErrors := make(chan error, 1)
	if s.cfg.Status.Port > 0 {
		go s.runStatusServer(runCtx, serverErrors)
	}

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- s.loop(runCtx)
	}()

	select {
	case err := <-loopErr:
		return err
	case err := <-serverErrors:
		cancel()
		<-loopErr
		return err
	}
}

func (s *Service) loop(ctx context.Context) error {
	s.log.Info("Service started", "component", "service", "token", s.token)

	for {
		in, ok := s.tr.Receive(ctx)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			return transport.ErrClosed
		}

		s.OnReceive(ctx, in)
	}
}

func (s *Service) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
