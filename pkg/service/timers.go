package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ipcam/pkg/timer"
)

// AddTimer registers cb under id and asks the timer pump to fire it every
// interval. The pump works in whole seconds; shorter intervals round up.
func (s *Service) AddTimer(id string, interval time.Duration, cb timer.Callback) error {
	if cb == nil {
		return fmt.Errorf("timer %s: callback is required", id)
	}

	seconds := int((interval + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	s.timers.Add(id, s, cb)

	frames := []string{id, strconv.Itoa(seconds)}
	if err := s.tr.SendStrings(context.Background(), timer.ClientName, frames, ""); err != nil {
		return fmt.Errorf("register timer %s: %w", id, err)
	}

	s.log.Debug("Timer added", "component", "service.timer", "timer_id", id, "interval_seconds", seconds)
	return nil
}
