package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultStatusHost = "127.0.0.1"

type statusResponse struct {
	Status          string   `json:"status"`
	Service         string   `json:"service"`
	UptimeSeconds   int64    `json:"uptime_seconds"`
	PendingRequests int      `json:"pending_requests"`
	Waiters         int      `json:"waiters"`
	RequestHandlers []string `json:"request_handlers"`
	NoticeHandlers  []string `json:"notice_handlers"`
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Status.Host)
	if host == "" {
		host = defaultStatusHost
	}

	addr := host + ":" + strconv.Itoa(s.cfg.Status.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.statusMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Status server started", "component", "service.status", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) statusMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/statusz", s.handleHealth)
	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.isRunning() {
		s.respondStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	s.respondStatus(w, http.StatusOK, "ready")
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "component", "service.status", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	uptime := int64(0)
	if s.running && !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}
	s.mu.RUnlock()

	return statusResponse{
		Status:          status,
		Service:         s.name,
		UptimeSeconds:   uptime,
		PendingRequests: s.table.Len(),
		Waiters:         s.bridge.Len(),
		RequestHandlers: s.requests.Names(),
		NoticeHandlers:  s.notices.Names(),
	}
}
