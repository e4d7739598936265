package timer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"ipcam/pkg/transport"
)

const (
	// PumpAddress is where the timer pump listens for timer registrations.
	PumpAddress = "inproc://timer_pump"
	// ClientName is the reserved endpoint name services use toward the pump.
	ClientName = "_timer_client"

	pumpEndpoint = "timer_pump"
)

type tickerKey struct {
	client string
	id     string
}

type ticker struct {
	cancel context.CancelFunc
}

// Pump receives [timer id, interval seconds] registrations from connected
// services and sends the timer id back to each of them on that cadence.
type Pump struct {
	tr  transport.Transport
	log *slog.Logger

	mu      sync.Mutex
	tickers map[tickerKey]*ticker
	wg      sync.WaitGroup
}

func NewPump(tr transport.Transport, log *slog.Logger) (*Pump, error) {
	if tr == nil {
		return nil, errors.New("transport is required")
	}
	if log == nil {
		log = slog.Default()
	}

	if err := tr.Bind(pumpEndpoint, PumpAddress); err != nil {
		return nil, err
	}

	return &Pump{
		tr:      tr,
		log:     log.With("component", "timer.pump"),
		tickers: make(map[tickerKey]*ticker),
	}, nil
}

// Run serves registrations until ctx is done, then stops every ticker.
func (p *Pump) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	defer p.stopAll()

	for {
		in, ok := p.tr.Receive(ctx)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			return transport.ErrClosed
		}
		if in.Source != pumpEndpoint {
			continue
		}

		id, interval, err := parseRegistration(in.Frames)
		if err != nil {
			p.log.Warn("Ignoring timer registration", "client_id", in.ClientID, "error", err)
			continue
		}

		p.start(ctx, in.ClientID, id, interval)
	}
}

func parseRegistration(frames []string) (string, time.Duration, error) {
	if len(frames) < 2 {
		return "", 0, errors.New("expected timer id and interval")
	}

	id := strings.TrimSpace(frames[0])
	if id == "" {
		return "", 0, errors.New("empty timer id")
	}

	seconds, err := strconv.Atoi(strings.TrimSpace(frames[1]))
	if err != nil || seconds <= 0 {
		return "", 0, errors.New("interval must be a positive number of seconds")
	}

	return id, time.Duration(seconds) * time.Second, nil
}

func (p *Pump) start(ctx context.Context, client string, id string, interval time.Duration) {
	key := tickerKey{client: client, id: id}
	tickCtx, cancel := context.WithCancel(ctx)
	current := &ticker{cancel: cancel}

	p.mu.Lock()
	if prev, ok := p.tickers[key]; ok {
		prev.cancel()
	}
	p.tickers[key] = current
	p.mu.Unlock()

	p.log.Debug("Timer registered", "client_id", client, "timer_id", id, "interval", interval)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		tick := time.NewTicker(interval)
		defer tick.Stop()

		for {
			select {
			case <-tickCtx.Done():
				return
			case <-tick.C:
				err := p.tr.SendStrings(tickCtx, pumpEndpoint, []string{id}, client)
				if err == nil {
					continue
				}
				if tickCtx.Err() != nil {
					return
				}
				if errors.Is(err, transport.ErrUnknownClient) {
					p.log.Debug("Timer client gone, stopping timer", "client_id", client, "timer_id", id)
					p.retire(key, current)
					return
				}
				p.log.Warn("Timer delivery failed", "client_id", client, "timer_id", id, "error", err)
			}
		}
	}()
}

// Active returns the number of running tickers.
func (p *Pump) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tickers)
}

// retire drops t unless a re-registration already replaced it.
func (p *Pump) retire(key tickerKey, t *ticker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t.cancel()
	if p.tickers[key] == t {
		delete(p.tickers, key)
	}
}

func (p *Pump) stopAll() {
	p.mu.Lock()
	for key, t := range p.tickers {
		t.cancel()
		delete(p.tickers, key)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
