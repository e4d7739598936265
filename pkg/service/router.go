package service

import (
	"context"

	"ipcam/pkg/message"
	"ipcam/pkg/timer"
	"ipcam/pkg/transport"
)

type originKey struct{}

// Origin describes where the message being handled came from.
type Origin struct {
	Source   string
	Kind     transport.Kind
	ClientID string
}

// OriginFrom returns the origin of the message a handler is processing.
func OriginFrom(ctx context.Context) (Origin, bool) {
	origin, ok := ctx.Value(originKey{}).(Origin)
	return origin, ok
}

// OnReceive routes one inbound delivery. Malformed payloads, token
// mismatches on server endpoints and unknown actions or events are dropped.
func (s *Service) OnReceive(ctx context.Context, in transport.Inbound) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = s.markServiceContext(ctx)
	log := s.log.With("component", "service.router", "source", in.Source)

	if in.Source == timer.ClientName && in.Kind == transport.KindClient {
		if s.timers.Trigger(ctx, in.Payload()) == 0 {
			log.Debug("Tick for unknown timer", "timer_id", in.Payload())
		}
		return
	}

	msg, err := message.Parse(in.Payload())
	if err != nil {
		log.Debug("Dropping malformed message", "error", err)
		return
	}

	if in.Kind == transport.KindServer && in.ClientID != "" && msg.Token != in.ClientID {
		log.Debug("Dropping message with mismatched token", "message_id", msg.ID, "client_id", in.ClientID)
		return
	}

	ctx = context.WithValue(ctx, originKey{}, Origin{Source: in.Source, Kind: in.Kind, ClientID: in.ClientID})

	switch msg.Kind {
	case message.KindRequest:
		found, err := s.requests.Dispatch(ctx, msg.Action, msg, s)
		if !found {
			log.Debug("No request handler", "action", msg.Action, "message_id", msg.ID)
		}
		if err != nil {
			log.Warn("Request handler failed", "action", msg.Action, "message_id", msg.ID, "error", err)
		}
	case message.KindNotice:
		found, err := s.notices.Dispatch(ctx, msg.Event, msg, s)
		if !found {
			log.Debug("No notice handler", "event", msg.Event, "message_id", msg.ID)
		}
		if err != nil {
			log.Warn("Notice handler failed", "event", msg.Event, "message_id", msg.ID, "error", err)
		}
	case message.KindResponse:
		woke := s.bridge.Resolve(msg.ID, msg)
		handled := s.table.Handle(msg)
		if !woke && !handled {
			log.Debug("Unmatched response", "message_id", msg.ID, "action", msg.Action)
		}
	}
}
