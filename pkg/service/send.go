package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ipcam/pkg/correlation"
	"ipcam/pkg/message"
)

// DefaultRequestTimeout applies when a callback is registered without a
// positive timeout.
const DefaultRequestTimeout = 10 * time.Second

type sendOptions struct {
	clientID string
	callback correlation.Callback
	timeout  time.Duration
}

// SendOption configures one Send call.
type SendOption func(*sendOptions)

// WithClientID addresses one connected client on a bound endpoint.
func WithClientID(clientID string) SendOption {
	return func(o *sendOptions) {
		o.clientID = clientID
	}
}

// WithCallback registers cb for the response to a request. cb runs on the
// service goroutine with the response, or with nil and timedOut once the
// timeout has passed and the next sweep runs.
func WithCallback(cb correlation.Callback, timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		o.callback = cb
		o.timeout = timeout
	}
}

// Send stamps msg with this service's token (empty toward endpoints the
// service serves) and hands it to the transport. Requests with a callback are
// registered before anything is sent.
func (s *Service) Send(ctx context.Context, msg *message.Message, endpoint string, opts ...SendOption) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	token := s.token
	if s.tr.IsServer(endpoint) {
		token = ""
	}
	out := msg.WithToken(token)

	registered := false
	if out.IsRequest() && o.callback != nil {
		timeout := o.timeout
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		if err := s.table.Register(out, s, o.callback, timeout); err != nil {
			return err
		}
		registered = true
	}

	payload, err := out.Encode()
	if err == nil {
		err = s.tr.SendStrings(ctx, endpoint, []string{payload}, o.clientID)
	}
	if err != nil {
		if registered {
			s.table.Remove(out.ID)
		}
		return fmt.Errorf("send %s %s to %s: %w", out.Kind, out.ID, endpoint, err)
	}

	return nil
}

// Reply answers req on the endpoint it arrived on. It must be called with the
// context handed to the request handler.
func (s *Service) Reply(ctx context.Context, req *message.Message, code string, body json.RawMessage) error {
	origin, ok := OriginFrom(ctx)
	if !ok {
		return errors.New("reply outside of a request handler")
	}

	clientID := origin.ClientID
	if clientID == "" {
		clientID = req.Token
	}

	resp := message.NewResponse(req)
	if code != "" {
		resp.Code = code
	}
	resp.Body = body

	return s.Send(ctx, resp, origin.Source, WithClientID(clientID))
}
