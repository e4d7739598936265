package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind discriminates the three message shapes exchanged between services.
type Kind string

const (
	KindRequest  Kind = "request"
	KindNotice   Kind = "notice"
	KindResponse Kind = "response"
)

// CodeOK is the response code reported on success.
const CodeOK = "0"

var ErrMalformed = errors.New("malformed message")

// Message is one request, notice or response. Values are not mutated after
// being handed to another component; use the With* helpers to derive copies.
type Message struct {
	Kind   Kind            `json:"type"`
	ID     string          `json:"id"`
	Action string          `json:"action,omitempty"`
	Event  string          `json:"event,omitempty"`
	Code   string          `json:"code,omitempty"`
	Token  string          `json:"token"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// NewRequest builds a request for action with a freshly generated id.
func NewRequest(action string, body json.RawMessage) *Message {
	return &Message{
		Kind:   KindRequest,
		ID:     uuid.NewString(),
		Action: action,
		Body:   body,
	}
}

// NewNotice builds a fire-and-forget notice for event.
func NewNotice(event string, body json.RawMessage) *Message {
	return &Message{
		Kind:  KindNotice,
		ID:    uuid.NewString(),
		Event: event,
		Body:  body,
	}
}

// NewResponse answers req, keeping its id and action. The code starts as CodeOK.
func NewResponse(req *Message) *Message {
	return &Message{
		Kind:   KindResponse,
		ID:     req.ID,
		Action: req.Action,
		Code:   CodeOK,
	}
}

func (m *Message) IsRequest() bool  { return m != nil && m.Kind == KindRequest }
func (m *Message) IsNotice() bool   { return m != nil && m.Kind == KindNotice }
func (m *Message) IsResponse() bool { return m != nil && m.Kind == KindResponse }

// HasError reports whether a response carries a non-success code.
func (m *Message) HasError() bool {
	return m.IsResponse() && m.Code != CodeOK
}

// WithToken returns a copy of m carrying token.
func (m *Message) WithToken(token string) *Message {
	next := *m
	next.Token = token
	return &next
}

// WithCode returns a copy of m carrying code.
func (m *Message) WithCode(code string) *Message {
	next := *m
	next.Code = code
	return &next
}

// WithBody returns a copy of m carrying body.
func (m *Message) WithBody(body json.RawMessage) *Message {
	next := *m
	next.Body = body
	return &next
}

// Name returns the handler selector of the message: the action of a request
// or the event of a notice.
func (m *Message) Name() string {
	switch m.Kind {
	case KindRequest, KindResponse:
		return m.Action
	case KindNotice:
		return m.Event
	default:
		return ""
	}
}

// Validate checks the kind-specific required fields.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrMalformed)
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrMalformed)
	}

	switch m.Kind {
	case KindRequest:
		if m.Action == "" {
			return fmt.Errorf("%w: request %s without action", ErrMalformed, m.ID)
		}
	case KindNotice:
		if m.Event == "" {
			return fmt.Errorf("%w: notice %s without event", ErrMalformed, m.ID)
		}
	case KindResponse:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Kind)
	}

	return nil
}
