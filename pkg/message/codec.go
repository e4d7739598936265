package message

import (
	"encoding/json"
	"fmt"
)

// Parse decodes one wire string into a validated message. A response code is
// kept as received; a missing code is not CodeOK.
func Parse(data string) (*Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return &msg, nil
}

// Encode renders m in its wire form.
func (m *Message) Encode() (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	wire := *m
	if wire.Kind != KindResponse {
		wire.Code = ""
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("encode message %s: %w", m.ID, err)
	}

	return string(data), nil
}
