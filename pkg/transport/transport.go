// Package transport defines the socket collaborator the messaging core talks
// to. Socket mechanics live in implementations such as transport/memory.
package transport

import (
	"context"
	"errors"
)

// Kind tells whether a frame arrived on a server-role (bind/publish) or a
// client-role (connect/subscribe) endpoint.
type Kind int

const (
	KindClient Kind = iota
	KindServer
)

func (k Kind) String() string {
	if k == KindServer {
		return "server"
	}
	return "client"
}

var (
	ErrClosed          = errors.New("transport closed")
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	ErrEndpointExists  = errors.New("endpoint name already in use")
	ErrAddressInUse    = errors.New("address already bound")
	ErrIdentityInUse   = errors.New("client identity already connected")
	ErrUnknownClient   = errors.New("unknown client")
	ErrNoPeer          = errors.New("no peer bound at address")
	ErrSendOnly        = errors.New("endpoint cannot send")
	ErrFull            = errors.New("peer inbound queue is full")
)

// Inbound is one multi-frame delivery.
type Inbound struct {
	// Source is the local endpoint name the frames arrived on.
	Source string
	Kind   Kind
	// ClientID identifies the sending peer on server endpoints.
	ClientID string
	Frames   []string
}

// Payload returns the first frame, or "" when there is none.
func (in Inbound) Payload() string {
	if len(in.Frames) == 0 {
		return ""
	}
	return in.Frames[0]
}

// Transport is the named-endpoint socket layer used by a service.
type Transport interface {
	Bind(name, address string) error
	Connect(name, address, token string) error
	Publish(name, address string) error
	Subscribe(name, address string) error

	IsServer(name string) bool
	// SendStrings does not wait for queue space; a peer that is not draining
	// its inbound queue makes the send fail.
	SendStrings(ctx context.Context, name string, frames []string, clientID string) error
	Receive(ctx context.Context) (Inbound, bool)

	Close()
}
