// Package memory is an in-process transport: services on the same Network
// bind, connect, publish and subscribe to string addresses the way they would
// over sockets.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ipcam/pkg/transport"
)

type pattern int

const (
	patternRouted pattern = iota
	patternBroadcast
)

type role int

const (
	roleBind role = iota
	roleConnect
	rolePublish
	roleSubscribe
)

type peer struct {
	node     *Node
	endpoint string
}

// hub is the rendezvous state of one address.
type hub struct {
	address string
	pattern pattern

	server  *peer
	clients map[string]peer
	subs    map[peer]struct{}
}

type endpoint struct {
	name    string
	role    role
	address string
	token   string
}

// Network is a set of addresses shared by the nodes created from it.
type Network struct {
	mu   sync.Mutex
	hubs map[string]*hub
}

func NewNetwork() *Network {
	return &Network{hubs: make(map[string]*hub)}
}

// Node returns a transport endpoint set owned by one service.
func (n *Network) Node(name string) *Node {
	return &Node{
		network:   n,
		name:      name,
		endpoints: make(map[string]*endpoint),
		box:       newMailbox(defaultBufferSize),
	}
}

func (n *Network) hubLocked(address string, p pattern) (*hub, error) {
	h, ok := n.hubs[address]
	if !ok {
		h = &hub{
			address: address,
			pattern: p,
			clients: make(map[string]peer),
			subs:    make(map[peer]struct{}),
		}
		n.hubs[address] = h
		return h, nil
	}
	if h.pattern != p {
		return nil, fmt.Errorf("address %s is used with another socket pattern", address)
	}
	return h, nil
}

// Node implements transport.Transport on top of a Network.
type Node struct {
	network *Network
	name    string
	box     *mailbox

	mu        sync.RWMutex
	endpoints map[string]*endpoint
	closed    bool
}

var _ transport.Transport = (*Node)(nil)

func (nd *Node) Name() string { return nd.name }

func (nd *Node) Bind(name, address string) error {
	return nd.attach(&endpoint{name: name, role: roleBind, address: address})
}

func (nd *Node) Connect(name, address, token string) error {
	return nd.attach(&endpoint{name: name, role: roleConnect, address: address, token: token})
}

func (nd *Node) Publish(name, address string) error {
	return nd.attach(&endpoint{name: name, role: rolePublish, address: address})
}

func (nd *Node) Subscribe(name, address string) error {
	return nd.attach(&endpoint{name: name, role: roleSubscribe, address: address})
}

func (nd *Node) attach(ep *endpoint) error {
	nd.mu.Lock()
	defer nd.mu.Unlock()

	if nd.closed {
		return transport.ErrClosed
	}
	if _, ok := nd.endpoints[ep.name]; ok {
		return fmt.Errorf("%w: %s", transport.ErrEndpointExists, ep.name)
	}

	net := nd.network
	net.mu.Lock()
	defer net.mu.Unlock()

	p := patternRouted
	if ep.role == rolePublish || ep.role == roleSubscribe {
		p = patternBroadcast
	}

	h, err := net.hubLocked(ep.address, p)
	if err != nil {
		return err
	}

	self := peer{node: nd, endpoint: ep.name}
	switch ep.role {
	case roleBind, rolePublish:
		if h.server != nil {
			return fmt.Errorf("%w: %s", transport.ErrAddressInUse, ep.address)
		}
		h.server = &self
	case roleConnect:
		if _, ok := h.clients[ep.token]; ok {
			return fmt.Errorf("%w: %q at %s", transport.ErrIdentityInUse, ep.token, ep.address)
		}
		h.clients[ep.token] = self
	case roleSubscribe:
		h.subs[self] = struct{}{}
	}

	nd.endpoints[ep.name] = ep
	return nil
}

func (nd *Node) IsServer(name string) bool {
	nd.mu.RLock()
	defer nd.mu.RUnlock()

	ep, ok := nd.endpoints[name]
	return ok && (ep.role == roleBind || ep.role == rolePublish)
}

// SendStrings delivers frames from the endpoint name. Bound endpoints address
// a connected client by clientID; published endpoints reach every subscriber.
func (nd *Node) SendStrings(ctx context.Context, name string, frames []string, clientID string) error {
	nd.mu.RLock()
	ep, ok := nd.endpoints[name]
	closed := nd.closed
	nd.mu.RUnlock()

	if closed {
		return transport.ErrClosed
	}
	if !ok {
		return fmt.Errorf("%w: %s", transport.ErrUnknownEndpoint, name)
	}

	targets, kind, sender, err := nd.resolveTargets(ep, clientID)
	if err != nil {
		return err
	}

	payload := append([]string(nil), frames...)
	for _, target := range targets {
		in := transport.Inbound{
			Source:   target.endpoint,
			Kind:     kind,
			ClientID: sender,
			Frames:   payload,
		}
		err := target.node.box.publish(ctx, in)
		switch {
		case err == nil:
		case errors.Is(err, transport.ErrClosed):
			// Peer closed; drop like a socket with no reader.
		case errors.Is(err, transport.ErrFull) && ep.role == rolePublish:
			// Slow subscribers miss broadcasts instead of stalling the publisher.
		default:
			return fmt.Errorf("send on %s: %w", ep.name, err)
		}
	}

	return nil
}

func (nd *Node) resolveTargets(ep *endpoint, clientID string) ([]peer, transport.Kind, string, error) {
	net := nd.network
	net.mu.Lock()
	defer net.mu.Unlock()

	h := net.hubs[ep.address]
	if h == nil {
		return nil, 0, "", fmt.Errorf("%w: %s", transport.ErrNoPeer, ep.address)
	}

	switch ep.role {
	case roleBind:
		target, ok := h.clients[clientID]
		if !ok {
			return nil, 0, "", fmt.Errorf("%w: %q on %s", transport.ErrUnknownClient, clientID, ep.name)
		}
		return []peer{target}, transport.KindClient, "", nil
	case rolePublish:
		targets := make([]peer, 0, len(h.subs))
		for sub := range h.subs {
			targets = append(targets, sub)
		}
		return targets, transport.KindClient, "", nil
	case roleConnect:
		if h.server == nil {
			return nil, 0, "", fmt.Errorf("%w: %s", transport.ErrNoPeer, ep.address)
		}
		return []peer{*h.server}, transport.KindServer, ep.token, nil
	default:
		return nil, 0, "", fmt.Errorf("%w: %s", transport.ErrSendOnly, ep.name)
	}
}

func (nd *Node) Receive(ctx context.Context) (transport.Inbound, bool) {
	return nd.box.consume(ctx)
}

// Close detaches every endpoint and stops Receive.
func (nd *Node) Close() {
	nd.mu.Lock()
	if nd.closed {
		nd.mu.Unlock()
		return
	}
	nd.closed = true
	endpoints := nd.endpoints
	nd.endpoints = make(map[string]*endpoint)
	nd.mu.Unlock()

	net := nd.network
	net.mu.Lock()
	for _, ep := range endpoints {
		h := net.hubs[ep.address]
		if h == nil {
			continue
		}
		switch ep.role {
		case roleBind, rolePublish:
			if h.server != nil && h.server.node == nd {
				h.server = nil
			}
		case roleConnect:
			if current, ok := h.clients[ep.token]; ok && current.node == nd {
				delete(h.clients, ep.token)
			}
		case roleSubscribe:
			delete(h.subs, peer{node: nd, endpoint: ep.name})
		}
		if h.server == nil && len(h.clients) == 0 && len(h.subs) == 0 {
			delete(net.hubs, ep.address)
		}
	}
	net.mu.Unlock()

	nd.box.close()
}
