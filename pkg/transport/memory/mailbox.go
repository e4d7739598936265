package memory

import (
	"context"
	"sync"

	"ipcam/pkg/transport"
)

const defaultBufferSize = 100

// mailbox is the inbound queue of one node.
type mailbox struct {
	inbound chan transport.Inbound

	done      chan struct{}
	closeOnce sync.Once
}

func newMailbox(size int) *mailbox {
	if size <= 0 {
		size = defaultBufferSize
	}

	return &mailbox{
		inbound: make(chan transport.Inbound, size),
		done:    make(chan struct{}),
	}
}

// publish enqueues in without blocking. A full mailbox reports
// transport.ErrFull, the way a socket at its high-water mark refuses a send.
func (mb *mailbox) publish(ctx context.Context, in transport.Inbound) error {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-mb.done:
		return transport.ErrClosed
	default:
	}

	select {
	case mb.inbound <- in:
		return nil
	default:
		return transport.ErrFull
	}
}

func (mb *mailbox) consume(ctx context.Context) (transport.Inbound, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return transport.Inbound{}, false
	case <-mb.done:
		return transport.Inbound{}, false
	case in := <-mb.inbound:
		return in, true
	}
}

func (mb *mailbox) close() {
	mb.closeOnce.Do(func() {
		close(mb.done)
	})
}
