package waiter

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"ipcam/pkg/message"

	"github.com/stretchr/testify/require"
)

func newTestBridge() *Bridge {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func waitUntilWaiting(t *testing.T, b *Bridge, id string) {
	t.Helper()
	require.Eventually(t, func() bool { return b.Waiting(id) }, time.Second, time.Millisecond)
}

func TestResolveWakesWaiter(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	resp := &message.Message{Kind: message.KindResponse, ID: "r1", Code: message.CodeOK}

	type result struct {
		msg *message.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := b.WaitFor(context.Background(), "r1", time.Second)
		done <- result{msg: msg, err: err}
	}()

	waitUntilWaiting(t, b, "r1")
	require.True(t, b.Resolve("r1", resp))

	select {
	case got := <-done:
		require.NoError(t, got.err)
		require.Same(t, resp, got.msg)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
	require.Zero(t, b.Len())
}

func TestSecondWaiterRejectedImmediately(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _, _ = b.WaitFor(ctx, "r1", 0) }()
	waitUntilWaiting(t, b, "r1")

	start := time.Now()
	msg, err := b.WaitFor(context.Background(), "r1", time.Minute)
	require.ErrorIs(t, err, ErrAlreadyWaiting)
	require.Nil(t, msg)
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.True(t, b.Waiting("r1"), "rejection must not remove the first waiter")
}

func TestWaitForTimesOut(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	msg, err := b.WaitFor(context.Background(), "r1", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.Nil(t, msg)
	require.False(t, b.Waiting("r1"))
}

func TestWaitForHonorsContext(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.WaitFor(ctx, "r1", 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, b.Len())
}

func TestResolveWithoutWaiterIsNoop(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	if b.Resolve("nobody", &message.Message{ID: "nobody"}) {
		t.Fatal("expected resolve without waiter to report false")
	}
}

func TestResolveDeliversOnce(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	first := &message.Message{Kind: message.KindResponse, ID: "r1"}
	second := &message.Message{Kind: message.KindResponse, ID: "r1"}

	done := make(chan *message.Message, 1)
	go func() {
		msg, _ := b.WaitFor(context.Background(), "r1", time.Second)
		done <- msg
	}()
	waitUntilWaiting(t, b, "r1")

	require.True(t, b.Resolve("r1", first))
	// The waiter may still be registered until its goroutine returns.
	_ = b.Resolve("r1", second)

	select {
	case got := <-done:
		require.Same(t, first, got)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestIdCanBeAwaitedAgainAfterReturn(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	_, err := b.WaitFor(context.Background(), "r1", time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	_, err = b.WaitFor(context.Background(), "r1", time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestPrepareCatchesResponseBeforeWait(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	pending, err := b.Prepare("fast")
	require.NoError(t, err)

	resp := &message.Message{Kind: message.KindResponse, ID: "fast"}
	require.True(t, b.Resolve("fast", resp))

	got, err := pending.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	require.Same(t, resp, got)
	require.False(t, b.Waiting("fast"))
}

func TestCancelReleasesId(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	pending, err := b.Prepare("r1")
	require.NoError(t, err)

	_, err = b.Prepare("r1")
	require.ErrorIs(t, err, ErrAlreadyWaiting)

	pending.Cancel()
	pending.Cancel()
	require.False(t, b.Waiting("r1"))

	again, err := b.Prepare("r1")
	require.NoError(t, err)
	again.Cancel()
}

func TestDeliveredResponseWinsOverCancelledContext(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 200; i++ {
		pending, err := b.Prepare("r1")
		require.NoError(t, err)

		resp := &message.Message{Kind: message.KindResponse, ID: "r1", Code: message.CodeOK}
		require.True(t, b.Resolve("r1", resp))

		got, err := pending.Wait(ctx, time.Nanosecond)
		require.NoError(t, err, "iteration %d", i)
		require.Same(t, resp, got)
	}
	require.Zero(t, b.Len())
}

func TestCancelledContextWithoutResponse(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pending, err := b.Prepare("r1")
	require.NoError(t, err)

	got, err := pending.Wait(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, got)
}
