package memory

import (
	"context"
	"testing"
	"time"

	"ipcam/pkg/transport"

	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, nd *Node) transport.Inbound {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	in, ok := nd.Receive(ctx)
	require.True(t, ok, "expected an inbound delivery on %s", nd.Name())
	return in
}

func TestRoutedRoundTrip(t *testing.T) {
	t.Parallel()

	network := NewNetwork()
	server := network.Node("iconfig")
	client := network.Node("ionvif")
	t.Cleanup(server.Close)
	t.Cleanup(client.Close)

	require.NoError(t, server.Bind("iconfig", "inproc://iconfig"))
	require.NoError(t, client.Connect("iconfig", "inproc://iconfig", "ionvif"))
	require.True(t, server.IsServer("iconfig"))
	require.False(t, client.IsServer("iconfig"))

	ctx := context.Background()
	require.NoError(t, client.SendStrings(ctx, "iconfig", []string{"hello"}, ""))

	in := receive(t, server)
	require.Equal(t, "iconfig", in.Source)
	require.Equal(t, transport.KindServer, in.Kind)
	require.Equal(t, "ionvif", in.ClientID)
	require.Equal(t, "hello", in.Payload())

	require.NoError(t, server.SendStrings(ctx, "iconfig", []string{"world"}, in.ClientID))

	back := receive(t, client)
	require.Equal(t, "iconfig", back.Source)
	require.Equal(t, transport.KindClient, back.Kind)
	require.Empty(t, back.ClientID)
	require.Equal(t, []string{"world"}, back.Frames)
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	t.Parallel()

	network := NewNetwork()
	pub := network.Node("ivideo")
	subA := network.Node("ionvif")
	subB := network.Node("irecord")
	for _, nd := range []*Node{pub, subA, subB} {
		t.Cleanup(nd.Close)
	}

	require.NoError(t, pub.Publish("video_pub", "inproc://video_pub"))
	require.NoError(t, subA.Subscribe("video_sub", "inproc://video_pub"))
	require.NoError(t, subB.Subscribe("video_sub", "inproc://video_pub"))

	require.NoError(t, pub.SendStrings(context.Background(), "video_pub", []string{"notice"}, ""))

	for _, nd := range []*Node{subA, subB} {
		in := receive(t, nd)
		require.Equal(t, "video_sub", in.Source)
		require.Equal(t, "notice", in.Payload())
	}
}

func TestSubscriberCannotSend(t *testing.T) {
	t.Parallel()

	network := NewNetwork()
	pub := network.Node("pub")
	sub := network.Node("sub")
	t.Cleanup(pub.Close)
	t.Cleanup(sub.Close)

	require.NoError(t, pub.Publish("events", "inproc://events"))
	require.NoError(t, sub.Subscribe("events", "inproc://events"))

	err := sub.SendStrings(context.Background(), "events", []string{"x"}, "")
	require.ErrorIs(t, err, transport.ErrSendOnly)
}

func TestBindErrors(t *testing.T) {
	t.Parallel()

	network := NewNetwork()
	a := network.Node("a")
	b := network.Node("b")
	t.Cleanup(a.Close)
	t.Cleanup(b.Close)

	require.NoError(t, a.Bind("svc", "inproc://svc"))
	require.ErrorIs(t, a.Bind("svc", "inproc://other"), transport.ErrEndpointExists)
	require.ErrorIs(t, b.Bind("svc", "inproc://svc"), transport.ErrAddressInUse)
	require.Error(t, b.Subscribe("svc-sub", "inproc://svc"), "pattern mismatch must fail")
}

func TestDuplicateClientIdentityRejected(t *testing.T) {
	t.Parallel()

	network := NewNetwork()
	a := network.Node("a")
	b := network.Node("b")
	t.Cleanup(a.Close)
	t.Cleanup(b.Close)

	require.NoError(t, a.Connect("svc", "inproc://svc", "same"))
	require.ErrorIs(t, b.Connect("svc", "inproc://svc", "same"), transport.ErrIdentityInUse)
}

func TestSendErrors(t *testing.T) {
	t.Parallel()

	network := NewNetwork()
	server := network.Node("server")
	client := network.Node("client")
	t.Cleanup(server.Close)
	t.Cleanup(client.Close)

	ctx := context.Background()
	require.ErrorIs(t, client.SendStrings(ctx, "missing", nil, ""), transport.ErrUnknownEndpoint)

	require.NoError(t, client.Connect("svc", "inproc://svc", "client"))
	require.ErrorIs(t, client.SendStrings(ctx, "svc", []string{"x"}, ""), transport.ErrNoPeer)

	require.NoError(t, server.Bind("svc", "inproc://svc"))
	require.ErrorIs(t, server.SendStrings(ctx, "svc", []string{"x"}, "stranger"), transport.ErrUnknownClient)
}

func TestCloseStopsReceiveAndDetaches(t *testing.T) {
	t.Parallel()

	network := NewNetwork()
	server := network.Node("server")
	client := network.Node("client")
	t.Cleanup(client.Close)

	require.NoError(t, server.Bind("svc", "inproc://svc"))
	require.NoError(t, client.Connect("svc", "inproc://svc", "client"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = server.Receive(context.Background())
	}()

	server.Close()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("receive did not unblock after close")
	}

	require.ErrorIs(t, client.SendStrings(context.Background(), "svc", []string{"x"}, ""), transport.ErrNoPeer)
	require.ErrorIs(t, server.Bind("svc", "inproc://svc"), transport.ErrClosed)

	rebound := network.Node("server2")
	t.Cleanup(rebound.Close)
	require.NoError(t, rebound.Bind("svc", "inproc://svc"))
}

func TestFramesAreCopied(t *testing.T) {
	t.Parallel()

	network := NewNetwork()
	server := network.Node("server")
	client := network.Node("client")
	t.Cleanup(server.Close)
	t.Cleanup(client.Close)

	require.NoError(t, server.Bind("svc", "inproc://svc"))
	require.NoError(t, client.Connect("svc", "inproc://svc", "client"))

	frames := []string{"original"}
	require.NoError(t, client.SendStrings(context.Background(), "svc", frames, ""))
	frames[0] = "mutated"

	require.Equal(t, "original", receive(t, server).Payload())
}

func TestSendToFullMailboxFailsWithoutBlocking(t *testing.T) {
	t.Parallel()

	network := NewNetwork()
	server := network.Node("server")
	client := network.Node("client")
	t.Cleanup(server.Close)
	t.Cleanup(client.Close)

	require.NoError(t, server.Bind("svc", "inproc://svc"))
	require.NoError(t, client.Connect("svc", "inproc://svc", "client"))

	ctx := context.Background()
	for i := 0; i < defaultBufferSize; i++ {
		require.NoError(t, client.SendStrings(ctx, "svc", []string{"x"}, ""))
	}

	done := make(chan error, 1)
	go func() { done <- client.SendStrings(ctx, "svc", []string{"overflow"}, "") }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, transport.ErrFull)
	case <-time.After(time.Second):
		t.Fatal("send into a full mailbox blocked")
	}

	receive(t, server)
	require.NoError(t, client.SendStrings(ctx, "svc", []string{"x"}, ""), "draining frees a slot")
}

func TestSlowSubscriberDoesNotStallPublisher(t *testing.T) {
	t.Parallel()

	network := NewNetwork()
	pub := network.Node("pub")
	sub := network.Node("sub")
	t.Cleanup(pub.Close)
	t.Cleanup(sub.Close)

	require.NoError(t, pub.Publish("events", "inproc://events"))
	require.NoError(t, sub.Subscribe("events", "inproc://events"))

	for i := 0; i < defaultBufferSize+10; i++ {
		require.NoError(t, pub.SendStrings(context.Background(), "events", []string{"x"}, ""))
	}
}
