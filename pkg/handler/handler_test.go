package handler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ipcam/pkg/message"

	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu    sync.Mutex
	calls []string
}

func (s *fakeService) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func recording(tag string) Factory[*fakeService] {
	return func(svc *fakeService) Handler {
		return Func(func(_ context.Context, msg *message.Message) error {
			svc.record(tag + ":" + msg.ID)
			return nil
		})
	}
}

func TestFirstRegistrationWins(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*fakeService]()
	require.True(t, reg.Register("foo", recording("A")))
	require.False(t, reg.Register("foo", recording("B")))

	svc := &fakeService{}
	found, err := reg.Dispatch(context.Background(), "foo", &message.Message{ID: "m1"}, svc)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"A:m1"}, svc.calls)
}

func TestDispatchUnknownNameIsNoop(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*fakeService]()
	svc := &fakeService{}

	found, err := reg.Dispatch(context.Background(), "missing", &message.Message{ID: "m1"}, svc)
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, svc.calls)
}

func TestDispatchBuildsFreshHandlerPerMessage(t *testing.T) {
	t.Parallel()

	type counter struct{ runs int }
	var built []*counter

	reg := NewRegistry[*fakeService]()
	reg.Register("count", func(*fakeService) Handler {
		c := &counter{}
		built = append(built, c)
		return Func(func(context.Context, *message.Message) error {
			c.runs++
			return nil
		})
	})

	for i := 0; i < 3; i++ {
		_, err := reg.Dispatch(context.Background(), "count", &message.Message{ID: "x"}, &fakeService{})
		require.NoError(t, err)
	}

	require.Len(t, built, 3)
	for _, c := range built {
		require.Equal(t, 1, c.runs)
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	reg := NewRegistry[*fakeService]()
	reg.Register("fail", func(*fakeService) Handler {
		return Func(func(context.Context, *message.Message) error { return boom })
	})

	found, err := reg.Dispatch(context.Background(), "fail", &message.Message{ID: "x"}, &fakeService{})
	require.True(t, found)
	require.ErrorIs(t, err, boom)
}

func TestRegisterConcurrentSameName(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*fakeService]()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if reg.Register("dup", recording("x")) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, []string{"dup"}, reg.Names())
}

func TestRegisterRejectsNilFactory(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*fakeService]()
	if reg.Register("nil", nil) {
		t.Fatal("expected nil factory to be rejected")
	}
	if _, ok := reg.Lookup("nil"); ok {
		t.Fatal("nil factory must not be stored")
	}
}
