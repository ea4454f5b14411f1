package stream_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/stream"
)

type recorder struct {
	mu     sync.Mutex
	events []apitypes.Event
}

func (r *recorder) HandleEvent(_ context.Context, event apitypes.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) all() []apitypes.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]apitypes.Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestBusDeliversInRegistrationOrderAndStopsOnError(t *testing.T) {
	bus := stream.NewBus()
	var order []string
	_, err := bus.Register(stream.SubscriberFunc(func(context.Context, apitypes.Event) error {
		order = append(order, "first")
		return nil
	}))
	require.NoError(t, err)
	_, err = bus.Register(stream.SubscriberFunc(func(context.Context, apitypes.Event) error {
		order = append(order, "second")
		return errors.New("boom")
	}))
	require.NoError(t, err)
	_, err = bus.Register(stream.SubscriberFunc(func(context.Context, apitypes.Event) error {
		order = append(order, "third")
		return nil
	}))
	require.NoError(t, err)

	err = bus.Publish(context.Background(), apitypes.Event{Type: "start"})
	require.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	bus := stream.NewBus()
	rec := &recorder{}
	sub, err := bus.Register(rec)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), apitypes.Event{Type: "start"}))
	sub.Close()
	require.NoError(t, bus.Publish(context.Background(), apitypes.Event{Type: "finish"}))

	assert.Len(t, rec.all(), 1)
}

func TestManagerEmitPreservesPerThreadOrder(t *testing.T) {
	bus := stream.NewBus()
	rec := &recorder{}
	_, err := bus.Register(rec)
	require.NoError(t, err)

	mgr := stream.New(stream.Options{Bus: bus})
	for i := 0; i < 5; i++ {
		require.NoError(t, mgr.Emit(context.Background(), apitypes.Event{Type: "token", ThreadID: "t1", Data: map[string]any{"i": i}}))
	}

	events := rec.all()
	require.Len(t, events, 5)
	for i, e := range events {
		assert.Equal(t, i, e.Data["i"])
	}
}

func TestManagerFilterDropsEvent(t *testing.T) {
	bus := stream.NewBus()
	rec := &recorder{}
	_, err := bus.Register(rec)
	require.NoError(t, err)

	mgr := stream.New(stream.Options{Bus: bus})
	mgr.AddTransformer(stream.Transformer{
		Name:   "drop-tokens",
		Filter: func(e apitypes.Event) bool { return e.Type != apitypes.EventToken },
	})

	require.NoError(t, mgr.Emit(context.Background(), apitypes.Event{Type: apitypes.EventToken, ThreadID: "t1"}))
	require.NoError(t, mgr.Emit(context.Background(), apitypes.Event{Type: apitypes.EventFinish, ThreadID: "t1"}))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, apitypes.EventFinish, events[0].Type)
}

func TestManagerTransformerErrorForwardsEventUnchanged(t *testing.T) {
	bus := stream.NewBus()
	rec := &recorder{}
	_, err := bus.Register(rec)
	require.NoError(t, err)

	mgr := stream.New(stream.Options{Bus: bus})
	mgr.AddTransformer(stream.Transformer{
		Name: "broken",
		Apply: func(e apitypes.Event) (apitypes.Event, error) {
			return apitypes.Event{}, errors.New("transformer exploded")
		},
	})

	require.NoError(t, mgr.Emit(context.Background(), apitypes.Event{Type: "start", ThreadID: "t1"}))
	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "start", events[0].Type)
}

func TestManagerBuffersUntilSizeReached(t *testing.T) {
	bus := stream.NewBus()
	rec := &recorder{}
	_, err := bus.Register(rec)
	require.NoError(t, err)

	mgr := stream.New(stream.Options{Bus: bus, BufferSize: 3})
	require.NoError(t, mgr.Emit(context.Background(), apitypes.Event{Type: "a", ThreadID: "t1"}))
	require.NoError(t, mgr.Emit(context.Background(), apitypes.Event{Type: "b", ThreadID: "t1"}))
	assert.Empty(t, rec.all())

	require.NoError(t, mgr.Emit(context.Background(), apitypes.Event{Type: "c", ThreadID: "t1"}))
	assert.Len(t, rec.all(), 3)
}

func TestManagerFlushesOnTimer(t *testing.T) {
	bus := stream.NewBus()
	rec := &recorder{}
	_, err := bus.Register(rec)
	require.NoError(t, err)

	mgr := stream.New(stream.Options{Bus: bus, BufferSize: 10, FlushInterval: 10 * time.Millisecond})
	require.NoError(t, mgr.Emit(context.Background(), apitypes.Event{Type: "a", ThreadID: "t1"}))
	assert.Empty(t, rec.all())

	require.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, 200*time.Millisecond, 5*time.Millisecond)
}

func TestManagerRemoveTransformerStopsApplyingIt(t *testing.T) {
	bus := stream.NewBus()
	rec := &recorder{}
	_, err := bus.Register(rec)
	require.NoError(t, err)

	mgr := stream.New(stream.Options{Bus: bus})
	mgr.AddTransformer(stream.Transformer{
		Name:   "drop-all",
		Filter: func(apitypes.Event) bool { return false },
	})
	mgr.RemoveTransformer("drop-all")

	require.NoError(t, mgr.Emit(context.Background(), apitypes.Event{Type: "start", ThreadID: "t1"}))
	assert.Len(t, rec.all(), 1)
}
