package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinged struct {
	BaseEvent
	N int
}

func (pinged) EventName() string { return "test.pinged" }

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var sum atomic.Int64

	for i := 0; i < 3; i++ {
		bus.Subscribe("test.pinged", HandlerFunc(func(_ context.Context, e Event) error {
			sum.Add(int64(e.(pinged).N))
			return nil
		}))
	}

	bus.Publish(context.Background(), pinged{BaseEvent: NewBaseEvent(), N: 2})
	bus.Wait()

	assert.EqualValues(t, 6, sum.Load())
}

func TestPublishDetachesCancellation(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var ctxErr atomic.Value

	bus.Subscribe("test.pinged", HandlerFunc(func(ctx context.Context, _ Event) error {
		ctxErr.Store(ctx.Err() == nil)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pinged{})
	bus.Wait()

	assert.Equal(t, true, ctxErr.Load())
}

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(nil)
	boom := errors.New("boom")
	calls := 0

	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error { calls++; return boom }))
	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error { calls++; return nil }))

	err := bus.PublishSync(context.Background(), pinged{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewInMemoryBus(nil)
	bus.Publish(context.Background(), pinged{})
	bus.Wait()
	assert.NoError(t, bus.PublishSync(context.Background(), pinged{}))
}
