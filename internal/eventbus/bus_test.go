package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type payload struct {
	SessionID string `json:"session_id"`
}

func TestChannelBus_DeliversToSubscriber(t *testing.T) {
	bus := NewChannelBus(zap.NewNop())
	defer bus.Close()

	received := make(chan Event, 1)
	sub, err := bus.Subscribe("stall.events", func(ctx context.Context, e Event) {
		received <- e
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), "stall.events", payload{SessionID: "s1"}))

	select {
	case e := <-received:
		var p payload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		assert.Equal(t, "s1", p.SessionID)
		assert.Equal(t, "stall.events", e.Subject)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestChannelBus_DoesNotDeliverToOtherSubjects(t *testing.T) {
	bus := NewChannelBus(zap.NewNop())
	defer bus.Close()

	var mu sync.Mutex
	var delivered int
	sub, err := bus.Subscribe("audit.records", func(ctx context.Context, e Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), "stall.events", payload{SessionID: "s1"}))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, delivered)
}

func TestChannelBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewChannelBus(zap.NewNop())
	defer bus.Close()

	var mu sync.Mutex
	var delivered int
	sub, err := bus.Subscribe("stall.events", func(ctx context.Context, e Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})
	require.NoError(t, err)

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), "stall.events", payload{SessionID: "s1"}))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, delivered)
}

func TestChannelBus_PublishAfterCloseFails(t *testing.T) {
	bus := NewChannelBus(zap.NewNop())
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), "stall.events", payload{SessionID: "s1"})
	assert.Error(t, err)
}

func TestNew_SelectsChannelBusWhenNoURL(t *testing.T) {
	bus, err := New("", zap.NewNop())
	require.NoError(t, err)
	_, ok := bus.(*channelBus)
	assert.True(t, ok)
}
