package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_DeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []Event
	d.Subscribe(EventLoginSucceeded, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	event := Event{Type: EventLoginSucceeded, UserID: "u1", Timestamp: time.Now()}
	require.NoError(t, d.Publish(context.Background(), event))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventLoggedOut, UserID: "u1"}))

	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].UserID)
}

func TestDispatcher_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	d := NewInMemoryDispatcher()

	var secondCalled bool
	d.Subscribe(EventTokenRefreshed, func(context.Context, Event) error {
		return errors.New("boom")
	})
	d.Subscribe(EventTokenRefreshed, func(context.Context, Event) error {
		secondCalled = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTokenRefreshed}))
	assert.True(t, secondCalled)
}
