package hub

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterSource(counter *atomic.Int64) Source {
	return func(ctx context.Context) (interface{}, error) {
		return counter.Add(1), nil
	}
}

func receive(t *testing.T, sub *Subscription) *Event {
	t.Helper()
	select {
	case evt, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHub_SubscribeNotify(t *testing.T) {
	h := New()
	var counter atomic.Int64
	h.Register("approvals", counterSource(&counter))

	first, err := h.Subscribe("approvals")
	require.NoError(t, err)
	second, err := h.Subscribe("approvals")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Subscribers("approvals"))

	require.NoError(t, h.Notify(context.Background(), "approvals"))
	a := receive(t, first)
	b := receive(t, second)
	assert.Equal(t, TypeUpdate, a.Type)
	assert.Equal(t, "approvals", a.Topic)
	assert.Equal(t, int64(1), a.Data)
	assert.Same(t, a, b, "state is read once per notification")
}

func TestHub_Subscribe_Errors(t *testing.T) {
	h := New()
	_, err := h.Subscribe("missing")
	assert.True(t, errors.Is(err, ErrUnknownTopic))

	h.Register("specs", func(ctx context.Context) (interface{}, error) { return []string{}, nil })
	h.Close()
	_, err = h.Subscribe("specs")
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestHub_State(t *testing.T) {
	h := New()
	h.Register("approvals", func(ctx context.Context) (interface{}, error) { return []string{"a"}, nil })
	h.Register("broken", func(ctx context.Context) (interface{}, error) { return nil, errors.New("boom") })

	evt, err := h.State(context.Background(), "approvals", TypeInitial)
	require.NoError(t, err)
	assert.Equal(t, TypeInitial, evt.Type)
	assert.Equal(t, []string{"a"}, evt.Data)

	_, err = h.State(context.Background(), "broken", TypeInitial)
	assert.EqualError(t, err, "failed to read broken state: boom")
	assert.Equal(t, []string{"approvals", "broken"}, h.Topics())
}

func TestHub_SlowSubscriberIsFlaggedStale(t *testing.T) {
	h := New(WithBuffer(1))
	var counter atomic.Int64
	h.Register("approvals", counterSource(&counter))

	slow, err := h.Subscribe("approvals")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, h.Notify(ctx, "approvals"))
	assert.False(t, slow.Stale())
	require.NoError(t, h.Notify(ctx, "approvals"), "a full mailbox never blocks the publisher")
	assert.True(t, slow.Stale())

	assert.Equal(t, int64(1), receive(t, slow).Data)
	evt, err := h.Resync(ctx, slow)
	require.NoError(t, err)
	assert.False(t, slow.Stale())
	assert.Equal(t, TypeInitial, evt.Type)
	assert.Equal(t, int64(3), evt.Data)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := New()
	h.Register("approvals", func(ctx context.Context) (interface{}, error) { return 1, nil })
	sub, err := h.Subscribe("approvals")
	require.NoError(t, err)

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers("approvals"))
	assert.NoError(t, h.Notify(context.Background(), "approvals"))
}

func TestHub_NotifyAll(t *testing.T) {
	h := New()
	var approvals, specs atomic.Int64
	h.Register("approvals", counterSource(&approvals))
	h.Register("specs", counterSource(&specs))
	h.Register("broken", func(ctx context.Context) (interface{}, error) { return nil, errors.New("boom") })

	err := h.NotifyAll(context.Background(), "approvals", "unknown", "specs")
	require.NoError(t, err)
	assert.Equal(t, int64(1), approvals.Load())
	assert.Equal(t, int64(1), specs.Load())

	err = h.NotifyAll(context.Background(), "broken", "approvals")
	assert.Error(t, err)
	assert.Equal(t, int64(2), approvals.Load(), "a failing topic does not stop the others")
}

func TestHub_Close(t *testing.T) {
	h := New()
	h.Register("approvals", func(ctx context.Context) (interface{}, error) { return 1, nil })
	sub, err := h.Subscribe("approvals")
	require.NoError(t, err)

	h.Close()
	h.Close()
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.True(t, errors.Is(h.Notify(context.Background(), "approvals"), ErrClosed))
	h.Unsubscribe(sub)
}
