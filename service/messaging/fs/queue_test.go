package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

type change struct {
	ApprovalID string `json:"approvalId"`
	Action     string `json:"action"`
}

func newTestQueue(t *testing.T, base string, adjust func(c *Config)) (*Queue[change], afs.Service) {
	t.Helper()
	fs := afs.New()
	location := "mem://localhost/" + base
	t.Cleanup(func() { _ = fs.Delete(context.Background(), location) })
	config := DefaultConfig()
	config.BaseURL = location
	config.PollInterval = 5 * time.Millisecond
	if adjust != nil {
		adjust(&config)
	}
	queue, err := NewQueue[change](fs, config)
	require.NoError(t, err)
	return queue, fs
}

func TestQueue_PublishConsumeInOrder(t *testing.T) {
	queue, fs := newTestQueue(t, "fsqueue-order", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, queue.Publish(ctx, &change{ApprovalID: id, Action: "created"}))
		time.Sleep(time.Millisecond)
	}
	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)

	for _, id := range []string{"a1", "a2", "a3"} {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, message.T().ApprovalID)
		require.NoError(t, message.Ack())
		assert.Error(t, message.Ack())
	}

	pending, err = queue.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
	processing, err := fs.List(ctx, url.Join(queue.config.BaseURL, processingDir))
	require.NoError(t, err)
	for _, object := range processing {
		assert.True(t, object.IsDir(), "unexpected leftover %s", object.Name())
	}
}

func TestQueue_ConsumeWaitsForPublish(t *testing.T) {
	queue, _ := newTestQueue(t, "fsqueue-wait", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = queue.Publish(context.Background(), &change{ApprovalID: "late"})
	}()
	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", message.T().ApprovalID)
	assert.NoError(t, message.Ack())
}

func TestQueue_ConsumeHonorsContext(t *testing.T) {
	queue, _ := newTestQueue(t, "fsqueue-ctx", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	message, err := queue.Consume(ctx)
	assert.Nil(t, message)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestQueue_NackRetriesThenDeadLetters(t *testing.T) {
	queue, _ := newTestQueue(t, "fsqueue-dlq", func(c *Config) {
		c.MaxRetries = 1
		c.RetryDelay = 5 * time.Millisecond
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &change{ApprovalID: "a1"}))
	for attempt := 0; attempt <= 1; attempt++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err, "attempt %d", attempt)
		assert.Equal(t, attempt, message.(*Message[change]).Retries)
		require.NoError(t, message.Nack(errors.New("refresh failed")))
	}

	dead, err := queue.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dead)

	short, cancelShort := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancelShort()
	_, err = queue.Consume(short)
	assert.Error(t, err)
}

func TestQueue_SharedAcrossInstances(t *testing.T) {
	producer, fs := newTestQueue(t, "fsqueue-shared", nil)
	consumer, err := NewQueue[change](fs, producer.config)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, producer.Publish(ctx, &change{ApprovalID: "a1", Action: "updated"}))
	message, err := consumer.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, &change{ApprovalID: "a1", Action: "updated"}, message.T())
	assert.NoError(t, message.Ack())
}

func TestNewQueue_RequiresBaseURL(t *testing.T) {
	_, err := NewQueue[change](afs.New(), Config{})
	assert.Error(t, err)
}

func TestQueue_LocalDirectory(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.BaseURL = dir
	config.PollInterval = 5 * time.Millisecond
	config.RetryDelay = time.Millisecond
	queue, err := NewQueue[change](afs.New(), config)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &change{ApprovalID: "a1"}))
	require.NoError(t, queue.Publish(ctx, &change{ApprovalID: "a2"}))
	entries, err := os.ReadDir(filepath.Join(dir, pendingDir))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.False(t, entry.IsDir(), entry.Name())
	}

	first, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a1", first.T().ApprovalID)
	require.NoError(t, first.Nack(errors.New("retry")))

	retried, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a1", retried.T().ApprovalID)
	require.NoError(t, retried.Ack())

	second, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", second.T().ApprovalID)
	require.NoError(t, second.Ack())

	for _, sub := range []string{pendingDir, processingDir, failedDir} {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.Empty(t, entries, sub)
	}
}
