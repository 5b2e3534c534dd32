// Package fs implements a file-backed queue on afs. Any number of processes
// may publish; one process consumes. Messages live as JSON objects under
// <BaseURL>/{pending,processing,failed,dlq[,completed]}.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/storeio"
	"github.com/sansecao/spec-workflow-mcp-pro/service/messaging"
)

// MessageState represents the state of a message in the filesystem queue
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateCompleted  MessageState = "completed"
	MessageStateFailed     MessageState = "failed"
)

const (
	pendingDir    = "pending"
	processingDir = "processing"
	completedDir  = "completed"
	failedDir     = "failed"
	dlqDir        = "dlq"
)

// Message is a consumed queue entry.
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`

	queue     *Queue[T]
	name      string
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack removes the message, or moves it to completed when KeepCompleted is set.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.State = MessageStateCompleted
	m.UpdatedAt = time.Now()
	return m.queue.complete(context.Background(), m)
}

// Nack schedules a retry after RetryDelay, or dead-letters the message once
// MaxRetries is exceeded.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.State = MessageStateFailed
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = time.Now()
	return m.queue.fail(context.Background(), m)
}

// Config holds configuration for filesystem queue
type Config struct {
	BaseURL       string
	MaxRetries    int
	RetryDelay    time.Duration
	PollInterval  time.Duration
	KeepCompleted bool
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		RetryDelay:   time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// Queue implements messaging.Queue on a directory tree.
type Queue[T any] struct {
	fs     afs.Service
	config Config
	mu     sync.Mutex
}

// Publish writes the message to pending. The object appears whole, so a
// consumer in another process never reads a partial file.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := time.Now()
	message := &Message[T]{
		ID:        uuid.New().String(),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.json", now.UnixNano(), message.ID)
	if err = storeio.WriteFile(ctx, q.fs, q.dirURL(pendingDir, name), data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Consume returns the oldest retry-ready failed message, else the oldest
// pending one, polling every PollInterval until ctx is done.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		message, err := q.next(ctx)
		if err != nil {
			return nil, err
		}
		if message != nil {
			return message, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.config.PollInterval):
		}
	}
}

// Pending returns the number of messages waiting in the pending directory.
func (q *Queue[T]) Pending(ctx context.Context) (int, error) {
	objects, err := q.list(ctx, pendingDir)
	return len(objects), err
}

// DeadLetters returns the number of dead-lettered messages.
func (q *Queue[T]) DeadLetters(ctx context.Context) (int, error) {
	objects, err := q.list(ctx, dlqDir)
	return len(objects), err
}

func (q *Queue[T]) next(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	failed, err := q.list(ctx, failedDir)
	if err != nil {
		return nil, err
	}
	for _, object := range failed {
		message, err := q.read(ctx, object.URL())
		if err != nil {
			_ = storeio.Rename(ctx, q.fs, object.URL(), q.dirURL(dlqDir, "invalid-"+object.Name()))
			continue
		}
		if time.Since(message.UpdatedAt) < q.config.RetryDelay {
			continue
		}
		if claimed, err := q.claim(ctx, object, message); claimed != nil || err != nil {
			return claimed, err
		}
	}

	pending, err := q.list(ctx, pendingDir)
	if err != nil {
		return nil, err
	}
	for _, object := range pending {
		message, err := q.read(ctx, object.URL())
		if err != nil {
			_ = storeio.Rename(ctx, q.fs, object.URL(), q.dirURL(dlqDir, "invalid-"+object.Name()))
			return nil, err
		}
		if claimed, err := q.claim(ctx, object, message); claimed != nil || err != nil {
			return claimed, err
		}
	}
	return nil, nil
}

// claim moves the message to processing. It returns nil, nil when another
// consumer claimed it first.
func (q *Queue[T]) claim(ctx context.Context, object storage.Object, message *Message[T]) (*Message[T], error) {
	if err := storeio.Rename(ctx, q.fs, object.URL(), q.dirURL(processingDir, object.Name())); err != nil {
		if errors.Is(err, storeio.ErrSourceMissing) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim message %s: %w", message.ID, err)
	}
	message.State = MessageStateProcessing
	message.UpdatedAt = time.Now()
	message.queue = q
	message.name = object.Name()
	return message, nil
}

func (q *Queue[T]) complete(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	processing := q.dirURL(processingDir, m.name)
	if q.config.KeepCompleted {
		if err := q.write(ctx, completedDir, m); err != nil {
			return err
		}
	}
	if err := q.fs.Delete(ctx, processing); err != nil {
		return fmt.Errorf("failed to delete message from processing directory: %w", err)
	}
	return nil
}

func (q *Queue[T]) fail(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	target := failedDir
	if m.Retries > q.config.MaxRetries {
		target = dlqDir
	}
	if err := q.write(ctx, target, m); err != nil {
		return err
	}
	if err := q.fs.Delete(ctx, q.dirURL(processingDir, m.name)); err != nil {
		return fmt.Errorf("failed to delete message from processing directory: %w", err)
	}
	return nil
}

func (q *Queue[T]) write(ctx context.Context, dir string, m *Message[T]) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message %s: %w", m.ID, err)
	}
	if err = storeio.WriteFile(ctx, q.fs, q.dirURL(dir, m.name), data); err != nil {
		return fmt.Errorf("failed to write message %s to %s: %w", m.ID, dir, err)
	}
	return nil
}

// list returns committed messages of dir in name (publish time) order.
func (q *Queue[T]) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, q.dirURL(dir), option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s messages: %w", dir, err)
	}
	var result []storage.Object
	for _, object := range objects {
		if object.IsDir() || strings.HasPrefix(object.Name(), ".") || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		result = append(result, object)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result, nil
}

func (q *Queue[T]) read(ctx context.Context, location string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", location, err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", location, err)
	}
	return &message, nil
}

func (q *Queue[T]) dirURL(dir string, name ...string) string {
	return url.Join(q.config.BaseURL, append([]string{dir}, name...)...)
}

// NewQueue creates the queue directories under config.BaseURL.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	defaults := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	config.BaseURL = url.Normalize(config.BaseURL, file.Scheme)
	q := &Queue[T]{fs: fs, config: config}
	dirs := []string{pendingDir, processingDir, failedDir, dlqDir}
	if config.KeepCompleted {
		dirs = append(dirs, completedDir)
	}
	ctx := context.Background()
	for _, dir := range dirs {
		location := q.dirURL(dir)
		if exists, _ := fs.Exists(ctx, location); !exists {
			if err := fs.Create(ctx, location, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", location, err)
			}
		}
	}
	return q, nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
