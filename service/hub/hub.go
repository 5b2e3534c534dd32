// Package hub distributes full-state snapshots of approval and document
// collections to interactive sessions. The hub never keeps its own copy of the
// data: every notification re-reads the registered source and fans the result
// out to subscribers without blocking on slow ones.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/metrics"
)

// Event types pushed to subscribers.
const (
	TypeInitial = "initial"
	TypeUpdate  = "approval-update"
)

// DefaultBuffer is the per-subscription mailbox size.
const DefaultBuffer = 16

var (
	// ErrUnknownTopic is returned for a topic without a registered source.
	ErrUnknownTopic = errors.New("hub: unknown topic")
	// ErrClosed is returned once the hub has been closed.
	ErrClosed = errors.New("hub: closed")
)

// Source returns the full current state of a topic.
type Source func(ctx context.Context) (interface{}, error)

// Event is one full-state message.
type Event struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Subscription receives events for one topic.
type Subscription struct {
	id     uint64
	topic  string
	events chan *Event
	stale  atomic.Bool
	once   sync.Once
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Events returns the mailbox; it is closed on Unsubscribe or hub Close.
func (s *Subscription) Events() <-chan *Event { return s.events }

// Stale reports whether an event was dropped because the mailbox was full.
// A stale subscriber should call Hub.Resync.
func (s *Subscription) Stale() bool { return s.stale.Load() }

func (s *Subscription) offer(evt *Event) bool {
	select {
	case s.events <- evt:
		return true
	default:
		s.stale.Store(true)
		return false
	}
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.events) })
}

// Hub fans out topic state to subscriptions.
type Hub struct {
	mu      sync.RWMutex
	sources map[string]Source
	subs    map[string]map[uint64]*Subscription
	nextID  uint64
	buffer  int
	closed  bool
	logger  *slog.Logger
}

// Register binds topic to source, replacing any previous source.
func (h *Hub) Register(topic string, source Source) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sources[topic] = source
	if _, ok := h.subs[topic]; !ok {
		h.subs[topic] = make(map[uint64]*Subscription)
	}
}

// Topics returns registered topics in name order.
func (h *Hub) Topics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	topics := make([]string, 0, len(h.sources))
	for topic := range h.sources {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Subscribe opens a subscription on topic.
func (h *Hub) Subscribe(topic string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if _, ok := h.sources[topic]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	h.nextID++
	sub := &Subscription{id: h.nextID, topic: topic, events: make(chan *Event, h.buffer)}
	h.subs[topic][sub.id] = sub
	metrics.SetSubscribers(topic, len(h.subs[topic]))
	return sub, nil
}

// Unsubscribe closes sub. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if subs, ok := h.subs[sub.topic]; ok {
		delete(subs, sub.id)
		metrics.SetSubscribers(sub.topic, len(subs))
	}
	h.mu.Unlock()
	sub.close()
}

// Subscribers returns the number of subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// State reads the current state of topic as an event of eventType.
func (h *Hub) State(ctx context.Context, topic, eventType string) (*Event, error) {
	h.mu.RLock()
	source, ok := h.sources[topic]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	data, err := source(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s state: %w", topic, err)
	}
	return &Event{Type: eventType, Topic: topic, Data: data, Timestamp: time.Now().UTC()}, nil
}

// Resync clears the stale flag of sub and returns the current state.
func (h *Hub) Resync(ctx context.Context, sub *Subscription) (*Event, error) {
	sub.stale.Store(false)
	return h.State(ctx, sub.topic, TypeInitial)
}

// Notify re-reads topic and publishes it to every subscriber. Subscribers with
// a full mailbox miss the event and are flagged stale.
func (h *Hub) Notify(ctx context.Context, topic string) error {
	evt, err := h.State(ctx, topic, TypeUpdate)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	for _, sub := range h.subs[topic] {
		if sub.offer(evt) {
			metrics.RecordHubEvent(topic, "delivered")
			continue
		}
		metrics.RecordHubEvent(topic, "dropped")
		h.logger.Debug("hub subscriber mailbox full", "topic", topic, "subscription", sub.id)
	}
	return nil
}

// NotifyAll notifies each topic and returns the joined errors.
func (h *Hub) NotifyAll(ctx context.Context, topics ...string) error {
	var errs []error
	for _, topic := range topics {
		if err := h.Notify(ctx, topic); err != nil && !errors.Is(err, ErrUnknownTopic) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every subscription; later Subscribe calls fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for topic, subs := range h.subs {
		for id, sub := range subs {
			sub.close()
			delete(subs, id)
		}
		metrics.SetSubscribers(topic, 0)
	}
}

// New creates a hub.
func New(options ...Option) *Hub {
	ret := &Hub{
		sources: make(map[string]Source),
		subs:    make(map[string]map[uint64]*Subscription),
		buffer:  DefaultBuffer,
	}
	for _, option := range options {
		option(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	return ret
}
