package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket message types from client.
const (
	wsMsgSubscribe   = "subscribe"
	wsMsgUnsubscribe = "unsubscribe"
	wsMsgResync      = "resync"
)

// WebSocket message types to client, besides TypeInitial and TypeUpdate.
const (
	wsMsgSubscribed   = "subscribed"
	wsMsgUnsubscribed = "unsubscribed"
	wsMsgError        = "error"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsOutbox       = 64
)

// wsMessage is the client to server envelope.
type wsMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 16,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler serves the hub over websocket. A new connection is subscribed to
// the initial topics and receives their full state first; clients may
// subscribe, unsubscribe or resync further topics by message.
func (h *Hub) Handler(initialTopics ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		session := newWSSession(h, conn)
		session.serve(r.Context(), initialTopics)
	})
}

type wsSession struct {
	hub    *Hub
	conn   *websocket.Conn
	outbox chan *Event
	mu     sync.Mutex
	subs   map[string]*Subscription
	wg     sync.WaitGroup
}

func newWSSession(h *Hub, conn *websocket.Conn) *wsSession {
	return &wsSession{hub: h, conn: conn, outbox: make(chan *Event, wsOutbox), subs: make(map[string]*Subscription)}
}

func (s *wsSession) serve(parent context.Context, initialTopics []string) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	writerDone := make(chan struct{})
	go s.writeLoop(ctx, writerDone)
	defer func() {
		s.unsubscribeAll()
		cancel()
		s.wg.Wait()
		<-writerDone
		_ = s.conn.Close()
	}()

	for _, topic := range initialTopics {
		s.subscribe(ctx, topic, false)
	}
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		var msg wsMessage
		if err = json.Unmarshal(raw, &msg); err != nil {
			s.sendError(ctx, "invalid message format")
			continue
		}
		switch msg.Type {
		case wsMsgSubscribe:
			s.subscribe(ctx, msg.Topic, true)
		case wsMsgUnsubscribe:
			s.unsubscribe(ctx, msg.Topic)
		case wsMsgResync:
			s.resync(ctx, msg.Topic)
		default:
			s.sendError(ctx, "unknown message type: "+msg.Type)
		}
	}
}

func (s *wsSession) subscribe(ctx context.Context, topic string, ack bool) {
	s.mu.Lock()
	if _, ok := s.subs[topic]; ok {
		s.mu.Unlock()
		s.resync(ctx, topic)
		return
	}
	sub, err := s.hub.Subscribe(topic)
	if err != nil {
		s.mu.Unlock()
		s.sendError(ctx, err.Error())
		return
	}
	s.subs[topic] = sub
	s.mu.Unlock()

	if ack {
		s.send(ctx, &Event{Type: wsMsgSubscribed, Topic: topic, Timestamp: time.Now().UTC()})
	}
	initial, err := s.hub.State(ctx, topic, TypeInitial)
	if err != nil {
		s.sendError(ctx, err.Error())
	} else {
		s.send(ctx, initial)
	}
	s.wg.Add(1)
	go s.forward(ctx, sub)
}

func (s *wsSession) unsubscribe(ctx context.Context, topic string) {
	s.mu.Lock()
	sub, ok := s.subs[topic]
	delete(s.subs, topic)
	s.mu.Unlock()
	if !ok {
		s.sendError(ctx, "not subscribed: "+topic)
		return
	}
	s.hub.Unsubscribe(sub)
	s.send(ctx, &Event{Type: wsMsgUnsubscribed, Topic: topic, Timestamp: time.Now().UTC()})
}

func (s *wsSession) resync(ctx context.Context, topic string) {
	s.mu.Lock()
	sub, ok := s.subs[topic]
	s.mu.Unlock()
	if !ok {
		s.sendError(ctx, "not subscribed: "+topic)
		return
	}
	evt, err := s.hub.Resync(ctx, sub)
	if err != nil {
		s.sendError(ctx, err.Error())
		return
	}
	s.send(ctx, evt)
}

func (s *wsSession) unsubscribeAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]*Subscription)
	s.mu.Unlock()
	for _, sub := range subs {
		s.hub.Unsubscribe(sub)
	}
}

// forward relays hub events; after a drop it resends the full state.
func (s *wsSession) forward(ctx context.Context, sub *Subscription) {
	defer s.wg.Done()
	for evt := range sub.Events() {
		if sub.Stale() {
			if fresh, err := s.hub.Resync(ctx, sub); err == nil {
				evt = fresh
			}
		}
		if !s.send(ctx, evt) {
			return
		}
	}
}

func (s *wsSession) send(ctx context.Context, evt *Event) bool {
	select {
	case s.outbox <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *wsSession) sendError(ctx context.Context, message string) {
	s.send(ctx, &Event{Type: wsMsgError, Data: map[string]string{"message": message}, Timestamp: time.Now().UTC()})
}

func (s *wsSession) writeLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := s.conn.WriteJSON(evt); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.hub.logger.Debug("websocket write failed", "error", err)
				}
				_ = s.conn.Close()
				return
			}
		}
	}
}
