// Package event carries typed notifications over a messaging queue.
package event

import "time"

// Context describes what an event is about.
type Context struct {
	Topic      string `json:"topic"`
	Type       string `json:"type"`
	ApprovalID string `json:"approvalId,omitempty"`
	Action     string `json:"action,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
