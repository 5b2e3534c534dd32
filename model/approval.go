package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an approval request.
type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusNeedsRevision Status = "needs-revision"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusNeedsRevision:
		return true
	}
	return false
}

// IsTerminal reports whether no further decision can be recorded.
func (s Status) IsTerminal() bool {
	return s.IsValid() && s != StatusPending
}

// Type distinguishes document review from approval of a proposed action.
type Type string

const (
	TypeDocument Type = "document"
	TypeAction   Type = "action"
)

// Category groups approvals by the bucket their artifact belongs to.
type Category string

const (
	CategorySpec     Category = "spec"
	CategorySteering Category = "steering"
)

// CommentType is either a selection bound or a general comment.
type CommentType string

const (
	CommentSelection CommentType = "selection"
	CommentGeneral   CommentType = "general"
)

// Comment is a reviewer note attached to a pending approval.
type Comment struct {
	Type         CommentType `json:"type"`
	SelectedText string      `json:"selectedText,omitempty"`
	Comment      string      `json:"comment"`
	Timestamp    *time.Time  `json:"timestamp,omitempty"`
}

// Resolve returns the comment as it should be displayed against content.
// A selection whose text is no longer present verbatim is orphaned and is
// reported as a general comment; the original selection is kept in the
// returned value's text so nothing the reviewer wrote is lost.
func (c Comment) Resolve(content string) (Comment, bool) {
	if c.Type != CommentSelection {
		return c, true
	}
	if c.SelectedText != "" && strings.Contains(content, c.SelectedText) {
		return c, true
	}
	orphan := c
	orphan.Type = CommentGeneral
	if c.SelectedText != "" {
		orphan.Comment = "(on \"" + c.SelectedText + "\") " + c.Comment
	}
	orphan.SelectedText = ""
	return orphan, false
}

// Request is a persisted approval request record.
type Request struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	FilePath     string     `json:"filePath"`
	Type         Type       `json:"type"`
	Category     Category   `json:"category"`
	CategoryName string     `json:"categoryName"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	RespondedAt  *time.Time `json:"respondedAt,omitempty"`
	Response     string     `json:"response,omitempty"`
	Annotations  string     `json:"annotations,omitempty"`
	Comments     []Comment  `json:"comments,omitempty"`
}

// Clone returns a deep copy so that callers never share slices with storage.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	ret := *r
	if r.RespondedAt != nil {
		at := *r.RespondedAt
		ret.RespondedAt = &at
	}
	ret.Comments = CloneComments(r.Comments)
	return &ret
}

// CloneComments copies a comment slice, preserving nil.
func CloneComments(comments []Comment) []Comment {
	if comments == nil {
		return nil
	}
	ret := make([]Comment, len(comments))
	copy(ret, comments)
	for i := range ret {
		if ts := comments[i].Timestamp; ts != nil {
			at := *ts
			ret[i].Timestamp = &at
		}
	}
	return ret
}

// ResolveComments resolves every comment against content and returns the
// display copies with the number of orphaned selections.
func ResolveComments(comments []Comment, content string) ([]Comment, int) {
	resolved := CloneComments(comments)
	orphaned := 0
	for i := range resolved {
		var anchored bool
		if resolved[i], anchored = resolved[i].Resolve(content); !anchored {
			orphaned++
		}
	}
	return resolved, orphaned
}
