package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus_IsTerminal(t *testing.T) {
	testCases := []struct {
		status   Status
		terminal bool
	}{
		{status: StatusPending, terminal: false},
		{status: StatusApproved, terminal: true},
		{status: StatusRejected, terminal: true},
		{status: StatusNeedsRevision, terminal: true},
		{status: Status("archived"), terminal: false},
	}
	for _, tc := range testCases {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.terminal, tc.status.IsTerminal())
		})
	}
}

func TestComment_Resolve(t *testing.T) {
	content := "# Design\nThe cache is write-through.\n"
	testCases := []struct {
		name      string
		comment   Comment
		anchored  bool
		expectTyp CommentType
	}{
		{
			name:      "selection still present",
			comment:   Comment{Type: CommentSelection, SelectedText: "write-through", Comment: "why?"},
			anchored:  true,
			expectTyp: CommentSelection,
		},
		{
			name:      "selection orphaned",
			comment:   Comment{Type: CommentSelection, SelectedText: "write-back", Comment: "why?"},
			anchored:  false,
			expectTyp: CommentGeneral,
		},
		{
			name:      "general comment",
			comment:   Comment{Type: CommentGeneral, Comment: "looks good"},
			anchored:  true,
			expectTyp: CommentGeneral,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, anchored := tc.comment.Resolve(content)
			assert.Equal(t, tc.anchored, anchored)
			assert.Equal(t, tc.expectTyp, actual.Type)
			if !anchored {
				assert.Empty(t, actual.SelectedText)
				assert.Contains(t, actual.Comment, tc.comment.SelectedText)
			}
		})
	}
}

func TestResolveComments(t *testing.T) {
	comments := []Comment{
		{Type: CommentSelection, SelectedText: "write-through", Comment: "why?"},
		{Type: CommentSelection, SelectedText: "write-back", Comment: "stale"},
		{Type: CommentGeneral, Comment: "ok"},
	}
	resolved, orphaned := ResolveComments(comments, "The cache is write-through.")
	assert.Equal(t, 1, orphaned)
	assert.Equal(t, CommentSelection, resolved[0].Type)
	assert.Equal(t, CommentGeneral, resolved[1].Type)
	assert.Equal(t, `(on "write-back") stale`, resolved[1].Comment)
	assert.Equal(t, CommentSelection, comments[1].Type, "input is not modified")
}

func TestRequest_Clone(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	original := &Request{
		ID:          "a1",
		Status:      StatusApproved,
		RespondedAt: &at,
		Comments:    []Comment{{Type: CommentGeneral, Comment: "one"}},
	}
	clone := original.Clone()
	clone.Comments[0].Comment = "changed"
	*clone.RespondedAt = at.Add(time.Hour)

	assert.Equal(t, "one", original.Comments[0].Comment)
	assert.Equal(t, at, *original.RespondedAt)
	assert.Nil(t, (*Request)(nil).Clone())
}
