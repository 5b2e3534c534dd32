package approval

import (
	"fmt"
	"strings"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

// Topics understood by the realtime hub.
const (
	TopicApprovals = "approvals"
	TopicSpecs     = "specs"
	TopicSteering  = "steering"
)

// Actions reported in change notifications.
const (
	ActionCreated   = "created"
	ActionDecided   = "decided"
	ActionCommented = "commented"
	ActionDeleted   = "deleted"
	ActionSnapshot  = "snapshot"
)

// EventTypeUpdate is the event type carried by approval change notifications.
const EventTypeUpdate = "approval-update"

// CreateInput describes a new approval request.
type CreateInput struct {
	Title        string         `json:"title" yaml:"title"`
	FilePath     string         `json:"filePath" yaml:"filePath"`
	Type         model.Type     `json:"type,omitempty" yaml:"type,omitempty"`
	Category     model.Category `json:"category,omitempty" yaml:"category,omitempty"`
	CategoryName string         `json:"categoryName" yaml:"categoryName"`
}

// Init applies defaults: document type and spec category.
func (i *CreateInput) Init() {
	i.Title = strings.TrimSpace(i.Title)
	i.FilePath = strings.TrimSpace(i.FilePath)
	i.CategoryName = strings.TrimSpace(i.CategoryName)
	if i.Type == "" {
		i.Type = model.TypeDocument
	}
	if i.Category == "" {
		i.Category = model.CategorySpec
	}
}

// Validate checks required fields and enumerations.
func (i *CreateInput) Validate() error {
	var missing []string
	if i.Title == "" {
		missing = append(missing, "title")
	}
	if i.FilePath == "" {
		missing = append(missing, "filePath")
	}
	if i.CategoryName == "" {
		missing = append(missing, "categoryName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", model.ErrValidation, strings.Join(missing, ", "))
	}
	switch i.Type {
	case model.TypeDocument, model.TypeAction:
	default:
		return fmt.Errorf("%w: unsupported type %q", model.ErrValidation, i.Type)
	}
	switch i.Category {
	case model.CategorySpec, model.CategorySteering:
	default:
		return fmt.Errorf("%w: unsupported category %q", model.ErrValidation, i.Category)
	}
	return nil
}

// DecisionInput is a reviewer decision.
type DecisionInput struct {
	Status      model.Status    `json:"status" yaml:"status"`
	Response    string          `json:"response,omitempty" yaml:"response,omitempty"`
	Annotations string          `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Comments    []model.Comment `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// Validate checks that the decision names a terminal status and carries
// well-formed comments.
func (d *DecisionInput) Validate() error {
	if !d.Status.IsTerminal() {
		return fmt.Errorf("%w: decision status must be approved, rejected or needs-revision, got %q", model.ErrValidation, d.Status)
	}
	for i := range d.Comments {
		if err := validateComment(&d.Comments[i]); err != nil {
			return fmt.Errorf("comment %d: %w", i+1, err)
		}
	}
	return nil
}

func validateComment(comment *model.Comment) error {
	if strings.TrimSpace(comment.Comment) == "" {
		return fmt.Errorf("%w: comment text is required", model.ErrValidation)
	}
	switch comment.Type {
	case "":
		comment.Type = model.CommentGeneral
		if comment.SelectedText != "" {
			comment.Type = model.CommentSelection
		}
	case model.CommentGeneral:
		comment.SelectedText = ""
	case model.CommentSelection:
		if comment.SelectedText == "" {
			return fmt.Errorf("%w: selection comment requires selectedText", model.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unsupported comment type %q", model.ErrValidation, comment.Type)
	}
	return nil
}

// checkSelections rejects selection comments whose text is not present
// verbatim in content.
func checkSelections(comments []model.Comment, content string) error {
	for i, comment := range comments {
		if comment.Type != model.CommentSelection {
			continue
		}
		if !strings.Contains(content, comment.SelectedText) {
			return fmt.Errorf("%w: comment %d: selected text %q not found in current content", model.ErrValidation, i+1, preview(comment.SelectedText))
		}
	}
	return nil
}

// Change is the payload of an approval change notification.
type Change struct {
	Action       string         `json:"action"`
	ApprovalID   string         `json:"approvalId"`
	Category     model.Category `json:"category,omitempty"`
	CategoryName string         `json:"categoryName,omitempty"`
	Status       model.Status   `json:"status,omitempty"`
}

// Topics returns the hub topics affected by the change.
func (c *Change) Topics() []string {
	topics := []string{TopicApprovals}
	switch c.Category {
	case model.CategorySpec:
		topics = append(topics, TopicSpecs)
	case model.CategorySteering:
		topics = append(topics, TopicSteering)
	}
	return topics
}
