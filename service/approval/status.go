package approval

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

const selectionPreviewLength = 50

// Report is what a polling automation client needs to decide whether it may
// continue.
type Report struct {
	ApprovalID  string          `json:"approvalId" yaml:"approvalId"`
	Title       string          `json:"title" yaml:"title"`
	Type        model.Type      `json:"type" yaml:"type"`
	Status      model.Status    `json:"status" yaml:"status"`
	CreatedAt   time.Time       `json:"createdAt" yaml:"createdAt"`
	RespondedAt *time.Time      `json:"respondedAt,omitempty" yaml:"respondedAt,omitempty"`
	Response    string          `json:"response,omitempty" yaml:"response,omitempty"`
	Annotations string          `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Comments    []model.Comment `json:"comments,omitempty" yaml:"comments,omitempty"`
	Orphaned    int             `json:"orphanedComments,omitempty" yaml:"orphanedComments,omitempty"`
	IsCompleted bool            `json:"isCompleted" yaml:"isCompleted"`
	CanProceed  bool            `json:"canProceed" yaml:"canProceed"`
	MustWait    bool            `json:"mustWait" yaml:"mustWait"`
	BlockNext   bool            `json:"blockNext" yaml:"blockNext"`
	NextSteps   []string        `json:"nextSteps" yaml:"nextSteps"`
}

// Status loads an approval and builds its report with comments resolved
// against the live artifact. When the artifact cannot be read the comments
// are reported as recorded.
func (s *Service) Status(ctx context.Context, id string) (*Report, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	report := NewReport(request)
	doc, err := s.content.Read(ctx, request.FilePath)
	if err != nil {
		s.logger.Debug("status without comment resolution", "id", id, "error", err)
		return report, nil
	}
	report.Resolve(doc.Content)
	return report, nil
}

// Resolve re-anchors the report comments on content; orphaned selections
// become general comments and the next steps are rebuilt from them.
func (r *Report) Resolve(content string) {
	r.Comments, r.Orphaned = model.ResolveComments(r.Comments, content)
	r.NextSteps = nextSteps(r.Status, r.Response, r.Annotations, r.Comments)
}

// NewReport builds the report for request. Only an approved request lets the
// client proceed; rejected and approved count as completed.
func NewReport(request *model.Request) *Report {
	canProceed := request.Status == model.StatusApproved
	report := &Report{
		ApprovalID:  request.ID,
		Title:       request.Title,
		Type:        request.Type,
		Status:      request.Status,
		CreatedAt:   request.CreatedAt,
		RespondedAt: request.RespondedAt,
		Response:    request.Response,
		Annotations: request.Annotations,
		Comments:    model.CloneComments(request.Comments),
		IsCompleted: request.Status == model.StatusApproved || request.Status == model.StatusRejected,
		CanProceed:  canProceed,
		MustWait:    !canProceed,
		BlockNext:   !canProceed,
	}
	report.NextSteps = nextSteps(request.Status, request.Response, request.Annotations, report.Comments)
	return report
}

// Message is a one-line summary of the report.
func (r *Report) Message() string {
	if r.Status == model.StatusPending {
		return fmt.Sprintf("BLOCKED: status is %s. Verbal approval is not accepted; use the dashboard.", r.Status)
	}
	return fmt.Sprintf("Approval status: %s", r.Status)
}

func nextSteps(status model.Status, response, annotations string, comments []model.Comment) []string {
	var steps []string
	switch status {
	case model.StatusPending:
		steps = append(steps,
			"BLOCKED - Do not proceed",
			"VERBAL APPROVAL NOT ACCEPTED - Use the dashboard only",
			"Continue polling the approval status")
	case model.StatusApproved:
		steps = append(steps,
			"APPROVED - Can proceed",
			"Delete the approval before continuing")
		if response != "" {
			steps = append(steps, "Response: "+response)
		}
	case model.StatusRejected:
		steps = append(steps, "BLOCKED - REJECTED", "Do not proceed", "Review feedback and revise")
		if response != "" {
			steps = append(steps, "Reason: "+response)
		}
		if annotations != "" {
			steps = append(steps, "Notes: "+annotations)
		}
	case model.StatusNeedsRevision:
		steps = append(steps, "BLOCKED - Do not proceed", "Update document with feedback", "Create NEW approval request")
		if response != "" {
			steps = append(steps, "Feedback: "+response)
		}
		if annotations != "" {
			steps = append(steps, "Notes: "+annotations)
		}
		if len(comments) > 0 {
			steps = append(steps, fmt.Sprintf("%d comments for targeted fixes:", len(comments)))
			for i, comment := range comments {
				if comment.Type == model.CommentSelection && comment.SelectedText != "" {
					steps = append(steps, fmt.Sprintf("  Comment %d on %q: %s", i+1, preview(comment.SelectedText), comment.Comment))
					continue
				}
				steps = append(steps, fmt.Sprintf("  Comment %d (general): %s", i+1, comment.Comment))
			}
		}
	}
	return steps
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= selectionPreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:selectionPreviewLength]) + "..."
}
