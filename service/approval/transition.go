package approval

import (
	"fmt"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

// decisionTriggers maps every legal decision to the snapshot trigger that
// records it. Rejection has no dedicated trigger; the captured status tags it.
var decisionTriggers = map[model.Status]model.Trigger{
	model.StatusApproved:      model.TriggerApproved,
	model.StatusRejected:      model.TriggerManual,
	model.StatusNeedsRevision: model.TriggerRevisionRequested,
}

// Transition validates a decision from the current status and returns the
// trigger of the snapshot it captures.
func Transition(from, to model.Status) (model.Trigger, error) {
	trigger, ok := decisionTriggers[to]
	if !ok {
		return "", fmt.Errorf("%w: %q is not a decision", model.ErrValidation, to)
	}
	if from != model.StatusPending {
		return "", fmt.Errorf("%w: cannot move from %s to %s", model.ErrInvalidTransition, from, to)
	}
	return trigger, nil
}

// CanComment reports whether comments can still be appended.
func CanComment(status model.Status) error {
	if status != model.StatusPending {
		return fmt.Errorf("%w: comments are closed once an approval is %s", model.ErrInvalidState, status)
	}
	return nil
}

// CanDelete reports whether the approval can be cleaned up.
func CanDelete(status model.Status) error {
	if status != model.StatusApproved {
		return fmt.Errorf("%w: only approved approvals can be deleted, status is %s", model.ErrInvalidState, status)
	}
	return nil
}
