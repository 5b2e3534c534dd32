// Package snapshot defines storage for per-approval snapshot histories.
package snapshot

import (
	"context"
	"fmt"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/idgen"
	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

// Scope identifies one approval's history. CategoryName is part of the
// scope because histories are stored next to the approval record.
type Scope struct {
	ApprovalID   string
	CategoryName string
}

// Validate checks that both scope fields are usable as storage keys.
func (s Scope) Validate() error {
	if !idgen.Valid(s.ApprovalID) {
		return fmt.Errorf("%w: invalid approval id %q", model.ErrValidation, s.ApprovalID)
	}
	if !idgen.Valid(s.CategoryName) {
		return fmt.Errorf("%w: invalid category name %q", model.ErrValidation, s.CategoryName)
	}
	return nil
}

// ScopeOf returns the history scope of request.
func ScopeOf(request *model.Request) Scope {
	return Scope{ApprovalID: request.ID, CategoryName: request.CategoryName}
}

// Service stores append-only snapshot histories.
//
// NextVersion reserves and returns the next version number; the counter is
// persisted so a reserved number is never handed out again, even when the
// snapshot it was reserved for is never saved. Save refuses to overwrite an
// existing version. List returns snapshots ordered by ascending version.
// Remove rolls back a single snapshot whose owning mutation failed; the
// version counter is not rewound.
type Service interface {
	NextVersion(ctx context.Context, scope Scope) (int, error)

	Save(ctx context.Context, scope Scope, snapshot *model.Snapshot) error

	Load(ctx context.Context, scope Scope, version int) (*model.Snapshot, error)

	List(ctx context.Context, scope Scope) ([]*model.Snapshot, error)

	Remove(ctx context.Context, scope Scope, version int) error

	DeleteAll(ctx context.Context, scope Scope) error
}

// ID returns the identifier of the snapshot with version.
func ID(version int) string {
	return fmt.Sprintf("snapshot-%03d", version)
}
