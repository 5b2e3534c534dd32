// Package snapshot captures and reads versioned copies of reviewed artifacts.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/clock"
	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/content"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	snapdao "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot"
)

// Service is the snapshot manager. It does not lock; callers serialise
// captures for the same approval.
type Service struct {
	dao     snapdao.Service
	content content.Reader
}

// Capture reads the artifact of request live and appends a snapshot of it
// with the next version. The artifact is read before a version is reserved so
// an unreadable artifact consumes nothing.
func (s *Service) Capture(ctx context.Context, request *model.Request, trigger model.Trigger) (*model.Snapshot, error) {
	if request == nil {
		return nil, fmt.Errorf("%w: request is required", model.ErrValidation)
	}
	doc, err := s.content.Read(ctx, request.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %s snapshot of %s: %w", trigger, request.ID, err)
	}
	return s.CaptureContent(ctx, request, trigger, doc)
}

// CaptureContent appends a snapshot of doc, which the caller has already read.
func (s *Service) CaptureContent(ctx context.Context, request *model.Request, trigger model.Trigger, doc *content.Document) (*model.Snapshot, error) {
	scope := snapdao.ScopeOf(request)
	version, err := s.dao.NextVersion(ctx, scope)
	if err != nil {
		return nil, wrapStorage(err)
	}
	snap := &model.Snapshot{
		ID:            snapdao.ID(version),
		ApprovalID:    request.ID,
		ApprovalTitle: request.Title,
		Version:       version,
		Timestamp:     clock.Now(),
		Trigger:       trigger,
		Status:        request.Status,
		Content:       doc.Content,
		FileStats:     doc.Stats,
		Comments:      model.CloneComments(request.Comments),
		Annotations:   request.Annotations,
	}
	if err = s.dao.Save(ctx, scope, snap); err != nil {
		return nil, wrapStorage(err)
	}
	return snap.Clone(), nil
}

// ListVersions returns the history of request, oldest first.
func (s *Service) ListVersions(ctx context.Context, request *model.Request) ([]*model.Snapshot, error) {
	snaps, err := s.dao.List(ctx, snapdao.ScopeOf(request))
	if err != nil {
		return nil, wrapStorage(err)
	}
	if snaps == nil {
		snaps = []*model.Snapshot{}
	}
	return snaps, nil
}

// GetVersion returns one snapshot or an error wrapping model.ErrNotFound.
func (s *Service) GetVersion(ctx context.Context, request *model.Request, version int) (*model.Snapshot, error) {
	snap, err := s.dao.Load(ctx, snapdao.ScopeOf(request), version)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, err
		}
		return nil, wrapStorage(err)
	}
	return snap, nil
}

// Purge deletes the whole history of request.
func (s *Service) Purge(ctx context.Context, request *model.Request) error {
	if err := s.dao.DeleteAll(ctx, snapdao.ScopeOf(request)); err != nil {
		return wrapStorage(err)
	}
	return nil
}

// Remove deletes a single snapshot that was captured as part of a mutation
// that subsequently failed. Published history is never edited.
func (s *Service) Remove(ctx context.Context, request *model.Request, version int) error {
	if err := s.dao.Remove(ctx, snapdao.ScopeOf(request), version); err != nil {
		return wrapStorage(err)
	}
	return nil
}

func wrapStorage(err error) error {
	if errors.Is(err, model.ErrValidation) || errors.Is(err, model.ErrIOFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrIOFailure, err)
}

// New creates a snapshot manager.
func New(dao snapdao.Service, reader content.Reader) *Service {
	return &Service{dao: dao, content: reader}
}
