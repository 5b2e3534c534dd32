package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/clock"
	"github.com/sansecao/spec-workflow-mcp-pro/internal/idgen"
	"github.com/sansecao/spec-workflow-mcp-pro/internal/keylock"
	"github.com/sansecao/spec-workflow-mcp-pro/internal/metrics"
	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/content"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	memapproval "github.com/sansecao/spec-workflow-mcp-pro/service/dao/approval/memory"
	snapdao "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot"
	memsnapshot "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot/memory"
	"github.com/sansecao/spec-workflow-mcp-pro/service/diff"
	"github.com/sansecao/spec-workflow-mcp-pro/service/event"
	"github.com/sansecao/spec-workflow-mcp-pro/service/snapshot"
	"github.com/sansecao/spec-workflow-mcp-pro/tracing"
)

// RefCurrent names the live artifact content in Diff.
const RefCurrent = "current"

// Locker serialises mutations of one approval across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Service is the approval store. Mutations on the same approval id are
// serialised, across processes too when a Locker is set; reads never lock
// and observe whole records only.
type Service struct {
	store         dao.Service[string, model.Request]
	snapshotStore snapdao.Service
	snapshots     *snapshot.Service
	content       content.Reader
	differ        *diff.Service
	publisher     *event.Publisher[Change]
	locks         *keylock.Locker
	locker        Locker
	logger        *slog.Logger
	newID         func() string
}

// Create registers a pending approval and captures its initial snapshot.
// Nothing is persisted when the artifact cannot be read.
func (s *Service) Create(ctx context.Context, input *CreateInput) (request *model.Request, err error) {
	ctx, done := s.observe(ctx, "create")
	defer func() { done(err) }()
	if input == nil {
		return nil, fmt.Errorf("%w: input is required", model.ErrValidation)
	}
	in := *input
	in.Init()
	if err = in.Validate(); err != nil {
		return nil, err
	}
	id := s.newID()
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.content.Read(ctx, in.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create approval %q: %w", in.Title, err)
	}
	request = &model.Request{
		ID:           id,
		Title:        in.Title,
		FilePath:     in.FilePath,
		Type:         in.Type,
		Category:     in.Category,
		CategoryName: in.CategoryName,
		Status:       model.StatusPending,
		CreatedAt:    clock.Now(),
	}
	if _, err = s.capture(ctx, request, model.TriggerInitial, doc); err != nil {
		return nil, err
	}
	if err = s.store.Save(ctx, request); err != nil {
		s.rollbackHistory(ctx, request)
		return nil, storageError("save approval "+id, err)
	}
	s.logger.Info("approval created", "id", id, "title", in.Title, "category", in.CategoryName, "filePath", in.FilePath)
	s.notify(ctx, ActionCreated, request)
	return request.Clone(), nil
}

// Get returns the approval with id.
func (s *Service) Get(ctx context.Context, id string) (*model.Request, error) {
	return s.load(ctx, id)
}

// List returns approvals accepted by parameters ordered by creation time,
// then id.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Request, error) {
	requests, err := s.store.List(ctx, parameters...)
	if err != nil {
		return nil, storageError("list approvals", err)
	}
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.Before(requests[j].CreatedAt)
		}
		return requests[i].ID < requests[j].ID
	})
	if requests == nil {
		requests = []*model.Request{}
	}
	return requests, nil
}

// Decide records a reviewer decision on a pending approval. The decision
// snapshot is written before the record so a failed capture leaves the
// record untouched.
func (s *Service) Decide(ctx context.Context, id string, input *DecisionInput) (request *model.Request, err error) {
	ctx, done := s.observe(ctx, "decide")
	defer func() { done(err) }()
	if input == nil {
		return nil, fmt.Errorf("%w: decision is required", model.ErrValidation)
	}
	decision := *input
	decision.Comments = model.CloneComments(input.Comments)
	if err = decision.Validate(); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	trigger, err := Transition(current.Status, decision.Status)
	if err != nil {
		return nil, fmt.Errorf("approval %s: %w", id, err)
	}
	doc, err := s.content.Read(ctx, current.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to decide approval %s: %w", id, err)
	}
	if err = checkSelections(decision.Comments, doc.Content); err != nil {
		return nil, err
	}
	now := clock.Now()
	request = current.Clone()
	request.Status = decision.Status
	request.RespondedAt = &now
	request.Response = decision.Response
	if decision.Annotations != "" {
		request.Annotations = decision.Annotations
	}
	for _, comment := range decision.Comments {
		request.Comments = append(request.Comments, stamp(comment, now))
	}
	snap, err := s.capture(ctx, request, trigger, doc)
	if err != nil {
		return nil, err
	}
	if err = s.store.Save(ctx, request); err != nil {
		if rmErr := s.snapshots.Remove(ctx, request, snap.Version); rmErr != nil {
			s.logger.Warn("failed to roll back decision snapshot", "id", id, "version", snap.Version, "error", rmErr)
		}
		return nil, storageError("save approval "+id, err)
	}
	s.logger.Info("approval decided", "id", id, "status", request.Status, "snapshot", snap.Version)
	s.notify(ctx, ActionDecided, request)
	return request.Clone(), nil
}

// AppendComment adds a reviewer comment to a pending approval. A selection
// comment must quote the live artifact.
func (s *Service) AppendComment(ctx context.Context, id string, comment model.Comment) (request *model.Request, err error) {
	ctx, done := s.observe(ctx, "comment")
	defer func() { done(err) }()
	if err = validateComment(&comment); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = CanComment(current.Status); err != nil {
		return nil, fmt.Errorf("approval %s: %w", id, err)
	}
	if comment.Type == model.CommentSelection {
		doc, err := s.content.Read(ctx, current.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to comment on approval %s: %w", id, err)
		}
		if err = checkSelections([]model.Comment{comment}, doc.Content); err != nil {
			return nil, err
		}
	}
	request = current.Clone()
	request.Comments = append(request.Comments, stamp(comment, clock.Now()))
	if err = s.store.Save(ctx, request); err != nil {
		return nil, storageError("save approval "+id, err)
	}
	s.logger.Debug("approval comment added", "id", id, "type", comment.Type, "comments", len(request.Comments))
	s.notify(ctx, ActionCommented, request)
	return request.Clone(), nil
}

// Delete removes an approved approval and its snapshot history. History goes
// first, so a failure leaves the record in place for a retry rather than an
// unreachable history. It reports true when a record was removed.
func (s *Service) Delete(ctx context.Context, id string) (deleted bool, err error) {
	ctx, done := s.observe(ctx, "delete")
	defer func() { done(err) }()
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if err = CanDelete(current.Status); err != nil {
		return false, fmt.Errorf("approval %s: %w", id, err)
	}
	if err = s.snapshots.Purge(ctx, current); err != nil {
		return false, fmt.Errorf("failed to delete snapshot history of %s: %w", id, err)
	}
	if err = s.store.Delete(ctx, id); err != nil {
		return false, storageError("delete approval "+id, err)
	}
	s.logger.Info("approval deleted", "id", id)
	s.notify(ctx, ActionDeleted, current)
	return true, nil
}

// CaptureSnapshot records a manual checkpoint without changing status.
func (s *Service) CaptureSnapshot(ctx context.Context, id string) (snap *model.Snapshot, err error) {
	ctx, done := s.observe(ctx, "snapshot")
	defer func() { done(err) }()
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.content.Read(ctx, request.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to capture snapshot of %s: %w", id, err)
	}
	if snap, err = s.capture(ctx, request, model.TriggerManual, doc); err != nil {
		return nil, err
	}
	s.notify(ctx, ActionSnapshot, request)
	return snap, nil
}

// Versions returns the snapshot history of an approval, oldest first.
func (s *Service) Versions(ctx context.Context, id string) ([]*model.Snapshot, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.snapshots.ListVersions(ctx, request)
}

// Version returns one snapshot of an approval.
func (s *Service) Version(ctx context.Context, id string, version int) (*model.Snapshot, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.snapshots.GetVersion(ctx, request, version)
}

// Content reads the live artifact of an approval.
func (s *Service) Content(ctx context.Context, id string) (*content.Document, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.content.Read(ctx, request.FilePath)
}

// Diff compares two states of an approval's artifact. Each ref is either a
// snapshot version or RefCurrent, which re-reads the artifact live.
func (s *Service) Diff(ctx context.Context, id, from, to string) (*model.DiffResult, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(to) == "" {
		to = RefCurrent
	}
	oldContent, err := s.resolve(ctx, request, from)
	if err != nil {
		return nil, err
	}
	newContent, err := s.resolve(ctx, request, to)
	if err != nil {
		return nil, err
	}
	return s.differ.Compute(oldContent, newContent), nil
}

// Differ returns the diff engine used by Diff.
func (s *Service) Differ() *diff.Service {
	return s.differ
}

func (s *Service) resolve(ctx context.Context, request *model.Request, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == RefCurrent {
		doc, err := s.content.Read(ctx, request.FilePath)
		if err != nil {
			return "", fmt.Errorf("failed to read current content of %s: %w", request.ID, err)
		}
		return doc.Content, nil
	}
	version, err := strconv.Atoi(ref)
	if err != nil || version < 1 {
		return "", fmt.Errorf("%w: invalid version %q", model.ErrValidation, ref)
	}
	snap, err := s.snapshots.GetVersion(ctx, request, version)
	if err != nil {
		return "", err
	}
	return snap.Content, nil
}

// lock takes the in-process lock of id, then the cross-process one.
func (s *Service) lock(ctx context.Context, id string) (func(), error) {
	if !idgen.Valid(id) {
		return nil, fmt.Errorf("approval %q: %w", id, model.ErrNotFound)
	}
	unlock := s.locks.Lock(id)
	if s.locker == nil {
		return unlock, nil
	}
	release, err := s.locker.Lock(ctx, id)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("%w: failed to lock approval %s: %v", model.ErrIOFailure, id, err)
	}
	return func() {
		release()
		unlock()
	}, nil
}

func (s *Service) load(ctx context.Context, id string) (*model.Request, error) {
	if !idgen.Valid(id) {
		return nil, fmt.Errorf("approval %q: %w", id, model.ErrNotFound)
	}
	request, err := s.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("approval %s: %w", id, model.ErrNotFound)
		}
		return nil, storageError("load approval "+id, err)
	}
	return request, nil
}

func (s *Service) capture(ctx context.Context, request *model.Request, trigger model.Trigger, doc *content.Document) (*model.Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.capture", tracing.KindInternal)
	span.WithAttributes(map[string]string{"approval.id": request.ID, "snapshot.trigger": string(trigger)})
	snap, err := s.snapshots.CaptureContent(ctx, request, trigger, doc)
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %s snapshot of %s: %w", trigger, request.ID, err)
	}
	metrics.RecordSnapshot(string(trigger))
	return snap, nil
}

func (s *Service) rollbackHistory(ctx context.Context, request *model.Request) {
	if err := s.snapshots.Purge(ctx, request); err != nil {
		s.logger.Warn("failed to roll back snapshot history", "id", request.ID, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, action string, request *model.Request) {
	change := &Change{
		Action:       action,
		ApprovalID:   request.ID,
		Category:     request.Category,
		CategoryName: request.CategoryName,
		Status:       request.Status,
	}
	evt := event.NewEvent(&event.Context{Topic: TopicApprovals, Type: EventTypeUpdate, ApprovalID: request.ID, Action: action}, *change)
	if err := s.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.Warn("failed to publish approval change", "id", request.ID, "action", action, "error", err)
	}
}

// observe starts a span and returns a completion func that records the
// outcome in the span, metrics and log.
func (s *Service) observe(ctx context.Context, operation string) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "approval."+operation, tracing.KindInternal)
	return ctx, func(err error) {
		tracing.EndSpan(span, err)
		metrics.RecordMutation(operation, err, time.Since(started).Seconds())
		if err != nil {
			s.logger.Debug("approval operation failed", "operation", operation, "error", err)
		}
	}
}

func stamp(comment model.Comment, at time.Time) model.Comment {
	if comment.Timestamp == nil {
		comment.Timestamp = &at
	}
	return comment
}

func storageError(operation string, err error) error {
	if errors.Is(err, model.ErrIOFailure) || errors.Is(err, model.ErrValidation) {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	return fmt.Errorf("%w: failed to %s: %v", model.ErrIOFailure, operation, err)
}

// New creates an approval service. Without options it keeps records and
// snapshots in memory and reads artifacts relative to the working directory.
func New(options ...Option) *Service {
	ret := &Service{
		locks: keylock.New(),
		newID: idgen.New,
	}
	for _, option := range options {
		option(ret)
	}
	if ret.store == nil {
		ret.store = memapproval.New()
	}
	if ret.snapshotStore == nil {
		ret.snapshotStore = memsnapshot.New()
	}
	if ret.content == nil {
		ret.content = content.New(".")
	}
	if ret.differ == nil {
		ret.differ = diff.New()
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	ret.snapshots = snapshot.New(ret.snapshotStore, ret.content)
	return ret
}
