package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/clock"
	"github.com/sansecao/spec-workflow-mcp-pro/internal/storeio"
	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot"
)

const (
	// Dir is the per-category directory holding snapshot histories.
	Dir          = ".snapshots"
	metadataFile = "metadata.json"
	filePrefix   = "snapshot-"
)

// Service stores snapshot histories as
// <baseURL>/<categoryName>/.snapshots/<approvalId>/snapshot-NNN.json with a
// metadata.json holding the version counter.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.Mutex
}

var _ snapshot.Service = (*Service)(nil)

// NextVersion reserves the next version and persists the advanced counter
// before returning it.
func (s *Service) NextVersion(ctx context.Context, scope snapshot.Scope) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	metadata, err := s.loadMetadata(ctx, scope)
	if err != nil {
		return 0, err
	}
	version := metadata.NextVersion
	metadata.NextVersion++
	metadata.UpdatedAt = clock.Now()
	if err = s.write(ctx, s.historyURL(scope), metadataFile, metadata); err != nil {
		return 0, fmt.Errorf("failed to persist snapshot counter for %s: %w", scope.ApprovalID, err)
	}
	return version, nil
}

func (s *Service) Save(ctx context.Context, scope snapshot.Scope, snap *model.Snapshot) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if snap == nil {
		return dao.ErrNilEntity
	}
	if snap.Version < 1 {
		return fmt.Errorf("%w: snapshot version %d", model.ErrValidation, snap.Version)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fileName(snap.Version)
	exists, err := s.fs.Exists(ctx, url.Join(s.historyURL(scope), name))
	if err != nil {
		return fmt.Errorf("failed to check snapshot %s: %w", name, err)
	}
	if exists {
		return fmt.Errorf("%w: %s version %d", snapshot.ErrExists, scope.ApprovalID, snap.Version)
	}
	if err = s.write(ctx, s.historyURL(scope), name, snap); err != nil {
		return fmt.Errorf("failed to save snapshot %s of %s: %w", name, scope.ApprovalID, err)
	}
	return nil
}

func (s *Service) Load(ctx context.Context, scope snapshot.Scope, version int) (*model.Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	location := url.Join(s.historyURL(scope), fileName(version))
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot %d of %s: %w", version, scope.ApprovalID, err)
	}
	if !exists {
		return nil, fmt.Errorf("snapshot %d of %s: %w", version, scope.ApprovalID, dao.ErrNotFound)
	}
	return s.read(ctx, location)
}

// List returns the history oldest first. A snapshot that cannot be read or
// decoded fails the listing with model.ErrIOFailure.
func (s *Service) List(ctx context.Context, scope snapshot.Scope) ([]*model.Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	historyURL := s.historyURL(scope)
	exists, err := s.fs.Exists(ctx, historyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot history of %s: %w", scope.ApprovalID, err)
	}
	if !exists {
		return nil, nil
	}
	objects, err := s.fs.List(ctx, historyURL, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots of %s: %w", scope.ApprovalID, err)
	}
	var result []*model.Snapshot
	for _, object := range objects {
		if object.IsDir() || !strings.HasPrefix(object.Name(), filePrefix) || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		snap, err := s.read(ctx, object.URL())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrIOFailure, err)
		}
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

func (s *Service) Remove(ctx context.Context, scope snapshot.Scope, version int) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	location := url.Join(s.historyURL(scope), fileName(version))
	exists, err := s.fs.Exists(ctx, location)
	if err != nil || !exists {
		return err
	}
	if err = s.fs.Delete(ctx, location); err != nil {
		return fmt.Errorf("failed to remove snapshot %d of %s: %w", version, scope.ApprovalID, err)
	}
	return nil
}

// DeleteAll removes the whole history directory including its counter.
func (s *Service) DeleteAll(ctx context.Context, scope snapshot.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	historyURL := s.historyURL(scope)
	exists, err := s.fs.Exists(ctx, historyURL)
	if err != nil {
		return fmt.Errorf("failed to check snapshot history of %s: %w", scope.ApprovalID, err)
	}
	if !exists {
		return nil
	}
	if err = s.fs.Delete(ctx, historyURL); err != nil {
		return fmt.Errorf("failed to delete snapshot history of %s: %w", scope.ApprovalID, err)
	}
	return nil
}

func (s *Service) loadMetadata(ctx context.Context, scope snapshot.Scope) (*model.SnapshotMetadata, error) {
	location := url.Join(s.historyURL(scope), metadataFile)
	metadata := &model.SnapshotMetadata{ApprovalID: scope.ApprovalID, NextVersion: 1}
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot metadata of %s: %w", scope.ApprovalID, err)
	}
	if !exists {
		return metadata, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot metadata of %s: %w", scope.ApprovalID, err)
	}
	if err = json.Unmarshal(data, metadata); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot metadata of %s: %w", scope.ApprovalID, err)
	}
	if metadata.NextVersion < 1 {
		metadata.NextVersion = 1
	}
	return metadata, nil
}

func (s *Service) read(ctx context.Context, location string) (*model.Snapshot, error) {
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", location, err)
	}
	snap := &model.Snapshot{}
	if err = json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", location, err)
	}
	return snap, nil
}

func (s *Service) write(ctx context.Context, dirURL, name string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return storeio.WriteFile(ctx, s.fs, url.Join(dirURL, name), data)
}

func (s *Service) historyURL(scope snapshot.Scope) string {
	return url.Join(s.baseURL, scope.CategoryName, Dir, scope.ApprovalID)
}

func fileName(version int) string {
	return snapshot.ID(version) + ".json"
}

// New creates a filesystem snapshot store rooted at the approvals directory.
func New(baseURL string) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	return &Service{baseURL: url.Normalize(baseURL, file.Scheme), fs: afs.New()}, nil
}
