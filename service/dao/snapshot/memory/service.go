package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/clock"
	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot"
)

type history struct {
	metadata  model.SnapshotMetadata
	snapshots map[int]*model.Snapshot
}

// Service keeps snapshot histories in memory.
type Service struct {
	mux       sync.RWMutex
	histories map[string]*history
}

var _ snapshot.Service = (*Service)(nil)

func (s *Service) NextVersion(_ context.Context, scope snapshot.Scope) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	h := s.history(scope, true)
	if h.metadata.NextVersion < 1 {
		h.metadata.NextVersion = 1
	}
	version := h.metadata.NextVersion
	h.metadata.NextVersion++
	h.metadata.UpdatedAt = clock.Now()
	return version, nil
}

func (s *Service) Save(_ context.Context, scope snapshot.Scope, snap *model.Snapshot) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if snap == nil {
		return dao.ErrNilEntity
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	h := s.history(scope, true)
	if _, ok := h.snapshots[snap.Version]; ok {
		return fmt.Errorf("%w: %s version %d", snapshot.ErrExists, scope.ApprovalID, snap.Version)
	}
	h.snapshots[snap.Version] = snap.Clone()
	if h.metadata.NextVersion <= snap.Version {
		h.metadata.NextVersion = snap.Version + 1
	}
	return nil
}

func (s *Service) Load(_ context.Context, scope snapshot.Scope, version int) (*model.Snapshot, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if h := s.history(scope, false); h != nil {
		if snap, ok := h.snapshots[version]; ok {
			return snap.Clone(), nil
		}
	}
	return nil, fmt.Errorf("snapshot %d of %s: %w", version, scope.ApprovalID, dao.ErrNotFound)
}

func (s *Service) List(_ context.Context, scope snapshot.Scope) ([]*model.Snapshot, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	h := s.history(scope, false)
	if h == nil {
		return nil, nil
	}
	result := make([]*model.Snapshot, 0, len(h.snapshots))
	for _, snap := range h.snapshots {
		result = append(result, snap.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

func (s *Service) Remove(_ context.Context, scope snapshot.Scope, version int) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if h := s.history(scope, false); h != nil {
		delete(h.snapshots, version)
	}
	return nil
}

func (s *Service) DeleteAll(_ context.Context, scope snapshot.Scope) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.histories, scope.CategoryName+"/"+scope.ApprovalID)
	return nil
}

func (s *Service) history(scope snapshot.Scope, create bool) *history {
	key := scope.CategoryName + "/" + scope.ApprovalID
	h, ok := s.histories[key]
	if !ok && create {
		h = &history{
			metadata:  model.SnapshotMetadata{ApprovalID: scope.ApprovalID, NextVersion: 1},
			snapshots: make(map[int]*model.Snapshot),
		}
		s.histories[key] = h
	}
	return h
}

// New creates an empty in-memory snapshot store.
func New() *Service {
	return &Service{histories: make(map[string]*history)}
}
