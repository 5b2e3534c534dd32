package specflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/filelock"
	"github.com/sansecao/spec-workflow-mcp-pro/internal/pathutil"
	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/approval"
	"github.com/sansecao/spec-workflow-mcp-pro/service/content"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	fsapproval "github.com/sansecao/spec-workflow-mcp-pro/service/dao/approval/fs"
	memapproval "github.com/sansecao/spec-workflow-mcp-pro/service/dao/approval/memory"
	snapdao "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot"
	fssnapshot "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot/fs"
	memsnapshot "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot/memory"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dashboard"
	"github.com/sansecao/spec-workflow-mcp-pro/service/diff"
	"github.com/sansecao/spec-workflow-mcp-pro/service/event"
	"github.com/sansecao/spec-workflow-mcp-pro/service/hub"
	"github.com/sansecao/spec-workflow-mcp-pro/service/messaging"
	fsqueue "github.com/sansecao/spec-workflow-mcp-pro/service/messaging/fs"
	"github.com/sansecao/spec-workflow-mcp-pro/service/messaging/memory"
	"github.com/sansecao/spec-workflow-mcp-pro/service/workspace"
)

// Service wires the approval store, snapshot history, diff engine and
// realtime hub for one project.
type Service struct {
	config        *Config
	logger        *slog.Logger
	projectURL    string
	approvalStore dao.Service[string, model.Request]
	snapshotStore snapdao.Service
	locker        *filelock.Locker
	content       *content.Service
	approvals     *approval.Service
	workspace     *workspace.Service
	hub           *hub.Hub
	queue         messaging.Queue[event.Event[approval.Change]]
	listener      *event.Listener[approval.Change]
	watcher       *hub.Watcher
	mu            sync.Mutex
	started       bool
}

// Approvals returns the approval store.
func (s *Service) Approvals() *approval.Service {
	return s.approvals
}

// Hub returns the realtime hub.
func (s *Service) Hub() *hub.Hub {
	return s.hub
}

// Workspace returns the spec and steering reader.
func (s *Service) Workspace() *workspace.Service {
	return s.workspace
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Dashboard builds the HTTP server for this project.
func (s *Service) Dashboard() *dashboard.Server {
	return dashboard.New(s.approvals,
		dashboard.WithHub(s.hub),
		dashboard.WithWorkspace(s.workspace),
		dashboard.WithLogger(s.logger),
		dashboard.WithMetrics(s.config.Server.Metrics))
}

// Start begins forwarding approval changes to the hub and, for local fs
// storage with watching enabled, watching the approvals directory for changes
// made by other processes.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.listener.Start(ctx)
	if s.config.Hub.Watch && s.config.Storage.Vendor == StorageFS && url.Scheme(s.projectURL, file.Scheme) == file.Scheme {
		dir, err := pathutil.ApprovalsDir(url.Path(s.projectURL))
		if err != nil {
			s.listener.Stop()
			return err
		}
		watcher, err := hub.NewWatcher(s.hub, dir, s.config.Hub.Debounce, approval.TopicApprovals, approval.TopicSpecs, approval.TopicSteering)
		if err != nil {
			s.listener.Stop()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watcher.Start(ctx)
		s.watcher = watcher
	}
	s.started = true
	return nil
}

// Stop releases background resources and closes hub subscriptions. A stopped
// service keeps serving the approval API but its hub accepts no new
// subscribers.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
	s.listener.Stop()
	s.hub.Close()
	s.started = false
}

// Serve starts the service and the dashboard on the configured address until
// ctx is done.
func (s *Service) Serve(ctx context.Context, ready func(addr string)) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()
	return s.Dashboard().ListenAndServe(ctx, s.config.Server.Addr, ready)
}

func (s *Service) onChange(ctx context.Context, evt *event.Event[approval.Change]) error {
	change := evt.Data
	s.logger.Debug("approval changed", "action", change.Action, "approval", change.ApprovalID, "status", change.Status)
	return s.hub.NotifyAll(ctx, change.Topics()...)
}

func (s *Service) registerTopics() {
	s.hub.Register(approval.TopicApprovals, func(ctx context.Context) (interface{}, error) {
		return s.approvals.List(ctx)
	})
	s.hub.Register(approval.TopicSpecs, func(ctx context.Context) (interface{}, error) {
		return s.workspace.Specs(ctx)
	})
	s.hub.Register(approval.TopicSteering, func(ctx context.Context) (interface{}, error) {
		return s.workspace.Steering(ctx)
	})
}

func (s *Service) ensureStorage() error {
	if s.approvalStore != nil && s.snapshotStore != nil {
		return nil
	}
	switch s.config.Storage.Vendor {
	case StorageMemory:
		if s.approvalStore == nil {
			s.approvalStore = memapproval.New()
		}
		if s.snapshotStore == nil {
			s.snapshotStore = memsnapshot.New()
		}
		return nil
	}
	approvalsURL := url.Join(s.projectURL, pathutil.WorkflowDir, "approvals")
	if s.approvalStore == nil {
		store, err := fsapproval.New(approvalsURL)
		if err != nil {
			return fmt.Errorf("failed to open approval store: %w", err)
		}
		s.approvalStore = store
	}
	if s.snapshotStore == nil {
		store, err := fssnapshot.New(approvalsURL)
		if err != nil {
			return fmt.Errorf("failed to open snapshot store: %w", err)
		}
		s.snapshotStore = store
	}
	return nil
}

// ensureLocker shares approval locks with other processes serving the same
// local project.
func (s *Service) ensureLocker() error {
	if s.config.Storage.Vendor != StorageFS || url.Scheme(s.projectURL, file.Scheme) != file.Scheme {
		return nil
	}
	locker, err := filelock.New(filepath.Join(url.Path(s.projectURL), pathutil.WorkflowDir, "approvals", ".locks"))
	if err != nil {
		return fmt.Errorf("failed to open approval locks: %w", err)
	}
	s.locker = locker
	return nil
}

func (s *Service) ensureQueue() error {
	if s.config.Events.Vendor == EventsFS {
		queue, err := fsqueue.NewQueue[event.Event[approval.Change]](afs.New(), fsqueue.Config{
			BaseURL:      url.Join(s.projectURL, pathutil.WorkflowDir, ".events"),
			MaxRetries:   s.config.Events.MaxRetries,
			RetryDelay:   s.config.Events.RetryDelay,
			PollInterval: s.config.Events.PollInterval,
		})
		if err != nil {
			return fmt.Errorf("failed to open event queue: %w", err)
		}
		s.queue = queue
		return nil
	}
	s.queue = memory.NewQueue[event.Event[approval.Change]](memory.Config{
		MaxRetries:  s.config.Events.MaxRetries,
		RetryDelay:  s.config.Events.RetryDelay,
		DeadLetter:  true,
		QueueBuffer: s.config.Events.Buffer,
	})
	return nil
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.projectURL = url.Normalize(s.config.ProjectPath, file.Scheme)
	if url.Scheme(s.projectURL, file.Scheme) == file.Scheme {
		projectPath, err := pathutil.ValidateProjectPath(url.Path(s.projectURL))
		if err != nil {
			return fmt.Errorf("%w: %v", model.ErrValidation, err)
		}
		s.projectURL = url.Normalize(projectPath, file.Scheme)
	}
	if err := s.ensureStorage(); err != nil {
		return err
	}
	if err := s.ensureLocker(); err != nil {
		return err
	}

	s.content = content.New(s.projectURL)
	s.workspace = workspace.New(s.projectURL)
	if err := s.ensureQueue(); err != nil {
		return err
	}
	approvalOptions := []approval.Option{
		approval.WithStore(s.approvalStore),
		approval.WithSnapshotStore(s.snapshotStore),
		approval.WithContent(s.content),
		approval.WithDiff(diff.New(diff.WithContextLines(s.config.Diff.ContextLines))),
		approval.WithPublisher(event.NewPublisher[approval.Change](s.queue)),
		approval.WithLogger(s.logger),
	}
	if s.locker != nil {
		approvalOptions = append(approvalOptions, approval.WithLocker(s.locker))
	}
	s.approvals = approval.New(approvalOptions...)
	s.hub = hub.New(hub.WithBuffer(s.config.Hub.Buffer), hub.WithLogger(s.logger))
	s.registerTopics()
	s.listener = event.NewListener[approval.Change](s.queue, s.onChange, s.logger)
	return nil
}

// New creates a service for the configured project. The project must be an
// existing directory outside system locations unless it is an afs URL such
// as mem://localhost/project.
func New(options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig()}
	if err := ret.init(options); err != nil {
		return nil, err
	}
	return ret, nil
}
