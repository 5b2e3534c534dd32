package approval

import (
	"log/slog"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/content"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	snapdao "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot"
	"github.com/sansecao/spec-workflow-mcp-pro/service/diff"
	"github.com/sansecao/spec-workflow-mcp-pro/service/event"
)

type Option func(s *Service)

// WithStore sets the approval record store.
func WithStore(store dao.Service[string, model.Request]) Option {
	return func(s *Service) { s.store = store }
}

// WithSnapshotStore sets the snapshot history store.
func WithSnapshotStore(store snapdao.Service) Option {
	return func(s *Service) { s.snapshotStore = store }
}

// WithContent sets the artifact reader.
func WithContent(reader content.Reader) Option {
	return func(s *Service) { s.content = reader }
}

// WithDiff sets the diff engine.
func WithDiff(differ *diff.Service) Option {
	return func(s *Service) { s.differ = differ }
}

// WithPublisher attaches the change notification publisher.
func WithPublisher(publisher *event.Publisher[Change]) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithIDGenerator overrides approval id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithLocker adds a cross-process lock taken after the in-process one, for
// stores shared by several processes.
func WithLocker(locker Locker) Option {
	return func(s *Service) { s.locker = locker }
}
