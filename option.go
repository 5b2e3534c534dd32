package specflow

import (
	"log/slog"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	snapdao "github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot"
	"github.com/sansecao/spec-workflow-mcp-pro/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures the Service.
type Option func(s *Service)

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithProjectPath sets the project root.
func WithProjectPath(projectPath string) Option {
	return func(s *Service) {
		s.config.ProjectPath = projectPath
	}
}

// WithStorage selects the storage vendor, StorageFS or StorageMemory.
func WithStorage(vendor string) Option {
	return func(s *Service) {
		s.config.Storage.Vendor = vendor
	}
}

// WithApprovalStore overrides the approval record store.
func WithApprovalStore(store dao.Service[string, model.Request]) Option {
	return func(s *Service) {
		s.approvalStore = store
	}
}

// WithSnapshotStore overrides the snapshot history store.
func WithSnapshotStore(store snapdao.Service) Option {
	return func(s *Service) {
		s.snapshotStore = store
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter, for example
// OTLP, Jaeger or Zipkin. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
