package dashboard

import (
	"log/slog"

	"github.com/sansecao/spec-workflow-mcp-pro/service/hub"
	"github.com/sansecao/spec-workflow-mcp-pro/service/workspace"
)

type Option func(s *Server)

// WithHub exposes the hub on /ws.
func WithHub(h *hub.Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithWorkspace enables the specs and steering routes.
func WithWorkspace(ws *workspace.Service) Option {
	return func(s *Server) { s.workspace = ws }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics toggles the /metrics route.
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.metrics = enabled }
}
