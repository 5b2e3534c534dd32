// Package dashboard serves the approval workflow over HTTP: a REST API for
// reviewers and automation, the realtime hub on /ws and Prometheus metrics.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sansecao/spec-workflow-mcp-pro/internal/metrics"
	"github.com/sansecao/spec-workflow-mcp-pro/service/approval"
	"github.com/sansecao/spec-workflow-mcp-pro/service/hub"
	"github.com/sansecao/spec-workflow-mcp-pro/service/workspace"
)

const shutdownTimeout = 5 * time.Second

// Server routes dashboard requests to the approval service.
type Server struct {
	approvals *approval.Service
	workspace *workspace.Service
	hub       *hub.Hub
	logger    *slog.Logger
	metrics   bool
	router    *mux.Router
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. The bound address is reported through ready when not nil.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(addr string)) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	if ready != nil {
		ready(listener.Addr().String())
	}
	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(listener) }()
	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err = server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) routes() {
	router := mux.NewRouter()
	router.NotFoundHandler = routeError(http.StatusNotFound)
	router.MethodNotAllowedHandler = routeError(http.StatusMethodNotAllowed)
	router.Use(requestIDMiddleware)
	router.Use(s.observe)

	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if s.metrics {
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	if s.hub != nil {
		router.Handle("/ws", s.hub.Handler(approval.TopicApprovals)).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = routeError(http.StatusMethodNotAllowed)
	api.HandleFunc("/approvals", s.listApprovals).Methods(http.MethodGet)
	api.HandleFunc("/approvals", s.createApproval).Methods(http.MethodPost)
	api.HandleFunc("/approvals/{id}", s.getApproval).Methods(http.MethodGet)
	api.HandleFunc("/approvals/{id}", s.deleteApproval).Methods(http.MethodDelete)
	api.HandleFunc("/approvals/{id}/status", s.approvalStatus).Methods(http.MethodGet)
	api.HandleFunc("/approvals/{id}/content", s.approvalContent).Methods(http.MethodGet)
	api.HandleFunc("/approvals/{id}/comments", s.appendComment).Methods(http.MethodPost)
	api.HandleFunc("/approvals/{id}/snapshots", s.listSnapshots).Methods(http.MethodGet)
	api.HandleFunc("/approvals/{id}/snapshots/{version:[0-9]+}", s.getSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/approvals/{id}/snapshot", s.captureSnapshot).Methods(http.MethodPost)
	api.HandleFunc("/approvals/{id}/diff", s.diffApproval).Methods(http.MethodGet)
	api.HandleFunc("/approvals/{id}/{action:approve|reject|needs-revision}", s.decide).Methods(http.MethodPost)
	if s.workspace != nil {
		api.HandleFunc("/specs", s.listSpecs).Methods(http.MethodGet)
		api.HandleFunc("/specs/{name}", s.getSpec).Methods(http.MethodGet)
		api.HandleFunc("/steering", s.getSteering).Methods(http.MethodGet)
	}
	s.router = router
}

// New creates a dashboard server for approvals.
func New(approvals *approval.Service, options ...Option) *Server {
	ret := &Server{approvals: approvals, metrics: true}
	for _, option := range options {
		option(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	ret.routes()
	return ret
}
