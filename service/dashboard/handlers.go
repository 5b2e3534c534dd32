package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/approval"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	"github.com/sansecao/spec-workflow-mcp-pro/service/diff"
)

const maxBodyBytes = 1 << 20

var decisions = map[string]model.Status{
	"approve":        model.StatusApproved,
	"reject":         model.StatusRejected,
	"needs-revision": model.StatusNeedsRevision,
}

// ContentResponse is the body of GET /api/approvals/{id}/content. Comments
// are resolved against Content, so an orphaned selection is listed as a
// general comment.
type ContentResponse struct {
	Content          string          `json:"content"`
	FilePath         string          `json:"filePath"`
	FileStats        model.FileStats `json:"fileStats"`
	Comments         []model.Comment `json:"comments,omitempty"`
	OrphanedComments int             `json:"orphanedComments,omitempty"`
}

// DecisionRequest is the body of the approve, reject and needs-revision routes.
type DecisionRequest struct {
	Response    string          `json:"response,omitempty"`
	Annotations string          `json:"annotations,omitempty"`
	Comments    []model.Comment `json:"comments,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	var parameters []*dao.Parameter
	query := r.URL.Query()
	for key, name := range map[string]string{
		"status":       dao.ParamStatus,
		"category":     dao.ParamCategory,
		"categoryName": dao.ParamCategoryName,
	} {
		if values := query[key]; len(values) > 0 {
			parameters = append(parameters, dao.NewParameter(name, values...))
		}
	}
	requests, err := s.approvals.List(r.Context(), parameters...)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

func (s *Server) createApproval(w http.ResponseWriter, r *http.Request) {
	input := &approval.CreateInput{}
	if !decodeBody(w, r, input) {
		return
	}
	request, err := s.approvals.Create(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, request)
}

func (s *Server) getApproval(w http.ResponseWriter, r *http.Request) {
	request, err := s.approvals.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, request)
}

func (s *Server) approvalStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.approvals.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) deleteApproval(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.approvals.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) approvalContent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	request, err := s.approvals.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	doc, err := s.approvals.Content(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	comments, orphaned := model.ResolveComments(request.Comments, doc.Content)
	respondJSON(w, http.StatusOK, ContentResponse{
		Content:          doc.Content,
		FilePath:         request.FilePath,
		FileStats:        doc.Stats,
		Comments:         comments,
		OrphanedComments: orphaned,
	})
}

func (s *Server) appendComment(w http.ResponseWriter, r *http.Request) {
	comment := model.Comment{}
	if !decodeBody(w, r, &comment) {
		return
	}
	request, err := s.approvals.AppendComment(r.Context(), mux.Vars(r)["id"], comment)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, request)
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	body := &DecisionRequest{}
	if r.ContentLength != 0 && !decodeBody(w, r, body) {
		return
	}
	request, err := s.approvals.Decide(r.Context(), vars["id"], &approval.DecisionInput{
		Status:      decisions[vars["action"]],
		Response:    body.Response,
		Annotations: body.Annotations,
		Comments:    body.Comments,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, request)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.approvals.Versions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshots)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	version, err := strconv.Atoi(vars["version"])
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: invalid version %q", model.ErrValidation, vars["version"]))
		return
	}
	snap, err := s.approvals.Version(r.Context(), vars["id"], version)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) captureSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.approvals.CaptureSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

// diffApproval compares ?from= with ?to= (default current). format=unified
// returns a text patch instead of JSON.
func (s *Server) diffApproval(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	query := r.URL.Query()
	from := query.Get("from")
	if from == "" {
		respondError(w, r, fmt.Errorf("%w: from is required", model.ErrValidation))
		return
	}
	result, err := s.approvals.Diff(r.Context(), id, from, query.Get("to"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !strings.EqualFold(query.Get("format"), "unified") {
		respondJSON(w, http.StatusOK, result)
		return
	}
	request, err := s.approvals.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	patch, err := diff.Unified(result, request.FilePath)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/x-diff; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(patch))
}

func (s *Server) listSpecs(w http.ResponseWriter, r *http.Request) {
	specs, err := s.workspace.Specs(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, specs)
}

func (s *Server) getSpec(w http.ResponseWriter, r *http.Request) {
	spec, err := s.workspace.Spec(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, spec)
}

func (s *Server) getSteering(w http.ResponseWriter, r *http.Request) {
	steering, err := s.workspace.Steering(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, steering)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		respondError(w, r, fmt.Errorf("%w: invalid request body: %v", model.ErrValidation, err))
		return false
	}
	return true
}
