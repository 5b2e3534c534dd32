package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidState), errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrIOFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	respondJSON(w, code, ErrorResponse{Error: err.Error(), Code: code, RequestID: requestID(r.Context())})
}

// routeError answers requests no route accepts with a JSON error body.
func routeError(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, code, ErrorResponse{Error: http.StatusText(code), Code: code, RequestID: requestID(r.Context())})
	})
}
