package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

const problemContentType = "application/problem+json"

// problemDetail is an RFC 9457 problem response. Code and Data carry the
// JSON-RPC error code and payload of errors that have them.
type problemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     int    `json:"code,omitempty"`
	Data     any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblem(w, newProblem(r, status, detail))
}

// respondToolError writes a failed tool call, keeping the error's own code
// and data when it carries them.
func respondToolError(w http.ResponseWriter, r *http.Request, err error) {
	problem := newProblem(r, toolErrorStatus(err), toolErrorMessage(err))
	if code, data, ok := toolErrorCode(err); ok {
		problem.Code = code
		problem.Data = data
	}
	writeProblem(w, problem)
}

func newProblem(r *http.Request, status int, detail string) problemDetail {
	problem := problemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: strings.TrimSpace(detail),
	}
	if r != nil && r.URL != nil {
		problem.Instance = r.URL.Path
	}
	return problem
}

func writeProblem(w http.ResponseWriter, problem problemDetail) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

func requestIDFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(middleware.RequestIDHeader))
}
