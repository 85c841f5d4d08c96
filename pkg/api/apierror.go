// Package api — HTTP surface for save submission and review. Error
// responses are RFC 7807 Problem Details with a stable machine-readable
// code; player-facing detail stays generic and non-diagnostic.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Problem codes. Clients branch on these, never on detail text.
const (
	CodeUnauthenticated    = "unauthenticated"
	CodePermissionDenied   = "permission-denied"
	CodeFailedPrecondition = "failed-precondition"
	CodeNotFound           = "not-found"
	CodeResourceExhausted  = "resource-exhausted"
	CodeInternal           = "internal"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
type ProblemDetail struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Status   int      `json:"status"`
	Code     string   `json:"code"`
	Detail   string   `json:"detail,omitempty"`
	Instance string   `json:"instance,omitempty"`
	TraceID  string   `json:"trace_id,omitempty"`
	Issues   []string `json:"issues,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, code, title, detail string, issues []string) {
	problem := &ProblemDetail{
		Type:   fmt.Sprintf("https://saveguard.lumen-arcade.dev/errors/%s", code),
		Title:  title,
		Status: status,
		Code:   code,
		Detail: detail,
		Issues: issues,
	}
	if r != nil {
		problem.Instance = r.URL.Path
		problem.TraceID = w.Header().Get("X-Request-ID")
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteUnauthenticated writes a 401 response.
func WriteUnauthenticated(w http.ResponseWriter, r *http.Request, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	writeProblem(w, r, http.StatusUnauthorized, CodeUnauthenticated, "Unauthenticated", detail, nil)
}

// WritePermissionDenied writes a 403 response.
func WritePermissionDenied(w http.ResponseWriter, r *http.Request, detail string) {
	if detail == "" {
		detail = "Insufficient permissions"
	}
	writeProblem(w, r, http.StatusForbidden, CodePermissionDenied, "Permission Denied", detail, nil)
}

// WriteFailedPrecondition writes a 400 response carrying the issue list.
// Issues are short labels, not diagnostics; callers must not leak limit
// values or check internals through them.
func WriteFailedPrecondition(w http.ResponseWriter, r *http.Request, issues []string) {
	writeProblem(w, r, http.StatusBadRequest, CodeFailedPrecondition,
		"Failed Precondition", "The save could not be accepted", issues)
}

// WriteBadRequest writes a 400 response without an issue list.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusBadRequest, CodeFailedPrecondition, "Bad Request", detail, nil)
}

// WriteNotFound writes a 404 response.
func WriteNotFound(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusNotFound, CodeNotFound, "Not Found", detail, nil)
}

// WriteTooManyRequests writes a 429 response with a Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	writeProblem(w, r, http.StatusTooManyRequests, CodeResourceExhausted,
		"Too Many Requests", "Rate limit exceeded. Retry after the specified interval.", nil)
}

// WriteInternal writes a 500 response. The error is logged but never
// exposed to the client.
func WriteInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal server error", "error", err, "path", pathOf(r))
	writeProblem(w, r, http.StatusInternalServerError, CodeInternal,
		"Internal Server Error", "An unexpected error occurred. Please try again later.", nil)
}

func pathOf(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.URL.Path
}
