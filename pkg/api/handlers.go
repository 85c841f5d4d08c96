package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lumen-arcade/saveguard/pkg/audit"
	"github.com/lumen-arcade/saveguard/pkg/docstore"
)

const maxBodyBytes = 1 << 20 // 1MB

// handleSubmit accepts a save document for an owner. The token subject must
// own the save (or be an admin).
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("ownerId")
	claims := ClaimsFrom(r.Context())
	if claims == nil {
		WriteUnauthenticated(w, r, "")
		return
	}
	if !OwnsSave(claims.Subject, ownerID) && !s.auth.IsAdmin(claims.Subject) {
		WritePermissionDenied(w, r, "Token subject does not own this save")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		WriteBadRequest(w, r, "Invalid request body")
		return
	}

	ctx := r.Context()
	var done func(accepted, flagged bool)
	if s.obs != nil {
		ctx, done = s.obs.TrackSubmission(ctx, ownerID)
	}

	assessment, err := s.svc.Evaluate(ctx, ownerID, doc)
	if err != nil {
		if done != nil {
			done(false, false)
		}
		WriteInternal(w, r, err)
		return
	}
	if done != nil {
		done(assessment.Accepted, assessment.Flagged)
	}

	if !assessment.Accepted {
		WriteFailedPrecondition(w, r, assessment.Issues)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// handleGet returns the stored save document for the owner (or an admin).
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("ownerId")
	claims := ClaimsFrom(r.Context())
	if claims == nil {
		WriteUnauthenticated(w, r, "")
		return
	}
	if !OwnsSave(claims.Subject, ownerID) && !s.auth.IsAdmin(claims.Subject) {
		WritePermissionDenied(w, r, "Token subject does not own this save")
		return
	}

	doc, err := s.docs.Get(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			WriteNotFound(w, r, "No save stored for this owner")
			return
		}
		WriteInternal(w, r, err)
		return
	}
	writeJSON(w, doc)
}

// handleFlagged lists owners awaiting review.
func (s *Server) handleFlagged(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	owners, err := s.docs.QueryFlagged(r.Context(), limit)
	if err != nil {
		WriteInternal(w, r, err)
		return
	}
	if owners == nil {
		owners = []string{}
	}
	writeJSON(w, map[string]any{"owners": owners})
}

// handleUnflag clears the review mark after a human verdict.
func (s *Server) handleUnflag(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	ownerID := r.PathValue("ownerId")
	if err := s.docs.ClearFlags(r.Context(), ownerID); err != nil {
		WriteInternal(w, r, err)
		return
	}
	s.recordAdmin(claims.Subject, ownerID, "unflag")
	writeJSON(w, map[string]any{"ok": true})
}

// handleDelete removes a stored save entirely.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	ownerID := r.PathValue("ownerId")
	if err := s.docs.Delete(r.Context(), ownerID); err != nil {
		WriteInternal(w, r, err)
		return
	}
	s.recordAdmin(claims.Subject, ownerID, "delete")
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (*Claims, bool) {
	claims := ClaimsFrom(r.Context())
	if claims == nil {
		WriteUnauthenticated(w, r, "")
		return nil, false
	}
	if !s.auth.IsAdmin(claims.Subject) {
		WritePermissionDenied(w, r, "Admin access required")
		return nil, false
	}
	return claims, true
}

func (s *Server) recordAdmin(actor, subject, action string) {
	if s.trail == nil {
		return
	}
	// The action already happened; losing the audit line is log-worthy but
	// must not fail the request.
	if err := s.trail.Record(audit.KindAdmin, actor, subject, action, nil); err != nil {
		slog.Error("failed to record admin audit entry", "actor", actor, "action", action, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
