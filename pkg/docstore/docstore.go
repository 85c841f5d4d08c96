// Package docstore persists the authoritative copy of each owner's save
// document. Writes merge at the top level: fields absent from the incoming
// document survive, so partial clients cannot wipe server-side state.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for owners with no stored document.
var ErrNotFound = errors.New("docstore: document not found")

// Store is the saved-document persistence contract.
type Store interface {
	// Get returns the stored document, or ErrNotFound.
	Get(ctx context.Context, ownerID string) (map[string]any, error)
	// Put merges doc over the stored document at the top level and
	// persists the result. flagged marks the owner for reviewer queries.
	Put(ctx context.Context, ownerID string, doc map[string]any, flagged bool) error
	// QueryFlagged lists owner IDs currently marked flagged, up to limit.
	QueryFlagged(ctx context.Context, limit int) ([]string, error)
	// ClearFlags removes the flagged mark for an owner.
	ClearFlags(ctx context.Context, ownerID string) error
	// Delete removes the stored document.
	Delete(ctx context.Context, ownerID string) error
}

// merge lays incoming over existing at the top level. The security envelope
// is replaced wholesale: a stale partial envelope is worse than none.
func merge(existing, incoming map[string]any) map[string]any {
	if existing == nil {
		existing = make(map[string]any, len(incoming))
	}
	for k, v := range incoming {
		existing[k] = v
	}
	return existing
}
