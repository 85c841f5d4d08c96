// Package envelope defines the security metadata block attached to every
// save document, distinct from gameplay fields.
package envelope

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current envelope schema version. Bump on any change
// to the signed field set.
const SchemaVersion = 2

// Bounds for the append-only lists. The local copies keep more history than
// the slice embedded in a server-visible envelope.
const (
	MaxLocalFlags        = 20
	MaxEmbeddedFlags     = 10
	MaxLocalTransactions = 200
	MaxEmbeddedTxns      = 50
)

// SecurityEnvelope is the security block of a SaveDocument. It is superseded
// wholesale on each re-save; security fields are never merged field-by-field.
//
// Invariant: Signature and PublicKey are both present or both absent.
// Legacy is true only when the save was not produced by a known signer.
type SecurityEnvelope struct {
	SchemaVersion      int                `json:"schemaVersion"`
	DeviceID           string             `json:"deviceId"`
	SignedAt           int64              `json:"signedAt"` // unix milliseconds
	Signature          string             `json:"signature,omitempty"`
	SignatureAlgorithm string             `json:"signatureAlgorithm,omitempty"`
	PublicKey          string             `json:"publicKey,omitempty"`
	Flagged            bool               `json:"flagged"`
	Flags              []FlagEntry        `json:"flags,omitempty"`
	Legacy             bool               `json:"legacy"`
	ValidationIssues   []string           `json:"validationIssues,omitempty"`
	RecentTransactions []TransactionEntry `json:"recentTransactions,omitempty"`
}

// FlagEntry records one suspicion. Flags are accumulated for human review
// and never blocking by themselves.
type FlagEntry struct {
	Reason    string         `json:"reason"`
	Timestamp int64          `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// TransactionEntry is one gameplay-relevant event (win, loss, purchase).
// The transaction log corroborates large balance jumps during review.
type TransactionEntry struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewTransaction builds a transaction entry with a fresh id.
func NewTransaction(txType string, at time.Time, details map[string]any) TransactionEntry {
	return TransactionEntry{
		ID:        uuid.New().String(),
		Type:      txType,
		Timestamp: at.UnixMilli(),
		Details:   details,
	}
}

// SigningView returns a copy of the envelope reduced to the fields covered
// by the signature. The signature and public key are nulled (they are
// attached after signing), as are the server-populated audit fields.
func (e SecurityEnvelope) SigningView() SecurityEnvelope {
	e.Signature = ""
	e.PublicKey = ""
	e.ValidationIssues = nil
	e.RecentTransactions = nil
	return e
}

// Signed reports whether the envelope carries a signature. An envelope with
// exactly one of signature/publicKey set violates the presence invariant and
// is treated as unsigned by callers.
func (e SecurityEnvelope) Signed() bool {
	return e.Signature != "" && e.PublicKey != ""
}

// TrimFlags returns the newest max entries, oldest dropped first.
func TrimFlags(flags []FlagEntry, max int) []FlagEntry {
	if len(flags) <= max {
		return flags
	}
	return flags[len(flags)-max:]
}

// TrimTransactions returns the newest max entries, oldest dropped first.
func TrimTransactions(txns []TransactionEntry, max int) []TransactionEntry {
	if len(txns) <= max {
		return txns
	}
	return txns[len(txns)-max:]
}
