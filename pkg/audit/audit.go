// Package audit records submission and admin activity as a tamper-evident
// JSON-line trail. Each record carries an HMAC over its content and the
// previous record's MAC, so deleting or editing a line breaks the chain
// from that point on.
package audit

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Kind categorizes an audit record.
type Kind string

const (
	KindSubmission Kind = "SUBMISSION"
	KindFlag       Kind = "FLAG"
	KindAdmin      Kind = "ADMIN"
)

// Record is one audit line. Chain is the hex HMAC over the canonical record
// bytes (Chain field empty) prefixed with the previous record's Chain.
type Record struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Actor     string         `json:"actor"`
	Subject   string         `json:"subject"`
	Action    string         `json:"action"`
	Timestamp int64          `json:"timestamp"` // unix milliseconds
	Details   map[string]any `json:"details,omitempty"`
	Chain     string         `json:"chain"`
}

// Logger appends chained records to a writer.
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
	key    []byte
	prev   string
	clock  func() time.Time
}

// NewLogger creates a logger writing to w (stdout if nil). The chain key is
// derived per boot: the chain proves integrity within one process lifetime,
// not across restarts.
func NewLogger(w io.Writer) (*Logger, error) {
	if w == nil {
		w = os.Stdout
	}
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to seed audit chain key: %w", err)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, []byte("audit-chain")), key); err != nil {
		return nil, fmt.Errorf("failed to derive audit chain key: %w", err)
	}
	return &Logger{writer: w, key: key, clock: time.Now}, nil
}

// WithClock overrides the clock for testing.
func (l *Logger) WithClock(clock func() time.Time) *Logger {
	l.clock = clock
	return l
}

// Record appends one audit line.
func (l *Logger) Record(kind Kind, actor, subject, action string, details map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		ID:        uuid.New().String(),
		Kind:      kind,
		Actor:     actor,
		Subject:   subject,
		Action:    action,
		Timestamp: l.clock().UnixMilli(),
		Details:   details,
	}
	mac, err := l.mac(rec, l.prev)
	if err != nil {
		return err
	}
	rec.Chain = mac

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := l.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	l.prev = mac
	return nil
}

func (l *Logger) mac(rec Record, prev string) (string, error) {
	rec.Chain = ""
	blob, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, l.key)
	h.Write([]byte(prev))
	h.Write(blob)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChain replays records against the logger's key and reports the index
// of the first broken record, or -1 when the chain is intact.
func (l *Logger) VerifyChain(records []Record) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := ""
	for i, rec := range records {
		want, err := l.mac(rec, prev)
		if err != nil {
			return i, err
		}
		if !hmac.Equal([]byte(want), []byte(rec.Chain)) {
			return i, nil
		}
		prev = rec.Chain
	}
	return -1, nil
}
