package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists documents to a local SQLite database. Suitable for
// single-writer deployments; larger installs should front it with the
// in-memory store per instance or move to a hosted document database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// modernc.org/sqlite serializes writers itself, but a single connection
	// avoids SQLITE_BUSY on concurrent transactions.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			owner_id   TEXT PRIMARY KEY,
			doc        TEXT NOT NULL,
			flagged    INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_documents_flagged ON documents (flagged) WHERE flagged = 1;
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(ctx context.Context, ownerID string) (map[string]any, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE owner_id = ?`, ownerID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode stored document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) Put(ctx context.Context, ownerID string, doc map[string]any, flagged bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing map[string]any
	var blob string
	err = tx.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE owner_id = ?`, ownerID).Scan(&blob)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("failed to load document for merge: %w", err)
	default:
		if err := json.Unmarshal([]byte(blob), &existing); err != nil {
			return fmt.Errorf("failed to decode stored document: %w", err)
		}
	}

	merged, err := json.Marshal(merge(existing, doc))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (owner_id, doc, flagged, updated_at)
		VALUES (?, ?, ?, unixepoch())
		ON CONFLICT (owner_id) DO UPDATE SET
			doc        = excluded.doc,
			flagged    = documents.flagged OR excluded.flagged,
			updated_at = excluded.updated_at`,
		ownerID, string(merged), boolToInt(flagged))
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) QueryFlagged(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id FROM documents WHERE flagged = 1 ORDER BY owner_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flagged documents: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func (s *SQLiteStore) ClearFlags(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET flagged = 0 WHERE owner_id = ?`, ownerID)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE owner_id = ?`, ownerID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
