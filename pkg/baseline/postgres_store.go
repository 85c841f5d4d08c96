package baseline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/lumen-arcade/saveguard/pkg/envelope"
)

// PostgresStore implements Store using PostgreSQL.
//
// Put is a single upsert guarded on last_save_at so a stale concurrent
// writer cannot move the baseline backwards; otherwise last write wins
// (two in-flight submissions for the same device remain a soft race, per
// the store's merge semantics).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS baselines (
		device_id TEXT PRIMARY KEY,
		last_save_at BIGINT NOT NULL DEFAULT 0,
		last_bank_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_total_earnings DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_submission_at BIGINT NOT NULL DEFAULT 0,
		flagged BOOLEAN NOT NULL DEFAULT FALSE,
		flags JSONB NOT NULL DEFAULT '[]',
		transactions JSONB NOT NULL DEFAULT '[]'
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, deviceID string) (*Baseline, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT device_id, last_save_at, last_bank_balance, last_total_earnings, last_balance,
		        last_submission_at, flagged, flags, transactions
		 FROM baselines WHERE device_id = $1`,
		deviceID)

	var b Baseline
	var flagsJSON, txnsJSON []byte
	err := row.Scan(&b.DeviceID, &b.LastSaveAt, &b.LastBankBalance, &b.LastTotalEarnings,
		&b.LastBalance, &b.LastSubmissionAt, &b.Flagged, &flagsJSON, &txnsJSON)
	if err == sql.ErrNoRows {
		return nil, nil // Not found is valid, caller initializes
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}

	if err := json.Unmarshal(flagsJSON, &b.Flags); err != nil {
		return nil, fmt.Errorf("corrupt flags for %s: %w", deviceID, err)
	}
	if err := json.Unmarshal(txnsJSON, &b.Transactions); err != nil {
		return nil, fmt.Errorf("corrupt transactions for %s: %w", deviceID, err)
	}
	return &b, nil
}

func (s *PostgresStore) Put(ctx context.Context, b *Baseline) error {
	flagsJSON, err := json.Marshal(orEmptyFlags(b.Flags))
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	txnsJSON, err := json.Marshal(orEmptyTxns(b.Transactions))
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}

	query := `
		INSERT INTO baselines (device_id, last_save_at, last_bank_balance, last_total_earnings,
		                       last_balance, last_submission_at, flagged, flags, transactions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (device_id) DO UPDATE SET
			last_save_at = EXCLUDED.last_save_at,
			last_bank_balance = EXCLUDED.last_bank_balance,
			last_total_earnings = EXCLUDED.last_total_earnings,
			last_balance = EXCLUDED.last_balance,
			last_submission_at = EXCLUDED.last_submission_at,
			flagged = baselines.flagged OR EXCLUDED.flagged,
			flags = EXCLUDED.flags,
			transactions = EXCLUDED.transactions
		WHERE baselines.last_save_at <= EXCLUDED.last_save_at
	`
	if _, err := s.db.ExecContext(ctx, query, b.DeviceID, b.LastSaveAt, b.LastBankBalance,
		b.LastTotalEarnings, b.LastBalance, b.LastSubmissionAt, b.Flagged, flagsJSON, txnsJSON); err != nil {
		return fmt.Errorf("failed to persist baseline: %w", err)
	}
	return nil
}

func (s *PostgresStore) Reset(ctx context.Context, deviceID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM baselines WHERE device_id = $1", deviceID); err != nil {
		return fmt.Errorf("failed to reset baseline: %w", err)
	}
	return nil
}

func orEmptyFlags(f []envelope.FlagEntry) []envelope.FlagEntry {
	if f == nil {
		return []envelope.FlagEntry{}
	}
	return f
}

func orEmptyTxns(t []envelope.TransactionEntry) []envelope.TransactionEntry {
	if t == nil {
		return []envelope.TransactionEntry{}
	}
	return t
}
