// Package ledger stores consumer-side dedup claims for the correlation queue.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// SQLiteLedger implements correlation.Ledger on SQLite.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteLedger opens (or creates) the ledger at dbPath. ":memory:" is supported.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	l := &SQLiteLedger{db: db}
	if err := l.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS consumer_claims (
		consumer TEXT NOT NULL,
		message_id TEXT NOT NULL,
		claimed_at INTEGER NOT NULL,
		PRIMARY KEY (consumer, message_id)
	);
	CREATE INDEX IF NOT EXISTS idx_claimed_at ON consumer_claims(claimed_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Claim inserts the pair; a conflicting row means it was already claimed.
func (l *SQLiteLedger) Claim(ctx context.Context, consumer, messageID string, at time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx,
		"INSERT INTO consumer_claims (consumer, message_id, claimed_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		consumer, messageID, at.Unix(),
	)
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryStorage, "claim message").
			WithContext("consumer", consumer).
			Build()
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryStorage, "claim message").Build()
	}
	return n == 1, nil
}

// Prune deletes claims made before the cutoff.
func (l *SQLiteLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx, "DELETE FROM consumer_claims WHERE claimed_at < ?", before.Unix())
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryStorage, "prune claims").Build()
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
