package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey serialises concurrent appends across processes.
const advisoryLockKey = int64(1_402_117_305)

const entryColumns = `idx, recorded_at, run_id, customer_id, kind, scope,
	final_score, grade, period_from, period_to, prev_hash, hash`

// PostgresLedger persists score history to PostgreSQL.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLedger creates a PostgresLedger backed by pool. The
// score_history table and its genesis row come from the migrations.
func NewPostgresLedger(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresLedger{pool: pool, logger: logger}
}

// Append implements Ledger. The tail read and the insert run in one
// transaction under an advisory lock.
func (l *PostgresLedger) Append(ctx context.Context, rec Record) (*Entry, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var prevIdx int
	var prevHash string
	if err := tx.QueryRow(ctx,
		"SELECT idx, hash FROM score_history ORDER BY idx DESC LIMIT 1",
	).Scan(&prevIdx, &prevHash); err != nil {
		return nil, fmt.Errorf("read history tail: %w", err)
	}

	entry := &Entry{
		Index:      prevIdx + 1,
		RecordedAt: time.Now().UTC().Truncate(time.Microsecond),
		Record:     rec,
		PrevHash:   prevHash,
	}
	entry.Hash = hashEntry(entry)

	if _, err := tx.Exec(ctx,
		`INSERT INTO score_history (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.Index, entry.RecordedAt, entry.RunID, entry.CustomerID,
		entry.Kind, entry.Scope, entry.FinalScore, entry.Grade,
		entry.PeriodFrom, entry.PeriodTo, entry.PrevHash, entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert history entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit history tx: %w", err)
	}

	l.logger.Debug("score recorded",
		zap.Int("idx", entry.Index),
		zap.String("kind", entry.Kind),
		zap.String("scope", entry.Scope),
		zap.Int("score", entry.FinalScore),
	)
	return entry, nil
}

// Latest implements Ledger.
func (l *PostgresLedger) Latest(ctx context.Context, customerID, kind, scope string) (*Entry, error) {
	entries, err := l.List(ctx, customerID, kind, scope, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries[0], nil
}

// List implements Ledger.
func (l *PostgresLedger) List(ctx context.Context, customerID, kind, scope string, limit int) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM score_history
		WHERE idx > 0 AND customer_id = $1 AND kind = $2 AND scope = $3
		ORDER BY idx DESC`
	args := []any{customerID, kind, scope}
	if limit > 0 {
		query += " LIMIT $4"
		args = append(args, limit)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return entries, nil
}

// Verify implements Ledger. It streams the chain in index order.
func (l *PostgresLedger) Verify(ctx context.Context) error {
	rows, err := l.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM score_history ORDER BY idx ASC`,
	)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var prev *Entry
	for rows.Next() {
		curr, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scan history row: %w", err)
		}
		if err := verifyLink(prev, curr); err != nil {
			return err
		}
		prev = curr
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if prev == nil {
		return errors.New("score history has no genesis entry")
	}
	return nil
}

func scanEntry(row pgx.CollectableRow) (*Entry, error) {
	e := &Entry{}
	err := row.Scan(
		&e.Index, &e.RecordedAt, &e.RunID, &e.CustomerID,
		&e.Kind, &e.Scope, &e.FinalScore, &e.Grade,
		&e.PeriodFrom, &e.PeriodTo, &e.PrevHash, &e.Hash,
	)
	if err != nil {
		return nil, err
	}
	e.RecordedAt = e.RecordedAt.UTC()
	return e, nil
}
