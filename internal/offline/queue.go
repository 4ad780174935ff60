package offline

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PendingSale is a sale waiting for delivery
type PendingSale struct {
	Payload       SalePayload
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	LastAttemptAt *time.Time
}

// DeadLetter is a sale the server refused permanently, or one whose stored
// payload could no longer be decoded. RawPayload keeps the stored text.
type DeadLetter struct {
	Payload    SalePayload
	RawPayload string
	Attempts   int
	StatusCode int
	Reason     string
	CreatedAt  time.Time
	FailedAt   time.Time
}

// Queue is the durable store of sales not yet acknowledged by the server
type Queue interface {
	Enqueue(ctx context.Context, payload SalePayload) error
	Pending(ctx context.Context) ([]PendingSale, error)
	MarkAttempt(ctx context.Context, offlineID string, lastError string) error
	Remove(ctx context.Context, offlineID string) error
	DeadLetter(ctx context.Context, offlineID string, statusCode int, reason string) error
	DeadLetters(ctx context.Context) ([]DeadLetter, error)
	Close() error
}

type pendingRow struct {
	OfflineID     string        `db:"offline_id"`
	Payload       string        `db:"payload"`
	Attempts      int           `db:"attempts"`
	LastError     string        `db:"last_error"`
	CreatedAt     int64         `db:"created_at"`
	LastAttemptAt sql.NullInt64 `db:"last_attempt_at"`
}

type deadLetterRow struct {
	OfflineID  string `db:"offline_id"`
	Payload    string `db:"payload"`
	Attempts   int    `db:"attempts"`
	StatusCode int    `db:"status_code"`
	Reason     string `db:"reason"`
	CreatedAt  int64  `db:"created_at"`
	FailedAt   int64  `db:"failed_at"`
}

// SQLiteQueue keeps the queue in a local SQLite file
type SQLiteQueue struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// OpenSQLiteQueue opens (creating when needed) the queue database at path
// and applies its migrations.
func OpenSQLiteQueue(ctx context.Context, path string, logger *zap.Logger) (*SQLiteQueue, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	if err := migrateQueue(ctx, db.DB, logger); err != nil {
		db.Close()
		return nil, err
	}
	// one connection serializes the sync loop and enqueue on the same file
	db.SetMaxOpenConns(1)

	return &SQLiteQueue{db: db, logger: logger, now: time.Now}, nil
}

func migrateQueue(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load queue migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create queue migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate queue database: %w", err)
	}
	for _, result := range results {
		logger.Debug("Queue migration applied", zap.String("source", result.Source.Path))
	}
	return nil
}

func (q *SQLiteQueue) Enqueue(ctx context.Context, payload SalePayload) error {
	if payload.OfflineID == "" {
		return ErrMissingOfflineID
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode sale payload: %w", err)
	}

	query := `
		INSERT INTO pending_sales (offline_id, payload, attempts, last_error, created_at)
		VALUES (?, ?, 0, '', ?)
		ON CONFLICT (offline_id) DO NOTHING
	`
	result, err := q.db.ExecContext(ctx, query, payload.OfflineID, string(raw), q.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to enqueue sale: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSaleAlreadyQueued
	}
	return nil
}

// Pending lists queued sales, oldest first. Rows whose payload cannot be
// decoded are moved to the dead letters with status 0 and left out.
func (q *SQLiteQueue) Pending(ctx context.Context) ([]PendingSale, error) {
	var rows []pendingRow
	query := `
		SELECT offline_id, payload, attempts, last_error, created_at, last_attempt_at
		FROM pending_sales
		ORDER BY created_at ASC, offline_id ASC
	`
	if err := q.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list pending sales: %w", err)
	}

	sales := make([]PendingSale, 0, len(rows))
	for _, row := range rows {
		var payload SalePayload
		if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil {
			reason := "payload ilegível: " + err.Error()
			if err := q.DeadLetter(ctx, row.OfflineID, 0, reason); err != nil {
				return nil, fmt.Errorf("failed to quarantine pending sale %s: %w", row.OfflineID, err)
			}
			q.logger.Warn("Undecodable pending sale moved to dead letters",
				zap.String("offline_id", row.OfflineID),
				zap.String("reason", reason),
			)
			continue
		}
		// the key column is authoritative
		payload.OfflineID = row.OfflineID

		sale := PendingSale{
			Payload:   payload,
			Attempts:  row.Attempts,
			LastError: row.LastError,
			CreatedAt: time.UnixMilli(row.CreatedAt),
		}
		if row.LastAttemptAt.Valid {
			at := time.UnixMilli(row.LastAttemptAt.Int64)
			sale.LastAttemptAt = &at
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func (q *SQLiteQueue) MarkAttempt(ctx context.Context, offlineID string, lastError string) error {
	query := `
		UPDATE pending_sales
		SET attempts = attempts + 1, last_error = ?, last_attempt_at = ?
		WHERE offline_id = ?
	`
	result, err := q.db.ExecContext(ctx, query, lastError, q.now().UnixMilli(), offlineID)
	if err != nil {
		return fmt.Errorf("failed to record delivery attempt: %w", err)
	}
	return expectOneRow(result)
}

func (q *SQLiteQueue) Remove(ctx context.Context, offlineID string) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM pending_sales WHERE offline_id = ?`, offlineID)
	if err != nil {
		return fmt.Errorf("failed to remove pending sale: %w", err)
	}
	return expectOneRow(result)
}

// DeadLetter moves a pending sale to the dead letter table in one transaction
func (q *SQLiteQueue) DeadLetter(ctx context.Context, offlineID string, statusCode int, reason string) error {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row pendingRow
	err = tx.GetContext(ctx, &row, `
		SELECT offline_id, payload, attempts, last_error, created_at, last_attempt_at
		FROM pending_sales WHERE offline_id = ?
	`, offlineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPendingNotFound
		}
		return fmt.Errorf("failed to load pending sale: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dead_letters (offline_id, payload, attempts, status_code, reason, created_at, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (offline_id) DO UPDATE SET
			payload = excluded.payload,
			attempts = excluded.attempts,
			status_code = excluded.status_code,
			reason = excluded.reason,
			failed_at = excluded.failed_at
	`, row.OfflineID, row.Payload, row.Attempts+1, statusCode, reason, row.CreatedAt, q.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store dead letter: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_sales WHERE offline_id = ?`, offlineID); err != nil {
		return fmt.Errorf("failed to remove pending sale: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (q *SQLiteQueue) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	var rows []deadLetterRow
	query := `
		SELECT offline_id, payload, attempts, status_code, reason, created_at, failed_at
		FROM dead_letters
		ORDER BY failed_at DESC, offline_id ASC
	`
	if err := q.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	letters := make([]DeadLetter, 0, len(rows))
	for _, row := range rows {
		// undecodable payloads are listed with their raw text only
		var payload SalePayload
		_ = json.Unmarshal([]byte(row.Payload), &payload)
		payload.OfflineID = row.OfflineID
		letters = append(letters, DeadLetter{
			Payload:    payload,
			RawPayload: row.Payload,
			Attempts:   row.Attempts,
			StatusCode: row.StatusCode,
			Reason:     row.Reason,
			CreatedAt:  time.UnixMilli(row.CreatedAt),
			FailedAt:   time.UnixMilli(row.FailedAt),
		})
	}
	return letters, nil
}

func (q *SQLiteQueue) Close() error {
	return q.db.Close()
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrPendingNotFound
	}
	return nil
}
