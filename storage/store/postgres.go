package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"go.uber.org/zap"

	"simplehash/config"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS anchor_requests (
	request_id         TEXT PRIMARY KEY,
	window_start       TIMESTAMPTZ NOT NULL,
	window_end         TIMESTAMPTZ NOT NULL,
	status             TEXT NOT NULL,
	digest             TEXT,
	event_count        INTEGER NOT NULL DEFAULT 0,
	schema_version     TEXT,
	retry_count        INTEGER NOT NULL DEFAULT 0,
	error_message      TEXT,
	tx_hash            TEXT,
	block_height       BIGINT,
	received_timestamp TIMESTAMPTZ NOT NULL,
	updated_timestamp  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS anchor_requests_status_idx ON anchor_requests (status);`

const selectColumns = `request_id, window_start, window_end, status, digest, event_count, schema_version,
	retry_count, error_message, tx_hash, block_height, received_timestamp, updated_timestamp`

// PostgresStore keeps anchor requests in PostgreSQL through the pgx driver.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens the pool described by cfg and creates the table if needed.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.SugaredLogger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MinConnections)
	db.SetConnMaxIdleTime(cfg.IdleTime())
	db.SetConnMaxLifetime(cfg.Lifetime())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := newPostgresStore(db, logger)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Infof("Connected to PostgreSQL (max_connections=%d)", cfg.MaxConnections)
	return s, nil
}

func newPostgresStore(db *sql.DB, logger *zap.SugaredLogger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// EnsureSchema creates anchor_requests if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create anchor_requests: %w", err)
	}
	return nil
}

// InsertAnchorStatusBatch implements Store.
func (s *PostgresStore) InsertAnchorStatusBatch(ctx context.Context, statuses []*AnchorStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO anchor_requests (request_id, window_start, window_end, status, received_timestamp, updated_timestamp)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (request_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range statuses {
		status := st.Status
		if status == "" {
			status = StatusReceived
		}
		if _, err := stmt.ExecContext(ctx, st.RequestID, st.WindowStart, st.WindowEnd, status, st.ReceivedTimestamp); err != nil {
			return fmt.Errorf("insert request %s: %w", st.RequestID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// GetAnchorStatus implements Store.
func (s *PostgresStore) GetAnchorStatus(ctx context.Context, requestID string) (*AnchorStatus, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM anchor_requests WHERE request_id = $1`, requestID)
	return scanStatus(row)
}

// MarkAsProcessing implements Store.
func (s *PostgresStore) MarkAsProcessing(ctx context.Context, requestID string, maxRetries int) (*AnchorStatus, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM anchor_requests WHERE request_id = $1 FOR UPDATE`, requestID)
	st, err := scanStatus(row)
	if err != nil {
		return nil, err
	}
	if st.Terminal() {
		return st, nil
	}

	now := time.Now().UTC()
	if st.RetryCount >= maxRetries {
		st.Status, st.ErrorMessage = StatusFailed, retriesExhausted
	} else {
		st.Status = StatusProcessing
	}
	st.UpdatedTimestamp = now

	if _, err := tx.ExecContext(ctx,
		`UPDATE anchor_requests SET status = $2, error_message = NULLIF($3, ''), updated_timestamp = $4 WHERE request_id = $1`,
		requestID, st.Status, st.ErrorMessage, now); err != nil {
		return nil, fmt.Errorf("claim request %s: %w", requestID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return st, nil
}

// MarkAsCompleted implements Store.
func (s *PostgresStore) MarkAsCompleted(ctx context.Context, rec CompletionRecord) error {
	return s.update(ctx, rec.RequestID, `
		UPDATE anchor_requests
		SET status = $2, digest = $3, event_count = $4, schema_version = $5,
			tx_hash = NULLIF($6, ''), block_height = $7, error_message = NULL, updated_timestamp = $8
		WHERE request_id = $1`,
		rec.RequestID, StatusCompleted, rec.Digest, rec.EventCount, rec.SchemaVersion,
		rec.TxHash, int64(rec.BlockHeight), time.Now().UTC())
}

// MarkAsFailed implements Store.
func (s *PostgresStore) MarkAsFailed(ctx context.Context, rec FailureRecord) error {
	return s.update(ctx, rec.RequestID,
		`UPDATE anchor_requests SET status = $2, error_message = $3, updated_timestamp = $4 WHERE request_id = $1`,
		rec.RequestID, StatusFailed, rec.ErrorMessage, time.Now().UTC())
}

// MarkForRetry implements Store.
func (s *PostgresStore) MarkForRetry(ctx context.Context, requestID, errMsg string) error {
	return s.update(ctx, requestID, `
		UPDATE anchor_requests
		SET status = $2, retry_count = retry_count + 1, error_message = $3, updated_timestamp = $4
		WHERE request_id = $1`,
		requestID, StatusReceived, errMsg, time.Now().UTC())
}

func (s *PostgresStore) update(ctx context.Context, requestID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update request %s: %w", requestID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request %s: %w", requestID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanStatus(row *sql.Row) (*AnchorStatus, error) {
	var (
		st            AnchorStatus
		digest        sql.NullString
		schemaVersion sql.NullString
		errMsg        sql.NullString
		txHash        sql.NullString
		blockHeight   sql.NullInt64
	)
	err := row.Scan(&st.RequestID, &st.WindowStart, &st.WindowEnd, &st.Status, &digest, &st.EventCount,
		&schemaVersion, &st.RetryCount, &errMsg, &txHash, &blockHeight, &st.ReceivedTimestamp, &st.UpdatedTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan anchor request: %w", err)
	}
	st.Digest = digest.String
	st.SchemaVersion = schemaVersion.String
	st.ErrorMessage = errMsg.String
	st.TxHash = txHash.String
	st.BlockHeight = uint64(blockHeight.Int64)
	return &st, nil
}
