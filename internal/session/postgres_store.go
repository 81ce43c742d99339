package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed session store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, source, ingested_by, file_size,
		total_rows, processed_rows, fraud_detected, explanations_generated,
		duplicates_skipped, error_count, errors,
		status, error_message, started_at, completed_at`

func (p *PostgresStore) Create(ctx context.Context, s *Session) error {
	errorsJSON, _ := json.Marshal(s.Errors)
	if s.Errors == nil {
		errorsJSON = []byte("[]")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO ingest_sessions (
			id, source, ingested_by, file_size,
			total_rows, processed_rows, fraud_detected, explanations_generated,
			duplicates_skipped, error_count, errors,
			status, error_message, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.Source, nullString(s.IngestedBy), s.FileSize,
		s.TotalRows, s.ProcessedRows, s.FraudDetected, s.ExplanationsGenerated,
		s.DuplicatesSkipped, s.ErrorCount, errorsJSON,
		string(s.Status), nullString(s.ErrorMessage), s.StartedAt, nullTime(s.CompletedAt),
	)
	return err
}

func (p *PostgresStore) Update(ctx context.Context, s *Session) error {
	errorsJSON, _ := json.Marshal(s.Errors)
	if s.Errors == nil {
		errorsJSON = []byte("[]")
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE ingest_sessions SET
			total_rows = $1, processed_rows = $2, fraud_detected = $3,
			explanations_generated = $4, duplicates_skipped = $5, error_count = $6,
			errors = $7, status = $8, error_message = $9, completed_at = $10
		WHERE id = $11`,
		s.TotalRows, s.ProcessedRows, s.FraudDetected,
		s.ExplanationsGenerated, s.DuplicatesSkipped, s.ErrorCount,
		errorsJSON, string(s.Status), nullString(s.ErrorMessage), nullTime(s.CompletedAt),
		s.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM ingest_sessions WHERE id = $1`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

func (p *PostgresStore) List(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM ingest_sessions
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(sc scanner) (*Session, error) {
	s := &Session{}
	var (
		ingestedBy   sql.NullString
		errorsJSON   []byte
		status       string
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)

	err := sc.Scan(
		&s.ID, &s.Source, &ingestedBy, &s.FileSize,
		&s.TotalRows, &s.ProcessedRows, &s.FraudDetected, &s.ExplanationsGenerated,
		&s.DuplicatesSkipped, &s.ErrorCount, &errorsJSON,
		&status, &errorMessage, &s.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	s.IngestedBy = ingestedBy.String
	s.Status = Status(status)
	s.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	if len(errorsJSON) > 0 {
		_ = json.Unmarshal(errorsJSON, &s.Errors)
	}

	return s, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
