package transaction

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// querier is satisfied by *sql.DB and *sql.Tx so the same SQL serves both
// the pooled path and the atomic commit path.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore persists transactions in PostgreSQL.
type PostgresStore struct {
	q querier
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

// WithTx returns a copy of the store bound to tx.
func (p *PostgresStore) WithTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

const txnColumns = `id, occurred_at_raw, occurred_at, millis, trx_type, amount::TEXT,
		party_from, party_to, institution_from, institution_to, status,
		is_fraud, risk_score, confidence, feature_importance, scoring_error, scored_at,
		priority, risk_factors, explanation, recommendations, explained_at,
		ingested_at, ingested_by, hour, day_of_week, trx_date`

func (p *PostgresStore) Create(ctx context.Context, t *Transaction) error {
	importanceJSON, _ := json.Marshal(t.FeatureImportance)
	if t.FeatureImportance == nil {
		importanceJSON = []byte("{}")
	}
	factorsJSON, _ := json.Marshal(t.RiskFactors)
	if t.RiskFactors == nil {
		factorsJSON = []byte("[]")
	}
	recsJSON, _ := json.Marshal(t.Recommendations)
	if t.Recommendations == nil {
		recsJSON = []byte("[]")
	}

	_, err := p.q.ExecContext(ctx, `
		INSERT INTO transactions (
			id, occurred_at_raw, occurred_at, millis, trx_type, amount,
			party_from, party_to, institution_from, institution_to, status,
			is_fraud, risk_score, confidence, feature_importance, scoring_error, scored_at,
			priority, risk_factors, explanation, recommendations, explained_at,
			ingested_at, ingested_by, hour, day_of_week, trx_date
		) VALUES (
			$1, $2, $3, $4, $5, $6::NUMERIC(20,2),
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22,
			$23, $24, $25, $26, $27
		)`,
		t.ID, nullString(t.OccurredAtRaw), nullTime(t.OccurredAt), t.Millis, string(t.Type), t.Amount,
		t.PartyFrom, t.PartyTo, t.InstitutionFrom, t.InstitutionTo, string(t.Status),
		t.IsFraud, t.RiskScore, t.Confidence, importanceJSON, nullString(t.ScoringError), nullTime(t.ScoredAt),
		nullString(string(t.Priority)), factorsJSON, nullString(t.Explanation), recsJSON, nullTime(t.ExplainedAt),
		t.IngestedAt, nullString(t.IngestedBy), nullInt(t.Hour), nullInt(t.DayOfWeek), nullString(t.Date),
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := p.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	row := p.q.QueryRowContext(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func (p *PostgresStore) List(ctx context.Context, opts ListOptions) ([]*Transaction, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if opts.Type != "" {
		add("trx_type = $%d", string(opts.Type))
	}
	if opts.Status != "" {
		add("status = $%d", string(opts.Status))
	}
	if opts.FraudOnly != nil {
		add("is_fraud = $%d", *opts.FraudOnly)
	}
	if opts.Party != "" {
		add("(party_from = $%[1]d OR party_to = $%[1]d)", opts.Party)
	}
	if opts.Institution != "" {
		add("(institution_from = $%[1]d OR institution_to = $%[1]d)", opts.Institution)
	}
	if opts.MinAmount != "" {
		add("amount >= $%d::NUMERIC(20,2)", opts.MinAmount)
	}
	if opts.MaxAmount != "" {
		add("amount <= $%d::NUMERIC(20,2)", opts.MaxAmount)
	}
	if opts.IngestedAfter != nil {
		add("ingested_at >= $%d", *opts.IngestedAfter)
	}
	if opts.IngestedBefore != nil {
		add("ingested_at < $%d", *opts.IngestedBefore)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := p.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + txnColumns + ` FROM transactions` + where + ` ORDER BY ingested_at DESC, id DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	list, err := scanTransactions(rows)
	return list, total, err
}

func (p *PostgresStore) ListByParty(ctx context.Context, party string) ([]*Transaction, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE party_from = $1 OR party_to = $1
		ORDER BY ingested_at ASC, id ASC`, party)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func (p *PostgresStore) ListByInstitution(ctx context.Context, code string) ([]*Transaction, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE institution_from = $1 OR institution_to = $1
		ORDER BY ingested_at ASC, id ASC`, code)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func (p *PostgresStore) OutgoingSince(ctx context.Context, party string, since time.Time) ([]*Transaction, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE party_from = $1 AND ingested_at >= $2
		ORDER BY ingested_at ASC, id ASC`, party, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func (p *PostgresStore) IncomingSince(ctx context.Context, party string, since time.Time) ([]*Transaction, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE party_to = $1 AND ingested_at >= $2
		ORDER BY ingested_at ASC, id ASC`, party, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func (p *PostgresStore) SetExplanation(ctx context.Context, id string, priority Priority, riskFactors []string, explanation string, recommendations []string, at time.Time) error {
	factorsJSON, _ := json.Marshal(riskFactors)
	if riskFactors == nil {
		factorsJSON = []byte("[]")
	}
	recsJSON, _ := json.Marshal(recommendations)
	if recommendations == nil {
		recsJSON = []byte("[]")
	}

	result, err := p.q.ExecContext(ctx, `
		UPDATE transactions SET
			priority = $1, risk_factors = $2, explanation = $3,
			recommendations = $4, explained_at = $5
		WHERE id = $6`,
		string(priority), factorsJSON, explanation, recsJSON, at, id,
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

func (p *PostgresStore) AddNote(ctx context.Context, n *Note) error {
	_, err := p.q.ExecContext(ctx, `
		INSERT INTO transaction_notes (id, transaction_id, note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.TransactionID, n.Note, nullString(n.CreatedBy), n.CreatedAt,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
		// Foreign key violation: no such transaction.
		return ErrNotFound
	}
	return err
}

func (p *PostgresStore) ListNotes(ctx context.Context, transactionID string) ([]*Note, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT id, transaction_id, note, created_by, created_at
		FROM transaction_notes
		WHERE transaction_id = $1
		ORDER BY created_at DESC, id DESC`, transactionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Note
	for rows.Next() {
		n := &Note{}
		var createdBy sql.NullString
		if err := rows.Scan(&n.ID, &n.TransactionID, &n.Note, &createdBy, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.CreatedBy = createdBy.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := p.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count)
	return count, err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (*Transaction, error) {
	t := &Transaction{}
	var (
		occurredAtRaw  sql.NullString
		occurredAt     sql.NullTime
		typ            string
		status         string
		importanceJSON []byte
		scoringError   sql.NullString
		scoredAt       sql.NullTime
		priority       sql.NullString
		factorsJSON    []byte
		explanation    sql.NullString
		recsJSON       []byte
		explainedAt    sql.NullTime
		ingestedBy     sql.NullString
		hour           sql.NullInt64
		dayOfWeek      sql.NullInt64
		date           sql.NullString
	)

	err := s.Scan(
		&t.ID, &occurredAtRaw, &occurredAt, &t.Millis, &typ, &t.Amount,
		&t.PartyFrom, &t.PartyTo, &t.InstitutionFrom, &t.InstitutionTo, &status,
		&t.IsFraud, &t.RiskScore, &t.Confidence, &importanceJSON, &scoringError, &scoredAt,
		&priority, &factorsJSON, &explanation, &recsJSON, &explainedAt,
		&t.IngestedAt, &ingestedBy, &hour, &dayOfWeek, &date,
	)
	if err != nil {
		return nil, err
	}

	t.OccurredAtRaw = occurredAtRaw.String
	t.Type = Type(typ)
	t.Status = Status(status)
	t.ScoringError = scoringError.String
	t.Priority = Priority(priority.String)
	t.Explanation = explanation.String
	t.IngestedBy = ingestedBy.String
	t.Date = date.String
	if occurredAt.Valid {
		t.OccurredAt = &occurredAt.Time
	}
	if scoredAt.Valid {
		t.ScoredAt = &scoredAt.Time
	}
	if explainedAt.Valid {
		t.ExplainedAt = &explainedAt.Time
	}
	if hour.Valid {
		h := int(hour.Int64)
		t.Hour = &h
	}
	if dayOfWeek.Valid {
		d := int(dayOfWeek.Int64)
		t.DayOfWeek = &d
	}
	if len(importanceJSON) > 0 {
		_ = json.Unmarshal(importanceJSON, &t.FeatureImportance)
	}
	if len(factorsJSON) > 0 {
		_ = json.Unmarshal(factorsJSON, &t.RiskFactors)
	}
	if len(recsJSON) > 0 {
		_ = json.Unmarshal(recsJSON, &t.Recommendations)
	}

	return t, nil
}

func scanTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var result []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime converts a nil *time.Time to sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullInt converts a nil *int to sql.NullInt64.
func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
