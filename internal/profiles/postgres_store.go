package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mbd888/fraudsight/internal/transaction"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	q querier
}

// NewPostgresStore creates a new PostgreSQL-backed profile store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

// WithTx returns a copy of the store bound to tx.
func (p *PostgresStore) WithTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

const clientColumns = `party_id, total_sent, total_received, amount_sent::TEXT, amount_received::TEXT,
		txn_count, total_amount::TEXT, avg_amount::TEXT, min_amount::TEXT, max_amount::TEXT,
		most_common_type, unique_institutions, unique_counterparties, self_transfers, failed_sent,
		fraud_count, fraud_rate, risk_level,
		most_active_hour, most_active_day, weekend_count, night_count,
		assessment, assessment_risk_level, behavioral_patterns, assessed_at,
		first_activity, last_activity, created_at, updated_at, state`

func (p *PostgresStore) GetClient(ctx context.Context, partyID string) (*Client, error) {
	row := p.q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM client_profiles WHERE party_id = $1`, partyID)

	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

func (p *PostgresStore) PutClient(ctx context.Context, c *Client) error {
	stateJSON, err := json.Marshal(c.State)
	if err != nil {
		return fmt.Errorf("marshal client state: %w", err)
	}
	patternsJSON, _ := json.Marshal(c.BehavioralPatterns)
	if c.BehavioralPatterns == nil {
		patternsJSON = []byte("[]")
	}

	_, err = p.q.ExecContext(ctx, `
		INSERT INTO client_profiles (
			party_id, total_sent, total_received, amount_sent, amount_received,
			txn_count, total_amount, avg_amount, min_amount, max_amount,
			most_common_type, unique_institutions, unique_counterparties, self_transfers, failed_sent,
			fraud_count, fraud_rate, risk_level,
			most_active_hour, most_active_day, weekend_count, night_count,
			assessment, assessment_risk_level, behavioral_patterns, assessed_at,
			first_activity, last_activity, created_at, updated_at, state
		) VALUES (
			$1, $2, $3, $4::NUMERIC(20,2), $5::NUMERIC(20,2),
			$6, $7::NUMERIC(20,2), $8::NUMERIC(20,2), $9::NUMERIC(20,2), $10::NUMERIC(20,2),
			$11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22,
			$23, $24, $25, $26,
			$27, $28, $29, $30, $31
		)
		ON CONFLICT (party_id) DO UPDATE SET
			total_sent = EXCLUDED.total_sent,
			total_received = EXCLUDED.total_received,
			amount_sent = EXCLUDED.amount_sent,
			amount_received = EXCLUDED.amount_received,
			txn_count = EXCLUDED.txn_count,
			total_amount = EXCLUDED.total_amount,
			avg_amount = EXCLUDED.avg_amount,
			min_amount = EXCLUDED.min_amount,
			max_amount = EXCLUDED.max_amount,
			most_common_type = EXCLUDED.most_common_type,
			unique_institutions = EXCLUDED.unique_institutions,
			unique_counterparties = EXCLUDED.unique_counterparties,
			self_transfers = EXCLUDED.self_transfers,
			failed_sent = EXCLUDED.failed_sent,
			fraud_count = EXCLUDED.fraud_count,
			fraud_rate = EXCLUDED.fraud_rate,
			risk_level = EXCLUDED.risk_level,
			most_active_hour = EXCLUDED.most_active_hour,
			most_active_day = EXCLUDED.most_active_day,
			weekend_count = EXCLUDED.weekend_count,
			night_count = EXCLUDED.night_count,
			assessment = EXCLUDED.assessment,
			assessment_risk_level = EXCLUDED.assessment_risk_level,
			behavioral_patterns = EXCLUDED.behavioral_patterns,
			assessed_at = EXCLUDED.assessed_at,
			first_activity = EXCLUDED.first_activity,
			last_activity = EXCLUDED.last_activity,
			updated_at = EXCLUDED.updated_at,
			state = EXCLUDED.state`,
		c.PartyID, c.TotalSent, c.TotalReceived, c.AmountSent, c.AmountReceived,
		c.TxnCount, c.TotalAmount, c.AvgAmount, c.MinAmount, c.MaxAmount,
		nullString(string(c.MostCommonType)), c.UniqueInstitutions, c.UniqueCounterparties, c.SelfTransfers, c.FailedSent,
		c.FraudCount, c.FraudRate, string(c.RiskLevel),
		nullIntPtr(c.MostActiveHour), nullIntPtr(c.MostActiveDay), c.WeekendCount, c.NightCount,
		nullString(c.Assessment), nullString(c.AssessmentRiskLevel), patternsJSON, nullTimePtr(c.AssessedAt),
		nullTimePtr(c.FirstActivity), nullTimePtr(c.LastActivity), c.CreatedAt, c.UpdatedAt, stateJSON,
	)
	return err
}

func (p *PostgresStore) ListClients(ctx context.Context, opts ClientListOptions) ([]*Client, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if opts.RiskLevel != "" {
		args = append(args, string(opts.RiskLevel))
		conds = append(conds, fmt.Sprintf("risk_level = $%d", len(args)))
	}
	if opts.MinFraudRate > 0 {
		args = append(args, opts.MinFraudRate)
		conds = append(conds, fmt.Sprintf("fraud_rate >= $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := p.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM client_profiles`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + clientColumns + ` FROM client_profiles` + where +
		` ORDER BY fraud_rate DESC, party_id ASC`
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

	var result []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, c)
	}
	return result, total, rows.Err()
}

const bankColumns = `code, txn_count, total_amount::TEXT, unique_clients,
		fraud_count, high_priority_count, created_at, updated_at, state`

func (p *PostgresStore) GetBank(ctx context.Context, code string) (*Bank, error) {
	row := p.q.QueryRowContext(ctx,
		`SELECT `+bankColumns+` FROM bank_profiles WHERE code = $1`, code)

	b, err := scanBank(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return b, err
}

func (p *PostgresStore) PutBank(ctx context.Context, b *Bank) error {
	stateJSON, err := json.Marshal(b.State)
	if err != nil {
		return fmt.Errorf("marshal bank state: %w", err)
	}

	_, err = p.q.ExecContext(ctx, `
		INSERT INTO bank_profiles (
			code, txn_count, total_amount, unique_clients,
			fraud_count, high_priority_count, created_at, updated_at, state
		) VALUES ($1, $2, $3::NUMERIC(20,2), $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			txn_count = EXCLUDED.txn_count,
			total_amount = EXCLUDED.total_amount,
			unique_clients = EXCLUDED.unique_clients,
			fraud_count = EXCLUDED.fraud_count,
			high_priority_count = EXCLUDED.high_priority_count,
			updated_at = EXCLUDED.updated_at,
			state = EXCLUDED.state`,
		b.Code, b.TxnCount, b.TotalAmount, b.UniqueClients,
		b.FraudCount, b.HighPriorityCount, b.CreatedAt, b.UpdatedAt, stateJSON,
	)
	return err
}

func (p *PostgresStore) ListBanks(ctx context.Context) ([]*Bank, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT `+bankColumns+` FROM bank_profiles ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Bank
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClient(s scanner) (*Client, error) {
	c := &Client{}
	var (
		mostCommonType      sql.NullString
		riskLevel           string
		mostActiveHour      sql.NullInt64
		mostActiveDay       sql.NullInt64
		assessment          sql.NullString
		assessmentRiskLevel sql.NullString
		patternsJSON        []byte
		assessedAt          sql.NullTime
		firstActivity       sql.NullTime
		lastActivity        sql.NullTime
		stateJSON           []byte
	)

	err := s.Scan(
		&c.PartyID, &c.TotalSent, &c.TotalReceived, &c.AmountSent, &c.AmountReceived,
		&c.TxnCount, &c.TotalAmount, &c.AvgAmount, &c.MinAmount, &c.MaxAmount,
		&mostCommonType, &c.UniqueInstitutions, &c.UniqueCounterparties, &c.SelfTransfers, &c.FailedSent,
		&c.FraudCount, &c.FraudRate, &riskLevel,
		&mostActiveHour, &mostActiveDay, &c.WeekendCount, &c.NightCount,
		&assessment, &assessmentRiskLevel, &patternsJSON, &assessedAt,
		&firstActivity, &lastActivity, &c.CreatedAt, &c.UpdatedAt, &stateJSON,
	)
	if err != nil {
		return nil, err
	}

	c.MostCommonType = typeFromNull(mostCommonType)
	c.RiskLevel = RiskLevel(riskLevel)
	c.Assessment = assessment.String
	c.AssessmentRiskLevel = assessmentRiskLevel.String
	if mostActiveHour.Valid {
		h := int(mostActiveHour.Int64)
		c.MostActiveHour = &h
	}
	if mostActiveDay.Valid {
		d := int(mostActiveDay.Int64)
		c.MostActiveDay = &d
	}
	if assessedAt.Valid {
		c.AssessedAt = &assessedAt.Time
	}
	if firstActivity.Valid {
		c.FirstActivity = &firstActivity.Time
	}
	if lastActivity.Valid {
		c.LastActivity = &lastActivity.Time
	}
	if len(patternsJSON) > 0 {
		_ = json.Unmarshal(patternsJSON, &c.BehavioralPatterns)
	}

	c.State = newClientState()
	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &c.State); err != nil {
			return nil, fmt.Errorf("unmarshal client state: %w", err)
		}
	}

	return c, nil
}

func scanBank(s scanner) (*Bank, error) {
	b := &Bank{}
	var stateJSON []byte

	err := s.Scan(
		&b.Code, &b.TxnCount, &b.TotalAmount, &b.UniqueClients,
		&b.FraudCount, &b.HighPriorityCount, &b.CreatedAt, &b.UpdatedAt, &stateJSON,
	)
	if err != nil {
		return nil, err
	}

	b.State = BankState{Clients: map[string]bool{}}
	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &b.State); err != nil {
			return nil, fmt.Errorf("unmarshal bank state: %w", err)
		}
	}

	return b, nil
}

func typeFromNull(ns sql.NullString) transaction.Type {
	if ns.Valid {
		return transaction.Type(ns.String)
	}
	return ""
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullIntPtr(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
