package insights

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PostgresStore persists daily insights in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed insight store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const insightColumns = `id, insight_date, total_transactions, fraud_count,
		high_priority_count, fraud_amount::TEXT, top_risk_clients, summary, created_at`

func (p *PostgresStore) Get(ctx context.Context, date string) (*Insight, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+insightColumns+` FROM daily_insights WHERE insight_date = $1`, date)

	ins, err := scanInsight(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ins, err
}

func (p *PostgresStore) Put(ctx context.Context, ins *Insight) error {
	clientsJSON, _ := json.Marshal(ins.TopRiskClients)
	if ins.TopRiskClients == nil {
		clientsJSON = []byte("[]")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO daily_insights (
			id, insight_date, total_transactions, fraud_count,
			high_priority_count, fraud_amount, top_risk_clients, summary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::NUMERIC(20,2), $7, $8, $9)
		ON CONFLICT (insight_date) DO UPDATE SET
			total_transactions = EXCLUDED.total_transactions,
			fraud_count = EXCLUDED.fraud_count,
			high_priority_count = EXCLUDED.high_priority_count,
			fraud_amount = EXCLUDED.fraud_amount,
			top_risk_clients = EXCLUDED.top_risk_clients,
			summary = EXCLUDED.summary`,
		ins.ID, ins.Date, ins.TotalTransactions, ins.FraudCount,
		ins.HighPriorityCount, ins.FraudAmount, clientsJSON, ins.Summary, ins.CreatedAt,
	)
	return err
}

func (p *PostgresStore) List(ctx context.Context, limit int) ([]*Insight, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+insightColumns+`
		FROM daily_insights
		ORDER BY insight_date DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Insight
	for rows.Next() {
		ins, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ins)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInsight(s scanner) (*Insight, error) {
	ins := &Insight{}
	var clientsJSON []byte

	err := s.Scan(
		&ins.ID, &ins.Date, &ins.TotalTransactions, &ins.FraudCount,
		&ins.HighPriorityCount, &ins.FraudAmount, &clientsJSON, &ins.Summary, &ins.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(clientsJSON) > 0 {
		_ = json.Unmarshal(clientsJSON, &ins.TopRiskClients)
	}
	return ins, nil
}
