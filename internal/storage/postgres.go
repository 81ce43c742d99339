package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mbd888/fraudsight/internal/profiles"
	"github.com/mbd888/fraudsight/internal/session"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// Postgres is the PostgreSQL-backed composite.
type Postgres struct {
	db       *sql.DB
	txns     *transaction.PostgresStore
	profiles *profiles.PostgresStore
	sessions *session.PostgresStore
}

// OpenPostgres connects to PostgreSQL and wires up the stores.
func OpenPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewPostgres(db), nil
}

// NewPostgres wires the stores over an existing connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db:       db,
		txns:     transaction.NewPostgresStore(db),
		profiles: profiles.NewPostgresStore(db),
		sessions: session.NewPostgresStore(db),
	}
}

// DB exposes the underlying pool for health checks and metrics sampling.
func (p *Postgres) DB() *sql.DB { return p.db }

func (p *Postgres) Transactions() transaction.Store { return p.txns }
func (p *Postgres) Profiles() profiles.Store        { return p.profiles }
func (p *Postgres) Sessions() session.Store         { return p.sessions }

func (p *Postgres) CommitRow(ctx context.Context, t *transaction.Transaction, clients []*profiles.Client, banks []*profiles.Bank) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := p.txns.WithTx(tx).Create(ctx, t); err != nil {
		return err
	}

	txProfiles := p.profiles.WithTx(tx)
	for _, c := range clients {
		if err := txProfiles.PutClient(ctx, c); err != nil {
			return fmt.Errorf("commit client profile %s: %w", c.PartyID, err)
		}
	}
	for _, b := range banks {
		if err := txProfiles.PutBank(ctx, b); err != nil {
			return fmt.Errorf("commit bank profile %s: %w", b.Code, err)
		}
	}

	return tx.Commit()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
