// Package storage bundles the per-feature stores behind one handle and
// provides the atomic row commit the ingest pipeline depends on: the
// transaction record and every profile it touches land together or not
// at all.
package storage

import (
	"context"

	"github.com/mbd888/fraudsight/internal/profiles"
	"github.com/mbd888/fraudsight/internal/session"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// Store is the composite storage handle.
type Store interface {
	Transactions() transaction.Store
	Profiles() profiles.Store
	Sessions() session.Store

	// CommitRow atomically persists a scored transaction together with the
	// staged client and bank profiles. Returns transaction.ErrDuplicate
	// when the record already exists; nothing is written in that case.
	CommitRow(ctx context.Context, t *transaction.Transaction, clients []*profiles.Client, banks []*profiles.Bank) error

	Ping(ctx context.Context) error
	Close() error
}
