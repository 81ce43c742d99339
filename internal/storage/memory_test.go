package storage

import (
	"context"
	"testing"
	"time"

	"github.com/mbd888/fraudsight/internal/profiles"
	"github.com/mbd888/fraudsight/internal/transaction"
)

func TestMemory_CommitRow(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	now := time.Now()

	txn := &transaction.Transaction{
		ID: "TRX-1", Type: transaction.TypeTransfer, Amount: "100.00",
		PartyFrom: "C1", PartyTo: "C2",
		InstitutionFrom: "B01", InstitutionTo: "B02",
		Status: transaction.StatusOK, IngestedAt: now,
	}
	client := profiles.NewClient("C1", now)
	client.Apply(txn)
	bank := profiles.NewBank("B01", now)
	bank.Apply(txn)

	if err := store.CommitRow(ctx, txn, []*profiles.Client{client}, []*profiles.Bank{bank}); err != nil {
		t.Fatalf("CommitRow failed: %v", err)
	}

	got, err := store.Transactions().Get(ctx, "TRX-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Amount != "100.00" {
		t.Errorf("Unexpected amount %s", got.Amount)
	}

	c, err := store.Profiles().GetClient(ctx, "C1")
	if err != nil {
		t.Fatalf("GetClient failed: %v", err)
	}
	if c.TxnCount != 1 {
		t.Errorf("Expected profile committed with the row, got count %d", c.TxnCount)
	}
}

func TestMemory_CommitRowDuplicate(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	now := time.Now()

	txn := &transaction.Transaction{
		ID: "TRX-1", Type: transaction.TypeTransfer, Amount: "100.00",
		PartyFrom: "C1", PartyTo: "C2",
		InstitutionFrom: "B01", InstitutionTo: "B02",
		Status: transaction.StatusOK, IngestedAt: now,
	}

	if err := store.CommitRow(ctx, txn, nil, nil); err != nil {
		t.Fatalf("CommitRow failed: %v", err)
	}

	// Second commit with a staged profile must write nothing.
	client := profiles.NewClient("C9", now)
	client.Apply(txn)
	err := store.CommitRow(ctx, txn, []*profiles.Client{client}, nil)
	if err != transaction.ErrDuplicate {
		t.Fatalf("Expected ErrDuplicate, got %v", err)
	}
	if _, err := store.Profiles().GetClient(ctx, "C9"); err != profiles.ErrNotFound {
		t.Error("Profile must not be written when the transaction is a duplicate")
	}
}
