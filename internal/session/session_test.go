package session

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	s := New("upload.csv", "analyst1", 1024)
	if !strings.HasPrefix(s.ID, "ses_") {
		t.Errorf("Expected ses_ prefix, got %s", s.ID)
	}
	if s.Status != StatusProcessing {
		t.Errorf("Expected PROCESSING, got %s", s.Status)
	}
	if s.Terminal() {
		t.Error("New session must not be terminal")
	}
}

func TestStateMachine_TerminalOnce(t *testing.T) {
	s := New("upload.csv", "", 0)
	now := time.Now()

	if err := s.Complete(now); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if s.Status != StatusCompleted || s.CompletedAt == nil {
		t.Error("Complete did not transition the session")
	}

	if err := s.Complete(now); err != ErrTerminal {
		t.Errorf("Expected ErrTerminal on second Complete, got %v", err)
	}
	if err := s.Fail("late failure", now); err != ErrTerminal {
		t.Errorf("Expected ErrTerminal on Fail after Complete, got %v", err)
	}
}

func TestStateMachine_Fail(t *testing.T) {
	s := New("upload.csv", "", 0)
	if err := s.Fail("missing columns", time.Now()); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if s.Status != StatusFailed || s.ErrorMessage != "missing columns" {
		t.Error("Fail did not record the reason")
	}
	if err := s.Complete(time.Now()); err != ErrTerminal {
		t.Errorf("Expected ErrTerminal after Fail, got %v", err)
	}
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := New("a.csv", "", 0)
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	s.ProcessedRows = 10
	if err := store.Update(ctx, s); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ProcessedRows != 10 {
		t.Errorf("Expected 10 processed rows, got %d", got.ProcessedRows)
	}

	if err := store.Update(ctx, New("ghost.csv", "", 0)); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "nope"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := New("first.csv", "", 0)
	second := New("second.csv", "", 0)
	_ = store.Create(ctx, first)
	_ = store.Create(ctx, second)

	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Errorf("Expected newest first, got %v", list)
	}

	limited, _ := store.List(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("Expected limit respected, got %d", len(limited))
	}
}
