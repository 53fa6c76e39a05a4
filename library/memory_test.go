package library

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreDiscardsFailedUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Update(ctx, func(tx Tx) error {
		if _, err := tx.InsertBook(&Book{Title: "Dune", Author: "Herbert", QtyTotal: 1, QtyAvailable: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	_ = store.View(ctx, func(tx Tx) error {
		books, _ := tx.ListBooks()
		if len(books) != 0 {
			t.Errorf("failed update leaked %d books", len(books))
		}
		// Writes inside View never reach the store.
		_, err := tx.InsertBook(&Book{Title: "Emma", Author: "Austen", QtyTotal: 1, QtyAvailable: 1})
		return err
	})
	_ = store.View(ctx, func(tx Tx) error {
		if books, _ := tx.ListBooks(); len(books) != 0 {
			t.Errorf("view persisted %d books", len(books))
		}
		return nil
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	year := 1815

	var id int64
	_ = store.Update(ctx, func(tx Tx) error {
		var err error
		id, err = tx.InsertBook(&Book{Title: "Emma", Author: "Austen", Year: &year, QtyTotal: 1, QtyAvailable: 1})
		return err
	})
	year = 2000

	_ = store.View(ctx, func(tx Tx) error {
		b, err := tx.BookByID(id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if *b.Year != 1815 {
			t.Errorf("stored year aliased caller memory: %d", *b.Year)
		}
		*b.Year = 1
		again, _ := tx.BookByID(id)
		if *again.Year != 1815 {
			t.Errorf("returned book aliased stored year")
		}
		return nil
	})
}

func TestMemoryStoreHonorsCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.Update(ctx, func(Tx) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("cancelled update: err=%v called=%v", err, called)
	}
}
