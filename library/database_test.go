package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lib.db")
	ctx := context.Background()

	mgr, err := Open(ctx, path, WithHasher(BcryptHasher{Cost: 4}))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	year := 1965
	bookID, err := mgr.AddBook(ctx, BookInput{Title: "Dune", Author: "Herbert", Year: &year, Qty: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	mgr.Close()

	// Reopening re-runs migrations and bootstrap; both must be no-ops now.
	mgr, err = Open(ctx, path, WithHasher(BcryptHasher{Cost: 4}))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer mgr.Close()

	b, err := mgr.GetBook(ctx, bookID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Year == nil || *b.Year != 1965 || b.QtyAvailable != 2 {
		t.Fatalf("book not persisted: %+v", b)
	}
	users, _ := mgr.ListUsers(ctx)
	if len(users) != 1 {
		t.Fatalf("want only the seeded admin, got %d users", len(users))
	}
}

func TestUniqueUsernameMapsToDuplicate(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	insert := func() error {
		return db.Update(ctx, func(tx Tx) error {
			_, err := tx.InsertUser(&User{Username: "alice", PasswordDigest: "x", Role: RoleUser})
			return err
		})
	}
	if err := insert(); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert(); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("want duplicate username, got %v", err)
	}
}

// TestUpdateRollsBackOnError shows that a failing step undoes earlier writes in the same transaction.
func TestUpdateRollsBackOnError(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	var bookID int64
	err := db.Update(ctx, func(tx Tx) error {
		var err error
		bookID, err = tx.InsertBook(&Book{Title: "Dune", Author: "Herbert", QtyTotal: 1, QtyAvailable: 1})
		return err
	})
	if err != nil {
		t.Fatalf("insert book: %v", err)
	}

	boom := errors.New("boom")
	err = db.Update(ctx, func(tx Tx) error {
		now := time.Now()
		if _, err := tx.InsertLoan(&Loan{UserID: 1, BookID: bookID, BorrowedAt: now, DueAt: now.Add(LoanPeriod)}); err != nil {
			return err
		}
		if _, err := tx.AdjustAvailable(bookID, -1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	err = db.View(ctx, func(tx Tx) error {
		b, err := tx.BookByID(bookID)
		if err != nil {
			return err
		}
		if b.QtyAvailable != 1 {
			t.Errorf("available = %d after rollback, want 1", b.QtyAvailable)
		}
		open, err := tx.CountOpenLoansByBook(bookID)
		if err != nil {
			return err
		}
		if open != 0 {
			t.Errorf("open loans = %d after rollback, want 0", open)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestAdjustAvailableStaysInBounds(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	err := db.Update(ctx, func(tx Tx) error {
		id, err := tx.InsertBook(&Book{Title: "Dune", Author: "Herbert", QtyTotal: 1, QtyAvailable: 1})
		if err != nil {
			return err
		}

		tests := []struct {
			delta int
			want  bool
		}{
			{+1, false},
			{-1, true},
			{-1, false},
			{+1, true},
		}
		for i, tt := range tests {
			changed, err := tx.AdjustAvailable(id, tt.delta)
			if err != nil {
				return err
			}
			if changed != tt.want {
				t.Errorf("step %d: AdjustAvailable(%+d) = %v, want %v", i, tt.delta, changed, tt.want)
			}
		}
		if changed, _ := tx.AdjustAvailable(9999, -1); changed {
			t.Errorf("missing book reported a change")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	err := db.Update(ctx, func(tx Tx) error {
		for _, title := range []string{"snake_case", "snakeXcase", `back\slash`} {
			if _, err := tx.InsertBook(&Book{Title: title, Author: "A", QtyTotal: 1, QtyAvailable: 1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		keyword string
		want    int
	}{
		{"_", 1},
		{"snake_", 1},
		{"SNAKE", 2},
		{`\`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			var got []*Book
			err := db.View(ctx, func(tx Tx) error {
				var err error
				got, err = tx.SearchBooks(tt.keyword)
				return err
			})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("SearchBooks(%q) returned %d rows, want %d", tt.keyword, len(got), tt.want)
			}
		})
	}
}
