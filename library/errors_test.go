package library

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("x"), KindUnknown},
		{"sentinel", ErrLastAdmin, KindConflict},
		{"wrapped", fmt.Errorf("book 3: %w", ErrNoCopiesAvailable), KindConflict},
		{"not found", fmt.Errorf("ctx: %w", ErrLoanNotFound), KindNotFound},
		{"invalid", invalidInput("title is required"), KindInvalidInput},
		{"store", storeFailure(errors.New("disk I/O error")), KindStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStoreFailureKeepsDomainErrors(t *testing.T) {
	err := storeFailure(fmt.Errorf("user 2: %w", ErrHasOpenLoans))
	if !errors.Is(err, ErrHasOpenLoans) || KindOf(err) != KindConflict {
		t.Fatalf("domain error rewrapped: %v", err)
	}

	cause := errors.New("database is locked")
	err = storeFailure(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
	if storeFailure(nil) != nil {
		t.Fatalf("nil became an error")
	}
}

// failingStore fails every transaction, standing in for a broken database file.
type failingStore struct{ err error }

func (f failingStore) Update(context.Context, func(Tx) error) error { return f.err }
func (f failingStore) View(context.Context, func(Tx) error) error   { return f.err }
func (f failingStore) Close() error                                  { return nil }

func TestStoreFailureSurfacesAsStoreUnavailable(t *testing.T) {
	_, err := NewLibraryManager(context.Background(), failingStore{err: errors.New("disk full")})
	if KindOf(err) != KindStoreUnavailable {
		t.Fatalf("bootstrap: want store unavailable, got %v", err)
	}

	logger, _ := test.NewNullLogger()
	mgr := &LibraryManager{
		store:  failingStore{err: errors.New("disk full")},
		log:    logger,
		hasher: BcryptHasher{Cost: 4},
		now:    time.Now,
	}
	if _, err := mgr.Borrow(context.Background(), 1, 1); KindOf(err) != KindStoreUnavailable {
		t.Fatalf("borrow: want store unavailable, got %v", err)
	}
	if _, err := mgr.ListBooks(context.Background()); KindOf(err) != KindStoreUnavailable {
		t.Fatalf("list: want store unavailable, got %v", err)
	}
}
