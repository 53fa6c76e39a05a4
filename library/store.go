package library

import (
	"context"
	"time"
)

// Store is the persistence handle the LibraryManager is built on.
// Update runs fn in a read-write transaction that commits only when fn returns nil;
// View runs fn against a consistent snapshot and never commits.
type Store interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Tx is the set of record operations available inside a transaction.
// Lookups by id return ErrUserNotFound, ErrBookNotFound or ErrLoanNotFound when the row is absent.
type Tx interface {
	InsertUser(u *User) (int64, error)
	UserByID(id int64) (*User, error)
	UserByUsername(username string) (*User, error)
	ListUsers() ([]Identity, error)
	CountAdmins() (int, error)
	DeleteUser(id int64) error

	InsertBook(b *Book) (int64, error)
	BookByID(id int64) (*Book, error)
	UpdateBook(b *Book) error
	DeleteBook(id int64) error
	ListBooks() ([]*Book, error)
	SearchBooks(keyword string) ([]*Book, error)
	// AdjustAvailable adds delta to qty_available, keeping it within [0, qty_total].
	// It reports whether the count changed.
	AdjustAvailable(bookID int64, delta int) (bool, error)

	InsertLoan(l *Loan) (int64, error)
	LoanByID(id int64) (*Loan, error)
	CloseLoan(id int64, at time.Time) error
	CountOpenLoansByUser(userID int64) (int, error)
	CountOpenLoansByBook(bookID int64) (int, error)
	ListLoans() ([]LoanRecord, error)
	ListLoansByUser(userID int64) ([]MemberLoan, error)
}
