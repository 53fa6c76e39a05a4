package library

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory, for development and testing.
// Each Update works on a copy of the state that replaces the original only on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	users map[int64]User
	books map[int64]Book
	loans map[int64]Loan

	userIDCounter int64
	bookIDCounter int64
	loanIDCounter int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		users: make(map[int64]User),
		books: make(map[int64]Book),
		loans: make(map[int64]Loan),
	}}
}

func (s *memState) clone() *memState {
	c := *s
	c.users = make(map[int64]User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	c.books = make(map[int64]Book, len(s.books))
	for k, v := range s.books {
		c.books[k] = v
	}
	c.loans = make(map[int64]Loan, len(s.loans))
	for k, v := range s.loans {
		c.loans[k] = v
	}
	return &c
}

// Update runs fn against a copy of the state and keeps the copy if fn succeeds.
func (m *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	m.state = next
	return nil
}

// View runs fn against a throwaway copy of the state.
func (m *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state.clone())
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

var _ Tx = (*memState)(nil)

// --- users ---

func (s *memState) InsertUser(u *User) (int64, error) {
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return 0, fmt.Errorf("%q: %w", u.Username, ErrDuplicateUsername)
		}
	}
	s.userIDCounter++
	stored := *u
	stored.ID = s.userIDCounter
	s.users[stored.ID] = stored
	return stored.ID, nil
}

func (s *memState) UserByID(id int64) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *memState) UserByUsername(username string) (*User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memState) ListUsers() ([]Identity, error) {
	users := make([]Identity, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, Identity{ID: u.ID, Username: u.Username, Role: u.Role})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Username != users[j].Username {
			return users[i].Username < users[j].Username
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (s *memState) CountAdmins() (int, error) {
	n := 0
	for _, u := range s.users {
		if u.Role == RoleAdmin {
			n++
		}
	}
	return n, nil
}

func (s *memState) DeleteUser(id int64) error {
	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

// --- books ---

func copyBook(b Book) *Book {
	if b.Year != nil {
		y := *b.Year
		b.Year = &y
	}
	return &b
}

func (s *memState) InsertBook(b *Book) (int64, error) {
	s.bookIDCounter++
	stored := *copyBook(*b)
	stored.ID = s.bookIDCounter
	s.books[stored.ID] = stored
	return stored.ID, nil
}

func (s *memState) BookByID(id int64) (*Book, error) {
	b, ok := s.books[id]
	if !ok {
		return nil, ErrBookNotFound
	}
	return copyBook(b), nil
}

func (s *memState) UpdateBook(b *Book) error {
	if _, ok := s.books[b.ID]; !ok {
		return ErrBookNotFound
	}
	s.books[b.ID] = *copyBook(*b)
	return nil
}

func (s *memState) DeleteBook(id int64) error {
	if _, ok := s.books[id]; !ok {
		return ErrBookNotFound
	}
	delete(s.books, id)
	return nil
}

func (s *memState) sortedBooks(keep func(Book) bool) []*Book {
	books := []*Book{}
	for _, b := range s.books {
		if keep(b) {
			books = append(books, copyBook(b))
		}
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})
	return books
}

func (s *memState) ListBooks() ([]*Book, error) {
	return s.sortedBooks(func(Book) bool { return true }), nil
}

func (s *memState) SearchBooks(keyword string) ([]*Book, error) {
	kw := foldCase(keyword)
	return s.sortedBooks(func(b Book) bool {
		return strings.Contains(foldCase(b.Title), kw) ||
			strings.Contains(foldCase(b.Author), kw) ||
			strings.Contains(foldCase(b.ISBN), kw)
	}), nil
}

func (s *memState) AdjustAvailable(bookID int64, delta int) (bool, error) {
	b, ok := s.books[bookID]
	if !ok {
		return false, nil
	}
	next := b.QtyAvailable + delta
	if next < 0 || next > b.QtyTotal {
		return false, nil
	}
	b.QtyAvailable = next
	s.books[bookID] = b
	return true, nil
}

// --- loans ---

func (s *memState) InsertLoan(l *Loan) (int64, error) {
	s.loanIDCounter++
	stored := *l
	stored.ID = s.loanIDCounter
	stored.BorrowedAt = stored.BorrowedAt.UTC()
	stored.DueAt = stored.DueAt.UTC()
	s.loans[stored.ID] = stored
	return stored.ID, nil
}

func (s *memState) LoanByID(id int64) (*Loan, error) {
	l, ok := s.loans[id]
	if !ok {
		return nil, ErrLoanNotFound
	}
	return &l, nil
}

func (s *memState) CloseLoan(id int64, at time.Time) error {
	l, ok := s.loans[id]
	if !ok {
		return ErrLoanNotFound
	}
	if l.ReturnedAt != nil {
		return ErrAlreadyReturned
	}
	returned := at.UTC()
	l.ReturnedAt = &returned
	s.loans[id] = l
	return nil
}

func (s *memState) countOpen(match func(Loan) bool) int {
	n := 0
	for _, l := range s.loans {
		if l.ReturnedAt == nil && match(l) {
			n++
		}
	}
	return n
}

func (s *memState) CountOpenLoansByUser(userID int64) (int, error) {
	return s.countOpen(func(l Loan) bool { return l.UserID == userID }), nil
}

func (s *memState) CountOpenLoansByBook(bookID int64) (int, error) {
	return s.countOpen(func(l Loan) bool { return l.BookID == bookID }), nil
}

// loansNewestFirst orders by borrow time descending, newest id first on ties.
func (s *memState) loansNewestFirst(match func(Loan) bool) []Loan {
	var loans []Loan
	for _, l := range s.loans {
		if match(l) {
			loans = append(loans, l)
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].BorrowedAt.Equal(loans[j].BorrowedAt) {
			return loans[i].BorrowedAt.After(loans[j].BorrowedAt)
		}
		return loans[i].ID > loans[j].ID
	})
	return loans
}

func (s *memState) ListLoans() ([]LoanRecord, error) {
	records := []LoanRecord{}
	for _, l := range s.loansNewestFirst(func(Loan) bool { return true }) {
		records = append(records, LoanRecord{
			LoanID:     l.ID,
			Username:   s.users[l.UserID].Username,
			BookTitle:  s.books[l.BookID].Title,
			BorrowedAt: l.BorrowedAt,
			DueAt:      l.DueAt,
			ReturnedAt: l.ReturnedAt,
		})
	}
	return records, nil
}

func (s *memState) ListLoansByUser(userID int64) ([]MemberLoan, error) {
	records := []MemberLoan{}
	for _, l := range s.loansNewestFirst(func(l Loan) bool { return l.UserID == userID }) {
		records = append(records, MemberLoan{
			LoanID:     l.ID,
			BookTitle:  s.books[l.BookID].Title,
			BorrowedAt: l.BorrowedAt,
			DueAt:      l.DueAt,
			ReturnedAt: l.ReturnedAt,
		})
	}
	return records, nil
}
