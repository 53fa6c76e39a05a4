package library

import "time"

// LoanPeriod is how long a borrowed copy may be kept before it is due.
const LoanPeriod = 14 * 24 * time.Hour

// Role tags a user account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is a stored account. The digest is never serialized.
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	PasswordDigest string `json:"-"`
	Role           Role   `json:"role"`
}

// Identity is what a successful authentication yields, and what account listings return.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Book is a catalog entry with its copy counts.
// Year is nil when unknown; ISBN is empty when unknown.
type Book struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	ISBN         string `json:"isbn,omitempty"`
	Year         *int   `json:"year,omitempty"`
	QtyTotal     int    `json:"qty_total"`
	QtyAvailable int    `json:"qty_available"`
}

// Loan is one borrow event. ReturnedAt is nil while the loan is open.
type Loan struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	BookID     int64      `json:"book_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

// Open reports whether the loan has not been returned yet.
func (l *Loan) Open() bool { return l.ReturnedAt == nil }

// LoanRecord is the admin view of a loan, joined with the borrower and the book.
// Username or BookTitle are empty when the referenced row has since been deleted.
type LoanRecord struct {
	LoanID     int64      `json:"loan_id"`
	Username   string     `json:"username"`
	BookTitle  string     `json:"book_title"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

// MemberLoan is the borrower's own view of a loan.
type MemberLoan struct {
	LoanID     int64      `json:"loan_id"`
	BookTitle  string     `json:"book_title"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

// BookInput carries the fields accepted when adding a book.
type BookInput struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
	ISBN   string `json:"isbn"`
	Year   *int   `json:"year"`
	Qty    int    `json:"qty" validate:"gt=0"`
}

// BookUpdate carries every field of a book; an update overwrites all of them.
type BookUpdate struct {
	Title        string `json:"title" validate:"required"`
	Author       string `json:"author" validate:"required"`
	ISBN         string `json:"isbn"`
	Year         *int   `json:"year"`
	QtyTotal     int    `json:"qty_total" validate:"gte=0"`
	QtyAvailable int    `json:"qty_available" validate:"gte=0,ltefield=QtyTotal"`
}

type credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
