package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Database is the SQLite-backed Store.
type Database struct {
	db *sql.DB

	insertUserStmt *sql.Stmt
	insertBookStmt *sql.Stmt
	insertLoanStmt *sql.Stmt
}

var _ Store = (*Database)(nil)

// driverName is go-sqlite3 with a fold(text) function that lower-cases full
// Unicode, so search matches the same rows as the in-memory store.
const driverName = "sqlite3_lms"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", foldCase, true)
		},
	})
}

// foldCase is the case folding used by book search in every store.
func foldCase(s string) string { return strings.ToLower(s) }

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Writers take the lock at BEGIN so two processes cannot interleave a borrow.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", dbPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	for _, stmt := range []*sql.Stmt{d.insertUserStmt, d.insertBookStmt, d.insertLoanStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return d.db.Close()
}

// Update runs fn inside a write transaction.
func (d *Database) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{ctx: ctx, tx: tx, d: d}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn inside a transaction that is always rolled back.
func (d *Database) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	return fn(&sqlTx{ctx: ctx, tx: tx, d: d})
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL lets readers proceed while a borrow is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Loans keep plain user/book ids: the history outlives deleted users and books.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password_digest TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'user' CHECK(role IN ('admin','user'))
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL DEFAULT '',
            year INTEGER,
            qty_total INTEGER NOT NULL CHECK(qty_total >= 0),
            qty_available INTEGER NOT NULL CHECK(qty_available >= 0 AND qty_available <= qty_total)
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            book_id INTEGER NOT NULL,
            borrowed_at DATETIME NOT NULL,
            due_at DATETIME NOT NULL,
            returned_at DATETIME
        );`,
		`CREATE INDEX IF NOT EXISTS idx_loans_user ON loans(user_id, returned_at);`,
		`CREATE INDEX IF NOT EXISTS idx_loans_book ON loans(book_id, returned_at);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.insertUserStmt, err = d.db.Prepare(`INSERT INTO users(username,password_digest,role) VALUES(?,?,?)`); err != nil {
		return err
	}
	if d.insertBookStmt, err = d.db.Prepare(`INSERT INTO books(title,author,isbn,year,qty_total,qty_available) VALUES(?,?,?,?,?,?)`); err != nil {
		return err
	}
	if d.insertLoanStmt, err = d.db.Prepare(`INSERT INTO loans(user_id,book_id,borrowed_at,due_at) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Transaction-scoped record helpers
// ---------------------------------------------------------------------------

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
	d   *Database
}

var _ Tx = (*sqlTx)(nil)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (t *sqlTx) InsertUser(u *User) (int64, error) {
	res, err := t.tx.StmtContext(t.ctx, t.d.insertUserStmt).ExecContext(t.ctx, u.Username, u.PasswordDigest, string(u.Role))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%q: %w", u.Username, ErrDuplicateUsername)
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (t *sqlTx) scanUser(row *sql.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordDigest, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func (t *sqlTx) UserByID(id int64) (*User, error) {
	return t.scanUser(t.tx.QueryRowContext(t.ctx, `SELECT id,username,password_digest,role FROM users WHERE id=?`, id))
}

func (t *sqlTx) UserByUsername(username string) (*User, error) {
	return t.scanUser(t.tx.QueryRowContext(t.ctx, `SELECT id,username,password_digest,role FROM users WHERE username=?`, username))
}

func (t *sqlTx) ListUsers() ([]Identity, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT id,username,role FROM users ORDER BY username ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []Identity
	for rows.Next() {
		var u Identity
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &role); err != nil {
			return nil, err
		}
		u.Role = Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (t *sqlTx) CountAdmins() (int, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM users WHERE role='admin'`).Scan(&n)
	return n, err
}

func (t *sqlTx) DeleteUser(id int64) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrUserNotFound)
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullYear(y *int) sql.NullInt64 {
	if y == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*y), Valid: true}
}

const bookColumns = `id,title,author,isbn,year,qty_total,qty_available`

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(s scanner) (*Book, error) {
	var b Book
	var year sql.NullInt64
	if err := s.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &year, &b.QtyTotal, &b.QtyAvailable); err != nil {
		return nil, err
	}
	if year.Valid {
		y := int(year.Int64)
		b.Year = &y
	}
	return &b, nil
}

func (t *sqlTx) InsertBook(b *Book) (int64, error) {
	res, err := t.tx.StmtContext(t.ctx, t.d.insertBookStmt).ExecContext(t.ctx,
		b.Title, b.Author, b.ISBN, nullYear(b.Year), b.QtyTotal, b.QtyAvailable)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *sqlTx) BookByID(id int64) (*Book, error) {
	b, err := scanBook(t.tx.QueryRowContext(t.ctx, `SELECT `+bookColumns+` FROM books WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	return b, err
}

func (t *sqlTx) UpdateBook(b *Book) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE books SET title=?, author=?, isbn=?, year=?, qty_total=?, qty_available=? WHERE id=?`,
		b.Title, b.Author, b.ISBN, nullYear(b.Year), b.QtyTotal, b.QtyAvailable, b.ID)
	if err != nil {
		return err
	}
	return expectOne(res, ErrBookNotFound)
}

func (t *sqlTx) DeleteBook(id int64) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM books WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrBookNotFound)
}

func (t *sqlTx) queryBooks(query string, args ...any) ([]*Book, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (t *sqlTx) ListBooks() ([]*Book, error) {
	return t.queryBooks(`SELECT ` + bookColumns + ` FROM books ORDER BY title ASC, id ASC`)
}

// SearchBooks matches keyword as a literal, case-insensitive substring.
func (t *sqlTx) SearchBooks(keyword string) ([]*Book, error) {
	kw := foldCase(keyword)
	return t.queryBooks(`
        SELECT `+bookColumns+`
        FROM books
        WHERE instr(fold(title), ?) > 0 OR instr(fold(author), ?) > 0 OR instr(fold(isbn), ?) > 0
        ORDER BY title ASC, id ASC`, kw, kw, kw)
}

func (t *sqlTx) AdjustAvailable(bookID int64, delta int) (bool, error) {
	res, err := t.tx.ExecContext(t.ctx, `
        UPDATE books SET qty_available = qty_available + ?
        WHERE id=? AND qty_available + ? BETWEEN 0 AND qty_total`, delta, bookID, delta)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *sqlTx) InsertLoan(l *Loan) (int64, error) {
	res, err := t.tx.StmtContext(t.ctx, t.d.insertLoanStmt).ExecContext(t.ctx, l.UserID, l.BookID, l.BorrowedAt, l.DueAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *sqlTx) LoanByID(id int64) (*Loan, error) {
	var l Loan
	var returned sql.NullTime
	err := t.tx.QueryRowContext(t.ctx, `SELECT id,user_id,book_id,borrowed_at,due_at,returned_at FROM loans WHERE id=?`, id).
		Scan(&l.ID, &l.UserID, &l.BookID, &l.BorrowedAt, &l.DueAt, &returned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	l.ReturnedAt = timePtr(returned)
	return &l, nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func (t *sqlTx) CloseLoan(id int64, at time.Time) error {
	res, err := t.tx.ExecContext(t.ctx, `UPDATE loans SET returned_at=? WHERE id=? AND returned_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrAlreadyReturned)
}

func (t *sqlTx) CountOpenLoansByUser(userID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM loans WHERE user_id=? AND returned_at IS NULL`, userID).Scan(&n)
	return n, err
}

func (t *sqlTx) CountOpenLoansByBook(bookID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM loans WHERE book_id=? AND returned_at IS NULL`, bookID).Scan(&n)
	return n, err
}

func (t *sqlTx) ListLoans() ([]LoanRecord, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
        SELECT l.id, COALESCE(u.username,''), COALESCE(b.title,''), l.borrowed_at, l.due_at, l.returned_at
        FROM loans l
        LEFT JOIN users u ON u.id = l.user_id
        LEFT JOIN books b ON b.id = l.book_id
        ORDER BY l.borrowed_at DESC, l.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := []LoanRecord{}
	for rows.Next() {
		var r LoanRecord
		var returned sql.NullTime
		if err := rows.Scan(&r.LoanID, &r.Username, &r.BookTitle, &r.BorrowedAt, &r.DueAt, &returned); err != nil {
			return nil, err
		}
		r.ReturnedAt = timePtr(returned)
		loans = append(loans, r)
	}
	return loans, rows.Err()
}

func (t *sqlTx) ListLoansByUser(userID int64) ([]MemberLoan, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
        SELECT l.id, COALESCE(b.title,''), l.borrowed_at, l.due_at, l.returned_at
        FROM loans l
        LEFT JOIN books b ON b.id = l.book_id
        WHERE l.user_id = ?
        ORDER BY l.borrowed_at DESC, l.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := []MemberLoan{}
	for rows.Next() {
		var r MemberLoan
		var returned sql.NullTime
		if err := rows.Scan(&r.LoanID, &r.BookTitle, &r.BorrowedAt, &r.DueAt, &returned); err != nil {
			return nil, err
		}
		r.ReturnedAt = timePtr(returned)
		loans = append(loans, r)
	}
	return loans, rows.Err()
}
