package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ------------------ Catalog ------------------

// AddBook stores a new title with every copy available.
func (lm *LibraryManager) AddBook(ctx context.Context, in BookInput) (int64, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	if err := validateInput(&in); err != nil {
		return 0, lm.refused("add book", err, logrus.Fields{"title": in.Title})
	}

	book := &Book{
		Title:        in.Title,
		Author:       in.Author,
		ISBN:         in.ISBN,
		Year:         in.Year,
		QtyTotal:     in.Qty,
		QtyAvailable: in.Qty,
	}
	var id int64
	err := lm.update(ctx, func(tx Tx) error {
		var err error
		id, err = tx.InsertBook(book)
		return err
	})
	if err != nil {
		return 0, lm.refused("add book", err, logrus.Fields{"title": in.Title})
	}
	lm.log.WithFields(logrus.Fields{"book_id": id, "title": in.Title, "qty": in.Qty}).Info("book added")
	return id, nil
}

// UpdateBook overwrites every field of a book. The copy counts are taken as a
// manual inventory correction and need not match the open loans.
func (lm *LibraryManager) UpdateBook(ctx context.Context, bookID int64, in BookUpdate) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	fields := logrus.Fields{"book_id": bookID}
	if err := validateInput(&in); err != nil {
		return lm.refused("update book", err, fields)
	}

	err := lm.update(ctx, func(tx Tx) error {
		if _, err := tx.BookByID(bookID); err != nil {
			return err
		}
		return tx.UpdateBook(&Book{
			ID:           bookID,
			Title:        in.Title,
			Author:       in.Author,
			ISBN:         in.ISBN,
			Year:         in.Year,
			QtyTotal:     in.QtyTotal,
			QtyAvailable: in.QtyAvailable,
		})
	})
	if err != nil {
		return lm.refused("update book", err, fields)
	}
	lm.log.WithFields(fields).WithFields(logrus.Fields{
		"qty_total":     in.QtyTotal,
		"qty_available": in.QtyAvailable,
	}).Info("book updated")
	return nil
}

// DeleteBook removes a book that no open loan refers to.
func (lm *LibraryManager) DeleteBook(ctx context.Context, bookID int64) error {
	fields := logrus.Fields{"book_id": bookID}
	err := lm.update(ctx, func(tx Tx) error {
		if _, err := tx.BookByID(bookID); err != nil {
			return err
		}
		open, err := tx.CountOpenLoansByBook(bookID)
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("book %d: %w", bookID, ErrHasOpenLoans)
		}
		return tx.DeleteBook(bookID)
	})
	if err != nil {
		return lm.refused("delete book", err, fields)
	}
	lm.log.WithFields(fields).Info("book deleted")
	return nil
}

// GetBook fetches a single book.
func (lm *LibraryManager) GetBook(ctx context.Context, bookID int64) (*Book, error) {
	var b *Book
	err := lm.view(ctx, func(tx Tx) error {
		var err error
		b, err = tx.BookByID(bookID)
		return err
	})
	return b, err
}

// ListBooks returns the whole catalog ordered by title.
func (lm *LibraryManager) ListBooks(ctx context.Context) ([]*Book, error) {
	var books []*Book
	err := lm.view(ctx, func(tx Tx) error {
		var err error
		books, err = tx.ListBooks()
		return err
	})
	return books, err
}

// SearchBooks finds books whose title, author or isbn contains keyword,
// ignoring case. A blank keyword matches nothing; use ListBooks instead.
func (lm *LibraryManager) SearchBooks(ctx context.Context, keyword string) ([]*Book, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []*Book{}, nil
	}
	var books []*Book
	err := lm.view(ctx, func(tx Tx) error {
		var err error
		books, err = tx.SearchBooks(keyword)
		return err
	})
	return books, err
}
