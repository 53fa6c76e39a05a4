package library

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ------------------ Circulation ------------------

// Borrow lends one copy of bookID to userID. The loan row and the decrement of
// qty_available commit together.
func (lm *LibraryManager) Borrow(ctx context.Context, userID, bookID int64) (int64, error) {
	fields := logrus.Fields{"user_id": userID, "book_id": bookID}
	now := lm.now().UTC()

	var loanID int64
	err := lm.update(ctx, func(tx Tx) error {
		if _, err := tx.UserByID(userID); err != nil {
			return err
		}
		book, err := tx.BookByID(bookID)
		if err != nil {
			return err
		}
		if book.QtyAvailable <= 0 {
			return fmt.Errorf("%q: %w", book.Title, ErrNoCopiesAvailable)
		}

		loanID, err = tx.InsertLoan(&Loan{
			UserID:     userID,
			BookID:     bookID,
			BorrowedAt: now,
			DueAt:      now.Add(LoanPeriod),
		})
		if err != nil {
			return err
		}

		changed, err := tx.AdjustAvailable(bookID, -1)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%q: %w", book.Title, ErrNoCopiesAvailable)
		}
		return nil
	})
	if err != nil {
		return 0, lm.refused("borrow", err, fields)
	}
	lm.log.WithFields(fields).WithField("loan_id", loanID).Info("book borrowed")
	return loanID, nil
}

// Return closes an open loan and puts the copy back on the shelf. If a manual
// correction already left every copy available, the count stays at qty_total.
func (lm *LibraryManager) Return(ctx context.Context, loanID int64) error {
	fields := logrus.Fields{"loan_id": loanID}
	now := lm.now().UTC()

	var restocked bool
	err := lm.update(ctx, func(tx Tx) error {
		loan, err := tx.LoanByID(loanID)
		if err != nil {
			return err
		}
		if !loan.Open() {
			return fmt.Errorf("loan %d: %w", loanID, ErrAlreadyReturned)
		}
		fields["book_id"] = loan.BookID

		if err := tx.CloseLoan(loanID, now); err != nil {
			return err
		}
		restocked, err = tx.AdjustAvailable(loan.BookID, 1)
		return err
	})
	if err != nil {
		return lm.refused("return", err, fields)
	}
	entry := lm.log.WithFields(fields)
	if !restocked {
		entry.Warn("book returned but available count already at total")
	}
	entry.Info("book returned")
	return nil
}

// GetLoan fetches a single loan.
func (lm *LibraryManager) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	var l *Loan
	err := lm.view(ctx, func(tx Tx) error {
		var err error
		l, err = tx.LoanByID(loanID)
		return err
	})
	return l, err
}

// ListLoans returns every loan with borrower and title, newest first.
func (lm *LibraryManager) ListLoans(ctx context.Context) ([]LoanRecord, error) {
	var loans []LoanRecord
	err := lm.view(ctx, func(tx Tx) error {
		var err error
		loans, err = tx.ListLoans()
		return err
	})
	return loans, err
}

// ListLoansForUser returns userID's own loans, newest first.
func (lm *LibraryManager) ListLoansForUser(ctx context.Context, userID int64) ([]MemberLoan, error) {
	var loans []MemberLoan
	err := lm.view(ctx, func(tx Tx) error {
		var err error
		loans, err = tx.ListLoansByUser(userID)
		return err
	})
	return loans, err
}
