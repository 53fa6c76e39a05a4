package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

// NewLoansCommand groups the circulation commands.
func NewLoansCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Borrow, return and list loans",
	}
	cmd.AddCommand(newLoansBorrowCommand(a), newLoansReturnCommand(a), newLoansListCommand(a))
	return cmd
}

func formatReturned(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

func orDeleted(s string) string {
	if s == "" {
		return "(deleted)"
	}
	return s
}

func newLoansBorrowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "borrow BOOK_ID",
		Short: "Borrow one copy of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			me, err := a.login(cmd)
			if err != nil {
				return err
			}
			loanID, err := a.mgr.Borrow(cmd.Context(), me.ID, bookID)
			if err != nil {
				return err
			}
			loan, err := a.mgr.GetLoan(cmd.Context(), loanID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loan %d created, due %s\n", loanID, loan.DueAt.Local().Format(dateLayout))
			return nil
		},
	}
}

func newLoansReturnCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Return a borrowed copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := parseID(args[0], "loan")
			if err != nil {
				return err
			}
			me, err := a.login(cmd)
			if err != nil {
				return err
			}
			if !me.IsAdmin() {
				loan, err := a.mgr.GetLoan(cmd.Context(), loanID)
				if err != nil {
					return err
				}
				if loan.UserID != me.ID {
					return fmt.Errorf("loan %d: %w", loanID, errNotOwner)
				}
			}
			if err := a.mgr.Return(cmd.Context(), loanID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loan %d returned\n", loanID)
			return nil
		},
	}
}

func newLoansListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loans: every loan for admins, your own otherwise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := a.login(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			if me.IsAdmin() {
				loans, err := a.mgr.ListLoans(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "LOAN\tUSER\tBOOK\tBORROWED\tDUE\tRETURNED")
				for _, l := range loans {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", l.LoanID, orDeleted(l.Username), orDeleted(l.BookTitle),
						l.BorrowedAt.Local().Format(dateLayout), l.DueAt.Local().Format(dateLayout), formatReturned(l.ReturnedAt))
				}
				return w.Flush()
			}

			loans, err := a.mgr.ListLoansForUser(cmd.Context(), me.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "LOAN\tBOOK\tBORROWED\tDUE\tRETURNED")
			for _, l := range loans {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", l.LoanID, orDeleted(l.BookTitle),
					l.BorrowedAt.Local().Format(dateLayout), l.DueAt.Local().Format(dateLayout), formatReturned(l.ReturnedAt))
			}
			return w.Flush()
		},
	}
}
