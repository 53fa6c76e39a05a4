package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"lms/library"

	"github.com/spf13/cobra"
)

// NewBooksCommand groups the catalog commands.
func NewBooksCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and maintain the catalog",
	}
	cmd.AddCommand(
		newBooksListCommand(a),
		newBooksSearchCommand(a),
		newBooksAddCommand(a),
		newBooksUpdateCommand(a),
		newBooksDeleteCommand(a),
	)
	return cmd
}

func printBooks(out io.Writer, books []*library.Book) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tISBN\tYEAR\tAVAILABLE")
	for _, b := range books {
		year := ""
		if b.Year != nil {
			year = strconv.Itoa(*b.Year)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d/%d\n",
			b.ID, b.Title, b.Author, b.ISBN, year, b.QtyAvailable, b.QtyTotal)
	}
	return w.Flush()
}

func newBooksListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every book ordered by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd)
			if err != nil {
				return err
			}
			books, err := mgr.ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No books in the catalog.")
				return nil
			}
			return printBooks(cmd.OutOrStdout(), books)
		},
	}
}

func newBooksSearchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Find books by title, author or ISBN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd)
			if err != nil {
				return err
			}
			books, err := mgr.SearchBooks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No books found matching '%s'.\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d book(s) matching '%s':\n", len(books), args[0])
			return printBooks(cmd.OutOrStdout(), books)
		},
	}
}

func newBooksAddCommand(a *app) *cobra.Command {
	var (
		in   library.BookInput
		year string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if in.Year, err = library.ParseYear(year); err != nil {
				return err
			}
			if _, err := a.loginAdmin(cmd); err != nil {
				return err
			}
			id, err := a.mgr.AddBook(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added book ID %d\n", id)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "book title")
	f.StringVar(&in.Author, "author", "", "book author")
	f.StringVar(&in.ISBN, "isbn", "", "ISBN")
	f.StringVar(&year, "year", "", "publication year")
	f.IntVar(&in.Qty, "qty", 1, "number of copies")
	return cmd
}

// newBooksUpdateCommand overwrites a book with its current values plus the
// flags that were given.
func newBooksUpdateCommand(a *app) *cobra.Command {
	var (
		title, author, isbn, year string
		total, available          int
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a book's details or copy counts (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			if _, err := a.loginAdmin(cmd); err != nil {
				return err
			}
			book, err := a.mgr.GetBook(cmd.Context(), bookID)
			if err != nil {
				return err
			}

			up := library.BookUpdate{
				Title:        book.Title,
				Author:       book.Author,
				ISBN:         book.ISBN,
				Year:         book.Year,
				QtyTotal:     book.QtyTotal,
				QtyAvailable: book.QtyAvailable,
			}
			f := cmd.Flags()
			if f.Changed("title") {
				up.Title = title
			}
			if f.Changed("author") {
				up.Author = author
			}
			if f.Changed("isbn") {
				up.ISBN = isbn
			}
			if f.Changed("year") {
				if up.Year, err = library.ParseYear(year); err != nil {
					return err
				}
			}
			if f.Changed("total") {
				up.QtyTotal = total
			}
			if f.Changed("available") {
				up.QtyAvailable = available
			}

			if err := a.mgr.UpdateBook(cmd.Context(), bookID, up); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated book %d\n", bookID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "new title")
	f.StringVar(&author, "author", "", "new author")
	f.StringVar(&isbn, "isbn", "", "new ISBN")
	f.StringVar(&year, "year", "", "new publication year, empty to clear")
	f.IntVar(&total, "total", 0, "new total copies")
	f.IntVar(&available, "available", 0, "new available copies")
	return cmd
}

func newBooksDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a book with no open loans (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			if _, err := a.loginAdmin(cmd); err != nil {
				return err
			}
			if err := a.mgr.DeleteBook(cmd.Context(), bookID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted book %d\n", bookID)
			return nil
		},
	}
}
