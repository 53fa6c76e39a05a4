package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"lms/config"
	"lms/library"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultCatalog = "bookdetails.json"

// text is a catalog scalar. Numbers and strings are both accepted and trimmed.
type text string

func (t *text) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", n.Line)
	}
	*t = text(strings.TrimSpace(n.Value))
	return nil
}

// catalogEntry is one row of the catalog lookup file. JSON is read as YAML.
type catalogEntry struct {
	Title  text `yaml:"title"`
	Author text `yaml:"author"`
	ISBN   text `yaml:"isbn"`
	Year   text `yaml:"year"`
	Qty    *int `yaml:"qty"`
}

// input converts the entry; a year that is not a plain number is dropped.
func (e catalogEntry) input() library.BookInput {
	in := library.BookInput{
		Title:  string(e.Title),
		Author: string(e.Author),
		ISBN:   string(e.ISBN),
		Qty:    1,
	}
	if y, err := strconv.Atoi(string(e.Year)); err == nil && y >= 0 {
		in.Year = &y
	}
	if e.Qty != nil {
		in.Qty = *e.Qty
	}
	return in
}

func loadCatalog(r io.Reader) ([]catalogEntry, error) {
	var entries []catalogEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return entries, nil
}

// matchCatalog keeps entries whose title contains kw, titles starting with kw first.
// An empty keyword keeps everything.
func matchCatalog(entries []catalogEntry, kw string) []catalogEntry {
	kw = strings.ToLower(strings.TrimSpace(kw))
	if kw == "" {
		return entries
	}
	var starts, contains []catalogEntry
	for _, e := range entries {
		title := strings.ToLower(string(e.Title))
		switch {
		case strings.HasPrefix(title, kw):
			starts = append(starts, e)
		case strings.Contains(title, kw):
			contains = append(contains, e)
		}
	}
	return append(starts, contains...)
}

func main() {
	if err := newImportCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newImportCommand() *cobra.Command {
	var (
		cfgFile string
		match   string
	)
	v := config.New()

	cmd := &cobra.Command{
		Use:          "import_books [CATALOG]",
		Short:        "Add every entry of a JSON or YAML catalog file to the library",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultCatalog
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer f.Close()
			entries, err := loadCatalog(f)
			if err != nil {
				return err
			}
			entries = matchCatalog(entries, match)

			manager, err := library.Open(cmd.Context(), cfg.Database.Path, library.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("open %s: %w", cfg.Database.Path, err)
			}
			defer manager.Close()

			return importEntries(cmd, manager, entries)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "path to a YAML config file")
	flags.String("db", "library.db", "path to the SQLite database file")
	flags.StringVar(&match, "match", "", "only import titles containing this keyword")
	_ = v.BindPFlag("database.path", flags.Lookup("db"))
	return cmd
}

func importEntries(cmd *cobra.Command, manager *library.LibraryManager, entries []catalogEntry) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Importing %d catalog entries...\n", len(entries))

	successCount := 0
	errorCount := 0
	for _, e := range entries {
		fmt.Fprintf(out, "Importing: %s by %s... ", e.Title, e.Author)

		bookID, err := manager.AddBook(cmd.Context(), e.input())
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			if library.KindOf(err) == library.KindStoreUnavailable {
				return err
			}
			continue
		}

		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", bookID)
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Fprintln(out, "\nCatalog:")
		books, err := manager.ListBooks(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-4s %-50s %-30s %s\n", "ID", "Title", "Author", "Copies")
		fmt.Fprintln(out, strings.Repeat("-", 92))
		for _, book := range books {
			fmt.Fprintf(out, "%-4d %-50s %-30s %d\n", book.ID, truncateString(book.Title, 50), truncateString(book.Author, 30), book.QtyTotal)
		}
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
