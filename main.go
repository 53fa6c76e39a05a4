package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"lms/config"
	"lms/library"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	errNoUser    = errors.New("--user is required for this command")
	errAdminOnly = errors.New("this command requires an admin account")
	errNotOwner  = errors.New("loan belongs to another user")
)

// app holds what a single invocation shares between commands.
type app struct {
	v       *viper.Viper
	cfgFile string
	user    string

	mgr   *library.LibraryManager
	stdin *bufio.Reader
}

func main() {
	root, a := newRootCommand()
	if err := execute(root, a); err != nil {
		os.Exit(1)
	}
}

// execute runs the command tree and closes the store whether or not the
// command succeeded.
func execute(root *cobra.Command, a *app) (err error) {
	defer func() {
		if cerr := a.close(); err == nil {
			err = cerr
		}
	}()
	return root.Execute()
}

// newRootCommand builds the lms command tree and the state its commands share.
func newRootCommand() (*cobra.Command, *app) {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:          "lms",
		Short:        "Library management: catalog, accounts and circulation",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "path to a YAML config file")
	flags.String("db", "library.db", "path to the SQLite database file")
	flags.StringVarP(&a.user, "user", "u", "", "username to act as")
	_ = a.v.BindPFlag("database.path", flags.Lookup("db"))

	cmd.AddCommand(
		NewInitCommand(a),
		NewRegisterCommand(a),
		NewUsersCommand(a),
		NewBooksCommand(a),
		NewLoansCommand(a),
	)
	return cmd, a
}

func (a *app) close() error {
	if a.mgr == nil {
		return nil
	}
	err := a.mgr.Close()
	a.mgr = nil
	return err
}

// manager opens the configured database on first use.
func (a *app) manager(cmd *cobra.Command) (*library.LibraryManager, error) {
	if a.mgr != nil {
		return a.mgr, nil
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	mgr, err := library.Open(cmd.Context(), cfg.Database.Path, library.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Database.Path, err)
	}
	a.mgr = mgr
	return mgr, nil
}

// readPassword reads a password, masked when stdin is a terminal. Only the
// line ending is stripped; surrounding spaces are part of the password.
func (a *app) readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	if a.stdin == nil {
		a.stdin = bufio.NewReader(in)
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// login authenticates the --user account with a password read from stdin.
func (a *app) login(cmd *cobra.Command) (library.Identity, error) {
	if strings.TrimSpace(a.user) == "" {
		return library.Identity{}, errNoUser
	}
	mgr, err := a.manager(cmd)
	if err != nil {
		return library.Identity{}, err
	}
	password, err := a.readPassword(cmd, fmt.Sprintf("Password for %s: ", a.user))
	if err != nil {
		return library.Identity{}, err
	}
	return mgr.Authenticate(cmd.Context(), a.user, password)
}

func (a *app) loginAdmin(cmd *cobra.Command) (library.Identity, error) {
	id, err := a.login(cmd)
	if err != nil {
		return id, err
	}
	if !id.IsAdmin() {
		return id, errAdminOnly
	}
	return id, nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, s)
	}
	return id, nil
}

// NewInitCommand creates the database and seeds the default admin.
func NewInitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database and seed the default admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.manager(cmd); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database ready.")
			return nil
		},
	}
}

// NewRegisterCommand creates a regular user account.
func NewRegisterCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register USERNAME",
		Short: "Create a regular user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd)
			if err != nil {
				return err
			}
			password, err := a.readPassword(cmd, fmt.Sprintf("Enter password for %s: ", args[0]))
			if err != nil {
				return err
			}
			id, err := mgr.Register(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered user '%s' with ID %d\n", strings.TrimSpace(args[0]), id)
			return nil
		},
	}
}
