package users

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/crucial707/adhoc-web/cmd/cli/output"
	"github.com/crucial707/adhoc-web/internal/auth"
	"github.com/crucial707/adhoc-web/internal/models"
	"github.com/crucial707/adhoc-web/internal/repo"
)

// minPasswordLen is advisory: shorter passwords get a warning, not a refusal.
const minPasswordLen = 8

// Store is the part of the user repository the commands use.
type Store interface {
	Create(ctx context.Context, username, passwordHash string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	SetActive(ctx context.Context, username string, active bool) error
}

// Session is an open store plus the logger commands report to.
type Session struct {
	Users Store
	Log   *slog.Logger
	Close func() error
}

// Opener connects to the store for one command invocation.
type Opener func(cmd *cobra.Command) (*Session, error)

// ==========================
// CLI Command Init
// ==========================
func InitUsers(rootCmd *cobra.Command, open Opener) {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
		Long: `Create, list, activate and deactivate accounts directly in the database.
Deactivating a user revokes every token already issued to them.`,
	}

	usersCmd.AddCommand(
		createUserCmd(open),
		listUsersCmd(open),
		setActiveCmd(open, true),
		setActiveCmd(open, false),
	)
	rootCmd.AddCommand(usersCmd)
}

func withSession(cmd *cobra.Command, open Opener, fn func(*Session) error) error {
	s, err := open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// ==========================
// CREATE
// ==========================
func createUserCmd(open Opener) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an active user",
		Long:  "Create an active user. Prompts for anything not given by flags; the password is read without echo.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())
			fmt.Fprintln(out, "=== Create User ===")
			fmt.Fprintln(out)

			if username == "" {
				fmt.Fprint(out, "Enter username: ")
				line, err := readLine(in)
				if err != nil {
					return err
				}
				username = strings.TrimSpace(line)
			}
			if username == "" {
				return errors.New("Username cannot be empty!")
			}

			interactive := password == ""
			confirm := password
			if interactive {
				var err error
				if password, err = readSecret(cmd, in, "Enter password: "); err != nil {
					return err
				}
				if password == "" {
					return errors.New("Password cannot be empty!")
				}
				if confirm, err = readSecret(cmd, in, "Confirm password: "); err != nil {
					return err
				}
			}
			if password != confirm {
				return errors.New("Passwords do not match!")
			}

			if utf8.RuneCountInString(password) < minPasswordLen {
				fmt.Fprintf(out, "Warning: Password is shorter than %d characters!\n", minPasswordLen)
				if interactive {
					fmt.Fprint(out, "Continue anyway? (y/N): ")
					answer, err := readLine(in)
					if err != nil {
						return err
					}
					if strings.ToLower(strings.TrimSpace(answer)) != "y" {
						fmt.Fprintln(out, "Cancelled.")
						return nil
					}
				}
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			return withSession(cmd, open, func(s *Session) error {
				user, err := s.Users.Create(cmd.Context(), username, hash)
				if errors.Is(err, repo.ErrUsernameTaken) {
					s.Log.Error("user already exists", "username", username)
					return fmt.Errorf("User '%s' already exists!", username)
				}
				if err != nil {
					s.Log.Error("create user failed", "username", username, "error", err)
					return fmt.Errorf("creating user: %w", err)
				}
				s.Log.Info("user created", "username", user.Username, "user_id", user.ID)
				fmt.Fprintf(out, "Successfully created user: %s\n", user.Username)
				fmt.Fprintf(out, "User ID: %d\n", user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username for the new account")
	cmd.Flags().StringVar(&password, "password", "", "password for the new account (prompted when omitted)")
	return cmd
}

// readLine reads one line without its terminator. EOF yields what was read.
func readLine(in *bufio.Reader) (string, error) {
	s, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// readSecret reads a password without echo when stdin is a terminal, and a
// plain line otherwise (pipes, tests).
func readSecret(cmd *cobra.Command, in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine(in)
}

// ==========================
// LIST
// ==========================
func listUsersCmd(open Opener) *cobra.Command {
	var (
		limit, offset int
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, open, func(s *Session) error {
				users, err := s.Users.List(cmd.Context(), limit, offset)
				if err != nil {
					return fmt.Errorf("listing users: %w", err)
				}
				if asJSON {
					return output.RenderJSON(cmd.OutOrStdout(), users)
				}
				rows := make([][]any, 0, len(users))
				for _, u := range users {
					rows = append(rows, []any{u.ID, u.Username, u.IsActive, formatTime(&u.CreatedAt), formatTime(u.LastLoggedIn), deref(u.LastLoggedFrom)})
				}
				output.RenderTable(cmd.OutOrStdout(), []string{"ID", "Username", "Active", "Created", "Last Login", "Last From"}, rows)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of users to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of users to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// ==========================
// ACTIVATE / DEACTIVATE
// ==========================
func setActiveCmd(open Opener, active bool) *cobra.Command {
	use, verb := "deactivate", "deactivated"
	short := "Deactivate a user and revoke their tokens"
	if active {
		use, verb = "activate", "activated"
		short = "Re-activate a user"
	}

	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			return withSession(cmd, open, func(s *Session) error {
				err := s.Users.SetActive(cmd.Context(), username, active)
				if errors.Is(err, repo.ErrUserNotFound) {
					return fmt.Errorf("User '%s' not found!", username)
				}
				if err != nil {
					return fmt.Errorf("updating user: %w", err)
				}
				s.Log.Info("user "+verb, "username", username)
				fmt.Fprintf(cmd.OutOrStdout(), "User '%s' %s.\n", username, verb)
				return nil
			})
		},
	}
}
