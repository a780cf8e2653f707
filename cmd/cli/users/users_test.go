package users

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/adhoc-web/internal/auth"
	"github.com/crucial707/adhoc-web/internal/models"
	"github.com/crucial707/adhoc-web/internal/repo"
)

type fakeStore struct {
	users  []models.User
	closed bool
}

func (f *fakeStore) Create(_ context.Context, username, hash string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return nil, repo.ErrUsernameTaken
		}
	}
	u := models.User{ID: int64(len(f.users) + 1), Username: username, PasswordHash: hash, IsActive: true, CreatedAt: time.Now()}
	f.users = append(f.users, u)
	return &u, nil
}

func (f *fakeStore) List(_ context.Context, limit, offset int) ([]models.User, error) {
	if offset >= len(f.users) {
		return []models.User{}, nil
	}
	end := min(offset+limit, len(f.users))
	return f.users[offset:end], nil
}

func (f *fakeStore) SetActive(_ context.Context, username string, active bool) error {
	for i := range f.users {
		if f.users[i].Username == username {
			f.users[i].IsActive = active
			return nil
		}
	}
	return repo.ErrUserNotFound
}

// run executes `users <args>` against store with stdin, returning stdout and the error.
func run(t *testing.T, store *fakeStore, stdin string, args ...string) (string, error) {
	t.Helper()
	rootCmd := &cobra.Command{Use: "adhoc", SilenceErrors: true, SilenceUsage: true}
	InitUsers(rootCmd, func(*cobra.Command) (*Session, error) {
		return &Session{
			Users: store,
			Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
			Close: func() error { store.closed = true; return nil },
		}, nil
	})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"users"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCreate_Flags(t *testing.T) {
	store := &fakeStore{}
	out, err := run(t, store, "", "create", "--username", "alice", "--password", "wonderland")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "Successfully created user: alice") || !strings.Contains(out, "User ID: 1") {
		t.Errorf("unexpected output: %s", out)
	}
	if len(store.users) != 1 || !auth.VerifyPassword(store.users[0].PasswordHash, "wonderland") {
		t.Errorf("stored user: %+v", store.users)
	}
	if !store.closed {
		t.Error("session not closed")
	}
}

func TestCreate_Prompts(t *testing.T) {
	store := &fakeStore{}
	out, err := run(t, store, "bob\nhunter2hunter2\nhunter2hunter2\n", "create")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "Enter username:") || !strings.Contains(out, "Confirm password:") {
		t.Errorf("missing prompts: %s", out)
	}
	if len(store.users) != 1 || store.users[0].Username != "bob" {
		t.Errorf("stored users: %+v", store.users)
	}
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"empty username", "\n", []string{"create"}, "Username cannot be empty!"},
		{"empty password", "", []string{"create", "--username", "carol"}, "Password cannot be empty!"},
		{"mismatch", "longpassword\notherpassword\n", []string{"create", "--username", "carol"}, "Passwords do not match!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			_, err := run(t, store, tt.stdin, tt.args...)
			if err == nil || err.Error() != tt.want {
				t.Fatalf("got %v, want %q", err, tt.want)
			}
			if len(store.users) != 0 {
				t.Errorf("user created despite error: %+v", store.users)
			}
		})
	}
}

func TestCreate_Duplicate(t *testing.T) {
	store := &fakeStore{}
	if _, err := run(t, store, "", "create", "--username", "alice", "--password", "wonderland"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	first := store.users[0].PasswordHash

	_, err := run(t, store, "", "create", "--username", "alice", "--password", "different1")
	if err == nil || err.Error() != "User 'alice' already exists!" {
		t.Fatalf("got %v", err)
	}
	if len(store.users) != 1 || store.users[0].PasswordHash != first {
		t.Error("duplicate create changed the first account")
	}
}

func TestCreate_ShortPassword(t *testing.T) {
	store := &fakeStore{}
	out, err := run(t, store, "short\nshort\nn\n", "create", "--username", "dave")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "Warning: Password is shorter than 8 characters!") || !strings.Contains(out, "Cancelled.") {
		t.Errorf("unexpected output: %s", out)
	}
	if len(store.users) != 0 {
		t.Error("user created after cancel")
	}

	out, err = run(t, store, "short\nshort\ny\n", "create", "--username", "dave")
	if err != nil || len(store.users) != 1 {
		t.Fatalf("confirmed short password: err=%v users=%d out=%s", err, len(store.users), out)
	}

	// Flag passwords only warn.
	out, err = run(t, store, "", "create", "--username", "erin", "--password", "abc")
	if err != nil || !strings.Contains(out, "Warning:") || len(store.users) != 2 {
		t.Fatalf("flag short password: err=%v out=%s", err, out)
	}
}

func TestListUsers_TableOutput(t *testing.T) {
	from := "203.0.113.7"
	store := &fakeStore{users: []models.User{
		{ID: 1, Username: "alice", IsActive: true, LastLoggedFrom: &from},
		{ID: 2, Username: "bob"},
	}}
	out, err := run(t, store, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "alice") || !strings.Contains(out, "bob") || !strings.Contains(out, from) {
		t.Fatalf("expected usernames in output, got: %s", out)
	}
}

func TestListUsers_JSONOutput(t *testing.T) {
	store := &fakeStore{users: []models.User{{ID: 1, Username: "alice", PasswordHash: "secret-hash"}}}
	out, err := run(t, store, "", "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, `"username": "alice"`) || strings.Contains(out, "secret-hash") {
		t.Fatalf("unexpected JSON output: %s", out)
	}
	var users []map[string]any
	if err := json.Unmarshal([]byte(out), &users); err != nil || len(users) != 1 {
		t.Fatalf("decode: %v", err)
	}
}

func TestSetActive(t *testing.T) {
	store := &fakeStore{users: []models.User{{ID: 1, Username: "alice", IsActive: true}}}

	out, err := run(t, store, "", "deactivate", "alice")
	if err != nil || store.users[0].IsActive || !strings.Contains(out, "deactivated") {
		t.Fatalf("deactivate: err=%v out=%s", err, out)
	}
	if _, err := run(t, store, "", "activate", "alice"); err != nil || !store.users[0].IsActive {
		t.Fatalf("activate: %v", err)
	}
	if _, err := run(t, store, "", "activate", "nobody"); err == nil || err.Error() != "User 'nobody' not found!" {
		t.Fatalf("missing user: %v", err)
	}
}
