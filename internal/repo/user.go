package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/crucial707/adhoc-web/internal/models"
)

const pgUniqueViolation = "23505"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
)

const userColumns = `id, username, password_hash, is_active, created_at, last_logged_in, last_logged_from`

// ==========================
// UserRepo
// ==========================
type UserRepo struct {
	DB  *sqlx.DB
	now func() time.Time
}

// ==========================
// Constructor
// ==========================
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{DB: db, now: time.Now}
}

// ==========================
// Create User
// ==========================

// Create inserts an active user with an already-hashed password. The existence
// check and insert share one transaction; any failure rolls it back, so a
// rejected duplicate never disturbs the existing row.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash string) (*models.User, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM users WHERE username = ?`), username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists > 0 {
		return nil, ErrUsernameTaken
	}

	user := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    r.now().UTC(),
	}
	query := tx.Rebind(`
		INSERT INTO users (username, password_hash, is_active, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)
	if err := tx.QueryRowxContext(ctx, query, user.Username, user.PasswordHash, user.IsActive, user.CreatedAt).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	return user, nil
}

// ==========================
// Get By ID
// ==========================
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// ==========================
// Get By Username
// ==========================

// GetByUsername is an exact, case-sensitive match.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	if err := r.DB.GetContext(ctx, user, r.DB.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ==========================
// List Users
// ==========================
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	users := []models.User{}
	query := r.DB.Rebind(`SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT ? OFFSET ?`)
	if err := r.DB.SelectContext(ctx, &users, query, limit, offset); err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns the total number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}

// ==========================
// Activation
// ==========================

// SetActive flips is_active. Deactivating a user invalidates every token issued
// to them, since validation re-reads the row.
func (r *UserRepo) SetActive(ctx context.Context, username string, active bool) error {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE users SET is_active = ? WHERE username = ?`), active, username)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ==========================
// Login Metadata
// ==========================

// RecordLogin stores the time and client address of a successful login.
func (r *UserRepo) RecordLogin(ctx context.Context, id int64, at time.Time, from string) error {
	_, err := r.DB.ExecContext(ctx,
		r.DB.Rebind(`UPDATE users SET last_logged_in = ?, last_logged_from = ? WHERE id = ?`),
		at.UTC(), from, id,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
