package models

import "time"

// User is one account row. ID and Username never change after creation.
type User struct {
	ID             int64      `json:"id" db:"id"`
	Username       string     `json:"username" db:"username"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastLoggedIn   *time.Time `json:"last_logged_in,omitempty" db:"last_logged_in"`
	LastLoggedFrom *string    `json:"last_logged_from,omitempty" db:"last_logged_from"`
}

// PublicUser is the subset of a User exposed by the current-user endpoint.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// Public strips everything but the public fields.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, IsActive: u.IsActive}
}
