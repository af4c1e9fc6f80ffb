// Package domain contains entity without logic, just meta-data
package domain

import "errors"

var (
	ErrUsernameEmpty = errors.New("username empty")
	ErrUserIDEmpty   = errors.New("user id empty")
)

type UserID string

// User is a verified identity. Username is what other members see.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, username string) (*User, error) {
	if id == "" {
		return nil, ErrUserIDEmpty
	}
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	return &User{ID: id, Username: username}, nil
}
