package domain

import "time"

// User represents a registered account of the blog list.
type User struct {
	ID           string
	Username     string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is the authenticated caller attached to requests after login.
type Identity struct {
	UserID   string
	Username string
	Name     string
}
