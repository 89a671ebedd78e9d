package identity

import "time"

// User is an account allowed to sign in to the admin area.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	IsAdmin      bool
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Password string
}
