package auth

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// User is a registered account
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	IsActive     bool      `json:"-"`
	IsStaff      bool      `json:"-"`
	IsSuperuser  bool      `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Profile is the readable subset of a user account
type Profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Profile returns the user's readable profile
func (u *User) Profile() Profile {
	return Profile{Email: u.Email, Name: u.Name}
}

// Identity is the resolved caller of an authenticated request. It is threaded
// explicitly through every scoped service call.
type Identity struct {
	UserID int64
	Email  string
	Name   string
}

// Token is a stored API token record. The plaintext token is returned to the
// client exactly once at creation and never persisted.
type Token struct {
	ID         int64
	UserID     int64
	TokenHash  string
	Prefix     string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
}

var (
	// ErrDuplicateEmail is returned when creating a user with a taken email
	ErrDuplicateEmail = errors.New("user with this email already exists")
	// ErrInvalidCredentials is returned when email/password verification fails
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
	// ErrInvalidToken is returned when a bearer token is malformed, unknown, or expired
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrNotFound is returned when a user record does not exist
	ErrNotFound = errors.New("user not found")
)

// ValidationError carries field-level validation messages
type ValidationError map[string]string

func (v ValidationError) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps err into a ValidationError, if it is one
func AsValidation(err error) (ValidationError, bool) {
	var v ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
