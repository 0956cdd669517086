package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is a built-in account.
type User struct {
	Username     string
	PasswordHash []byte
	Roles        []string
}

// Directory authenticates the built-in accounts.
type Directory struct {
	users map[string]User
	// dummy keeps the timing of unknown users close to known ones
	dummy []byte
}

// DefaultUsers returns the admin, staff and customer accounts sharing one
// bcrypt password hash.
func DefaultUsers(passwordHash string) []User {
	hash := []byte(passwordHash)
	return []User{
		{Username: "admin", PasswordHash: hash, Roles: []string{RoleAdmin, RoleStaff}},
		{Username: "staff", PasswordHash: hash, Roles: []string{RoleStaff}},
		{Username: "customer", PasswordHash: hash, Roles: []string{RoleCustomer}},
	}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// NewDirectory constructs a Directory over users.
func NewDirectory(users []User) *Directory {
	d := &Directory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.Username] = u
		if d.dummy == nil {
			d.dummy = u.PasswordHash
		}
	}
	return d
}

// Authenticate checks the password and returns the matching user.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	user, ok := d.users[username]
	if !ok {
		if d.dummy != nil {
			_ = bcrypt.CompareHashAndPassword(d.dummy, []byte(password))
		}
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
