// Package authpw checks member passwords. Stored passwords may be bcrypt
// hashes or the legacy plaintext values written before hashing was enabled.
package authpw

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyPassword = errors.New("password is empty")

// Hash returns a bcrypt hash of password.
func Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// IsHashed reports whether stored looks like a bcrypt hash.
func IsHashed(stored string) bool {
	if _, err := bcrypt.Cost([]byte(stored)); err != nil {
		return false
	}
	return strings.HasPrefix(stored, "$2")
}

// Verify compares a login attempt with the stored password.
func Verify(stored, given string) bool {
	if stored == "" || given == "" {
		return false
	}
	if IsHashed(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

// Prepare returns the value to store for a newly set password: a hash when
// hashing is enabled, the password itself otherwise. Already hashed values
// pass through unchanged.
func Prepare(password string, hashing bool) (string, error) {
	if !hashing || IsHashed(password) {
		return password, nil
	}
	return Hash(password)
}
