package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"allowance/internal/core"
)

// Verifier turns a password into the stored credential and checks it later.
type Verifier interface {
	Hash(password string) (string, error)
	Verify(stored, password string) bool
}

// PlainVerifier stores the password as given.
type PlainVerifier struct{}

func (PlainVerifier) Hash(password string) (string, error) { return password, nil }

func (PlainVerifier) Verify(stored, password string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// BcryptVerifier stores bcrypt hashes.
type BcryptVerifier struct {
	Cost int
}

var errPasswordTooLong = fmt.Errorf("%w: password longer than 72 bytes", core.ErrValidation)

func (v BcryptVerifier) Hash(password string) (string, error) {
	cost := v.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", errPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (BcryptVerifier) Verify(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// NewVerifier returns the verifier for a PASSWORD_SCHEME value.
func NewVerifier(scheme string) (Verifier, error) {
	switch scheme {
	case "", "plain":
		return PlainVerifier{}, nil
	case "bcrypt":
		return BcryptVerifier{}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
}
