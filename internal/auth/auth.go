// Package auth logs users in, registering them on first use.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"allowance/internal/core"
	"allowance/internal/log"
	"allowance/internal/records"
)

// RecordStore loads and saves user records.
type RecordStore interface {
	Load(ctx context.Context, username string) (*core.UserRecord, error)
	Save(ctx context.Context, rec *core.UserRecord) error
}

// Result is the outcome of a successful login.
type Result struct {
	NewUser bool
	Record  *core.UserRecord
}

// NeedsAllowance reports whether the user must set an allowance before
// reaching the dashboard.
func (r Result) NeedsAllowance() bool {
	return !r.Record.IsConfigured()
}

type Authenticator struct {
	records  RecordStore
	verifier Verifier
}

func NewAuthenticator(store RecordStore, verifier Verifier) *Authenticator {
	if verifier == nil {
		verifier = PlainVerifier{}
	}
	return &Authenticator{records: store, verifier: verifier}
}

// Login registers username if it is unknown, otherwise checks the password
// and refreshes the stored email.
func (a *Authenticator) Login(ctx context.Context, username, email, password string) (Result, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)

	switch {
	case username == "":
		return Result{}, core.ErrEmptyUsername
	case email == "":
		return Result{}, core.ErrEmptyEmail
	case password == "":
		return Result{}, core.ErrEmptyPassword
	}

	logger := log.FromContext(ctx).WithComponent(log.ComponentAuth)

	rec, err := a.records.Load(ctx, username)
	if errors.Is(err, records.ErrNotFound) {
		credential, err := a.verifier.Hash(password)
		if err != nil {
			return Result{}, err
		}
		rec = core.NewUserRecord(username, email, credential)
		if err := a.records.Save(ctx, rec); err != nil {
			return Result{}, fmt.Errorf("register %q: %w", username, err)
		}
		logger.InfoContext(ctx, "User registered", log.FieldUsername, username, log.FieldOperation, log.OpRegister)
		return Result{NewUser: true, Record: rec}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if !a.verifier.Verify(rec.Password, password) {
		logger.WarnContext(ctx, "Login rejected", log.FieldUsername, username, log.FieldOperation, log.OpLogin)
		return Result{}, core.ErrIncorrectPassword
	}

	updated := rec.Clone()
	updated.Email = email
	if err := a.records.Save(ctx, updated); err != nil {
		return Result{}, fmt.Errorf("login %q: %w", username, err)
	}
	logger.InfoContext(ctx, "User logged in", log.FieldUsername, username, log.FieldOperation, log.OpLogin)
	return Result{Record: updated}, nil
}
