// Package session holds the in-memory record of each logged-in user.
//
// A Session owns one user's record for the lifetime of a login. Every
// mutation runs through Update, which works on a copy, persists it, and only
// then swaps it in, so a failed validation or save leaves nothing behind.
package session

import (
	"context"
	"errors"
	"sync"

	"allowance/internal/core"
)

// ErrNoChange can be returned from an Update callback to skip persistence
// without reporting an error.
var ErrNoChange = errors.New("no change")

// Saver persists a whole user record.
type Saver interface {
	Save(ctx context.Context, rec *core.UserRecord) error
}

// Tx is the mutable view handed to Update and Mark callbacks.
type Tx struct {
	Record      *core.UserRecord
	PendingEdit string
}

type Session struct {
	ID string

	mu          sync.Mutex
	record      *core.UserRecord
	pendingEdit string
	saver       Saver
}

func New(id string, rec *core.UserRecord, saver Saver) *Session {
	return &Session{ID: id, record: rec, saver: saver}
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Username
}

// Snapshot returns a copy of the record and the id of the expense pending edit.
func (s *Session) Snapshot() (*core.UserRecord, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone(), s.pendingEdit
}

// Update runs fn against a copy of the session state, saves the copied
// record, and commits it. If fn or the save fails the session is unchanged.
func (s *Session) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{Record: s.record.Clone(), PendingEdit: s.pendingEdit}
	if err := fn(tx); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	if err := s.saver.Save(ctx, tx.Record); err != nil {
		return err
	}
	s.record = tx.Record
	s.pendingEdit = tx.PendingEdit
	return nil
}

// Mark runs fn under the session lock and keeps only its change to the
// pending edit. Nothing is persisted.
func (s *Session) Mark(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{Record: s.record.Clone(), PendingEdit: s.pendingEdit}
	if err := fn(tx); err != nil {
		return err
	}
	s.pendingEdit = tx.PendingEdit
	return nil
}
