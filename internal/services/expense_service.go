package services

import (
	"context"

	"allowance/internal/core"
	"allowance/internal/session"
)

// ExpenseService adds, edits and deletes the current month's expenses. At
// most one expense per session is pending edit.
type ExpenseService struct{}

func NewExpenseService() *ExpenseService {
	return &ExpenseService{}
}

// AddExpense validates the input and appends a new expense.
func (s *ExpenseService) AddExpense(ctx context.Context, sess *session.Session, date, desc, amount string) (core.Expense, error) {
	e, err := core.ParseExpense(date, desc, amount)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = core.NewExpenseID()

	err = sess.Update(ctx, func(tx *session.Tx) error {
		tx.Record.Expenses = append(tx.Record.Expenses, e)
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// BeginEdit marks the expense as pending edit and returns it for the form.
func (s *ExpenseService) BeginEdit(sess *session.Session, id string) (core.Expense, error) {
	var found core.Expense
	err := sess.Mark(func(tx *session.Tx) error {
		i := tx.Record.IndexOf(id)
		if i < 0 {
			return core.ErrExpenseNotFound
		}
		found = tx.Record.Expenses[i]
		tx.PendingEdit = id
		return nil
	})
	return found, err
}

// CommitEdit replaces the pending expense in place, keeping its id and
// position. Without a pending edit it does nothing.
func (s *ExpenseService) CommitEdit(ctx context.Context, sess *session.Session, date, desc, amount string) error {
	return sess.Update(ctx, func(tx *session.Tx) error {
		if tx.PendingEdit == "" {
			return session.ErrNoChange
		}
		e, err := core.ParseExpense(date, desc, amount)
		if err != nil {
			return err
		}
		i := tx.Record.IndexOf(tx.PendingEdit)
		if i < 0 {
			return core.ErrExpenseNotFound
		}
		e.ID = tx.PendingEdit
		tx.Record.Expenses[i] = e
		tx.PendingEdit = ""
		return nil
	})
}

func (s *ExpenseService) CancelEdit(sess *session.Session) {
	_ = sess.Mark(func(tx *session.Tx) error {
		tx.PendingEdit = ""
		return nil
	})
}

// DeleteExpense removes the expense; later ones move up one position.
// Deleting the expense pending edit cancels the edit.
func (s *ExpenseService) DeleteExpense(ctx context.Context, sess *session.Session, id string) error {
	return sess.Update(ctx, func(tx *session.Tx) error {
		i := tx.Record.IndexOf(id)
		if i < 0 {
			return core.ErrExpenseNotFound
		}
		tx.Record.Expenses = append(tx.Record.Expenses[:i], tx.Record.Expenses[i+1:]...)
		if tx.PendingEdit == id {
			tx.PendingEdit = ""
		}
		return nil
	})
}
