package services

import (
	"context"
	"time"

	"allowance/internal/core"
	"allowance/internal/log"
	"allowance/internal/session"
)

// ArchiveNotifier is told about every month that reset archived.
type ArchiveNotifier interface {
	NotifyMonthArchived(ctx context.Context, event core.MonthArchived) error
}

// AllowanceService manages the monthly allowance, the display currency and
// month resets.
type AllowanceService struct {
	notifier ArchiveNotifier
}

// NewAllowanceService creates the service. notifier may be nil.
func NewAllowanceService(notifier ArchiveNotifier) *AllowanceService {
	return &AllowanceService{notifier: notifier}
}

// SetAllowance is the first-time setup path: it sets the allowance and
// starts the month with no expenses.
func (s *AllowanceService) SetAllowance(ctx context.Context, sess *session.Session, raw string) error {
	amount, err := core.ParseAllowance(raw)
	if err != nil {
		return err
	}
	return sess.Update(ctx, func(tx *session.Tx) error {
		if tx.Record.IsConfigured() {
			return core.ErrAllowanceConfigured
		}
		tx.Record.Allowance = amount
		tx.Record.Expenses = []core.Expense{}
		tx.PendingEdit = ""
		return nil
	})
}

// EditAllowance overwrites the allowance and leaves expenses alone.
func (s *AllowanceService) EditAllowance(ctx context.Context, sess *session.Session, raw string) error {
	amount, err := core.ParseAllowance(raw)
	if err != nil {
		return err
	}
	return sess.Update(ctx, func(tx *session.Tx) error {
		tx.Record.Allowance = amount
		return nil
	})
}

func (s *AllowanceService) SetCurrency(ctx context.Context, sess *session.Session, symbol string) error {
	if err := core.ValidateCurrency(symbol); err != nil {
		return err
	}
	return sess.Update(ctx, func(tx *session.Tx) error {
		tx.Record.Currency = symbol
		return nil
	})
}

// ResetMonth archives the current expenses under the month key of now, if
// there are any, and clears them. The record is saved either way.
func (s *AllowanceService) ResetMonth(ctx context.Context, sess *session.Session, now time.Time) (bool, error) {
	var event *core.MonthArchived

	err := sess.Update(ctx, func(tx *session.Tx) error {
		rec := tx.Record
		if len(rec.Expenses) > 0 {
			key := core.MonthKey(now)
			rec.History.Put(key, core.ArchivedMonth{
				Allowance: rec.Allowance,
				Expenses:  rec.Expenses,
			})
			event = &core.MonthArchived{
				Username:     rec.Username,
				MonthKey:     key,
				Allowance:    rec.Allowance,
				TotalSpent:   rec.TotalSpent(),
				ExpenseCount: len(rec.Expenses),
				At:           now,
			}
		}
		rec.Expenses = []core.Expense{}
		tx.PendingEdit = ""
		return nil
	})
	if err != nil {
		return false, err
	}
	if event == nil {
		return false, nil
	}

	logger := log.FromContext(ctx).WithComponent(log.ComponentAllowance)
	logger.InfoContext(ctx, "Month archived",
		log.FieldUsername, event.Username,
		log.FieldMonthKey, event.MonthKey,
		"expense_count", event.ExpenseCount)

	if s.notifier != nil {
		if err := s.notifier.NotifyMonthArchived(ctx, *event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish month archived message",
				log.FieldUsername, event.Username,
				log.FieldMonthKey, event.MonthKey,
				log.FieldOperation, log.OpNotify,
				log.FieldError, err)
		}
	}
	return true, nil
}
