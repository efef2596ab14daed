package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"allowance/internal/amqp"
	"allowance/internal/core"
	"allowance/internal/records"
)

// RecordLoader reads user records.
type RecordLoader interface {
	Load(ctx context.Context, username string) (*core.UserRecord, error)
}

// Summary is what the worker reports for each archived month.
type Summary struct {
	Username     string
	MonthKey     string
	Allowance    core.Money
	TotalSpent   core.Money
	Remaining    core.Money
	ExpenseCount int
	Overspent    bool
}

// ArchiveWorker checks each month-archived message against the stored
// record and reports a month summary.
type ArchiveWorker struct {
	records RecordLoader
	report  func(context.Context, Summary)
}

// NewArchiveWorker creates a worker. A nil report logs each summary.
func NewArchiveWorker(loader RecordLoader, report func(context.Context, Summary)) *ArchiveWorker {
	if report == nil {
		report = logSummary
	}
	return &ArchiveWorker{records: loader, report: report}
}

// HandleMonthArchived is the consumer callback. Messages for unknown users or
// months are dropped; storage errors are returned so the message is retried.
func (w *ArchiveWorker) HandleMonthArchived(ctx context.Context, msg *amqp.MonthArchivedMessage) error {
	rec, err := w.records.Load(ctx, msg.Username)
	if errors.Is(err, records.ErrNotFound) {
		slog.WarnContext(ctx, "Archived month for unknown user", "username", msg.Username, "month_key", msg.MonthKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}

	month, ok := rec.History.Get(msg.MonthKey)
	if !ok {
		slog.WarnContext(ctx, "Archived month missing from history", "username", msg.Username, "month_key", msg.MonthKey)
		return nil
	}

	total := core.SumExpenses(month.Expenses)
	if !total.Equal(msg.TotalSpent) || len(month.Expenses) != msg.ExpenseCount {
		// Re-archiving the same month replaces the snapshot; the stored
		// one is authoritative.
		slog.InfoContext(ctx, "Archived month changed since message was published",
			"username", msg.Username, "month_key", msg.MonthKey)
	}

	remaining := month.Allowance.Sub(total)
	w.report(ctx, Summary{
		Username:     msg.Username,
		MonthKey:     msg.MonthKey,
		Allowance:    month.Allowance,
		TotalSpent:   total,
		Remaining:    remaining,
		ExpenseCount: len(month.Expenses),
		Overspent:    remaining.IsNegative(),
	})
	return nil
}

func logSummary(ctx context.Context, s Summary) {
	slog.InfoContext(ctx, "Month summary",
		"username", s.Username,
		"month_key", s.MonthKey,
		"allowance", s.Allowance.Fixed(),
		"total_spent", s.TotalSpent.Fixed(),
		"remaining", s.Remaining.Fixed(),
		"expense_count", s.ExpenseCount,
		"overspent", s.Overspent)
}
