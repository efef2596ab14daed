// Package view derives everything the pages display from a user record.
// Nothing here mutates state; templates only format what BuildDashboard returns.
package view

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"allowance/internal/core"
)

// Tier classifies a daily total against the monthly allowance. Pages color
// bars by tier through the tier-* CSS classes.
type Tier string

const (
	TierLow  Tier = "low"
	TierMid  Tier = "mid"
	TierHigh Tier = "high"
)

// TierFor is low below a quarter of the allowance, mid below half, high otherwise.
func TierFor(amount, allowance core.Money) Tier {
	switch {
	case amount.LessThan(allowance.Fraction(0.25)):
		return TierLow
	case amount.LessThan(allowance.Fraction(0.5)):
		return TierMid
	default:
		return TierHigh
	}
}

// FormatMoney prefixes the currency symbol to the amount with two decimals.
// Negative amounts keep the sign after the symbol, as in "$-5.00".
func FormatMoney(symbol string, m core.Money) string {
	return symbol + m.Fixed()
}

type DailyTotal struct {
	Date   string
	Amount core.Money
}

// DailyTotals groups expenses by their exact date string and returns the
// sums in ascending date order.
func DailyTotals(expenses []core.Expense) []DailyTotal {
	sums := make(map[string]core.Money)
	for _, e := range expenses {
		sums[e.Date] = sums[e.Date].Add(e.Amount)
	}
	out := make([]DailyTotal, 0, len(sums))
	for date, amount := range sums {
		out = append(out, DailyTotal{Date: date, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

type (
	Bar struct {
		Date     string
		Total    string
		Tier     Tier
		WidthPct int
	}

	ExpenseRow struct {
		ID      string
		Date    string
		Desc    string
		Amount  string
		Editing bool
	}

	// ExpenseForm drives the add/update form. While Editing, the form posts an
	// update instead of an add and is pre-filled with the pending expense.
	ExpenseForm struct {
		Editing bool
		Date    string
		Desc    string
		Amount  string
	}

	HistoryItem struct {
		Key      string
		Label    string
		Selected bool
	}

	MonthDetail struct {
		Key           string
		Label         string
		Allowance     string
		TotalExpenses string
		Expenses      []ExpenseRow
	}

	CurrencyOption struct {
		Symbol   string
		Selected bool
	}

	Dashboard struct {
		Username       string
		Currency       string
		Currencies     []CurrencyOption
		Allowance      string
		AllowanceInput string
		TotalSpent     string
		Remaining      string
		Overspent      bool
		Expenses       []ExpenseRow
		ChartLabel     string
		Bars           []Bar
		Form           ExpenseForm
		History        []HistoryItem
		Month          *MonthDetail
	}
)

// BuildDashboard derives the dashboard for rec. pendingID is the expense
// pending edit, if any. selectedMonth is a history key to show in detail;
// unknown keys are ignored.
func BuildDashboard(rec *core.UserRecord, pendingID, selectedMonth string) Dashboard {
	sym := rec.Currency
	total := rec.TotalSpent()
	remaining := rec.Remaining()

	d := Dashboard{
		Username:       rec.Username,
		Currency:       sym,
		Allowance:      FormatMoney(sym, rec.Allowance),
		AllowanceInput: rec.Allowance.String(),
		TotalSpent:     FormatMoney(sym, total),
		Remaining:      FormatMoney(sym, remaining),
		Overspent:      remaining.IsNegative(),
		ChartLabel:     fmt.Sprintf("Total Daily Expenses (%s)", sym),
		Bars:           Bars(rec.Expenses, rec.Allowance, sym),
	}

	for _, c := range core.SupportedCurrencies {
		d.Currencies = append(d.Currencies, CurrencyOption{Symbol: c, Selected: c == sym})
	}

	d.Expenses = rows(rec.Expenses, sym, pendingID)
	if i := rec.IndexOf(pendingID); pendingID != "" && i >= 0 {
		e := rec.Expenses[i]
		d.Form = ExpenseForm{Editing: true, Date: e.Date, Desc: e.Desc, Amount: e.Amount.String()}
	}

	for _, key := range rec.History.Keys() {
		d.History = append(d.History, HistoryItem{Key: key, Label: MonthLabel(key), Selected: key == selectedMonth})
	}
	if m, ok := rec.History.Get(selectedMonth); ok {
		d.Month = &MonthDetail{
			Key:           selectedMonth,
			Label:         MonthLabel(selectedMonth),
			Allowance:     FormatMoney(sym, m.Allowance),
			TotalExpenses: FormatMoney(sym, core.SumExpenses(m.Expenses)),
			Expenses:      rows(m.Expenses, sym, ""),
		}
	}
	return d
}

// Bars builds the daily chart. Widths are percentages of the largest day,
// never below 2 so tiny days stay visible.
func Bars(expenses []core.Expense, allowance core.Money, symbol string) []Bar {
	totals := DailyTotals(expenses)
	if len(totals) == 0 {
		return nil
	}

	top := totals[0].Amount
	for _, t := range totals[1:] {
		if top.LessThan(t.Amount) {
			top = t.Amount
		}
	}

	hundred := decimal.NewFromInt(100)
	bars := make([]Bar, 0, len(totals))
	for _, t := range totals {
		width := 100
		if top.IsPositive() {
			width = int(t.Amount.Decimal().Mul(hundred).Div(top.Decimal()).IntPart())
		}
		if width < 2 {
			width = 2
		}
		tier := TierFor(t.Amount, allowance)
		bars = append(bars, Bar{
			Date:     t.Date,
			Total:    FormatMoney(symbol, t.Amount),
			Tier:     tier,
			WidthPct: width,
		})
	}
	return bars
}

// MonthLabel renders a history key such as "2024-2" as "March 2024".
// Keys that do not parse are returned unchanged.
func MonthLabel(key string) string {
	year, month, ok := strings.Cut(key, "-")
	if !ok {
		return key
	}
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	if err1 != nil || err2 != nil || m < 0 || m > 11 {
		return key
	}
	return fmt.Sprintf("%s %d", time.Month(m+1), y)
}

func rows(expenses []core.Expense, symbol, pendingID string) []ExpenseRow {
	out := make([]ExpenseRow, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, ExpenseRow{
			ID:      e.ID,
			Date:    e.Date,
			Desc:    e.Desc,
			Amount:  FormatMoney(symbol, e.Amount),
			Editing: pendingID != "" && e.ID == pendingID,
		})
	}
	return out
}
