package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultCurrency is the symbol assigned to newly registered users.
const DefaultCurrency = "$"

// SupportedCurrencies lists the symbols a user can pick for display.
var SupportedCurrencies = []string{"$", "€", "£", "¥", "₹", "₦", "₱", "₩"}

type (
	// Expense is one dated, described, positive-amount spending entry.
	Expense struct {
		ID     string `json:"id"`
		Date   string `json:"date"`
		Desc   string `json:"desc"`
		Amount Money  `json:"amount"`
	}

	// ArchivedMonth is the allowance and expense list captured by a month reset.
	ArchivedMonth struct {
		Allowance Money     `json:"allowance"`
		Expenses  []Expense `json:"expenses"`
	}

	// UserRecord is the whole persisted state of one user.
	UserRecord struct {
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		Password  string    `json:"password"`
		Allowance Money     `json:"allowance"`
		Currency  string    `json:"currency"`
		Expenses  []Expense `json:"expenses"`
		History   History   `json:"history"`
	}

	// MonthArchived describes a completed month reset.
	MonthArchived struct {
		Username     string
		MonthKey     string
		Allowance    Money
		TotalSpent   Money
		ExpenseCount int
		At           time.Time
	}
)

var (
	// ErrValidation marks missing or malformed user input.
	ErrValidation = errors.New("validation error")
	// ErrAuth marks a credential mismatch on an existing account.
	ErrAuth = errors.New("auth error")

	ErrEmptyUsername       = fmt.Errorf("%w: username is required", ErrValidation)
	ErrEmptyEmail          = fmt.Errorf("%w: email is required", ErrValidation)
	ErrEmptyPassword       = fmt.Errorf("%w: password is required", ErrValidation)
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	ErrInvalidAllowance    = fmt.Errorf("%w: allowance must be a positive number", ErrValidation)
	ErrEmptyDate           = fmt.Errorf("%w: date is required", ErrValidation)
	ErrInvalidDate         = fmt.Errorf("%w: date must be formatted as YYYY-MM-DD", ErrValidation)
	ErrEmptyDescription    = fmt.Errorf("%w: description is required", ErrValidation)
	ErrDescriptionTooLong  = fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	ErrUnsupportedCurrency = fmt.Errorf("%w: unsupported currency", ErrValidation)
	ErrExpenseNotFound     = fmt.Errorf("%w: expense not found", ErrValidation)

	ErrIncorrectPassword = fmt.Errorf("%w: incorrect password", ErrAuth)

	// ErrAllowanceConfigured rejects first-time setup on a configured account.
	ErrAllowanceConfigured = errors.New("allowance already configured")
)

// DateLayout is the calendar date form used for expense dates.
const DateLayout = "2006-01-02"

// NewUserRecord returns a freshly registered record with default settings.
func NewUserRecord(username, email, credential string) *UserRecord {
	return &UserRecord{
		Username: username,
		Email:    email,
		Password: credential,
		Currency: DefaultCurrency,
		Expenses: []Expense{},
	}
}

// NewExpenseID returns a fresh stable identifier for an expense.
func NewExpenseID() string {
	return uuid.NewString()
}

// maxDescriptionRunes bounds descriptions in characters, not bytes.
const maxDescriptionRunes = 200

// ParseExpense validates raw form input and builds an expense without an ID.
func ParseExpense(date, desc, amount string) (Expense, error) {
	date = strings.TrimSpace(date)
	desc = strings.TrimSpace(desc)
	if date == "" {
		return Expense{}, ErrEmptyDate
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return Expense{}, ErrInvalidDate
	}
	if desc == "" {
		return Expense{}, ErrEmptyDescription
	}
	if utf8.RuneCountInString(desc) > maxDescriptionRunes {
		return Expense{}, ErrDescriptionTooLong
	}
	m, err := ParseMoney(amount)
	if err != nil {
		return Expense{}, ErrInvalidAmount
	}
	return Expense{Date: date, Desc: desc, Amount: m}, nil
}

// ParseAllowance validates a raw allowance value.
func ParseAllowance(raw string) (Money, error) {
	m, err := ParseMoney(raw)
	if err != nil {
		return Money{}, ErrInvalidAllowance
	}
	return m, nil
}

// ValidateCurrency reports whether symbol is one of SupportedCurrencies.
func ValidateCurrency(symbol string) error {
	for _, c := range SupportedCurrencies {
		if c == symbol {
			return nil
		}
	}
	return ErrUnsupportedCurrency
}

// MonthKey returns the history key for t: the year and the zero-based month index.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%d-%d", t.Year(), int(t.Month())-1)
}

// SumExpenses totals the amounts of expenses.
func SumExpenses(expenses []Expense) Money {
	total := Money{}
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// IsConfigured reports whether the monthly allowance has been set.
func (r *UserRecord) IsConfigured() bool {
	return r.Allowance.IsPositive()
}

// TotalSpent sums the current month's expenses.
func (r *UserRecord) TotalSpent() Money {
	return SumExpenses(r.Expenses)
}

// Remaining is the allowance minus what was spent. It may be negative.
func (r *UserRecord) Remaining() Money {
	return r.Allowance.Sub(r.TotalSpent())
}

// IndexOf returns the position of the expense with the given id, or -1.
func (r *UserRecord) IndexOf(id string) int {
	for i, e := range r.Expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Normalize fills in defaults missing from records written by older versions.
func (r *UserRecord) Normalize() {
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	if r.Expenses == nil {
		r.Expenses = []Expense{}
	}
	for i := range r.Expenses {
		if r.Expenses[i].ID == "" {
			r.Expenses[i].ID = NewExpenseID()
		}
	}
}

// Clone returns a deep copy of the record.
func (r *UserRecord) Clone() *UserRecord {
	c := *r
	c.Expenses = append([]Expense{}, r.Expenses...)
	c.History = r.History.Clone()
	return &c
}
