package amqp

import (
	"encoding/json"
	"time"

	"allowance/internal/core"
)

// MonthArchivedMessage is published after a month reset archived expenses.
type MonthArchivedMessage struct {
	Username     string     `json:"username"`
	MonthKey     string     `json:"month_key"`
	Allowance    core.Money `json:"allowance"`
	TotalSpent   core.Money `json:"total_spent"`
	ExpenseCount int        `json:"expense_count"`
	Timestamp    time.Time  `json:"timestamp"`
}

func NewMonthArchivedMessage(e core.MonthArchived) *MonthArchivedMessage {
	ts := e.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &MonthArchivedMessage{
		Username:     e.Username,
		MonthKey:     e.MonthKey,
		Allowance:    e.Allowance,
		TotalSpent:   e.TotalSpent,
		ExpenseCount: e.ExpenseCount,
		Timestamp:    ts.UTC(),
	}
}

// Remaining is the allowance left over at the end of the archived month.
func (m *MonthArchivedMessage) Remaining() core.Money {
	return m.Allowance.Sub(m.TotalSpent)
}

func (m *MonthArchivedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MonthArchivedMessageFromJSON(data []byte) (*MonthArchivedMessage, error) {
	var msg MonthArchivedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
