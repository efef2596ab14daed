package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// History maps month keys to archived months and remembers the order in
// which each key was first written. JSON objects are read and written in
// that order.
type History struct {
	keys   []string
	months map[string]ArchivedMonth
}

// Put stores the snapshot for key. An existing key keeps its position.
func (h *History) Put(key string, month ArchivedMonth) {
	if h.months == nil {
		h.months = make(map[string]ArchivedMonth)
	}
	if _, ok := h.months[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.months[key] = month
}

func (h History) Get(key string) (ArchivedMonth, bool) {
	m, ok := h.months[key]
	return m, ok
}

// Keys returns the month keys in first-write order.
func (h History) Keys() []string {
	return append([]string(nil), h.keys...)
}

func (h History) Len() int { return len(h.keys) }

// Clone copies the history, including each archived expense list.
func (h History) Clone() History {
	var c History
	for _, k := range h.keys {
		m := h.months[k]
		c.Put(k, ArchivedMonth{
			Allowance: m.Allowance,
			Expenses:  append([]Expense{}, m.Expenses...),
		})
	}
	return c
}

func (h History) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range h.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		month, err := json.Marshal(h.months[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(month)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (h *History) UnmarshalJSON(data []byte) error {
	*h = History{}
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("history: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("history: expected string key, got %v", tok)
		}
		var month ArchivedMonth
		if err := dec.Decode(&month); err != nil {
			return fmt.Errorf("history %q: %w", key, err)
		}
		if month.Expenses == nil {
			month.Expenses = []Expense{}
		}
		h.Put(key, month)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
