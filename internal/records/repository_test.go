package records

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"allowance/internal/core"
	"allowance/internal/kv/memory"
)

func sampleRecord() *core.UserRecord {
	rec := core.NewUserRecord("alice", "a@x.com", "pw1")
	rec.Allowance = core.MoneyFromFloat(100)
	rec.Currency = "€"
	rec.Expenses = []core.Expense{
		{ID: "e1", Date: "2024-01-05", Desc: "coffee", Amount: core.MoneyFromFloat(4.5)},
		{ID: "e2", Date: "2024-01-06", Desc: "book", Amount: core.MoneyFromFloat(12)},
	}
	rec.History.Put("2023-11", core.ArchivedMonth{
		Allowance: core.MoneyFromFloat(90),
		Expenses:  []core.Expense{{ID: "h1", Date: "2023-12-01", Desc: "gift", Amount: core.MoneyFromFloat(30)}},
	})
	rec.History.Put("2023-10", core.ArchivedMonth{Allowance: core.MoneyFromFloat(80), Expenses: []core.Expense{}})
	return rec
}

func TestSaveThenLoadIsDeepEqual(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.New())
	rec := sampleRecord()

	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want, _ := json.Marshal(rec)
	have, _ := json.Marshal(got)
	if string(want) != string(have) {
		t.Fatalf("round trip mismatch:\nwant %s\nhave %s", want, have)
	}
	if !reflect.DeepEqual(got.History.Keys(), []string{"2023-11", "2023-10"}) {
		t.Fatalf("history order lost: %v", got.History.Keys())
	}
	for i := range rec.Expenses {
		if !got.Expenses[i].Amount.Equal(rec.Expenses[i].Amount) || got.Expenses[i].ID != rec.Expenses[i].ID {
			t.Fatalf("expense %d differs: %+v vs %+v", i, got.Expenses[i], rec.Expenses[i])
		}
	}
}

func TestLoadMissing(t *testing.T) {
	repo := NewRepository(memory.New())
	if _, err := repo.Load(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadLegacyDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	legacy := `{"username":"bob","email":"b@x.com","password":"pw","allowance":50,` +
		`"expenses":[{"date":"2024-02-01","desc":"tea","amount":2}],"history":{}}`
	if err := store.Set(ctx, "bob", []byte(legacy)); err != nil {
		t.Fatal(err)
	}

	rec, err := NewRepository(store).Load(ctx, "bob")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Currency != core.DefaultCurrency {
		t.Errorf("currency = %q, want default", rec.Currency)
	}
	if rec.Expenses[0].ID == "" {
		t.Error("legacy expense should get an id")
	}
}

func TestLoadCorruptDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_ = store.Set(ctx, "eve", []byte("{not json"))
	if _, err := NewRepository(store).Load(ctx, "eve"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestSaveRequiresUsername(t *testing.T) {
	repo := NewRepository(memory.New())
	if err := repo.Save(context.Background(), &core.UserRecord{}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
