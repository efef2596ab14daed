package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"allowance/internal/auth"
	"allowance/internal/core"
	"allowance/internal/kv/memory"
	"allowance/internal/log"
	"allowance/internal/records"
	"allowance/internal/services"
	"allowance/internal/session"
)

var testNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

type testApp struct {
	t      *testing.T
	srv    *Server
	repo   *records.Repository
	cookie *http.Cookie
}

func newTestApp(t *testing.T, store Pinger, repo *records.Repository) *testApp {
	t.Helper()
	sessions := session.NewManager(repo, time.Hour)
	srv := NewServer(":0", Deps{
		Auth:      auth.NewAuthenticator(repo, auth.PlainVerifier{}),
		Sessions:  sessions,
		Allowance: services.NewAllowanceService(nil),
		Expenses:  services.NewExpenseService(),
		Store:     store,
		Logger:    log.New(log.Config{Level: slog.LevelError, Output: io.Discard}),
		Now:       func() time.Time { return testNow },
		PostLimit: 1000,
	})
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		sessions.Stop()
	})
	return &testApp{t: t, srv: srv, repo: repo}
}

func newMemoryApp(t *testing.T) *testApp {
	store := memory.New()
	return newTestApp(t, store, records.NewRepository(store))
}

func (a *testApp) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	a.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie {
			if c.MaxAge < 0 {
				a.cookie = nil
			} else {
				a.cookie = c
			}
		}
	}
	return rr
}

func (a *testApp) post(path string, kv ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	form := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		form.Set(kv[i], kv[i+1])
	}
	return a.do(http.MethodPost, path, form)
}

func (a *testApp) get(path string) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.do(http.MethodGet, path, nil)
}

func (a *testApp) load(username string) *core.UserRecord {
	a.t.Helper()
	rec, err := a.repo.Load(context.Background(), username)
	if err != nil {
		a.t.Fatalf("load %q: %v", username, err)
	}
	return rec
}

func (a *testApp) loginWithAllowance(allowance string) {
	a.t.Helper()
	if rr := a.post("/login", "username", "alice", "email", "a@x.com", "password", "pw1"); rr.Code != http.StatusSeeOther {
		a.t.Fatalf("login status=%d", rr.Code)
	}
	if rr := a.post("/allowance", "allowance", allowance); rr.Code != http.StatusSeeOther {
		a.t.Fatalf("set allowance status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func expectRedirect(t *testing.T, rr *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status=%d, want 303", rr.Code)
	}
	if got := rr.Header().Get("Location"); got != location {
		t.Fatalf("Location=%q, want %q", got, location)
	}
}

func TestHealthAndReady(t *testing.T) {
	app := newMemoryApp(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := app.get(path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s content-type=%q", path, ct)
		}
	}
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyFailsWhenStoreDown(t *testing.T) {
	store := memory.New()
	app := newTestApp(t, downStore{}, records.NewRepository(store))

	rr := app.get("/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("body missing store failure: %s", rr.Body.String())
	}
}

func TestIndexRoutesBySession(t *testing.T) {
	app := newMemoryApp(t)
	expectRedirect(t, app.get("/"), "/login")

	app.loginWithAllowance("100")
	expectRedirect(t, app.get("/"), "/dashboard")
}

func TestProtectedPagesRequireSession(t *testing.T) {
	app := newMemoryApp(t)
	for _, path := range []string{"/dashboard", "/allowance"} {
		expectRedirect(t, app.get(path), "/login")
	}
	expectRedirect(t, app.post("/expenses", "date", "2024-01-05", "desc", "x", "amount", "1"), "/login")
}

func TestRegisterRoutesToAllowanceSetup(t *testing.T) {
	app := newMemoryApp(t)

	rr := app.post("/login", "username", "alice", "email", "a@x.com", "password", "pw1")
	expectRedirect(t, rr, "/allowance")
	if app.cookie == nil || !app.cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", app.cookie)
	}

	rec := app.load("alice")
	if !rec.Allowance.IsZero() || rec.Currency != "$" {
		t.Fatalf("unexpected new record: %+v", rec)
	}

	// Until an allowance is set the dashboard sends users back to setup.
	expectRedirect(t, app.get("/dashboard"), "/allowance")

	rr = app.get("/allowance")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Hi alice") {
		t.Fatalf("allowance page status=%d", rr.Code)
	}
}

func TestLoginValidationAndWrongPassword(t *testing.T) {
	app := newMemoryApp(t)

	rr := app.post("/login", "username", "alice", "email", "", "password", "pw1")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing email status=%d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Email is required") {
		t.Fatalf("missing banner: %s", rr.Body.String())
	}

	app.loginWithAllowance("100")
	before := app.load("alice")
	app.post("/logout")
	if app.cookie != nil {
		t.Fatalf("logout should clear the cookie")
	}

	rr = app.post("/login", "username", "alice", "email", "other@x.com", "password", "pw2")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status=%d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Incorrect password") {
		t.Fatalf("missing banner: %s", rr.Body.String())
	}
	if app.cookie != nil {
		t.Fatalf("failed login must not start a session")
	}

	after := app.load("alice")
	if after.Email != before.Email || !after.Allowance.Equal(before.Allowance) {
		t.Fatalf("record mutated by failed login: %+v", after)
	}
}

func TestReturningUserGoesToDashboard(t *testing.T) {
	app := newMemoryApp(t)
	app.loginWithAllowance("100")
	app.post("/logout")

	rr := app.post("/login", "username", "alice", "email", "new@x.com", "password", "pw1")
	expectRedirect(t, rr, "/dashboard")
	if got := app.load("alice").Email; got != "new@x.com" {
		t.Fatalf("email=%q, want refreshed", got)
	}
}

func TestAddExpenseUpdatesSummary(t *testing.T) {
	app := newMemoryApp(t)
	app.loginWithAllowance("100")

	expectRedirect(t, app.post("/expenses", "date", "2024-01-05", "desc", "coffee", "amount", "4.5"), "/dashboard")

	rr := app.get("/dashboard")
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"$100.00", "$4.50", "$95.50", "coffee", "Total Daily Expenses ($)"} {
		if !strings.Contains(body, want) {
			t.Fatalf("dashboard missing %q", want)
		}
	}
}

func TestAddExpenseValidationKeepsInput(t *testing.T) {
	app := newMemoryApp(t)
	app.loginWithAllowance("100")

	rr := app.post("/expenses", "date", "2024-01-05", "desc", "lunch", "amount", "-3")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Amount must be a positive number") {
		t.Fatalf("missing banner: %s", body)
	}
	if !strings.Contains(body, `value="lunch"`) {
		t.Fatalf("form lost the typed description")
	}
	if n := len(app.load("alice").Expenses); n != 0 {
		t.Fatalf("expenses=%d, want 0", n)
	}
}

func TestDailyChartTiers(t *testing.T) {
	app := newMemoryApp(t)
	app.loginWithAllowance("100")

	app.post("/expenses", "date", "2024-01-05", "desc", "a", "amount", "10")
	app.post("/expenses", "date", "2024-01-05", "desc", "b", "amount", "20")
	app.post("/expenses", "date", "2024-01-06", "desc", "c", "amount", "60")

	body := app.get("/dashboard").Body.String()
	for _, want := range []string{"tier-mid", "tier-high", "$30.00", "$60.00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("chart missing %q", want)
		}
	}
}

func TestEditFlow(t *testing.T) {
	app := newMemoryApp(t)
	app.loginWithAllowance("100")
	app.post("/expenses", "date", "2024-01-05", "desc", "coffee", "amount", "4.5")
	app.post("/expenses", "date", "2024-01-06", "desc", "tea", "amount", "2")

	id := app.load("alice").Expenses[0].ID
	expectRedirect(t, app.post("/expenses/"+id+"/edit"), "/dashboard#expense-form")

	body := app.get("/dashboard").Body.String()
	if !strings.Contains(body, `action="/expenses/update"`) || !strings.Contains(body, `value="coffee"`) {
		t.Fatalf("form not in edit mode")
	}

	rr := app.post("/expenses/update", "date", "2024-01-05", "desc", "", "amount", "5")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid update status=%d, want 422", rr.Code)
	}

	expectRedirect(t, app.post("/expenses/update", "date", "2024-01-05", "desc", "espresso", "amount", "5"), "/dashboard")

	rec := app.load("alice")
	if len(rec.Expenses) != 2 || rec.Expenses[0].ID != id || rec.Expenses[0].Desc != "espresso" {
		t.Fatalf("edit did not replace in place: %+v", rec.Expenses)
	}
	if !strings.Contains(app.get("/dashboard").Body.String(), `action="/expenses"`) {
		t.Fatalf("form should be back in add mode")
	}
}

func TestCancelEdit(t *testing.T) {
	app := newMemoryApp(t)
	app.loginWithAllowance("100")
	app.post("/expenses", "date", "2024-01-05", "desc", "coffee", "amount", "4.5")
	id := app.load("alice").Expenses[0].ID

	app.post("/expenses/" + id + "/edit")
	expectRedirect(t, app.post("/expenses/cancel"), "/dashboard")

	if strings.Contains(app.get("/dashboard").Body.String(), `action="/expenses/update"`) {
		t.Fatalf("edit still pending after cancel")
	}
}

func TestDeleteShiftsExpenses(t *testing.T) {
	app := newMemoryApp(t)
	app.loginWithAllowance("100")
	app.post("/expenses", "date", "2024-01-05", "desc", "first", "amount", "1")
	app.post("/expenses", "date", "2024-01-06", "desc", "second", "amount", "2")

	first := app.load("alice").Expenses[0].ID
	expectRedirect(t, app.post("/expenses/"+first+"/delete"), "/dashboard")

	rec := app.load("alice")
	if len(rec.Expenses) != 1 || rec.Expenses[0].Desc != "second" {
		t.Fatalf("unexpected expenses after delete: %+v", rec.Expenses)
	}

	rr := app.post("/expenses/" + first + "/delete")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("deleting unknown id status=%d, want 422", rr.Code)
	}
}

func TestResetMonthArchives(t *testing.T) {
	app := newMemoryApp(t)
	app.loginWithAllowance("100")
	app.post("/expenses", "date", "2024-03-02", "desc", "rent share", "amount", "40")

	expectRedirect(t, app.post("/reset"), "/dashboard")

	rec := app.load("alice")
	if len(rec.Expenses) != 0 {
		t.Fatalf("expenses not cleared: %+v", rec.Expenses)
	}
	month, ok := rec.History.Get("2024-2")
	if !ok {
		t.Fatalf("history missing 2024-2, keys=%v", rec.History.Keys())
	}
	if !month.Allowance.Equal(core.MoneyFromFloat(100)) || len(month.Expenses) != 1 {
		t.Fatalf("unexpected archive: %+v", month)
	}

	body := app.get("/dashboard?month=2024-2").Body.String()
	for _, want := range []string{"March 2024", "rent share", "$40.00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("history detail missing %q", want)
		}
	}
}

func TestEditAllowanceAndCurrency(t *testing.T) {
	app := newMemoryApp(t)
	app.loginWithAllowance("100")
	app.post("/expenses", "date", "2024-01-05", "desc", "coffee", "amount", "4.5")

	expectRedirect(t, app.post("/allowance/edit", "allowance", "250"), "/dashboard")
	expectRedirect(t, app.post("/currency", "currency", "€"), "/dashboard")

	rec := app.load("alice")
	if !rec.Allowance.Equal(core.MoneyFromFloat(250)) || len(rec.Expenses) != 1 || rec.Currency != "€" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !strings.Contains(app.get("/dashboard").Body.String(), "€245.50") {
		t.Fatalf("remaining not shown in new currency")
	}

	tests := []struct {
		name string
		path string
		kv   []string
	}{
		{"zero allowance", "/allowance/edit", []string{"allowance", "0"}},
		{"text allowance", "/allowance/edit", []string{"allowance", "lots"}},
		{"unknown currency", "/currency", []string{"currency", "XYZ"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.post(tt.path, tt.kv...)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d, want 422", rr.Code)
			}
		})
	}
}

func TestSetAllowanceRejectsInvalid(t *testing.T) {
	app := newMemoryApp(t)
	app.post("/login", "username", "bob", "email", "b@x.com", "password", "pw")

	rr := app.post("/allowance", "allowance", "abc")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Allowance must be a positive number") {
		t.Fatalf("missing banner: %s", rr.Body.String())
	}
}

func TestSetAllowanceOnConfiguredAccountKeepsExpenses(t *testing.T) {
	app := newMemoryApp(t)
	app.loginWithAllowance("100")
	app.post("/expenses", "date", "2024-03-01", "desc", "coffee", "amount", "4.5")
	app.post("/expenses", "date", "2024-03-02", "desc", "lunch", "amount", "12")

	expectRedirect(t, app.post("/allowance", "allowance", "150"), "/dashboard")
	expectRedirect(t, app.get("/allowance"), "/dashboard")

	rec := app.load("alice")
	if rec.Allowance.Fixed() != "100.00" || len(rec.Expenses) != 2 {
		t.Fatalf("record changed: allowance=%s expenses=%d", rec.Allowance.Fixed(), len(rec.Expenses))
	}
}

func TestDashboardPostsRequireAllowance(t *testing.T) {
	app := newMemoryApp(t)
	app.post("/login", "username", "alice", "email", "a@x.com", "password", "pw1")

	cases := []struct {
		path string
		kv   []string
	}{
		{"/expenses", []string{"date", "2024-03-01", "desc", "coffee", "amount", "4.5"}},
		{"/reset", nil},
		{"/allowance/edit", []string{"allowance", "50"}},
		{"/currency", []string{"currency", "€"}},
		{"/expenses/update", []string{"date", "2024-03-01", "desc", "coffee", "amount", "4.5"}},
		{"/expenses/cancel", nil},
		{"/expenses/abc/edit", nil},
		{"/expenses/abc/delete", nil},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			expectRedirect(t, app.post(tc.path, tc.kv...), "/allowance")
		})
	}

	rec := app.load("alice")
	if rec.IsConfigured() || len(rec.Expenses) != 0 || len(rec.History) != 0 || rec.Currency == "€" {
		t.Fatalf("unconfigured record was modified: %+v", rec)
	}
}

func TestRequestLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	store := memory.New()
	repo := records.NewRepository(store)
	sessions := session.NewManager(repo, time.Hour)
	srv := NewServer(":0", Deps{
		Auth:      auth.NewAuthenticator(repo, auth.PlainVerifier{}),
		Sessions:  sessions,
		Allowance: services.NewAllowanceService(nil),
		Expenses:  services.NewExpenseService(),
		Store:     store,
		Logger:    log.New(log.Config{Level: slog.LevelInfo, Format: "json", Output: &buf}),
		Now:       func() time.Time { return testNow },
		PostLimit: 1000,
	})
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		sessions.Stop()
	})

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	out := buf.String()
	if !strings.Contains(out, "HTTP request completed") {
		t.Fatalf("no completion log: %s", out)
	}
	for _, field := range []string{`"` + log.FieldRequestID + `":"`, `"` + log.FieldClientIP + `":"`} {
		if !strings.Contains(out, field) {
			t.Fatalf("completion log missing %s: %s", field, out)
		}
	}
}

type failingStore struct {
	*memory.Store
	fail bool
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, value)
}

func TestStorageFailureIs500AndLeavesSessionUnchanged(t *testing.T) {
	store := &failingStore{Store: memory.New()}
	app := newTestApp(t, store, records.NewRepository(store))
	app.loginWithAllowance("100")

	store.fail = true
	rr := app.post("/expenses", "date", "2024-01-05", "desc", "coffee", "amount", "4.5")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "disk full") {
		t.Fatalf("storage error leaked to the page")
	}

	store.fail = false
	if body := app.get("/dashboard").Body.String(); strings.Contains(body, "coffee") {
		t.Fatalf("failed save still visible in session")
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := newMemoryApp(t)
	rr := app.get("/login")
	if rr.Code != http.StatusOK {
		t.Fatalf("login page status=%d", rr.Code)
	}
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Fatalf("missing header %s", h)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	app := newMemoryApp(t)
	for _, path := range []string{"/static/app.css", "/static/app.js"} {
		if rr := app.get(path); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}
