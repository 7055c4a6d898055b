package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/advisor"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/goals"
	"fintrack/internal/llm"
	applog "fintrack/internal/log"
	"fintrack/internal/records"
	"fintrack/internal/services"
	"fintrack/internal/store/memory"
)

// fakeCompleter answers by recognizing which prompt it was sent.
type fakeCompleter struct {
	mu        sync.Mutex
	summaries int
	err       error
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	last := msgs[len(msgs)-1].Content
	switch {
	case strings.Contains(last, "Categorize the following expense"):
		return "Food", nil
	case strings.Contains(last, "general or specific"):
		return "general", nil
	case strings.Contains(last, "financial health"):
		f.summaries++
		return "Your finances look healthy.", nil
	default:
		return "Put a little aside every month.", nil
	}
}

func (f *fakeCompleter) summaryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaries
}

func (f *fakeCompleter) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newTestServer(t *testing.T) (*Server, *fakeCompleter) {
	t.Helper()
	return newTestServerWith(t, Options{AuthRequestsPerMinute: 100, AIRequestsPerMinute: 100})
}

func newTestServerWith(t *testing.T, opts Options) (*Server, *fakeCompleter) {
	t.Helper()
	st := memory.New()
	repo := records.NewRepository(st)
	completer := &fakeCompleter{}
	adv := advisor.New(completer)
	insights := cache.NewLRUCache[services.Insight](16, time.Hour)

	srv, err := NewServer(":0", Deps{
		Auth:       auth.NewService(st, repo, []byte("test-secret-0123456789abcdef0123"), time.Hour),
		Ledger:     services.NewLedgerService(repo, goals.NewPlanner(time.Now), adv, nil),
		Dashboard:  services.NewDashboardService(repo, adv, insights),
		Advisor:    services.NewAdvisorService(repo, adv, 0),
		Profiles:   services.NewProfileService(repo),
		Store:      st,
		Logger:     applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard}),
		CacheStats: insights.Stats,
	}, opts)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, completer
}

// client replays cookies between requests like a browser.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, s *Server) *client {
	return &client{t: t, handler: s.Handler, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, target, "", "")
}

func (c *client) form(target string, v url.Values) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, target, "application/x-www-form-urlencoded", v.Encode())
}

func (c *client) json(target, body string) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, target, "application/json", body)
}

func signedIn(t *testing.T, s *Server, email string) *client {
	t.Helper()
	c := newClient(t, s)
	w := c.form("/signup", url.Values{"email": {email}, "password": {"secret-pass"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("signup status = %d, body = %s", w.Code, w.Body.String())
	}
	if _, ok := c.cookies[auth.CookieName]; !ok {
		t.Fatal("signup did not set a session cookie")
	}
	return c
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, want, w.Body.String())
	}
}

func assertContains(t *testing.T, w *httptest.ResponseRecorder, parts ...string) {
	t.Helper()
	body := w.Body.String()
	for _, p := range parts {
		if !strings.Contains(body, p) {
			t.Errorf("body missing %q", p)
		}
	}
}

func TestPrivateRoutesRequireSession(t *testing.T) {
	s, _ := newTestServer(t)
	c := newClient(t, s)

	w := c.get("/")
	assertStatus(t, w, http.StatusSeeOther)
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}

	assertStatus(t, c.get("/api/dashboard"), http.StatusUnauthorized)
	assertStatus(t, c.form("/expenses", url.Values{"description": {"x"}, "amount": {"1"}}), http.StatusUnauthorized)
}

func TestSignupLoginLogout(t *testing.T) {
	s, _ := newTestServer(t)
	c := signedIn(t, s, "ana@example.com")

	assertStatus(t, c.get("/"), http.StatusOK)

	dup := newClient(t, s).form("/signup", url.Values{"email": {"ANA@example.com"}, "password": {"another-pass"}})
	assertStatus(t, dup, http.StatusConflict)
	assertContains(t, dup, "already exists")

	weak := newClient(t, s).form("/signup", url.Values{"email": {"bo@example.com"}, "password": {"123"}})
	assertStatus(t, weak, http.StatusUnprocessableEntity)

	assertStatus(t, c.form("/logout", nil), http.StatusSeeOther)
	assertStatus(t, c.get("/"), http.StatusSeeOther)

	bad := c.form("/login", url.Values{"email": {"ana@example.com"}, "password": {"wrong-pass"}})
	assertStatus(t, bad, http.StatusUnauthorized)
	assertContains(t, bad, "invalid email or password", `value="ana@example.com"`)

	assertStatus(t, c.form("/login", url.Values{"email": {"ana@example.com"}, "password": {"secret-pass"}}), http.StatusSeeOther)
	assertStatus(t, c.get("/"), http.StatusOK)
}

func TestLoginJSONReturnsToken(t *testing.T) {
	s, _ := newTestServer(t)
	signedIn(t, s, "cy@example.com")

	w := newClient(t, s).json("/login", `{"email":"cy@example.com","password":"secret-pass"}`)
	assertStatus(t, w, http.StatusOK)

	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Token == "" {
		t.Fatalf("token missing: %s", w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusOK)
}

func TestExpenseLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	c := signedIn(t, s, "dee@example.com")

	w := c.form("/expenses", url.Values{"description": {"Lunch"}, "amount": {"12.5"}, "date": {"2024-03-10"}})
	assertStatus(t, w, http.StatusSeeOther)
	if loc := w.Header().Get("Location"); loc != "/expenses?ok=expense-added" {
		t.Errorf("Location = %q", loc)
	}

	page := c.get("/expenses?ok=expense-added")
	assertStatus(t, page, http.StatusOK)
	assertContains(t, page, "Lunch", "Food", "USD 12.50", "2024-03-10", "Expense added successfully!")

	invalid := c.form("/expenses", url.Values{"description": {"Dinner"}, "amount": {"-4"}})
	assertStatus(t, invalid, http.StatusUnprocessableEntity)
	assertContains(t, invalid, "amount must be a positive number", `value="Dinner"`)

	created := c.json("/expenses", `{"description":"Taxi","amount":"7.20","date":"2024-03-11"}`)
	assertStatus(t, created, http.StatusCreated)
	var tx struct {
		ID       string `json:"id"`
		Amount   string `json:"amount"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(created.Body.Bytes(), &tx); err != nil {
		t.Fatal(err)
	}
	if tx.Amount != "7.20" || tx.Category != "Food" || tx.ID == "" {
		t.Errorf("created expense = %+v", tx)
	}

	assertStatus(t, c.form("/expenses/"+tx.ID+"/delete", nil), http.StatusSeeOther)
	assertStatus(t, c.form("/expenses/"+tx.ID+"/delete", nil), http.StatusNotFound)
}

func TestDeleteOtherUsersRecordIsNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	owner := signedIn(t, s, "eve@example.com")
	other := signedIn(t, s, "fay@example.com")

	w := owner.json("/incomes", `{"description":"Salary","amount":"2500"}`)
	assertStatus(t, w, http.StatusCreated)
	var tx struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &tx)

	assertStatus(t, other.form("/incomes/"+tx.ID+"/delete", nil), http.StatusNotFound)
	assertContains(t, owner.get("/incomes"), "Salary")
}

func TestDashboardAPI(t *testing.T) {
	s, _ := newTestServer(t)
	c := signedIn(t, s, "gus@example.com")

	assertStatus(t, c.form("/incomes", url.Values{"description": {"Salary"}, "amount": {"3000"}, "date": {"2024-01-31"}}), http.StatusSeeOther)
	assertStatus(t, c.form("/expenses", url.Values{"description": {"Rent"}, "amount": {"1200"}, "date": {"2024-01-05"}}), http.StatusSeeOther)
	assertStatus(t, c.form("/expenses", url.Values{"description": {"Groceries"}, "amount": {"300.10"}, "date": {"2024-02-02"}}), http.StatusSeeOther)

	w := c.get("/api/dashboard")
	assertStatus(t, w, http.StatusOK)

	var body dashboardJSON
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Totals.Income != "3000.00" || body.Totals.Expenses != "1500.10" || body.Totals.Net != "1499.90" {
		t.Errorf("totals = %+v", body.Totals)
	}
	var raw struct {
		Totals map[string]string `json:"totals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if raw.Totals["net_income"] != "1499.90" {
		t.Errorf("totals keys = %v, want net_income", raw.Totals)
	}
	if len(body.Trend) != 3 || body.Trend[0].Month != "2024-01" || body.Trend[0].Kind != "Income" {
		t.Errorf("trend = %+v", body.Trend)
	}
	if len(body.Categories) != 1 || body.Categories[0].Category != "Food" || body.Categories[0].Amount != "1500.10" {
		t.Errorf("categories = %+v", body.Categories)
	}

	page := c.get("/")
	assertStatus(t, page, http.StatusOK)
	assertContains(t, page, "USD 3000.00", "USD 1499.90", "2024-02", `hx-get="/ui/summary"`)
}

func TestGoals(t *testing.T) {
	s, _ := newTestServer(t)
	c := signedIn(t, s, "hal@example.com")
	target := time.Now().AddDate(0, 6, 0).Format(time.DateOnly)

	assertStatus(t, c.form("/goals", url.Values{"product_name": {"Laptop"}, "price": {"1200"}, "target_date": {target}}), http.StatusSeeOther)

	past := c.form("/goals", url.Values{"product_name": {"Bike"}, "price": {"300"}, "target_date": {"2020-01-01"}})
	assertStatus(t, past, http.StatusUnprocessableEntity)
	assertContains(t, past, "target date must be in the future", `value="Bike"`)

	w := c.get("/api/goals")
	assertStatus(t, w, http.StatusOK)
	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("goals = %v", list)
	}
	for _, key := range []string{"id", "product_name", "price", "target_date", "monthly_saving", "saved_to_date", "progress_ratio", "created_at"} {
		if _, ok := list[0][key]; !ok {
			t.Errorf("goal missing %q", key)
		}
	}
	if list[0]["price"] != "1200.00" || list[0]["target_date"] != target {
		t.Errorf("goal = %v", list[0])
	}

	page := c.get("/goals")
	assertContains(t, page, "Laptop", "per month")

	id, _ := list[0]["id"].(string)
	assertStatus(t, c.form("/goals/"+id+"/delete", nil), http.StatusSeeOther)
	assertContains(t, c.get("/goals"), "No savings goals yet.")
}

func TestSummaryPartial(t *testing.T) {
	s, completer := newTestServer(t)
	c := signedIn(t, s, "ivy@example.com")

	empty := c.get("/ui/summary")
	assertStatus(t, empty, http.StatusOK)
	assertContains(t, empty, "Add some incomes or expenses")
	if completer.summaryCalls() != 0 {
		t.Error("model called without data")
	}

	assertStatus(t, c.form("/incomes", url.Values{"description": {"Salary"}, "amount": {"100"}}), http.StatusSeeOther)
	assertContains(t, c.get("/ui/summary"), "Your finances look healthy.")
	assertContains(t, c.get("/ui/summary"), "Your finances look healthy.")
	if n := completer.summaryCalls(); n != 1 {
		t.Errorf("summary calls = %d, want 1 (second load cached)", n)
	}

	req := httptest.NewRequest(http.MethodPost, "/dashboard/refresh", nil)
	req.Header.Set("HX-Request", "true")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusNoContent)
	if !strings.Contains(rec.Header().Get("HX-Trigger"), EventSummaryRefresh) {
		t.Errorf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}

	c.get("/ui/summary")
	if n := completer.summaryCalls(); n != 2 {
		t.Errorf("summary calls after refresh = %d, want 2", n)
	}

	completer.fail(errors.New("provider down"))
	c.form("/dashboard/refresh", nil)
	failed := c.get("/ui/summary")
	assertStatus(t, failed, http.StatusOK)
	assertContains(t, failed, "unavailable")
}

func TestAdvisorChat(t *testing.T) {
	s, completer := newTestServer(t)
	c := signedIn(t, s, "jo@example.com")

	assertStatus(t, c.form("/advisor", url.Values{"query": {"How do I start saving?"}}), http.StatusSeeOther)
	page := c.get("/advisor")
	assertContains(t, page, "How do I start saving?", "Put a little aside every month.")

	assertStatus(t, c.form("/advisor", url.Values{"query": {"  "}}), http.StatusUnprocessableEntity)

	completer.fail(errors.New("provider down"))
	down := c.form("/advisor", url.Values{"query": {"Still there?"}})
	assertStatus(t, down, http.StatusOK)
	assertContains(t, down, "unavailable", "Still there?")

	assertStatus(t, c.form("/advisor/clear", nil), http.StatusSeeOther)
	cleared := c.get("/advisor")
	if strings.Contains(cleared.Body.String(), "How do I start saving?") {
		t.Error("history not cleared")
	}
}

func TestSettings(t *testing.T) {
	s, _ := newTestServer(t)
	c := signedIn(t, s, "kim@example.com")

	assertStatus(t, c.form("/settings", url.Values{"name": {"Kim"}, "currency": {"EUR"}, "theme": {"Dark"}}), http.StatusSeeOther)
	assertStatus(t, c.form("/incomes", url.Values{"description": {"Gift"}, "amount": {"50"}}), http.StatusSeeOther)

	page := c.get("/")
	assertContains(t, page, "EUR 50.00", "theme-dark", "Kim")

	bad := c.form("/settings", url.Values{"currency": {"XYZ"}, "theme": {"Light"}})
	assertStatus(t, bad, http.StatusUnprocessableEntity)
	assertContains(t, bad, "unsupported currency")
}

func TestInfrastructureEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	c := newClient(t, s)

	health := c.get("/healthz")
	assertStatus(t, health, http.StatusOK)
	if health.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
	if health.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	assertStatus(t, c.get("/readyz"), http.StatusOK)

	metrics := c.get("/metrics")
	assertStatus(t, metrics, http.StatusOK)
	assertContains(t, metrics, "http_requests_total", "insight_cache_hits_total", `rate_limit_rejected_total{limiter="auth"}`)

	css := c.get("/static/app.css")
	assertStatus(t, css, http.StatusOK)
	assertStatus(t, c.get("/nope"), http.StatusNotFound)
}

func TestLoginRateLimited(t *testing.T) {
	srv, _ := newTestServerWith(t, Options{AuthRequestsPerMinute: 2})
	c := newClient(t, srv)
	creds := url.Values{"email": {"x@example.com"}, "password": {"whatever"}}
	assertStatus(t, c.form("/login", creds), http.StatusUnauthorized)
	assertStatus(t, c.form("/login", creds), http.StatusUnauthorized)
	w := c.form("/login", creds)
	assertStatus(t, w, http.StatusTooManyRequests)
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
}

func TestTrustedProxyForwardsClientAddress(t *testing.T) {
	login := func(srv *Server, forwardedFor string) int {
		form := url.Values{"email": {"x@example.com"}, "password": {"whatever"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, req)
		return w.Code
	}

	// httptest requests arrive from 192.0.2.1.
	proxied, _ := newTestServerWith(t, Options{AuthRequestsPerMinute: 1, TrustedProxies: []string{"192.0.2.0/24"}})
	if code := login(proxied, "198.51.100.7"); code != http.StatusUnauthorized {
		t.Fatalf("first client status = %d", code)
	}
	if code := login(proxied, "198.51.100.8"); code != http.StatusUnauthorized {
		t.Errorf("second client behind the proxy status = %d, want %d", code, http.StatusUnauthorized)
	}

	direct, _ := newTestServerWith(t, Options{AuthRequestsPerMinute: 1})
	login(direct, "198.51.100.7")
	if code := login(direct, "198.51.100.8"); code != http.StatusTooManyRequests {
		t.Errorf("untrusted forwarding header status = %d, want %d", code, http.StatusTooManyRequests)
	}
}

func TestNewServerRejectsBadTrustedProxy(t *testing.T) {
	_, err := NewServer(":0", Deps{}, Options{TrustedProxies: []string{"not-a-cidr"}})
	if err == nil {
		t.Error("expected error for an invalid trusted proxy")
	}
}

func TestBarWidth(t *testing.T) {
	tests := []struct {
		amount, max string
		want        int
	}{
		{"0", "100", 0},
		{"50", "100", 50},
		{"0.5", "100", 2},
		{"100", "100", 100},
		{"10", "0", 0},
	}
	for _, tt := range tests {
		if got := barWidth(mustDec(tt.amount), mustDec(tt.max)); got != tt.want {
			t.Errorf("barWidth(%s, %s) = %d, want %d", tt.amount, tt.max, got, tt.want)
		}
	}
}

func mustDec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
