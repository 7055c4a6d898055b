package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"description":"  Groceries ","amount":42.5,"date":"2024-03-03"}`
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Error("expected JSON body")
	}

	if got := parser.Get("description"); got != "Groceries" {
		t.Errorf("Get(description) = %q", got)
	}
	if got := parser.Get("amount"); got != "42.5" {
		t.Errorf("Get(amount) = %q", got)
	}
	if got := parser.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q", got)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/incomes", strings.NewReader("description=Salary%01&amount=2500&password=+secret+"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Error("form body parsed as JSON")
	}

	if got := parser.Get("description"); got != "Salary" {
		t.Errorf("control characters not stripped: %q", got)
	}
	if got := parser.Raw("password"); got != " secret " {
		t.Errorf("Raw(password) = %q", got)
	}
	if got := parser.Values("description", "amount"); got["amount"] != "2500" || len(got) != 2 {
		t.Errorf("Values() = %v", got)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/advisor", nil)

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("query"); val != "" {
		t.Errorf("Get(query) = %q, want empty string", val)
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/goals", strings.NewReader(`{"price":`))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if err := parser.Parse(); err == nil {
		t.Fatal("Parse() should keep returning the first error")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  hello  ", "hello"},
		{"a\x00b", "ab"},
		{"line\nbreak", "line\nbreak"},
		{"tab\there", "tab\there"},
		{"cr\rremoved", "crremoved"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
