package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{12, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "fintrack", queueName: "ledger_events"}

	if client.isCircuitOpen() {
		t.Fatal("circuit should start closed")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit should open after max failures")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should go half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", client.state)
	}

	client.recordFailure()
	if atomic.LoadInt32(&client.state) != StateOpen {
		t.Fatal("a failure while half-open should reopen the circuit")
	}

	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should close the circuit and reset failures")
	}
}

func TestClient_PublishLedgerEvent_Guards(t *testing.T) {
	ev := NewLedgerEvent(ActionCreated, "expenses", "e1", "u1", nil)

	t.Run("open circuit", func(t *testing.T) {
		client := &Client{exchangeName: "fintrack", queueName: "ledger_events"}
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishLedgerEvent(context.Background(), ev)
		if !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("PublishLedgerEvent() error = %v, want ErrCircuitOpen", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		client := &Client{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PublishLedgerEvent(ctx, ev); err != context.Canceled {
			t.Fatalf("PublishLedgerEvent() error = %v, want context.Canceled", err)
		}
	})
}

func TestHandleDelivery(t *testing.T) {
	valid, _ := NewLedgerEvent(ActionDeleted, "incomes", "i1", "u1", nil).ToJSON()

	tests := []struct {
		name    string
		body    []byte
		handler Handler
		want    outcome
	}{
		{
			name:    "handled",
			body:    valid,
			handler: func(context.Context, *LedgerEvent) error { return nil },
			want:    outcomeAck,
		},
		{
			name:    "handler failure requeues",
			body:    valid,
			handler: func(context.Context, *LedgerEvent) error { return errors.New("sheets down") },
			want:    outcomeRequeue,
		},
		{
			name:    "malformed body rejected",
			body:    []byte(`{"action":`),
			handler: func(context.Context, *LedgerEvent) error { t.Fatal("handler called"); return nil },
			want:    outcomeReject,
		},
		{
			name:    "unknown action rejected",
			body:    []byte(`{"action":"updated","collection":"incomes","id":"i1"}`),
			handler: func(context.Context, *LedgerEvent) error { t.Fatal("handler called"); return nil },
			want:    outcomeReject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handleDelivery(context.Background(), tt.body, tt.handler); got != tt.want {
				t.Errorf("handleDelivery() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLedgerEventFromJSON(t *testing.T) {
	rec := map[string]string{
		"user_id":     "u1",
		"description": "Groceries",
		"amount":      "42.50",
		"date":        "2024-03-03",
		"category":    "Food",
	}
	in := NewLedgerEvent(ActionCreated, "expenses", "e1", "u1", rec)

	data, err := in.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	out, err := LedgerEventFromJSON(data)
	if err != nil {
		t.Fatalf("LedgerEventFromJSON() error = %v", err)
	}

	if out.ID != "e1" || out.Action != ActionCreated || out.Collection != "expenses" {
		t.Errorf("unexpected event %+v", out)
	}
	if out.Record["amount"] != "42.50" || out.Record["category"] != "Food" || out.Record["date"] != "2024-03-03" {
		t.Errorf("unexpected record %v", out.Record)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}

	if _, err := LedgerEventFromJSON([]byte(`{"action":"created","collection":"expenses"}`)); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("missing id error = %v, want ErrInvalidEvent", err)
	}
}
