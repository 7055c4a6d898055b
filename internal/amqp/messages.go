package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/store"
)

const (
	ActionCreated Action = "created"
	ActionDeleted Action = "deleted"
)

var ErrInvalidEvent = errors.New("invalid ledger event")

type Action string

// LedgerEvent announces that a ledger record was created or deleted.
// Created events carry a flat snapshot of the record so consumers never
// need to read the store.
type LedgerEvent struct {
	Action     Action            `json:"action"`
	Collection store.Collection  `json:"collection"`
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Record     map[string]string `json:"record,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

func NewLedgerEvent(action Action, collection store.Collection, id, userID string, record map[string]string) *LedgerEvent {
	return &LedgerEvent{
		Action:     action,
		Collection: collection,
		ID:         id,
		UserID:     userID,
		Record:     record,
		Timestamp:  time.Now().UTC(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Action != ActionCreated && e.Action != ActionDeleted {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, e.Action)
	}
	if e.ID == "" || e.Collection == "" {
		return nil, fmt.Errorf("%w: missing id or collection", ErrInvalidEvent)
	}
	return &e, nil
}
