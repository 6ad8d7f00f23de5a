package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered EventType = "account_registered"
	EventAccountLoggedIn   EventType = "account_logged_in"
	EventAccountLoggedOut  EventType = "account_logged_out"
	EventAccountUpdated    EventType = "account_updated"
	EventAccountDeleted    EventType = "account_deleted"
)

// AllEventTypes lists every type the services publish.
var AllEventTypes = []EventType{
	EventAccountRegistered,
	EventAccountLoggedIn,
	EventAccountLoggedOut,
	EventAccountUpdated,
	EventAccountDeleted,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID int64       `json:"account_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, accountID int64, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: accountID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// AccountUpdatedPayload lists which profile fields changed.
type AccountUpdatedPayload struct {
	Fields          []string `json:"fields"`
	PasswordChanged bool     `json:"password_changed"`
}
