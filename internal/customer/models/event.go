package models

import (
	"maps"
	"time"
)

// EventType tags what happened to a customer.
type EventType string

const (
	EventTypeCustomerRegistered EventType = "CustomerRegistered"
)

func (t EventType) String() string {
	return string(t)
}

// Event is an immutable fact about one customer. Once appended to the log it is
// never changed or removed.
type Event struct {
	EventID    string         `json:"event_id"`
	CustomerID string         `json:"customer_id"`
	Type       EventType      `json:"type"`
	Version    string         `json:"version"`
	Data       map[string]any `json:"data"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// SchemaVersion is the version the event claims to conform to.
func (e *Event) SchemaVersion() string {
	return e.Version
}

// Fields returns the top-level fields that are present. Empty strings and a nil
// data payload count as absent.
func (e *Event) Fields() map[string]any {
	fields := make(map[string]any, 5)
	if e.CustomerID != "" {
		fields["customer_id"] = e.CustomerID
	}
	if e.EventID != "" {
		fields["event_id"] = e.EventID
	}
	if e.Version != "" {
		fields["version"] = e.Version
	}
	if e.Type != "" {
		fields["type"] = string(e.Type)
	}
	if e.Data != nil {
		fields["data"] = e.Data
	}
	if !e.OccurredAt.IsZero() {
		fields["occurred_at"] = e.OccurredAt
	}
	return fields
}

// Clone copies the event so callers cannot reach stored data through it.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Data = maps.Clone(e.Data)
	return &c
}
