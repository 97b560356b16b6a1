// Package bus holds what every event bus adapter shares: the wire envelope and
// the metadata keys carried next to it.
package bus

import (
	"encoding/json"
	"fmt"

	"clm/internal/customer/models"
)

// Metadata keys set on every message (Kafka headers, SQS message attributes).
const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderSchemaVersion = "schema_version"
	HeaderCustomerID    = "customer_id"
)

// Encode renders the event as the JSON envelope subscribers consume.
func Encode(event *models.Event) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.EventID, err)
	}
	return body, nil
}

// Decode parses an envelope produced by Encode.
func Decode(body []byte) (*models.Event, error) {
	var event models.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &event, nil
}

// Metadata returns the key/value pairs adapters attach to a message.
func Metadata(event *models.Event) map[string]string {
	return map[string]string{
		HeaderEventID:       event.EventID,
		HeaderEventType:     string(event.Type),
		HeaderSchemaVersion: event.Version,
		HeaderCustomerID:    event.CustomerID,
	}
}
