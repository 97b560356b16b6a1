package models

// Supported inbound actions.
const (
	ActionRegisterCustomer = "register_customer"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is the canonical inbound call after transport decoding.
type Request struct {
	AuthToken string         `json:"auth_token" xml:"auth_token"`
	Action    string         `json:"action" xml:"action"`
	Data      map[string]any `json:"data" xml:"-"`
	// Format is the wire format the caller used and expects back ("json", "xml").
	Format string `json:"-" xml:"-"`
}

// Response is the outbound envelope. Error responses carry only Message.
type Response struct {
	Status     string `json:"status"`
	CustomerID string `json:"customer_id,omitempty"`
	Event      *Event `json:"event,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorResponse builds an error envelope.
func ErrorResponse(message string) *Response {
	return &Response{Status: StatusError, Message: message}
}
