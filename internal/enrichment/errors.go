package enrichment

import (
	"errors"
	"fmt"
)

// Category is the normalized failure taxonomy for enrichment sources.
type Category string

const (
	CategoryTimeout     Category = "timeout"
	CategoryOutage      Category = "outage"
	CategoryRateLimited Category = "rate_limited"
	CategoryBadData     Category = "bad_data"
	CategoryNotFound    Category = "not_found"
	CategoryInternal    Category = "internal"
)

// SourceError wraps a source failure with its category.
type SourceError struct {
	Category   Category
	Message    string
	Underlying error
	Retryable  bool
}

func (e *SourceError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("enrichment source [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("enrichment source [%s]: %s", e.Category, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Underlying
}

// NewSourceError classifies a failure. Timeouts, outages and rate limiting are transient.
func NewSourceError(category Category, message string, underlying error) *SourceError {
	return &SourceError{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable: category == CategoryTimeout ||
			category == CategoryOutage ||
			category == CategoryRateLimited,
	}
}

// IsRetryable reports whether err is worth another attempt. Unclassified errors are
// treated as transient.
func IsRetryable(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return true
}

// CategoryOf extracts the category, defaulting to internal.
func CategoryOf(err error) Category {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Category
	}
	return CategoryInternal
}
