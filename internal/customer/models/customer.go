package models

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// Attribute keys the pipeline reads or derives. Any other key in the submitted
// data is carried through untouched.
const (
	AttrCustomerID            = "customer_id"
	AttrName                  = "name"
	AttrEmail                 = "email"
	AttrEnriched              = "enriched"
	AttrCompliesWithStandards = "complies_with_standards"
	AttrStandardsDefaulted    = "standards_defaulted"
	AttrAuthorizedToTrade     = "authorized_to_trade"
)

// derived are set by the pipeline only. Submitted values are discarded.
var derived = []string{AttrEnriched, AttrStandardsDefaulted, AttrAuthorizedToTrade}

// Submitted copies caller data without the pipeline-derived attributes.
func Submitted(data map[string]any) map[string]any {
	out := maps.Clone(data)
	if out == nil {
		out = map[string]any{}
	}
	for _, k := range derived {
		delete(out, k)
	}
	return out
}

// CustomerRecord is the current view of a customer. The projection store owns
// persisted records; the orchestrator works on a private copy per attempt.
type CustomerRecord struct {
	CustomerID string
	Attributes map[string]any
	Version    int64
	UpdatedAt  time.Time
}

// NewCustomerRecord copies data into a record. The caller's map is never retained.
func NewCustomerRecord(data map[string]any) *CustomerRecord {
	attrs := make(map[string]any, len(data)+2)
	maps.Copy(attrs, data)
	return &CustomerRecord{
		CustomerID: stringify(attrs[AttrCustomerID]),
		Attributes: attrs,
	}
}

// Clone returns a deep-enough copy: the attribute map is new, values are shared.
func (r *CustomerRecord) Clone() *CustomerRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Attributes = maps.Clone(r.Attributes)
	if c.Attributes == nil {
		c.Attributes = map[string]any{}
	}
	return &c
}

// Name returns the trimmed name attribute.
func (r *CustomerRecord) Name() string {
	return strings.TrimSpace(r.String(AttrName))
}

// Enriched reports whether enrichment already ran on this record.
func (r *CustomerRecord) Enriched() bool {
	v, _ := r.Bool(AttrEnriched)
	return v
}

// Has reports whether key is present, regardless of its value.
func (r *CustomerRecord) Has(key string) bool {
	_, ok := r.Attributes[key]
	return ok
}

// Set writes an attribute, keeping CustomerID in sync.
func (r *CustomerRecord) Set(key string, value any) {
	if r.Attributes == nil {
		r.Attributes = map[string]any{}
	}
	r.Attributes[key] = value
	if key == AttrCustomerID {
		r.CustomerID = stringify(value)
	}
}

// String returns a string attribute, or "" when absent or not a string.
func (r *CustomerRecord) String(key string) string {
	if v, ok := r.Attributes[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns a boolean attribute and whether it was present as a bool.
func (r *CustomerRecord) Bool(key string) (bool, bool) {
	v, ok := r.Attributes[key].(bool)
	return v, ok
}

// stringify renders identifiers that arrive as JSON numbers the way callers typed them.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}
