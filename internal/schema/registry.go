// Package schema keeps the versioned event shapes the pipeline accepts.
//
// The registry is append-only: a version, once registered, keeps its required
// fields forever. New shapes get new versions.
package schema

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	dErrors "clm/pkg/domain-errors"
)

// V1 is the first event schema version.
const V1 = "1.0.0"

// V1Fields are the top-level fields every 1.0.0 event carries.
var V1Fields = []string{"customer_id", "event_id", "version", "type", "data"}

// Fielder is anything that can be checked against a schema.
type Fielder interface {
	SchemaVersion() string
	Fields() map[string]any
}

// Kind separates a version the registry has never seen from a known version
// whose required fields are absent. Callers reject the former and may repair
// the latter.
type Kind string

const (
	KindUnsupportedVersion Kind = "unsupported_version"
	KindMissingField       Kind = "missing_field"
)

// ValidationError describes why an event failed validation. It unwraps to a
// domain error carrying the matching code.
type ValidationError struct {
	Kind    Kind
	Version string
	Missing []string
	err     error
}

func (e *ValidationError) Error() string {
	return e.err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// Field returns the first missing field, or "" for version errors.
func (e *ValidationError) Field() string {
	if len(e.Missing) == 0 {
		return ""
	}
	return e.Missing[0]
}

// Registry maps schema versions to ordered required fields.
type Registry struct {
	mu       sync.RWMutex
	versions map[string][]string
	current  string
}

// Option configures a Registry.
type Option func(*Registry)

// WithCurrentVersion selects the version stamped on newly assembled events.
func WithCurrentVersion(version string) Option {
	return func(r *Registry) {
		r.current = version
	}
}

// NewRegistry returns a registry with 1.0.0 registered.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		versions: map[string][]string{V1: slices.Clone(V1Fields)},
		current:  V1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a version. Registering an identical definition again is a no-op;
// redefining an existing version is a conflict.
func (r *Registry) Register(version string, fields []string) error {
	version = strings.TrimSpace(version)
	if version == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "schema version is required")
	}
	if len(fields) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "schema must require at least one field")
	}
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "schema field names cannot be empty")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.versions[version]; ok {
		if slices.Equal(existing, fields) {
			return nil
		}
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("schema version %s is already registered", version))
	}
	r.versions[version] = slices.Clone(fields)
	return nil
}

// RequiredFields returns a copy of a version's required fields.
func (r *Registry) RequiredFields(version string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fields, ok := r.versions[version]
	if !ok {
		return nil, false
	}
	return slices.Clone(fields), true
}

// Versions lists registered versions in sorted order.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.versions))
	for v := range r.versions {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Current is the version new events are assembled with.
func (r *Registry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Validate checks the event against its declared version. All missing fields are
// reported in registry order; the message names the first one.
func (r *Registry) Validate(event Fielder) error {
	version := event.SchemaVersion()
	required, ok := r.RequiredFields(version)
	if !ok {
		return &ValidationError{
			Kind:    KindUnsupportedVersion,
			Version: version,
			err: dErrors.New(dErrors.CodeUnsupportedSchemaVersion,
				fmt.Sprintf("Event schema validation failed: unsupported schema version %q", version)),
		}
	}

	present := event.Fields()
	var missing []string
	for _, field := range required {
		if _, ok := present[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{
		Kind:    KindMissingField,
		Version: version,
		Missing: missing,
		err: dErrors.New(dErrors.CodeMissingRequiredField,
			fmt.Sprintf("Event schema validation failed: missing required field %s", missing[0])),
	}
}
