package schema

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clm/internal/customer/models"
	dErrors "clm/pkg/domain-errors"
)

func validEvent() *models.Event {
	return &models.Event{
		EventID:    "evt-1",
		CustomerID: "12345",
		Type:       models.EventTypeCustomerRegistered,
		Version:    V1,
		Data:       map[string]any{"name": "John Doe"},
	}
}

func TestValidate(t *testing.T) {
	r := NewRegistry()

	t.Run("complete 1.0.0 event passes", func(t *testing.T) {
		require.NoError(t, r.Validate(validEvent()))
	})

	t.Run("unknown version is unsupported", func(t *testing.T) {
		ev := validEvent()
		ev.Version = "9.9.9"
		err := r.Validate(ev)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedSchemaVersion))
		assert.False(t, dErrors.HasCode(err, dErrors.CodeMissingRequiredField))

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, KindUnsupportedVersion, ve.Kind)
		assert.Empty(t, ve.Field())
	})

	t.Run("missing version is unsupported", func(t *testing.T) {
		ev := validEvent()
		ev.Version = ""
		assert.True(t, dErrors.HasCode(r.Validate(ev), dErrors.CodeUnsupportedSchemaVersion))
	})

	t.Run("missing fields are all reported in order", func(t *testing.T) {
		ev := validEvent()
		ev.EventID = ""
		ev.Data = nil
		err := r.Validate(ev)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingRequiredField))

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, KindMissingField, ve.Kind)
		assert.Equal(t, []string{"event_id", "data"}, ve.Missing)
		assert.Equal(t, "event_id", ve.Field())
		assert.Contains(t, err.Error(), "missing required field event_id")
	})

	t.Run("validation is deterministic", func(t *testing.T) {
		ev := validEvent()
		ev.CustomerID = ""
		first := r.Validate(ev)
		for range 50 {
			again := r.Validate(ev)
			assert.Equal(t, first.Error(), again.Error())
		}
	})
}

func TestRegister(t *testing.T) {
	t.Run("new versions are accepted and listed", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("2.0.0", []string{"customer_id", "event_id", "version", "type", "data", "occurred_at"}))
		assert.Equal(t, []string{"1.0.0", "2.0.0"}, r.Versions())

		ev := validEvent()
		ev.Version = "2.0.0"
		err := r.Validate(ev)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, []string{"occurred_at"}, ve.Missing)
	})

	t.Run("existing versions cannot be redefined", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(V1, []string{"customer_id"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		fields, ok := r.RequiredFields(V1)
		require.True(t, ok)
		assert.Equal(t, V1Fields, fields)
	})

	t.Run("identical re-registration is a no-op", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(V1, V1Fields))
	})

	t.Run("rejects empty definitions", func(t *testing.T) {
		r := NewRegistry()
		assert.True(t, dErrors.HasCode(r.Register("", V1Fields), dErrors.CodeInvalidInput))
		assert.True(t, dErrors.HasCode(r.Register("3.0.0", nil), dErrors.CodeInvalidInput))
		assert.True(t, dErrors.HasCode(r.Register("3.0.0", []string{" "}), dErrors.CodeInvalidInput))
	})

	t.Run("returned fields cannot mutate the registry", func(t *testing.T) {
		r := NewRegistry()
		fields, _ := r.RequiredFields(V1)
		fields[0] = "tampered"
		again, _ := r.RequiredFields(V1)
		assert.Equal(t, "customer_id", again[0])
	})

	t.Run("concurrent registration and validation", func(t *testing.T) {
		r := NewRegistry()
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Go(func() {
				_ = r.Register("1.1."+string(rune('a'+i)), []string{"customer_id"})
				_ = r.Validate(validEvent())
			})
		}
		wg.Wait()
		assert.Len(t, r.Versions(), 21)
	})
}

func TestCurrentVersion(t *testing.T) {
	assert.Equal(t, V1, NewRegistry().Current())
	assert.Equal(t, "2.0.0", NewRegistry(WithCurrentVersion("2.0.0")).Current())
}
