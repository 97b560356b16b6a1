package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCustomerRecord(t *testing.T) {
	t.Run("copies data and extracts the identifier", func(t *testing.T) {
		data := map[string]any{"customer_id": " 12345 ", "name": "John Doe"}
		rec := NewCustomerRecord(data)

		assert.Equal(t, "12345", rec.CustomerID)
		rec.Set(AttrEnriched, true)
		_, leaked := data[AttrEnriched]
		assert.False(t, leaked, "caller map must not be mutated")
	})

	t.Run("numeric identifiers keep their integer form", func(t *testing.T) {
		rec := NewCustomerRecord(map[string]any{"customer_id": float64(12345)})
		assert.Equal(t, "12345", rec.CustomerID)
	})

	t.Run("missing identifier is empty", func(t *testing.T) {
		rec := NewCustomerRecord(map[string]any{"name": "x"})
		assert.Empty(t, rec.CustomerID)
	})
}

func TestCustomerRecordAccessors(t *testing.T) {
	rec := NewCustomerRecord(map[string]any{
		"name":                    "  Jane  ",
		"enriched":                true,
		"complies_with_standards": false,
	})

	assert.Equal(t, "Jane", rec.Name())
	assert.True(t, rec.Enriched())
	v, ok := rec.Bool(AttrCompliesWithStandards)
	assert.True(t, ok)
	assert.False(t, v)
	assert.True(t, rec.Has(AttrCompliesWithStandards))
	assert.False(t, rec.Has(AttrEmail))

	clone := rec.Clone()
	clone.Set(AttrName, "Other")
	assert.Equal(t, "Jane", rec.Name())
}

func TestEventFields(t *testing.T) {
	ev := &Event{CustomerID: "1", EventID: "e", Type: EventTypeCustomerRegistered, Version: "1.0.0"}
	fields := ev.Fields()
	assert.Contains(t, fields, "customer_id")
	assert.NotContains(t, fields, "data")

	ev.Data = map[string]any{}
	assert.Contains(t, ev.Fields(), "data")
}

func TestSubmitted(t *testing.T) {
	data := map[string]any{
		"customer_id":         "12345",
		"enriched":            true,
		"standards_defaulted": false,
		"authorized_to_trade": true,
		"segment":             "retail",
	}

	got := Submitted(data)
	assert.Equal(t, map[string]any{"customer_id": "12345", "segment": "retail"}, got)
	assert.Contains(t, data, "enriched", "caller map must not be mutated")
	assert.NotNil(t, Submitted(nil))
}
