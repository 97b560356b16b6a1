package compliance

import (
	"context"
	"fmt"
	"strings"

	"clm/internal/customer/models"
)

type funcRule struct {
	name string
	fn   func(ctx context.Context, record *models.CustomerRecord) Verdict
}

func (r funcRule) Name() string { return r.name }

func (r funcRule) Evaluate(ctx context.Context, record *models.CustomerRecord) Verdict {
	return r.fn(ctx, record)
}

// Func adapts a function into a named rule.
func Func(name string, fn func(ctx context.Context, record *models.CustomerRecord) Verdict) Rule {
	return funcRule{name: name, fn: fn}
}

// NamePresent requires a non-blank name attribute.
func NamePresent() Rule {
	return Func("name_present", func(_ context.Context, record *models.CustomerRecord) Verdict {
		if record.Name() == "" {
			return Fail("customer name is empty")
		}
		return Pass()
	})
}

// RequiredAttributes requires each key to be present with a non-blank value.
func RequiredAttributes(keys ...string) Rule {
	return Func("required_attributes", func(_ context.Context, record *models.CustomerRecord) Verdict {
		var missing []string
		for _, k := range keys {
			v, ok := record.Attributes[k]
			if !ok || v == nil {
				missing = append(missing, k)
				continue
			}
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return Fail(fmt.Sprintf("missing attributes: %s", strings.Join(missing, ", ")))
		}
		return Pass()
	})
}

// StandardsCompliant fails records explicitly flagged as not meeting standards.
// A defaulted flag passes; enrichment records that it was defaulted.
func StandardsCompliant() Rule {
	return Func("standards_compliant", func(_ context.Context, record *models.CustomerRecord) Verdict {
		if v, ok := record.Bool(models.AttrCompliesWithStandards); ok && !v {
			return Fail("customer does not comply with standards")
		}
		return Pass()
	})
}
