package compliance

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"

	"clm/internal/customer/models"
)

// DefaultRegoQuery is the set of violation messages a policy produces.
const DefaultRegoQuery = "data.clm.compliance.deny"

// RegoRule evaluates an Open Policy Agent policy against the record. The policy
// receives {"customer_id": ..., "attributes": {...}} as input and fails the rule
// when its deny set is non-empty. Evaluation errors fail closed.
type RegoRule struct {
	name  string
	query rego.PreparedEvalQuery
}

// RegoOption configures a RegoRule.
type RegoOption func(*regoConfig)

type regoConfig struct {
	name  string
	query string
}

// WithRuleName overrides the rule name reported on failure.
func WithRuleName(name string) RegoOption {
	return func(c *regoConfig) {
		c.name = name
	}
}

// WithQuery overrides the evaluated query.
func WithQuery(query string) RegoOption {
	return func(c *regoConfig) {
		c.query = query
	}
}

// NewRegoRule compiles policy source once so evaluation only binds input.
func NewRegoRule(ctx context.Context, module string, opts ...RegoOption) (*RegoRule, error) {
	cfg := &regoConfig{name: "policy", query: DefaultRegoQuery}
	for _, opt := range opts {
		opt(cfg)
	}
	if strings.TrimSpace(module) == "" {
		return nil, fmt.Errorf("compliance policy source is empty")
	}
	pq, err := rego.New(
		rego.Query(cfg.query),
		rego.Module(cfg.name+".rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare compliance policy: %w", err)
	}
	return &RegoRule{name: cfg.name, query: pq}, nil
}

// LoadRegoRule reads a policy file and compiles it.
func LoadRegoRule(ctx context.Context, path string, opts ...RegoOption) (*RegoRule, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compliance policy: %w", err)
	}
	return NewRegoRule(ctx, string(src), opts...)
}

func (r *RegoRule) Name() string {
	return r.name
}

func (r *RegoRule) Evaluate(ctx context.Context, record *models.CustomerRecord) Verdict {
	input := map[string]any{
		"customer_id": record.CustomerID,
		"attributes":  record.Attributes,
	}
	rs, err := r.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Fail(fmt.Sprintf("policy evaluation failed: %v", err))
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Pass()
	}

	var reasons []string
	switch v := rs[0].Expressions[0].Value.(type) {
	case []any:
		for _, item := range v {
			reasons = append(reasons, fmt.Sprint(item))
		}
	case bool:
		if v {
			reasons = append(reasons, "denied by policy")
		}
	case nil:
	default:
		return Fail(fmt.Sprintf("policy returned unsupported value %T", v))
	}
	if len(reasons) == 0 {
		return Pass()
	}
	slices.Sort(reasons)
	return Fail(strings.Join(reasons, "; "))
}
