// Package compliance evaluates business rules on a customer record.
//
// Rules are independent predicates applied in order; a record is compliant only
// when every rule passes. Adding a rule never changes call sites.
package compliance

import (
	"context"
	"fmt"

	"clm/internal/customer/models"
	dErrors "clm/pkg/domain-errors"
)

// Verdict is a single rule's answer.
type Verdict struct {
	Passed bool
	Reason string
}

// Pass is the verdict of a satisfied rule.
func Pass() Verdict {
	return Verdict{Passed: true}
}

// Fail is the verdict of a violated rule.
func Fail(reason string) Verdict {
	return Verdict{Reason: reason}
}

// Rule is one compliance predicate. Evaluate must not modify the record.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, record *models.CustomerRecord) Verdict
}

// Result reports the outcome of a full evaluation.
type Result struct {
	Compliant  bool
	FailedRule string
	Reason     string
}

// Engine applies an ordered rule list.
type Engine struct {
	rules []Rule
}

// New builds an engine that applies rules in the given order. Nil rules are skipped.
func New(rules ...Rule) *Engine {
	e := &Engine{}
	for _, r := range rules {
		if r != nil {
			e.rules = append(e.rules, r)
		}
	}
	return e
}

// NewDefault builds the baseline engine: the customer must have a name.
func NewDefault() *Engine {
	return New(NamePresent())
}

// Rules returns the rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Apply evaluates rules in order and stops at the first failure.
func (e *Engine) Apply(ctx context.Context, record *models.CustomerRecord) Result {
	if record == nil {
		return Result{FailedRule: "record_present", Reason: "no customer record"}
	}
	for _, rule := range e.rules {
		v := rule.Evaluate(ctx, record)
		if !v.Passed {
			return Result{FailedRule: rule.Name(), Reason: v.Reason}
		}
	}
	return Result{Compliant: true}
}

// Check is Apply expressed as an error: nil when compliant, otherwise a
// compliance rejection naming the failed rule.
func (e *Engine) Check(ctx context.Context, record *models.CustomerRecord) error {
	res := e.Apply(ctx, record)
	if res.Compliant {
		return nil
	}
	return &RejectionError{
		Result: res,
		err:    dErrors.New(dErrors.CodeComplianceRejected, fmt.Sprintf("Compliance rules not met: %s", res.FailedRule)),
	}
}

// RejectionError carries the failing rule alongside the domain error.
type RejectionError struct {
	Result Result
	err    error
}

func (e *RejectionError) Error() string {
	if e.Result.Reason == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s (%s)", e.err.Error(), e.Result.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.err
}
