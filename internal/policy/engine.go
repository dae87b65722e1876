// Package policy evaluates booking requests against an OPA policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values returned by the booking policy.
const (
	DecisionAllow         = "allow"
	DecisionRequireReview = "require_review"
	DecisionBlock         = "block"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.booking_policy.decision"),
		rego.Module("booking_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the booking policy. Input carries kind, total, currency,
// and guest fields. Returns one of the Decision constants.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default; an empty result means it was not
		// loaded correctly, so fail closed on review.
		return DecisionRequireReview, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionRequireReview, nil
}

// DefaultPolicy is the default booking policy content.
const DefaultPolicy = `
package booking_policy

default decision = "allow"

# A booking with no guest name cannot be ticketed. This takes precedence
# over the review threshold so the two rules never both fire.
decision = "block" {
	not valid_guest
}

# High-value bookings get a manual review before the charge goes out.
decision = "require_review" {
	valid_guest
	input.total > 2000
}

valid_guest {
	input.guest.name != ""
}
`
