package policy

import (
	"fmt"
	"sort"

	"github.com/Knetic/govaluate"

	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

// DefaultRenewalExpression offers renewal for stalled or canceled redirect payments.
const DefaultRenewalExpression = "provider == 'Wallee' && (status == 'Processing' || status == 'Canceled')"

// PolicyDecision represents the outcome of a policy evaluation.
type PolicyDecision struct {
	OfferRenewal bool   // Whether the payer may ask the backend for a fresh attempt
	RuleID       string // The rule that matched, empty for the default decision
}

// PolicyRule is a govaluate expression over the payment's parameters
// (provider, status, type, currency, amount). Lower Priority wins.
type PolicyRule struct {
	ID         string
	Expression string
	Priority   int
	Decision   PolicyDecision
}

type compiledRule struct {
	PolicyRule
	expression *govaluate.EvaluableExpression
}

// PaymentPolicyEnforcer evaluates renewal eligibility for a payment.
type PaymentPolicyEnforcer struct {
	rules []compiledRule
}

// DefaultRules returns the built-in renewal rule.
func DefaultRules() []PolicyRule {
	return []PolicyRule{{
		ID:         "redirect_renewal",
		Expression: DefaultRenewalExpression,
		Priority:   100,
		Decision:   PolicyDecision{OfferRenewal: true},
	}}
}

// NewPaymentPolicyEnforcer compiles rules. Rules are evaluated by ascending
// Priority, ties keeping their given order.
func NewPaymentPolicyEnforcer(rules []PolicyRule) (*PaymentPolicyEnforcer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{PolicyRule: r, expression: expr})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority < compiled[j].Priority
	})
	return &PaymentPolicyEnforcer{rules: compiled}, nil
}

func parameters(p payment.Payment) map[string]interface{} {
	amount, _ := p.Amount.Float64()
	return map[string]interface{}{
		"provider": string(p.Provider),
		"status":   string(p.Status),
		"type":     string(p.Type),
		"currency": p.Currency,
		"amount":   amount,
	}
}

// Evaluate returns the decision of the first matching rule. Renewal is only
// offered for redirect-provider payments that are Processing or Canceled,
// whatever the rules say.
func (ppe *PaymentPolicyEnforcer) Evaluate(p payment.Payment) (PolicyDecision, error) {
	params := parameters(p)
	for _, r := range ppe.rules {
		result, err := r.expression.Evaluate(params)
		if err != nil {
			return PolicyDecision{}, fmt.Errorf("failed to evaluate rule ID '%s': %w", r.ID, err)
		}
		matched, ok := result.(bool)
		if !ok {
			return PolicyDecision{}, fmt.Errorf("policy rule ID '%s' did not evaluate to a boolean", r.ID)
		}
		if !matched {
			continue
		}
		decision := r.Decision
		decision.RuleID = r.ID
		if !renewable(p) {
			decision.OfferRenewal = false
		}
		return decision, nil
	}
	return PolicyDecision{}, nil
}

func renewable(p payment.Payment) bool {
	if p.Provider != payment.ProviderWallee {
		return false
	}
	return p.Status == payment.StatusProcessing || p.Status == payment.StatusCanceled
}
