package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/payment"
)

func TestNewPaymentPolicyEnforcer_EmptyAndNilRules(t *testing.T) {
	ppe, err := NewPaymentPolicyEnforcer(nil)
	require.NoError(t, err)
	assert.NotNil(t, ppe)
	assert.Empty(t, ppe.rules)

	ppe, err = NewPaymentPolicyEnforcer([]PolicyRule{})
	require.NoError(t, err)
	assert.Empty(t, ppe.rules)
}

func TestNewPaymentPolicyEnforcer_CompilationError(t *testing.T) {
	rules := []PolicyRule{
		{ID: "rule1", Expression: "amount > 100"},
		{ID: "rule2", Expression: "status ==", Decision: PolicyDecision{OfferRenewal: true}},
	}
	_, err := NewPaymentPolicyEnforcer(rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile rule ID 'rule2'")
	assert.Contains(t, err.Error(), "Unexpected end of expression")
}

func TestNewPaymentPolicyEnforcer_EmptyExpressionInRule(t *testing.T) {
	_, err := NewPaymentPolicyEnforcer([]PolicyRule{{ID: "empty_expr_rule"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy rule ID 'empty_expr_rule' has an empty expression")
}

func TestNewPaymentPolicyEnforcer_UndefinedFunction(t *testing.T) {
	_, err := NewPaymentPolicyEnforcer([]PolicyRule{{ID: "bad_func", Expression: "nonExistentFunction(amount) == true"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile rule ID 'bad_func'")
	assert.Contains(t, err.Error(), "Undefined function nonExistentFunction")
}

func TestPaymentPolicyEnforcer_DefaultRules(t *testing.T) {
	ppe, err := NewPaymentPolicyEnforcer(DefaultRules())
	require.NoError(t, err)

	tests := []struct {
		name     string
		provider payment.Provider
		status   payment.Status
		want     bool
	}{
		{"redirect processing", payment.ProviderWallee, payment.StatusProcessing, true},
		{"redirect canceled", payment.ProviderWallee, payment.StatusCanceled, true},
		{"redirect succeeded", payment.ProviderWallee, payment.StatusSucceeded, false},
		{"redirect failed", payment.ProviderWallee, payment.StatusFailed, false},
		{"card canceled", payment.ProviderStripe, payment.StatusCanceled, false},
		{"wallet processing", payment.ProviderPayPal, payment.StatusProcessing, false},
		{"untagged processing", "", payment.StatusProcessing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := ppe.Evaluate(payment.Payment{Provider: tt.provider, Status: tt.status})
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision.OfferRenewal)
			if tt.want {
				assert.Equal(t, "redirect_renewal", decision.RuleID)
			}
		})
	}
}

func TestPaymentPolicyEnforcer_Priority(t *testing.T) {
	rules := []PolicyRule{
		{ID: "renew_all_redirect", Expression: "provider == 'Wallee'", Priority: 5, Decision: PolicyDecision{OfferRenewal: true}},
		{ID: "no_renewal_large", Expression: "amount >= 1000 && currency == 'EUR'", Priority: 1},
	}
	ppe, err := NewPaymentPolicyEnforcer(rules)
	require.NoError(t, err)

	large := payment.Payment{Provider: payment.ProviderWallee, Status: payment.StatusCanceled, Currency: "EUR", Amount: decimal.NewFromInt(1500)}
	decision, err := ppe.Evaluate(large)
	require.NoError(t, err)
	assert.False(t, decision.OfferRenewal)
	assert.Equal(t, "no_renewal_large", decision.RuleID)

	small := large
	small.Amount = decimal.RequireFromString("12.50")
	decision, err = ppe.Evaluate(small)
	require.NoError(t, err)
	assert.True(t, decision.OfferRenewal)
	assert.Equal(t, "renew_all_redirect", decision.RuleID)
}

func TestPaymentPolicyEnforcer_NeverRenewsOtherProviders(t *testing.T) {
	ppe, err := NewPaymentPolicyEnforcer([]PolicyRule{
		{ID: "too_broad", Expression: "status == 'Canceled'", Decision: PolicyDecision{OfferRenewal: true}},
	})
	require.NoError(t, err)

	decision, err := ppe.Evaluate(payment.Payment{Provider: payment.ProviderStripe, Status: payment.StatusCanceled})
	require.NoError(t, err)
	assert.False(t, decision.OfferRenewal)
	assert.Equal(t, "too_broad", decision.RuleID)
}

func TestPaymentPolicyEnforcer_NeverRenewsSettledPayments(t *testing.T) {
	ppe, err := NewPaymentPolicyEnforcer([]PolicyRule{
		{ID: "every_redirect", Expression: "provider == 'Wallee'", Decision: PolicyDecision{OfferRenewal: true}},
	})
	require.NoError(t, err)

	tests := []struct {
		status payment.Status
		renew  bool
	}{
		{payment.StatusSucceeded, false},
		{payment.StatusFailed, false},
		{payment.StatusPending, false},
		{payment.StatusProcessing, true},
		{payment.StatusCanceled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			decision, err := ppe.Evaluate(payment.Payment{Provider: payment.ProviderWallee, Status: tt.status})
			require.NoError(t, err)
			assert.Equal(t, "every_redirect", decision.RuleID)
			assert.Equal(t, tt.renew, decision.OfferRenewal)
		})
	}
}

func TestPaymentPolicyEnforcer_EvaluationErrors(t *testing.T) {
	t.Run("ParameterNotFound", func(t *testing.T) {
		ppe, err := NewPaymentPolicyEnforcer([]PolicyRule{{ID: "missing_param_rule", Expression: "undefinedParam > 10"}})
		require.NoError(t, err)
		_, evalErr := ppe.Evaluate(payment.Payment{})
		require.Error(t, evalErr)
		assert.Contains(t, evalErr.Error(), "No parameter 'undefinedParam' found.")
	})

	t.Run("NonBoolean", func(t *testing.T) {
		ppe, err := NewPaymentPolicyEnforcer([]PolicyRule{{ID: "arith", Expression: "amount + 1"}})
		require.NoError(t, err)
		_, evalErr := ppe.Evaluate(payment.Payment{Amount: decimal.NewFromInt(1)})
		require.Error(t, evalErr)
		assert.Contains(t, evalErr.Error(), "policy rule ID 'arith' did not evaluate to a boolean")
	})
}

func TestPaymentPolicyEnforcer_DefaultDecisionWithNoRules(t *testing.T) {
	ppe, err := NewPaymentPolicyEnforcer(nil)
	require.NoError(t, err)
	decision, err := ppe.Evaluate(payment.Payment{Provider: payment.ProviderWallee, Status: payment.StatusCanceled})
	require.NoError(t, err)
	assert.False(t, decision.OfferRenewal)
	assert.Empty(t, decision.RuleID)
}
