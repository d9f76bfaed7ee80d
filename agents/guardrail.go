package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lexcodex/adpilot/framework"
)

// BudgetMultiplier is how far above the scope's default daily budget a
// requested budget may go before a confirmation gate fires.
const BudgetMultiplier = 5.0

// GuardrailContext is the read-only configuration and conversation snapshot
// the validator judges a proposed call against. It is assembled by the
// orchestrator; the validator itself performs no I/O.
type GuardrailContext struct {
	DefaultDailyBudget float64
	AdAccountConnected bool
	PolicyTerms        map[string][]string

	// UserConfirmed is true when the immediately preceding user message is
	// an explicit affirmative in response to a rendered confirmation summary
	// for this same proposed call.
	UserConfirmed bool
}

// ProposedCall is one mutating or irreversible tool call awaiting a verdict.
type ProposedCall struct {
	Name       string
	SideEffect framework.SideEffect
	Args       map[string]interface{}
}

// DefaultPolicyTerms is the built-in disallowed-term list, grouped by policy
// category. Workspace settings may extend it.
var DefaultPolicyTerms = map[string][]string{
	"health_claims": {
		"cure", "cures", "miracle", "guaranteed weight loss", "lose weight fast",
		"clinically proven", "fda approved", "heals", "anti-aging breakthrough",
	},
	"discriminatory": {
		"only for men", "only for women", "not for old people", "whites only",
		"no foreigners", "able-bodied only",
	},
	"financial_guarantees": {
		"guaranteed returns", "get rich quick", "double your money", "risk-free investment",
	},
	"misleading": {
		"free money", "you have been selected", "act now or lose", "secret they don't want",
	},
}

// copyArgKeys are the call arguments scanned by the content policy rule.
var copyArgKeys = []string{"primary_text", "headline", "description", "ad_copy", "text"}

// Validate applies the guardrail rules to one proposed mutating call and
// returns the verdict. It is pure: same inputs, same decision.
//
// Rule order: missing publish credential blocks before anything else, then
// the budget threshold, then the content policy list. Mutating but reversible
// calls that clear those rules are allowed outright; irreversible calls
// additionally require a user affirmative to a rendered confirmation summary.
func Validate(call ProposedCall, gctx GuardrailContext) framework.GuardrailDecision {
	if isPublishCall(call.Name) && !gctx.AdAccountConnected {
		return framework.GuardrailDecision{
			Outcome: framework.GuardrailBlock,
			Rule:    "missing_identity",
			Reason:  "publishing requires a connected advertising account",
		}
	}

	if budget, ok := requestedBudget(call); ok && gctx.DefaultDailyBudget > 0 {
		threshold := gctx.DefaultDailyBudget * BudgetMultiplier
		if budget > threshold && !gctx.UserConfirmed {
			return framework.GuardrailDecision{
				Outcome:   framework.GuardrailConfirm,
				Rule:      "budget",
				Reason:    fmt.Sprintf("requested daily budget %.2f is more than %gx the default of %.2f", budget, BudgetMultiplier, gctx.DefaultDailyBudget),
				Threshold: threshold,
			}
		}
	}

	if category, term := matchPolicyTerm(call, gctx.PolicyTerms); category != "" {
		return framework.GuardrailDecision{
			Outcome: framework.GuardrailBlock,
			Rule:    "content_policy",
			Reason:  fmt.Sprintf("copy matches disallowed %s term %q", category, term),
		}
	}

	if call.SideEffect == framework.SideEffectIrreversible && !gctx.UserConfirmed {
		return framework.GuardrailDecision{
			Outcome: framework.GuardrailConfirm,
			Rule:    "explicit_confirmation",
			Reason:  "irreversible actions require an explicit user confirmation of the rendered summary",
		}
	}

	return framework.GuardrailDecision{Outcome: framework.GuardrailAllow}
}

func isPublishCall(name string) bool {
	return name == ToolPublishCampaign
}

// requestedBudget pulls the daily budget from publish or budget-adjustment
// call arguments. Other calls never trip the budget rule.
func requestedBudget(call ProposedCall) (float64, bool) {
	if !isPublishCall(call.Name) && call.Name != ToolAdjustBudget {
		return 0, false
	}
	for _, key := range []string{"daily_budget", "budget", "new_budget"} {
		if raw, ok := call.Args[key]; ok {
			switch v := raw.(type) {
			case float64:
				return v, true
			case int:
				return float64(v), true
			}
		}
	}
	return 0, false
}

func matchPolicyTerm(call ProposedCall, terms map[string][]string) (category, term string) {
	if len(terms) == 0 {
		return "", ""
	}
	var haystack strings.Builder
	collect := func(args map[string]interface{}) {
		for _, key := range copyArgKeys {
			if raw, ok := args[key]; ok {
				if s, ok := raw.(string); ok {
					haystack.WriteString(strings.ToLower(s))
					haystack.WriteRune('\n')
				}
			}
		}
	}
	collect(call.Args)
	// Draft edits carry their copy nested under fields.
	if raw, ok := call.Args["fields"]; ok {
		if fields, ok := raw.(map[string]interface{}); ok {
			collect(fields)
		}
	}
	if haystack.Len() == 0 {
		return "", ""
	}
	content := haystack.String()
	categories := make([]string, 0, len(terms))
	for category := range terms {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		for _, term := range terms[category] {
			if strings.Contains(content, strings.ToLower(term)) {
				return category, term
			}
		}
	}
	return "", ""
}

// affirmatives are the replies accepted as explicit confirmation of a
// rendered summary. Anything else abandons the pending action.
var affirmatives = []string{
	"yes", "y", "go ahead", "confirm", "confirmed", "approve", "approved",
	"do it", "publish it", "yes please", "sounds good", "ok", "okay", "sure",
	"proceed", "ship it",
}

// IsAffirmative reports whether the message is an explicit yes. The check is
// deliberately strict: a long message that merely contains "ok" is a new
// instruction, not a confirmation.
func IsAffirmative(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = strings.TrimRight(normalized, ".!")
	for _, accepted := range affirmatives {
		if normalized == accepted {
			return true
		}
	}
	return false
}
