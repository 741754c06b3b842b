package fraud

import (
	"math"

	"github.com/payfraud/riskpipe/constants"
)

// Txn carries the transaction attributes the rules need. Amounts are integer cents.
type Txn struct {
	AmountCents      int64
	Status           string
	CustomerRiskTier string
	MerchantRiskTier string
}

// Thresholds holds the scoring and escalation tunables for one run.
type Thresholds struct {
	MinAlertScore             float64
	MediumSeverityScore       float64
	HighSeverityScore         float64
	LargeAmountCents          int64
	CaseEscalationProbability float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinAlertScore:             constants.DefaultMinAlertScore,
		MediumSeverityScore:       constants.DefaultMediumSeverityScore,
		HighSeverityScore:         constants.DefaultHighSeverityScore,
		LargeAmountCents:          constants.DefaultLargeAmountCents,
		CaseEscalationProbability: constants.DefaultCaseEscalationProbability,
	}
}

// Rule is a single additive scoring rule. Matches must be pure.
type Rule struct {
	Name    string
	Weight  float64
	Matches func(t Txn, th Thresholds) bool
}

// DefaultRules returns the rule set in its fixed evaluation order.
// The order determines the order of names in the fired-rules list, so it is part
// of the scoring contract - do not reorder.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   constants.RuleHighRiskCustomer,
			Weight: 0.35,
			Matches: func(t Txn, th Thresholds) bool {
				return t.CustomerRiskTier == constants.RiskTierHigh
			},
		},
		{
			Name:   constants.RuleHighRiskMerchant,
			Weight: 0.25,
			Matches: func(t Txn, th Thresholds) bool {
				return t.MerchantRiskTier == constants.RiskTierHigh
			},
		},
		{
			Name:   constants.RuleLargeAmount,
			Weight: 0.30,
			Matches: func(t Txn, th Thresholds) bool {
				return t.AmountCents > th.LargeAmountCents
			},
		},
		{
			Name:   constants.RuleBadOutcome,
			Weight: 0.20,
			Matches: func(t Txn, th Thresholds) bool {
				return t.Status == constants.TxnStatusFailed || t.Status == constants.TxnStatusChargeback
			},
		},
	}
}

// Score evaluates all rules against the transaction and returns the additive score
// plus the names of the rules that fired, in rule order.
func Score(t Txn, th Thresholds, rules []Rule) (float64, []string) {
	score := 0.0
	fired := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Matches(t, th) {
			score += r.Weight
			fired = append(fired, r.Name)
		}
	}
	return score, fired
}

// RoundScore rounds the score to 3 decimal places for storage.
func RoundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}

// ShouldAlert reports whether the score crosses the alerting threshold.
func ShouldAlert(score float64, th Thresholds) bool {
	return score >= th.MinAlertScore
}

// SeverityFor bands an alerting score into a severity.
func SeverityFor(score float64, th Thresholds) string {
	switch {
	case score >= th.HighSeverityScore:
		return constants.SeverityHigh
	case score >= th.MediumSeverityScore:
		return constants.SeverityMedium
	default:
		return constants.SeverityLow
	}
}
