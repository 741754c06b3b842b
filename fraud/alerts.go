package fraud

import (
	"encoding/json"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/payfraud/riskpipe/constants"
)

// Alert is the decision produced for one transaction whose score crossed the
// alerting threshold.
type Alert struct {
	AlertId    string
	Score      float64
	Severity   string
	RulesFired []string
	Escalate   bool // an open case should be created for this alert.
	CaseId     string
}

// Decider turns scores into alert/case decisions. The escalation coin flip uses an
// injected rand source so runs can be made deterministic in tests.
type Decider struct {
	Thresholds Thresholds
	Rules      []Rule
	rnd        *rand.Rand
}

func NewDecider(th Thresholds, rules []Rule, rnd *rand.Rand) *Decider {
	return &Decider{Thresholds: th, Rules: rules, rnd: rnd}
}

// Decide scores the transaction and returns the alert decision, or nil when the
// score stays below the alerting threshold.
func (d *Decider) Decide(t Txn) *Alert {
	score, fired := Score(t, d.Thresholds, d.Rules)
	if !ShouldAlert(score, d.Thresholds) {
		return nil
	}
	a := &Alert{
		AlertId:    uuid.New().String(),
		Score:      RoundScore(score),
		Severity:   SeverityFor(score, d.Thresholds),
		RulesFired: fired,
	}
	if a.Severity == constants.SeverityMedium || a.Severity == constants.SeverityHigh {
		if d.rnd.Float64() < d.Thresholds.CaseEscalationProbability {
			a.Escalate = true
			a.CaseId = uuid.New().String()
		}
	}
	return a
}

// RuleName renders the fired rules as the pipe-separated rule_name column value.
func (a *Alert) RuleName() string {
	return strings.Join(a.RulesFired, " | ")
}

// Details renders the alert details JSON document stored alongside the alert.
func (a *Alert) Details(customerRiskTier, merchantRiskTier string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"rules":      a.RulesFired,
		"cust_risk":  customerRiskTier,
		"merch_risk": merchantRiskTier,
	})
	return string(b)
}
