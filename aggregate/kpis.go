package aggregate

import (
	"sort"

	"github.com/payfraud/riskpipe/constants"
)

// TxnFact is the slice of a transaction the rollup needs. Day is the UTC calendar
// day in 2006-01-02 form.
type TxnFact struct {
	Day              string
	MerchantId       string
	AmountCents      int64
	Status           string
	CustomerRiskTier string
}

// Kpi is one (day, merchant) rollup row. All money values are integer cents;
// no floats enter the aggregation.
type Kpi struct {
	Day              string
	MerchantId       string
	GmvCents         int64
	NetRevenueCents  int64
	RefundCents      int64
	ChargebackCents  int64
	TxnCount         int64
	FailedCount      int64
	HighRiskTxnCount int64
}

type kpiKey struct {
	day        string
	merchantId string
}

// Accumulator reduces transaction facts into (day, merchant) KPI rows.
// Not safe for concurrent use; the aggregation step owns one instance.
type Accumulator struct {
	kpis map[kpiKey]*Kpi
}

func NewAccumulator() *Accumulator {
	return &Accumulator{kpis: make(map[kpiKey]*Kpi)}
}

// Add folds one transaction fact into its (day, merchant) bucket.
func (a *Accumulator) Add(f TxnFact) {
	k := kpiKey{day: f.Day, merchantId: f.MerchantId}
	kpi, ok := a.kpis[k]
	if !ok {
		kpi = &Kpi{Day: f.Day, MerchantId: f.MerchantId}
		a.kpis[k] = kpi
	}
	switch f.Status {
	case constants.TxnStatusAuthorized, constants.TxnStatusCaptured:
		kpi.GmvCents += f.AmountCents
	case constants.TxnStatusRefunded:
		kpi.RefundCents += f.AmountCents
	case constants.TxnStatusChargeback:
		kpi.ChargebackCents += f.AmountCents
	case constants.TxnStatusFailed:
		kpi.FailedCount++
	}
	kpi.TxnCount++
	if f.CustomerRiskTier == constants.RiskTierHigh {
		kpi.HighRiskTxnCount++
	}
	kpi.NetRevenueCents = kpi.GmvCents - kpi.RefundCents - kpi.ChargebackCents
}

// Len returns the number of (day, merchant) buckets accumulated so far.
func (a *Accumulator) Len() int {
	return len(a.kpis)
}

// Results returns the rollup rows sorted by (day, merchant) so repeat runs over the
// same snapshot emit identical output.
func (a *Accumulator) Results() []Kpi {
	retval := make([]Kpi, 0, len(a.kpis))
	for _, kpi := range a.kpis {
		retval = append(retval, *kpi)
	}
	sort.Slice(retval, func(i, j int) bool {
		if retval[i].Day != retval[j].Day {
			return retval[i].Day < retval[j].Day
		}
		return retval[i].MerchantId < retval[j].MerchantId
	})
	return retval
}
