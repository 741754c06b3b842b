package components

import (
	"testing"
	"time"

	c "github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/stream"
	"github.com/sirupsen/logrus"
)

func newAggTestRecord(eventTime time.Time, merchantId string, amountCents int64, status, custTier string) stream.Record {
	rec := stream.NewRecord()
	rec.SetData(c.FieldEventTime, eventTime)
	rec.SetData(c.FieldMerchantId, merchantId)
	rec.SetData(c.FieldAmountCents, amountCents)
	rec.SetData(c.FieldStatus, status)
	rec.SetData(c.FieldRiskTier, custTier)
	return rec
}

func TestKpiAggregator(t *testing.T) {
	log := logrus.New()
	day1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	inputChan := make(chan stream.Record, 10)
	inputChan <- newAggTestRecord(day1, "m1", 1000, c.TxnStatusCaptured, c.RiskTierLow)
	inputChan <- newAggTestRecord(day1, "m1", 500, c.TxnStatusRefunded, c.RiskTierLow)
	inputChan <- newAggTestRecord(day1, "m2", 2000, c.TxnStatusAuthorized, c.RiskTierHigh)
	inputChan <- newAggTestRecord(day2, "m1", 3000, c.TxnStatusChargeback, c.RiskTierLow)
	inputChan <- newAggTestRecord(day2, "m1", 100, c.TxnStatusFailed, c.RiskTierLow)
	close(inputChan)
	outputChan, _ := NewKpiAggregator(&KpiAggregatorConfig{
		Log:       log,
		Name:      "Test KpiAggregator",
		InputChan: inputChan,
	})
	out := make([]stream.Record, 0, 3)
	for rec := range outputChan {
		out = append(out, rec)
	}
	if len(out) != 3 {
		t.Fatal("expected 3 rollup rows; got ", len(out))
	}
	// Sorted by (day, merchant).
	r0 := out[0]
	if r0.GetData("day").(string) != "2026-01-01" || r0.GetData("merchant_id").(string) != "m1" {
		t.Fatal("unexpected first rollup: ", r0.GetDataMap())
	}
	if r0.GetData("gmv_cents").(int64) != 1000 || r0.GetData("refund_cents").(int64) != 500 ||
		r0.GetData("net_revenue_cents").(int64) != 500 || r0.GetData("txn_count").(int64) != 2 {
		t.Fatal("unexpected first rollup values: ", r0.GetDataMap())
	}
	r1 := out[1]
	if r1.GetData("merchant_id").(string) != "m2" || r1.GetData("high_risk_txn_count").(int64) != 1 {
		t.Fatal("unexpected second rollup: ", r1.GetDataMap())
	}
	r2 := out[2]
	if r2.GetData("day").(string) != "2026-01-02" || r2.GetData("chargeback_cents").(int64) != 3000 ||
		r2.GetData("failed_count").(int64) != 1 || r2.GetData("net_revenue_cents").(int64) != -3000 {
		t.Fatal("unexpected third rollup: ", r2.GetDataMap())
	}
}

func TestKpiAggregatorShutdown(t *testing.T) {
	log := logrus.New()
	inputChan := make(chan stream.Record)
	_, controlChan := NewKpiAggregator(&KpiAggregatorConfig{
		Log:       log,
		Name:      "Test KpiAggregator shutdown",
		InputChan: inputChan,
	})
	responseChan := make(chan error, 1)
	controlChan <- ControlAction{ResponseChan: responseChan, Action: Shutdown}
	select {
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for KpiAggregator to shutdown")
	case <-responseChan:
		// continue OK
	}
}
