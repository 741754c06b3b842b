package components

import (
	"sync/atomic"

	"github.com/payfraud/riskpipe/aggregate"
	c "github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/logger"
	s "github.com/payfraud/riskpipe/stats"
	"github.com/payfraud/riskpipe/stream"
)

type KpiAggregatorConfig struct {
	Log            logger.Logger
	Name           string
	InputChan      chan stream.Record
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewKpiAggregator folds the full input stream into (day, merchant) KPI rows and
// emits them once the input channel closes. Output order is fixed by (day, merchant)
// so repeat runs over the same snapshot produce identical rows.
// Input records pass through the accumulator only - nothing is forwarded until the
// stream ends, so the output holds rollups, not transactions.
func NewKpiAggregator(i interface{}) (chan stream.Record, chan ControlAction) {
	cfg := i.(*KpiAggregatorConfig)
	outputChan := make(chan stream.Record, int(c.ChanSize))
	controlChan := make(chan ControlAction, 1)
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		rowCount := int64(0)
		if cfg.StepWatcher != nil {
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		cfg.Log.Info(cfg.Name, " is running")
		acc := aggregate.NewAccumulator()
		var controlAction ControlAction
		for { // for each row of input...
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil // disable this case.
				} else {
					acc.Add(aggregate.TxnFact{
						Day:              rec.GetDataAsTimeUtc(cfg.Log, c.FieldEventTime).Format(c.TimeFormatDay),
						MerchantId:       rec.GetDataAsStringUseUtcTime(cfg.Log, c.FieldMerchantId),
						AmountCents:      rec.GetDataAsInt64(cfg.Log, c.FieldAmountCents),
						Status:           rec.GetDataAsStringUseUtcTime(cfg.Log, c.FieldStatus),
						CustomerRiskTier: rec.GetDataAsStringUseUtcTime(cfg.Log, c.FieldRiskTier),
					})
					atomic.AddInt64(&rowCount, 1)
				}
			case controlAction = <-controlChan: // if we were asked to shutdown...
			}
			if cfg.InputChan == nil || controlAction.Action == Shutdown {
				break
			}
		}
		if controlAction.Action == Shutdown { // if we were asked to shutdown...
			controlAction.ResponseChan <- nil
			cfg.Log.Info(cfg.Name, " shutdown")
			return
		}
		// The stream ended, so emit the rollups.
		for _, kpi := range acc.Results() {
			rec := stream.NewRecord()
			rec.SetData("day", kpi.Day)
			rec.SetData("merchant_id", kpi.MerchantId)
			rec.SetData("gmv_cents", kpi.GmvCents)
			rec.SetData("net_revenue_cents", kpi.NetRevenueCents)
			rec.SetData("refund_cents", kpi.RefundCents)
			rec.SetData("chargeback_cents", kpi.ChargebackCents)
			rec.SetData("txn_count", kpi.TxnCount)
			rec.SetData("failed_count", kpi.FailedCount)
			rec.SetData("high_risk_txn_count", kpi.HighRiskTxnCount)
			if rowSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !rowSentOK {
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete; rows in = ", atomic.LoadInt64(&rowCount), "; rollups out = ", acc.Len())
	}()
	return outputChan, controlChan
}
