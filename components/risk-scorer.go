package components

import (
	"sync/atomic"

	c "github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/fraud"
	"github.com/payfraud/riskpipe/logger"
	s "github.com/payfraud/riskpipe/stats"
	"github.com/payfraud/riskpipe/stream"
)

type RiskScorerConfig struct {
	Log            logger.Logger
	Name           string
	InputChan      chan stream.Record
	Decider        *fraud.Decider
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewRiskScorer scores each transaction record with the additive rule set and
// decorates alerting records with alert/case fields for the alert writer.
// Records that already carry an alert from a previous run pass through unscored,
// so re-running a window never raises duplicate alerts.
func NewRiskScorer(i interface{}) (chan stream.Record, chan ControlAction) {
	cfg := i.(*RiskScorerConfig)
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
		alertCount := int64(0)
		if cfg.StepWatcher != nil {
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		inputChan := cfg.InputChan
		for {
			select {
			case rec, ok := <-inputChan:
				if !ok { // if the input channel was closed...
					close(outputChan) // ...then tell downstream components that we're done.
					cfg.Log.Info(cfg.Name, " complete; rows = ", atomic.LoadInt64(&rowCount), "; alerts = ", alertCount)
					return
				}
				if existing := rec.GetData(c.FieldExistingAlertId); existing == nil || existing == "" {
					scoreRecord(cfg.Log, cfg.Decider, rec)
					if rec.DataExists(c.FieldAlertId) {
						alertCount++
					}
				}
				if rowSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !rowSentOK {
					cfg.Log.Info(cfg.Name, " shutdown")
					return
				}
				atomic.AddInt64(&rowCount, 1)
			case controlAction := <-controlChan: // if we were asked to shutdown...
				controlAction.ResponseChan <- nil
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
	}()
	return outputChan, controlChan
}

// scoreRecord evaluates the rules against one record and saves the decision fields.
// Records below the alerting threshold only gain the score itself.
func scoreRecord(log logger.Logger, d *fraud.Decider, rec stream.Record) {
	t := fraud.Txn{
		AmountCents:      rec.GetDataAsInt64(log, c.FieldAmountCents),
		Status:           rec.GetDataAsStringPreserveTimeZone(log, c.FieldStatus),
		CustomerRiskTier: rec.GetDataAsStringPreserveTimeZone(log, c.FieldRiskTier),
		MerchantRiskTier: rec.GetDataAsStringPreserveTimeZone(log, c.FieldMerchantTier),
	}
	a := d.Decide(t)
	if a == nil { // if the score stayed below the alerting threshold...
		score, _ := fraud.Score(t, d.Thresholds, d.Rules)
		rec.SetData(c.FieldScore, fraud.RoundScore(score))
		return
	}
	rec.SetData(c.FieldScore, a.Score)
	rec.SetData(c.FieldSeverity, a.Severity)
	rec.SetData(c.FieldAlertId, a.AlertId)
	rec.SetData(c.FieldRuleName, a.RuleName())
	rec.SetData(c.FieldDetails, a.Details(t.CustomerRiskTier, t.MerchantRiskTier))
	if a.Escalate {
		rec.SetData(c.FieldCaseId, a.CaseId)
		rec.SetData(c.FieldCaseStatus, c.CaseStatusOpen)
	}
}
