package components

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/diegoholiveira/jsonlogic/v3"
	c "github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/logger"
	s "github.com/payfraud/riskpipe/stats"
	"github.com/payfraud/riskpipe/stream"
)

// DefaultValidationRules are the JSON Logic predicates every transaction record
// must satisfy before it may be scored or aggregated. Each rule must evaluate to
// true against the record's data map.
func DefaultValidationRules() []string {
	return []string{
		`{">=": [{"var": "amount_cents"}, 0]}`,
		`{"!!": {"var": "txn_id"}}`,
		`{"!!": {"var": "merchant_id"}}`,
		`{"!!": {"var": "currency"}}`,
		`{"in": [{"var": "status"}, ["authorized", "captured", "failed", "refunded", "chargeback"]]}`,
	}
}

type RowValidatorConfig struct {
	Log                   logger.Logger
	Name                  string
	InputChan             chan stream.Record
	Rules                 []string // JSON Logic predicates; a record is quarantined unless all evaluate true.
	MaxQuarantineFraction float64  // abort the run when quarantined/total exceeds this.
	QuarantineChan        chan stream.Record // optional; quarantined records are sent here when set.
	StepWatcher           *s.StepWatcher
	WaitCounter           ComponentWaiter
	PanicHandlerFn        PanicHandlerFunc
}

// NewRowValidator applies JSON Logic predicates to each input record.
// Records that pass flow downstream; records that fail are quarantined.
// When the quarantined fraction of the stream exceeds MaxQuarantineFraction the
// component panics, which the pipeline surfaces as a validation failure.
func NewRowValidator(i interface{}) (chan stream.Record, chan ControlAction) {
	cfg := i.(*RowValidatorConfig)
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultValidationRules()
	}
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
		for _, rule := range rules {
			if !jsonlogic.IsValid(strings.NewReader(rule)) {
				cfg.Log.Panic(cfg.Name, " invalid JSON Logic rule: ", rule)
			}
		}
		rowCount := int64(0)
		quarantineCount := int64(0)
		if cfg.StepWatcher != nil {
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		cfg.Log.Info(cfg.Name, " is running")
		var result bytes.Buffer
		var controlAction ControlAction
		for { // for each row of input...
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil // disable this case.
				} else {
					atomic.AddInt64(&rowCount, 1)
					failedRule := recordFailsRules(cfg.Log, rec, rules, &result)
					if failedRule == "" { // if the record passed validation...
						if rowSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !rowSentOK {
							cfg.Log.Info(cfg.Name, " shutdown")
							return
						}
					} else { // else quarantine the record...
						quarantineCount++
						cfg.Log.Warn(cfg.Name, " quarantined record failing rule ", failedRule, ": ", rec.GetJson(cfg.Log, rec.GetSortedDataMapKeys()))
						if cfg.QuarantineChan != nil {
							cfg.QuarantineChan <- rec
						}
					}
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
		if cfg.QuarantineChan != nil {
			close(cfg.QuarantineChan)
		}
		total := atomic.LoadInt64(&rowCount)
		if total > 0 && cfg.MaxQuarantineFraction > 0 {
			fraction := float64(quarantineCount) / float64(total)
			if fraction > cfg.MaxQuarantineFraction { // if too much of the stream is bad to trust the window...
				cfg.Log.Panic(fmt.Sprintf("%v quarantined %v of %v records (%.4f) which exceeds the limit of %.4f",
					cfg.Name, quarantineCount, total, fraction, cfg.MaxQuarantineFraction))
			}
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete; rows = ", total, "; quarantined = ", quarantineCount)
	}()
	return outputChan, controlChan
}

// recordFailsRules evaluates each rule against the record and returns the first
// rule that did not evaluate true, or "" when all rules pass.
func recordFailsRules(log logger.Logger, rec stream.Record, rules []string, result *bytes.Buffer) string {
	jsonData, err := json.Marshal(rec.GetDataMap())
	if err != nil {
		log.Panic("error marshalling record before applying JSON logic: ", err)
	}
	for _, rule := range rules {
		result.Reset()
		err = jsonlogic.Apply(strings.NewReader(rule), strings.NewReader(string(jsonData)), result)
		if err != nil {
			log.Panic("error applying JSON logic: ", err)
		}
		if strings.TrimSpace(result.String()) != "true" {
			return rule
		}
	}
	return ""
}
