package pipeline

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/payfraud/riskpipe/components"
	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/fraud"
	"github.com/payfraud/riskpipe/logger"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/payfraud/riskpipe/schema"
	"github.com/payfraud/riskpipe/stats"
	"github.com/payfraud/riskpipe/stream"
)

// StatsManager abstracts stats capture for pipeline steps.
type StatsManager interface {
	StartDumping()
	StopDumping()
	AddStepWatcher(stepName string) *stats.StepWatcher
}

// SyncConfig configures one OLTP to OLAP sync run.
type SyncConfig struct {
	Log                   logger.Logger
	OltpDb                shared.Connector
	OlapDb                shared.Connector
	WindowStart           time.Time
	WindowEnd             time.Time
	Thresholds            fraud.Thresholds
	Rules                 []fraud.Rule
	Rnd                   *rand.Rand // escalation coin flips; inject for deterministic runs.
	ValidationRules       []string
	MaxQuarantineFraction float64
	CommitBatchSize       int
	TxtBatchNumRows       int
	StoreTimeout          time.Duration
	MaxStoreRetries       int
	RetryBackoff          time.Duration
	Stats                 StatsManager
	Registry              *RunRegistry
}

func fixSyncConfig(cfg *SyncConfig) {
	if cfg.Thresholds == (fraud.Thresholds{}) {
		cfg.Thresholds = fraud.DefaultThresholds()
	}
	if cfg.Rules == nil {
		cfg.Rules = fraud.DefaultRules()
	}
	if cfg.Rnd == nil {
		cfg.Rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.MaxQuarantineFraction <= 0 {
		cfg.MaxQuarantineFraction = constants.DefaultQuarantineMaxFraction
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = time.Second * constants.DefaultStoreTimeoutSeconds
	}
	if cfg.MaxStoreRetries <= 0 {
		cfg.MaxStoreRetries = constants.DefaultMaxStoreRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second * constants.DefaultRetryBackoffSeconds
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewMockStatsManager()
	}
}

// RunSyncWithRetry runs the sync, retrying the whole run on transient failures.
// Re-running is safe: alert writes dedupe on existing alerts and the analytical
// store publish replaces the window atomically.
func RunSyncWithRetry(cfg *SyncConfig) *Summary {
	fixSyncConfig(cfg)
	var summary *Summary
	for attempt := 1; attempt <= cfg.MaxStoreRetries; attempt++ {
		var err error
		summary, err = runSyncAttempt(cfg)
		summary.setAttempts(attempt)
		if err == nil {
			return summary
		}
		if !IsRetryable(err) { // if a retry cannot help...
			return summary
		}
		if attempt < cfg.MaxStoreRetries {
			backoff := cfg.RetryBackoff * time.Duration(attempt)
			cfg.Log.Warn("sync attempt ", attempt, " failed (", err, "); retrying in ", backoff)
			time.Sleep(backoff)
		}
	}
	return summary
}

// RunSync performs a single sync attempt, moving the run through
// started, read, scored, aggregated, written and committed.
func RunSync(cfg *SyncConfig) *Summary {
	fixSyncConfig(cfg)
	summary, _ := runSyncAttempt(cfg)
	return summary
}

func runSyncAttempt(cfg *SyncConfig) (*Summary, error) {
	summary := NewSummary(cfg.WindowStart, cfg.WindowEnd)
	summary.setAttempts(1)
	if cfg.Registry != nil {
		cfg.Registry.Register(summary)
	}
	cfg.Log.Info("sync run ", summary.RunId, " started for window [", summary.WindowStart, ", ", summary.WindowEnd, ")")
	cfg.Stats.StartDumping()
	defer cfg.Stats.StopDumping()
	if err := runSyncStages(cfg, summary); err != nil {
		summary.fail(err)
		snap := summary.Snapshot()
		cfg.Log.Error("sync run ", snap.RunId, " ", snap.Status, ": ", snap.Error)
		return summary, err
	}
	cfg.Log.Info("sync run ", summary.RunId, " committed")
	return summary, nil
}

// StartSync begins a single sync attempt in the background and returns its
// summary immediately, plus a channel that closes when the run ends.
// Callers watch progress via the run registry.
func StartSync(cfg *SyncConfig) (*Summary, chan struct{}) {
	fixSyncConfig(cfg)
	summary := NewSummary(cfg.WindowStart, cfg.WindowEnd)
	summary.setAttempts(1)
	if cfg.Registry != nil {
		cfg.Registry.Register(summary)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		cfg.Log.Info("sync run ", summary.RunId, " started for window [", summary.WindowStart, ", ", summary.WindowEnd, ")")
		cfg.Stats.StartDumping()
		defer cfg.Stats.StopDumping()
		if err := runSyncStages(cfg, summary); err != nil {
			summary.fail(err)
			snap := summary.Snapshot()
			cfg.Log.Error("sync run ", snap.RunId, " ", snap.Status, ": ", snap.Error)
			return
		}
		cfg.Log.Info("sync run ", summary.RunId, " committed")
	}()
	return summary, done
}

func runSyncStages(cfg *SyncConfig, summary *Summary) error {
	errChan := make(chan error, 8)
	ph := components.GetPanicHandlerWithErrorChanFunc(errChan)
	waiter := &GroupWaiter{}

	// Store reads and writes across the whole run respect the store timeout.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	defer cancel()

	// Read the windowed snapshot from the transactional store.
	facts, quarantined, err := readWindow(ctx, cfg, ph, errChan, waiter)
	if err != nil {
		return err
	}
	summary.recordRead(int64(len(facts))+quarantined, quarantined)
	if err := summary.advance(StageRead); err != nil {
		return err
	}

	// Score and persist alert decisions to the transactional store.
	scored, alertCount, caseCount, err := scoreAndPersistAlerts(ctx, cfg, ph, errChan, waiter, facts)
	if err != nil {
		return err
	}
	summary.recordScored(int64(len(scored)), alertCount, caseCount)
	if err := summary.advance(StageScored); err != nil {
		return err
	}

	// Reduce to (day, merchant) rollups.
	kpis, err := aggregateKpis(cfg, ph, errChan, waiter, scored)
	if err != nil {
		return err
	}
	summary.recordAggregated(int64(len(kpis)))
	if err := summary.advance(StageAggregated); err != nil {
		return err
	}

	// Stage the analytical-store write and load both tables.
	publisher, err := NewWindowPublisher(cfg.Log, cfg.OlapDb, summary.WindowStart, summary.WindowEnd)
	if err != nil {
		return err
	}
	if err := publisher.Prepare(ctx); err != nil {
		publisher.Abort(ctx)
		return err
	}
	factsWritten, err := writeTable(ctx, cfg, ph, errChan, waiter, publisher, schema.FctTransactions(), scored)
	if err != nil {
		publisher.Abort(ctx)
		return NewTransientError(StageWritten, err)
	}
	if err := publisher.DeleteKpis(ctx, kpis); err != nil {
		publisher.Abort(ctx)
		return err
	}
	kpisWritten, err := writeTable(ctx, cfg, ph, errChan, waiter, publisher, schema.AggDailyMerchantKpis(), kpis)
	if err != nil {
		publisher.Abort(ctx)
		return NewTransientError(StageWritten, err)
	}
	summary.recordWritten(factsWritten, kpisWritten)
	if err := summary.advance(StageWritten); err != nil {
		publisher.Abort(ctx)
		return err
	}

	// Every component goroutine must have drained before the window is made visible.
	waiter.Wait()
	if err := publisher.Commit(ctx); err != nil {
		publisher.Abort(ctx)
		return err
	}
	return summary.advance(StageCommitted)
}

func readWindow(ctx context.Context, cfg *SyncConfig, ph components.PanicHandlerFunc, errChan chan error, waiter components.ComponentWaiter) ([]stream.Record, int64, error) {
	readerOut, _ := components.NewSqlQueryWithArgs(&components.SqlQueryWithArgsConfig{
		Log:            cfg.Log,
		Name:           "read transaction window",
		Ctx:            ctx,
		Db:             cfg.OltpDb,
		StepWatcher:    cfg.Stats.AddStepWatcher("read transaction window"),
		Sqltext:        schema.SyncWindowSql,
		Args:           []interface{}{cfg.WindowStart, cfg.WindowEnd},
		WaitCounter:    waiter,
		PanicHandlerFn: ph,
	})
	quarantineChan := make(chan stream.Record, int(constants.ChanSize))
	validatorOut, _ := components.NewRowValidator(&components.RowValidatorConfig{
		Log:                   cfg.Log,
		Name:                  "validate transaction rows",
		InputChan:             readerOut,
		Rules:                 cfg.ValidationRules,
		MaxQuarantineFraction: cfg.MaxQuarantineFraction,
		QuarantineChan:        quarantineChan,
		StepWatcher:           cfg.Stats.AddStepWatcher("validate transaction rows"),
		WaitCounter:           waiter,
		PanicHandlerFn:        ph,
	})
	var quarantined int64
	qDone := make(chan struct{})
	go func() {
		for range quarantineChan {
			quarantined++
		}
		close(qDone)
	}()
	records, err := drainRecords(validatorOut, errChan)
	if err != nil {
		if strings.Contains(err.Error(), "exceeds the limit") { // quarantine limit breached - retrying cannot help.
			return nil, 0, NewValidationError(StageRead, err)
		}
		if strings.Contains(err.Error(), "invalid JSON Logic rule") { // bad rule config - an operator has to fix it.
			return nil, 0, NewConfigurationError(StageRead, err)
		}
		return nil, 0, NewTransientError(StageRead, err)
	}
	<-qDone
	return records, quarantined, nil
}

func scoreAndPersistAlerts(ctx context.Context, cfg *SyncConfig, ph components.PanicHandlerFunc, errChan chan error, waiter components.ComponentWaiter, facts []stream.Record) ([]stream.Record, int64, int64, error) {
	scorerOut, _ := components.NewRiskScorer(&components.RiskScorerConfig{
		Log:            cfg.Log,
		Name:           "score transactions",
		InputChan:      feedRecords(facts),
		Decider:        fraud.NewDecider(cfg.Thresholds, cfg.Rules, cfg.Rnd),
		StepWatcher:    cfg.Stats.AddStepWatcher("score transactions"),
		WaitCounter:    waiter,
		PanicHandlerFn: ph,
	})
	splitToWriter, splitToCollector, _ := components.NewChannelSplitter(&components.ChannelSplitterConfig{
		Log:            cfg.Log,
		Name:           "split scored stream",
		InputChan:      scorerOut,
		WaitCounter:    waiter,
		PanicHandlerFn: ph,
	})
	writerOut, _ := components.NewAlertWriter(&components.AlertWriterConfig{
		Log:             cfg.Log,
		Name:            "write alerts and cases",
		Ctx:             ctx,
		InputChan:       splitToWriter,
		OutputDb:        cfg.OltpDb,
		CommitBatchSize: cfg.CommitBatchSize,
		TxtBatchNumRows: cfg.TxtBatchNumRows,
		StepWatcher:     cfg.Stats.AddStepWatcher("write alerts and cases"),
		WaitCounter:     waiter,
		PanicHandlerFn:  ph,
	})
	var alertCount, caseCount int64
	wDone := make(chan struct{})
	go func() {
		for rec := range writerOut {
			if rec.DataExists(constants.FieldAlertId) {
				alertCount++
				if rec.DataExists(constants.FieldCaseId) {
					caseCount++
				}
			}
		}
		close(wDone)
	}()
	scored, err := drainRecords(splitToCollector, errChan)
	if err != nil {
		return nil, 0, 0, NewTransientError(StageScored, err)
	}
	if err := waitDone(wDone, errChan); err != nil {
		return nil, 0, 0, NewTransientError(StageScored, err)
	}
	return scored, alertCount, caseCount, nil
}

func aggregateKpis(cfg *SyncConfig, ph components.PanicHandlerFunc, errChan chan error, waiter components.ComponentWaiter, scored []stream.Record) ([]stream.Record, error) {
	aggOut, _ := components.NewKpiAggregator(&components.KpiAggregatorConfig{
		Log:            cfg.Log,
		Name:           "aggregate merchant kpis",
		InputChan:      feedRecords(scored),
		StepWatcher:    cfg.Stats.AddStepWatcher("aggregate merchant kpis"),
		WaitCounter:    waiter,
		PanicHandlerFn: ph,
	})
	kpis, err := drainRecords(aggOut, errChan)
	if err != nil {
		return nil, NewTransientError(StageAggregated, err)
	}
	return kpis, nil
}

func writeTable(ctx context.Context, cfg *SyncConfig, ph components.PanicHandlerFunc, errChan chan error, waiter components.ComponentWaiter, publisher WindowPublisher, table schema.Table, records []stream.Record) (int64, error) {
	writerOut, _ := components.NewTableInsert(&components.TableInsertConfig{
		Log:             cfg.Log,
		Name:            "write " + table.FullName(),
		Ctx:             ctx,
		InputChan:       feedRecords(records),
		OutputDb:        cfg.OlapDb,
		Tx:              publisher.Tx(),
		Table:           table,
		UseStagingTable: publisher.UseStagingTables(),
		CommitBatchSize: cfg.CommitBatchSize,
		TxtBatchNumRows: cfg.TxtBatchNumRows,
		StepWatcher:     cfg.Stats.AddStepWatcher("write " + table.FullName()),
		WaitCounter:     waiter,
		PanicHandlerFn:  ph,
	})
	written, err := drainRecords(writerOut, errChan)
	if err != nil {
		return 0, err
	}
	return int64(len(written)), nil
}

// feedRecords returns a closed, fully buffered channel holding the records.
func feedRecords(records []stream.Record) chan stream.Record {
	retval := make(chan stream.Record, len(records)+1)
	for _, rec := range records {
		retval <- rec
	}
	close(retval)
	return retval
}

// drainRecords collects records from the channel until it closes, or returns the
// first component error captured by the panic handler.
func drainRecords(in chan stream.Record, errChan chan error) ([]stream.Record, error) {
	records := make([]stream.Record, 0, 1024)
	done := make(chan struct{})
	go func() {
		for rec := range in {
			records = append(records, rec)
		}
		close(done)
	}()
	select {
	case <-done:
		return records, nil
	case err := <-errChan:
		return nil, err
	}
}

// waitDone waits for a consumer goroutine to finish, or surfaces a component error.
func waitDone(done chan struct{}, errChan chan error) error {
	select {
	case <-done:
		return nil
	case err := <-errChan:
		return err
	}
}
