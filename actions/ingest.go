package actions

import (
	"github.com/payfraud/riskpipe/components"
	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/helper"
	"github.com/payfraud/riskpipe/logger"
	"github.com/payfraud/riskpipe/schema"
	"github.com/payfraud/riskpipe/stats"
	"github.com/pkg/errors"
)

// onConflictSkipDuplicates makes ingest idempotent: re-running a feed file never
// inserts a transaction whose idempotency key is already stored.
const onConflictSkipDuplicates = "on conflict (idempotency_key) do nothing"

type IngestActionConfig struct {
	LogLevel                  string `errorTxt:"log level" mandatory:"yes"`
	FileName                  string `errorTxt:"CSV file name" mandatory:"yes"`
	ConnectionName            string `errorTxt:"transactional connection name" mandatory:"yes"`
	CommitBatchSize           int
	TxtBatchNumRows           int
	StatsDumpFrequencySeconds int
	StackDumpOnPanic          bool
	Connections               ConnectionLoader
}

// RunIngestAction loads a CSV feed of payment transactions into the
// transactional store. The CSV header row must name the transaction fields
// (txn_id, idempotency_key, event_time, customer_id, merchant_id, ...).
func RunIngestAction(cfg *IngestActionConfig) error {
	log := logger.NewLogger("riskpipe", cfg.LogLevel, cfg.StackDumpOnPanic)
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	db, err := openConnection(log, cfg.Connections, cfg.ConnectionName, constants.ConnectionTypePostgres)
	if err != nil {
		return errors.Wrapf(err, "unable to open transactional store connection %q", cfg.ConnectionName)
	}
	defer db.Close()
	sm := stats.NewPipelineStats(log, stats.SetStatsDumpFrequency(cfg.StatsDumpFrequencySeconds))
	sm.StartDumping()
	defer sm.StopDumping()
	errChan := make(chan error, 2)
	ph := components.GetPanicHandlerWithErrorChanFunc(errChan)
	csvOut, _ := components.NewCsvFileInput(&components.CsvFileInputConfig{
		Log:            log,
		Name:           "read transaction feed " + cfg.FileName,
		FileName:       cfg.FileName,
		StepWatcher:    sm.AddStepWatcher("read transaction feed"),
		PanicHandlerFn: ph,
	})
	writerOut, _ := components.NewTableInsert(&components.TableInsertConfig{
		Log:             log,
		Name:            "write transactions",
		InputChan:       csvOut,
		OutputDb:        db,
		Table:           schema.Transactions(),
		StatementSuffix: onConflictSkipDuplicates,
		CommitBatchSize: cfg.CommitBatchSize,
		TxtBatchNumRows: cfg.TxtBatchNumRows,
		StepWatcher:     sm.AddStepWatcher("write transactions"),
		PanicHandlerFn:  ph,
	})
	rows := int64(0)
	done := make(chan struct{})
	go func() {
		for range writerOut {
			rows++
		}
		close(done)
	}()
	select {
	case <-done:
	case err := <-errChan:
		return errors.Wrap(err, "ingest failed")
	}
	log.Info("ingest complete; rows = ", rows)
	return nil
}
