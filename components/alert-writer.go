package components

import (
	"context"
	"sync/atomic"

	c "github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/logger"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/payfraud/riskpipe/schema"
	s "github.com/payfraud/riskpipe/stats"
	"github.com/payfraud/riskpipe/stream"
)

type AlertWriterConfig struct {
	Log             logger.Logger
	Name            string
	Ctx             context.Context // optional; bounds every DML statement when set.
	InputChan       chan stream.Record
	OutputDb        shared.Connector
	CommitBatchSize int
	TxtBatchNumRows int
	StepWatcher     *s.StepWatcher
	WaitCounter     ComponentWaiter
	PanicHandlerFn  PanicHandlerFunc
}

// NewAlertWriter persists alert decisions to the transactional store.
// Records carrying a new alert produce an alerts row; escalated alerts also
// produce an open cases row in the same transaction, so an alert and its case
// land together or not at all.
// Every input record is forwarded downstream regardless of whether it alerted,
// so the aggregation step sees the full stream.
func NewAlertWriter(i interface{}) (chan stream.Record, chan ControlAction) {
	cfg := i.(*AlertWriterConfig)
	ctx := cfg.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	outputChan := make(chan stream.Record, int(c.ChanSize))
	controlChan := make(chan ControlAction, 1)
	alertsTable := schema.Alerts()
	casesTable := schema.Cases()
	genAlerts := cfg.OutputDb.GetDmlGenerator().NewInsertGenerator(&shared.SqlStatementGeneratorConfig{
		Log:             cfg.Log,
		OutputSchema:    alertsTable.Schema,
		OutputTable:     alertsTable.Name,
		TargetKeyCols:   alertsTable.KeyCols,
		TargetOtherCols: alertsTable.OtherCols,
	})
	genCases := cfg.OutputDb.GetDmlGenerator().NewInsertGenerator(&shared.SqlStatementGeneratorConfig{
		Log:             cfg.Log,
		OutputSchema:    casesTable.Schema,
		OutputTable:     casesTable.Name,
		TargetKeyCols:   casesTable.KeyCols,
		TargetOtherCols: casesTable.OtherCols,
	})
	sqlAlertGenerator, ok := genAlerts.(shared.SqlStmtTxtBatcher)
	if !ok {
		cfg.Log.Panic(cfg.Name, ", SQL text batch inserts are not supported")
	}
	sqlCaseGenerator, ok := genCases.(shared.SqlStmtTxtBatcher)
	if !ok {
		cfg.Log.Panic(cfg.Name, ", SQL text batch inserts are not supported")
	}
	commitBatchSize := cfg.CommitBatchSize
	if commitBatchSize <= 0 {
		commitBatchSize = c.WriterBatchSizeDefault
	}
	txtBatchNumRows := cfg.TxtBatchNumRows
	if txtBatchNumRows <= 0 {
		txtBatchNumRows = c.WriterTxtBatchNumRowsDefault
	}
	needNewBatchAlert := true
	needNewBatchCase := true
	needNewTx := true
	needExecAlert := false
	needExecCase := false
	valuesForAlert := make([]interface{}, alertsTable.NumCols())
	valuesForCase := make([]interface{}, casesTable.NumCols())
	var tx shared.Transacter
	var err error
	var listIdx int
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		cfg.Log.Info(cfg.Name, " is running")
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		rowCount := int64(0)
		alertCount := int64(0)
		caseCount := int64(0)
		numRowsInTx := 0
		if cfg.StepWatcher != nil {
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		commitSequence := 0
		for {
			select {
			case rec, ok := <-cfg.InputChan: // for each row of input...
				if !ok { // if the inputChan is closed...
					cfg.Log.Debug("Disabling inputChan")
					cfg.InputChan = nil // disable this case.
				} else {
					atomic.AddInt64(&rowCount, 1)
					if rec.DataExists(c.FieldAlertId) { // if the scorer raised a new alert for this record...
						if needNewTx { // if we have not started a transaction...
							tx, err = cfg.OutputDb.Begin() // new transaction
							if err != nil {
								cfg.Log.Panic(cfg.Name, " - unable to start new transaction: ", err)
							}
							needNewTx = false
						}
						if needNewBatchAlert {
							cfg.Log.Debug(cfg.Name, " - new alerts INSERT batch required.")
							sqlAlertGenerator.InitBatch(txtBatchNumRows)
							needNewBatchAlert = false
						}
						listIdx = 0
						rec.GetDataValuesByKeys(cfg.Log, alertsTable.KeyCols, &valuesForAlert, &listIdx)
						rec.GetDataValuesByKeys(cfg.Log, alertsTable.OtherCols, &valuesForAlert, &listIdx)
						txtBatchIsFull, err := sqlAlertGenerator.AddValuesToBatch(valuesForAlert)
						if err != nil {
							cfg.Log.Panic(err)
						}
						needExecAlert = true
						alertCount++
						if txtBatchIsFull {
							mustExecSqlTransaction(ctx, cfg.Log, tx, sqlAlertGenerator.GetStatement(), sqlAlertGenerator.GetValues()...)
							needNewBatchAlert = true
							needExecAlert = false
						}
						if rec.DataExists(c.FieldCaseId) { // if the alert escalated to a case...
							if needNewBatchCase {
								cfg.Log.Debug(cfg.Name, " - new cases INSERT batch required.")
								sqlCaseGenerator.InitBatch(txtBatchNumRows)
								needNewBatchCase = false
							}
							listIdx = 0
							rec.GetDataValuesByKeys(cfg.Log, casesTable.KeyCols, &valuesForCase, &listIdx)
							rec.GetDataValuesByKeys(cfg.Log, casesTable.OtherCols, &valuesForCase, &listIdx)
							txtBatchIsFull, err := sqlCaseGenerator.AddValuesToBatch(valuesForCase)
							if err != nil {
								cfg.Log.Panic(err)
							}
							needExecCase = true
							caseCount++
							if txtBatchIsFull {
								mustExecSqlTransaction(ctx, cfg.Log, tx, sqlCaseGenerator.GetStatement(), sqlCaseGenerator.GetValues()...)
								needNewBatchCase = true
								needExecCase = false
							}
						}
						numRowsInTx++
						if numRowsInTx >= commitBatchSize {
							// Flush pending partial batches so the alert and its case commit together.
							if needExecAlert {
								mustExecSqlTransaction(ctx, cfg.Log, tx, sqlAlertGenerator.GetStatement(), sqlAlertGenerator.GetValues()...)
								needNewBatchAlert = true
								needExecAlert = false
							}
							if needExecCase {
								mustExecSqlTransaction(ctx, cfg.Log, tx, sqlCaseGenerator.GetStatement(), sqlCaseGenerator.GetValues()...)
								needNewBatchCase = true
								needExecCase = false
							}
							mustCommitSqlTransaction(cfg.Log, tx, &commitSequence)
							needNewTx = true
							numRowsInTx = 0
						}
					}
					// Output the row.
					if recSendOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !recSendOK {
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
				}
			case controlAction := <-controlChan:
				if !needNewTx { // if we own an open transaction...
					if err := tx.Rollback(); err != nil {
						controlAction.ResponseChan <- err
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
				}
				controlAction.ResponseChan <- nil
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
			if cfg.InputChan == nil { // if the input channel was closed (all rows were processed)...
				break
			}
		}
		// Normal completion - execute and commit any partial batches.
		if numRowsInTx > 0 {
			if needExecAlert {
				mustExecSqlTransaction(ctx, cfg.Log, tx, sqlAlertGenerator.GetStatement(), sqlAlertGenerator.GetValues()...)
			}
			if needExecCase {
				mustExecSqlTransaction(ctx, cfg.Log, tx, sqlCaseGenerator.GetStatement(), sqlCaseGenerator.GetValues()...)
			}
			mustCommitSqlTransaction(cfg.Log, tx, &commitSequence)
			cfg.Log.Debug(cfg.Name, " - final exec + commit complete")
		}
		close(outputChan) // we're done so close the channel we created.
		cfg.Log.Info(cfg.Name, " complete; alerts = ", alertCount, "; cases = ", caseCount)
	}()
	return outputChan, controlChan
}
