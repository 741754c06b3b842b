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

type TableInsertConfig struct {
	Log             logger.Logger
	Name            string
	Ctx             context.Context // optional; bounds every DML statement when set.
	InputChan       chan stream.Record
	OutputDb        shared.Connector
	Tx              shared.Transacter // optional; when set, all DML runs on this transaction and the caller owns commit/rollback.
	Table           schema.Table
	UseStagingTable bool   // write to the table's staging twin instead of the table itself.
	StatementSuffix string // optional text appended to generated INSERTs e.g. an ON CONFLICT clause.
	CommitBatchSize int
	TxtBatchNumRows int
	StepWatcher     *s.StepWatcher
	WaitCounter     ComponentWaiter
	PanicHandlerFn  PanicHandlerFunc
}

// NewTableInsert writes incoming records to the configured table using multi-row
// INSERT statements, committing every CommitBatchSize rows.
// When cfg.Tx is supplied the component never begins or commits a transaction of
// its own - every statement runs on the caller's transaction so a window of rows
// lands atomically or not at all.
// Records are forwarded downstream with the commit sequence number attached.
func NewTableInsert(i interface{}) (chan stream.Record, chan ControlAction) {
	cfg := i.(*TableInsertConfig)
	ctx := cfg.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	outputChan := make(chan stream.Record, int(c.ChanSize))
	controlChan := make(chan ControlAction, 1)
	outputTable := cfg.Table.Name
	if cfg.UseStagingTable {
		outputTable = cfg.Table.StagingName()
	}
	gen := cfg.OutputDb.GetDmlGenerator().NewInsertGenerator(&shared.SqlStatementGeneratorConfig{
		Log:             cfg.Log,
		OutputSchema:    cfg.Table.Schema,
		OutputTable:     outputTable,
		TargetKeyCols:   cfg.Table.KeyCols,
		TargetOtherCols: cfg.Table.OtherCols,
		StatementSuffix: cfg.StatementSuffix,
	})
	sqlInsertGenerator, ok := gen.(shared.SqlStmtTxtBatcher)
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
	needNewBatch := true
	needNewTx := true
	needExec := false
	externalTx := cfg.Tx != nil
	values := make([]interface{}, cfg.Table.NumCols())
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
					cfg.InputChan = nil // disable this case (receive on a nil chan blocks forever; select won't choose a blocking operation).
				} else {
					atomic.AddInt64(&rowCount, 1)
					if needNewTx { // if we have not started a transaction...
						if externalTx {
							tx = cfg.Tx
						} else {
							tx, err = cfg.OutputDb.Begin() // new transaction
							if err != nil {
								cfg.Log.Panic(cfg.Name, " - unable to start new transaction: ", err)
							}
						}
						needNewTx = false
					}
					if needNewBatch { // if we need to start a new batch...
						cfg.Log.Debug(cfg.Name, " - new INSERT batch required.")
						sqlInsertGenerator.InitBatch(txtBatchNumRows)
						needNewBatch = false
					}
					// Save values from all fields into a list of values.
					listIdx = 0
					rec.GetDataValuesByKeys(cfg.Log, cfg.Table.KeyCols, &values, &listIdx)
					rec.GetDataValuesByKeys(cfg.Log, cfg.Table.OtherCols, &values, &listIdx)
					cfg.Log.Debug(cfg.Name, " - values for INSERT: ", values)
					txtBatchIsFull, err := sqlInsertGenerator.AddValuesToBatch(values)
					if err != nil {
						cfg.Log.Panic(err)
					}
					needExec = true
					if txtBatchIsFull { // if the batch is full...
						mustExecSqlTransaction(ctx, cfg.Log, tx, sqlInsertGenerator.GetStatement(), sqlInsertGenerator.GetValues()...)
						needNewBatch = true // request new batch on next iteration.
						needExec = false    // set this false so that we can test if a final exec is required.
					}
					numRowsInTx++
					if !externalTx && numRowsInTx >= commitBatchSize {
						if needExec { // if a partial batch is pending...
							mustExecSqlTransaction(ctx, cfg.Log, tx, sqlInsertGenerator.GetStatement(), sqlInsertGenerator.GetValues()...)
							needNewBatch = true
							needExec = false
						}
						mustCommitSqlTransaction(cfg.Log, tx, &commitSequence)
						needNewTx = true
						numRowsInTx = 0
					}
					// Output the row.
					rec.SetData(c.FieldCommitSequence, commitSequence)
					if recSendOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !recSendOK {
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
				}
			case controlAction := <-controlChan:
				if !externalTx && !needNewTx { // if we own an open transaction...
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
		// Normal completion - execute and commit any partial batch.
		if numRowsInTx > 0 {
			if needExec {
				mustExecSqlTransaction(ctx, cfg.Log, tx, sqlInsertGenerator.GetStatement(), sqlInsertGenerator.GetValues()...)
			}
			if !externalTx {
				mustCommitSqlTransaction(cfg.Log, tx, &commitSequence)
			}
			cfg.Log.Debug(cfg.Name, " - final exec complete")
		}
		close(outputChan) // we're done so close the channel we created.
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return outputChan, controlChan
}

// ---------------------------------------------------------------------------------------------------------------------
// -- LOCAL HELPERS
// ---------------------------------------------------------------------------------------------------------------------

func mustExecSqlTransaction(ctx context.Context, log logger.Logger, tx shared.Transacter, sqltext string, values ...interface{}) {
	log.Debug("Exec trying...")
	_, err := tx.ExecContext(ctx, sqltext, values...)
	if err != nil {
		log.Panic("Error during exec of SQL (", sqltext, ") ", err)
	}
	log.Debug("Exec complete")
	return
}

func mustCommitSqlTransaction(log logger.Logger, tx shared.Transacter, commitCounter *int) {
	err := tx.Commit()
	if err != nil {
		log.Panic("Error committing transaction: ", err)
	}
	if commitCounter != nil {
		*commitCounter++ // increment counter which is added to the output record.
	}
}
