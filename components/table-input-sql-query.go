package components

import (
	"context"
	"fmt"
	"sync/atomic"

	c "github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/logger"
	"github.com/payfraud/riskpipe/rdbms/shared"
	s "github.com/payfraud/riskpipe/stats"
	"github.com/payfraud/riskpipe/stream"
)

type SqlQueryWithArgsConfig struct {
	Log            logger.Logger
	Name           string
	Ctx            context.Context // optional; bounds the query when set.
	Db             shared.Connector
	StepWatcher    *s.StepWatcher // optional ptr to object that can gather step stats.
	WaitCounter    ComponentWaiter
	Sqltext        string
	Args           []interface{}
	PanicHandlerFn PanicHandlerFunc
}

// NewSqlQueryWithArgs executes SQL and fetches rows onto the output channel.
// Args can be nil if the SQL has no bind variables.
// This is the transactional-store reader: the sync pipeline feeds it the window
// snapshot SQL with [start, end) bounds as args.
func NewSqlQueryWithArgs(i interface{}) (chan stream.Record, chan ControlAction) {
	cfg := i.(*SqlQueryWithArgsConfig)
	ctx := cfg.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// Make a channel for the SQL query results.
	outputChan := make(chan stream.Record, int(c.ChanSize))
	controlChan := make(chan ControlAction, 1) // make a control channel that receives a chan error.
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		// Add to wait group to say we have started.
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		// Get the data.
		execSql(ctx, cfg.Log, cfg.Name, cfg.Db, cfg.StepWatcher, &cfg.Sqltext, &cfg.Args, outputChan, controlChan)
	}()
	return outputChan, controlChan
}

// execSql executes SQL using the supplied args returning results onto the output channel.
// Column names from the result set become the record field names, so readers must
// alias every column they select.
func execSql(ctx context.Context,
	log logger.Logger,
	name string,
	db shared.Connector,
	stepWatcher *s.StepWatcher,
	sqltext *string,
	args *[]interface{},
	outputChan chan stream.Record,
	controlChan chan ControlAction,
) {
	if sqltext == nil || *sqltext == "" {
		log.Info(name, " received unexpected empty SQL - skipping")
		return
	}
	rowCount := int64(0)
	if stepWatcher != nil { // if the caller supplied a callback function for us to report row count and channel stats...
		stepWatcher.StartWatching(&rowCount, &outputChan) // supply ptr to this step's rowCount variable and chan for length stats.
		defer stepWatcher.StopWatching()
	}
	// Execute SQL query.
	var rows *shared.RpRows
	var err error
	var controlAction ControlAction
	if len(*args) > 0 {
		log.Info(name, " executing SQL: ", *sqltext, "; args = ", *args)
		rows, err = db.QueryContext(ctx, *sqltext, *args...)
	} else {
		log.Info(name, " executing SQL: ", *sqltext)
		rows, err = db.QueryContext(ctx, *sqltext)
	}
	if err != nil {
		log.Panic(fmt.Sprintf("%v received error during database query using SQL: '%v' %v", name, *sqltext, err))
	}
	if rows != nil {
		// Set up column names for Scan(...)
		log.Debug(name, " fetching column names...")
		cols, err := rows.Columns()
		if err != nil {
			log.Panic(name, " unable to fetch result set columns: ", err)
		}
		lenCols := len(cols)
		scanPtrs := make([]interface{}, lenCols)
		scanVals := make([]interface{}, lenCols)
		for idx := 0; idx < lenCols; idx++ {
			scanPtrs[idx] = &scanVals[idx]
		}
		log.Debug(name, " looping over result set...")
		for rows.Next() {
			err := rows.Scan(scanPtrs...)
			if err != nil {
				log.Panic(name, " unable to scan row: ", err)
				break
			}
			// Populate map[string]interface{} with the scanned values.
			row := stream.NewRecord()
			for idx := range scanVals {
				row.SetData(cols[idx], scanVals[idx])
			}
			log.Trace(name, " producing row onto outputChan: ", row)
			if rowSentOK := safeSend(row, outputChan, controlChan, sendNilControlResponse); !rowSentOK {
				log.Info(name, " shutdown")
				return
			}
			atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
			// Check for shutdown requests.
			select {
			case controlAction = <-controlChan: // if we have been asked to shutdown...
				err = rows.Close()
				var errResponse error
				if err != nil { // if there was an error closing the row set...
					errResponse = fmt.Errorf("%v error closing SQL result set: %v", name, err) // don't create more panics.
				}
				controlAction.ResponseChan <- errResponse // confirm that we're shutdown by sending the above error which may be nil.
				log.Info(name, " shutdown")
				return
			default: // else we can continue...
			}
		}
		// Cleanup.
		err = rows.Close()
		if err != nil { // if there was an error closing the row set...
			log.Panic(fmt.Sprintf(" error closing SQL result set in %v", name))
		}
	} else {
		log.Debug(name, " found zero rows using SQL: ", *sqltext)
	}
	close(outputChan) // end gracefully; tell downstream components that we're done.
	log.Info(name, " complete")
}
