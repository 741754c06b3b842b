package components

import (
	"encoding/csv"
	"io"
	"os"
	"sync/atomic"

	c "github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/logger"
	s "github.com/payfraud/riskpipe/stats"
	"github.com/payfraud/riskpipe/stream"
)

type CsvFileInputConfig struct {
	Log            logger.Logger
	Name           string
	FileName       string
	FieldNames     []string // optional; when empty the first row of the file supplies the field names.
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewCsvFileInput reads a CSV file and produces one record per data row, with
// fields named by the header row (or cfg.FieldNames when supplied).
// All values are produced as strings; downstream consumers convert as needed.
func NewCsvFileInput(i interface{}) (chan stream.Record, chan ControlAction) {
	cfg := i.(*CsvFileInputConfig)
	outputChan := make(chan stream.Record, int(c.ChanSize))
	controlChan := make(chan ControlAction, 1)
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
		if cfg.StepWatcher != nil {
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		f, err := os.Open(cfg.FileName)
		if err != nil {
			cfg.Log.Panic(cfg.Name, " unable to open file: ", err)
		}
		defer func() { _ = f.Close() }()
		r := csv.NewReader(f)
		fieldNames := cfg.FieldNames
		if len(fieldNames) == 0 { // if the caller did not name the fields...
			header, err := r.Read() // ...then the first row must be a header.
			if err != nil {
				cfg.Log.Panic(cfg.Name, " unable to read CSV header row: ", err)
			}
			fieldNames = header
		}
		r.FieldsPerRecord = len(fieldNames)
		for {
			row, err := r.Read()
			if err == io.EOF { // if we have run out of rows...
				break
			}
			if err != nil {
				cfg.Log.Panic(cfg.Name, " unable to read CSV row: ", err)
			}
			rec := stream.NewRecord()
			for idx, fieldName := range fieldNames {
				rec.SetData(fieldName, row[idx])
			}
			if rowSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !rowSentOK {
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
			atomic.AddInt64(&rowCount, 1)
			select {
			case controlAction := <-controlChan: // if we have been asked to shutdown...
				controlAction.ResponseChan <- nil
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			default:
			}
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete; rows = ", atomic.LoadInt64(&rowCount))
	}()
	return outputChan, controlChan
}
