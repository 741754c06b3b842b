package shared

import (
	"fmt"
	"strings"

	om "github.com/cevaris/ordered_map"
	"github.com/payfraud/riskpipe/logger"
)

// Bind variable styles per database type.
const (
	BindStyleDollar   = "dollar"   // postgres: $1, $2, ...
	BindStyleQuestion = "question" // clickhouse: ?, ?, ...
)

// DmlGeneratorTxtBatch generates multi-row DML statement text using the configured
// bind variable style.
type DmlGeneratorTxtBatch struct {
	BindStyle string
}

func NewPostgresDmlGenerator() *DmlGeneratorTxtBatch {
	return &DmlGeneratorTxtBatch{BindStyle: BindStyleDollar}
}

func NewClickhouseDmlGenerator() *DmlGeneratorTxtBatch {
	return &DmlGeneratorTxtBatch{BindStyle: BindStyleQuestion}
}

// bindMarker returns the bind variable text for 1-based position idx.
func (g *DmlGeneratorTxtBatch) bindMarker(idx int) string {
	if g.BindStyle == BindStyleQuestion {
		return "?"
	}
	return fmt.Sprintf("$%v", idx)
}

type SqlStatementGeneratorConfig struct {
	Log             logger.Logger
	OutputSchema    string
	SchemaSeparator string
	OutputTable     string
	TargetKeyCols   *om.OrderedMap // ordered map of: key = chan field name; value = target table column name
	TargetOtherCols *om.OrderedMap // ordered map of: key = chan field name; value = target table column name
	StatementSuffix string         // optional text appended after the generated statement e.g. an ON CONFLICT clause.
}

type sqlCoreCfg struct {
	sqlStmt                string
	sqlStmtTemplate        string
	sqlValues              []interface{} // slice to hold data values for all rows in batch
	batchSize              int
	rowsInBatch            int
	previousNumRowsInBatch int
	bindMarkerFn           func(idx int) string
}

func FixSqlStatementGeneratorConfig(cfg *SqlStatementGeneratorConfig) {
	if cfg.OutputTable == "" {
		cfg.Log.Fatal("Error, missing output table name.")
	}
	if cfg.OutputSchema == "" {
		cfg.SchemaSeparator = ""
		cfg.Log.Debug("No output schema supplied; setting a blank separator.")
	} else {
		cfg.SchemaSeparator = "."
	}
}

/// getInlineSelectOfValues builds 'select :1 as col1, :2 as col2 union all select ...' text
// using the supplied bind marker function, for use in DELETE ... USING statements.
func getInlineSelectOfValues(numValuesInBatch int, cols []string, bindMarkerFn func(idx int) string) *strings.Builder {
	allRows := strings.Builder{}
	rowIdx := 1
	valIdx := 1
	firstTime := true
	for rowIdx <= numValuesInBatch { // for each value in all rows...
		// Build the current row of values.
		row := strings.Builder{}
		for idy := 0; idy < len(cols); idy++ { // for each value in the current row...
			if firstTime {
				row.WriteString(fmt.Sprintf(",%v as %v", bindMarkerFn(valIdx), cols[idy])) // include value as name.
			} else {
				row.WriteString(fmt.Sprintf(",%v", bindMarkerFn(valIdx)))
			}
			valIdx++ // increment the batch counter.
		}
		rowIdx++
		// Save the row as 'select <row>' or ' union all select <row>'.
		if firstTime {
			allRows.WriteString(fmt.Sprintf("select %v", strings.TrimLeft(row.String(), ",")))
			firstTime = false
		} else {
			allRows.WriteString(fmt.Sprintf(" union all select %v", strings.TrimLeft(row.String(), ",")))
		}
	}
	return &allRows
}
