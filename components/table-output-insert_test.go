package components

import (
	"context"
	"strings"
	"testing"
	"time"

	c "github.com/payfraud/riskpipe/constants"
	h "github.com/payfraud/riskpipe/helper"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/payfraud/riskpipe/schema"
	"github.com/payfraud/riskpipe/stream"
	"github.com/sirupsen/logrus"
)

func newInsertTestTable() schema.Table {
	return schema.Table{
		Name:      "t2",
		KeyCols:   h.TokensToOrderedMap("a:a"),
		OtherCols: h.TokensToOrderedMap("b:b"),
	}
}

func newInsertTestRecord(a, b string) stream.Record {
	rec := stream.NewRecord()
	rec.SetData("a", a)
	rec.SetData("b", b)
	return rec
}

func TestTableInsertTextBatch(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	db, resultChan := shared.NewMockConnectionWithMockTx(log, "postgres")
	inputChan := make(chan stream.Record, 10)
	inputChan <- newInsertTestRecord("1", "x")
	inputChan <- newInsertTestRecord("2", "y")
	inputChan <- newInsertTestRecord("3", "z")
	close(inputChan)
	outputChan, _ := NewTableInsert(&TableInsertConfig{
		Log:             log,
		Name:            "Test TableInsert",
		InputChan:       inputChan,
		OutputDb:        db,
		Table:           newInsertTestTable(),
		CommitBatchSize: 10,
		TxtBatchNumRows: 2,
	})
	rowsOut := 0
	for rec := range outputChan {
		rowsOut++
		log.Debug("output from TableInsert: ", rec)
	}
	if rowsOut != 3 {
		t.Fatal("expected 3 forwarded rows; got ", rowsOut)
	}
	db.Close()
	resultList := make([]string, 0, 3)
	for str := range resultChan {
		resultList = append(resultList, str)
	}
	// One full batch of 2 rows, then a final partial batch of 1 row, then commit.
	assertStr(t, log, "insert into t2 (a,b) values ( $1,$2 ),( $3,$4 ) [1 x 2 y]", resultList[0])
	assertStr(t, log, "insert into t2 (a,b) values ( $1,$2 ) [3 z]", resultList[1])
	assertStr(t, log, "commit", resultList[2])
	if len(resultList) != 3 {
		t.Fatal("unexpected result list length: ", len(resultList))
	}
}

func TestTableInsertCommitBatches(t *testing.T) {
	log := logrus.New()
	db, resultChan := shared.NewMockConnectionWithMockTx(log, "postgres")
	inputChan := make(chan stream.Record, 10)
	inputChan <- newInsertTestRecord("1", "x")
	inputChan <- newInsertTestRecord("2", "y")
	inputChan <- newInsertTestRecord("3", "z")
	close(inputChan)
	outputChan, _ := NewTableInsert(&TableInsertConfig{
		Log:             log,
		Name:            "Test TableInsert commit batches",
		InputChan:       inputChan,
		OutputDb:        db,
		Table:           newInsertTestTable(),
		CommitBatchSize: 2,
		TxtBatchNumRows: 2,
	})
	var lastCommitSequence int
	for rec := range outputChan {
		lastCommitSequence = rec.GetData(c.FieldCommitSequence).(int)
	}
	db.Close()
	commits := 0
	for str := range resultChan {
		if str == "commit" {
			commits++
		}
	}
	if commits != 2 {
		t.Fatal("expected 2 commits; got ", commits)
	}
	// The final record is sent before the closing commit so it carries sequence 1.
	if lastCommitSequence != 1 {
		t.Fatal("expected final commit sequence 1; got ", lastCommitSequence)
	}
}

func TestTableInsertStagingWithSuffix(t *testing.T) {
	log := logrus.New()
	db, resultChan := shared.NewMockConnectionWithMockTx(log, "clickhouse")
	inputChan := make(chan stream.Record, 1)
	inputChan <- newInsertTestRecord("1", "x")
	close(inputChan)
	tbl := newInsertTestTable()
	tbl.Schema = "analytics"
	outputChan, _ := NewTableInsert(&TableInsertConfig{
		Log:             log,
		Name:            "Test TableInsert staging",
		InputChan:       inputChan,
		OutputDb:        db,
		Table:           tbl,
		UseStagingTable: true,
	})
	for range outputChan {
	}
	db.Close()
	resultList := make([]string, 0, 2)
	for str := range resultChan {
		resultList = append(resultList, str)
	}
	assertStr(t, log, "insert into analytics.t2_staging (a,b) values ( ?,? ) [1 x]", resultList[0])
	assertStr(t, log, "commit", resultList[1])
}

func TestTableInsertHonoursContext(t *testing.T) {
	log := logrus.New()
	db, _ := shared.NewMockConnectionWithMockTx(log, "postgres")
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // dead before the first exec.
	errChan := make(chan error, 1)
	inputChan := make(chan stream.Record, 1)
	inputChan <- newInsertTestRecord("1", "x")
	close(inputChan)
	outputChan, _ := NewTableInsert(&TableInsertConfig{
		Log:             log,
		Name:            "Test TableInsert context",
		Ctx:             ctx,
		InputChan:       inputChan,
		OutputDb:        db,
		Table:           newInsertTestTable(),
		TxtBatchNumRows: 1,
		PanicHandlerFn:  GetPanicHandlerWithErrorChanFunc(errChan),
	})
	go func() {
		for range outputChan {
		}
	}()
	select {
	case err := <-errChan:
		if !strings.Contains(err.Error(), "context canceled") {
			t.Fatal("expected a context error; got ", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for the insert to fail on a cancelled context")
	}
}

func TestTableInsertExternalTransaction(t *testing.T) {
	// With a caller-owned transaction the component must exec but never commit.
	log := logrus.New()
	db, resultChan := shared.NewMockConnectionWithMockTx(log, "postgres")
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	inputChan := make(chan stream.Record, 10)
	inputChan <- newInsertTestRecord("1", "x")
	inputChan <- newInsertTestRecord("2", "y")
	close(inputChan)
	outputChan, _ := NewTableInsert(&TableInsertConfig{
		Log:             log,
		Name:            "Test TableInsert external tx",
		InputChan:       inputChan,
		OutputDb:        db,
		Tx:              tx,
		Table:           newInsertTestTable(),
		CommitBatchSize: 1, // must be ignored when the caller owns the transaction.
		TxtBatchNumRows: 10,
	})
	for range outputChan {
	}
	db.Close()
	for str := range resultChan {
		if str == "commit" {
			t.Fatal("expected no commit on a caller-owned transaction")
		}
		if !strings.HasPrefix(str, "insert into t2 ") {
			t.Fatal("unexpected statement: ", str)
		}
	}
}
