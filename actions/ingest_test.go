package actions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/payfraud/riskpipe/components"
	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/payfraud/riskpipe/schema"
	"github.com/sirupsen/logrus"
)

const testFeedCsv = `txn_id,idempotency_key,event_time,customer_id,merchant_id,payment_method_id,session_id,amount_cents,currency,channel,status,auth_code,failure_reason
t1,ik-1,2026-01-15T10:00:00Z,c1,m1,pm1,s1,5000,GBP,web,authorized,A1,
t2,ik-2,2026-01-15T11:00:00Z,c2,m1,pm2,s2,3000,GBP,pos,captured,A2,
`

func writeTestFeed(t *testing.T) string {
	t.Helper()
	fileName := filepath.Join(t.TempDir(), "feed.csv")
	if err := os.WriteFile(fileName, []byte(testFeedCsv), 0644); err != nil {
		t.Fatal(err)
	}
	return fileName
}

// The feed writer must emit inserts that skip rows whose idempotency key is
// already stored, so re-running a feed file never duplicates transactions.
func TestIngestInsertsSkipDuplicateKeys(t *testing.T) {
	log := logrus.New()
	fileName := writeTestFeed(t)
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypePostgres)
	csvOut, _ := components.NewCsvFileInput(&components.CsvFileInputConfig{
		Log:      log,
		Name:     "read transaction feed",
		FileName: fileName,
	})
	writerOut, _ := components.NewTableInsert(&components.TableInsertConfig{
		Log:             log,
		Name:            "write transactions",
		InputChan:       csvOut,
		OutputDb:        db,
		Table:           schema.Transactions(),
		StatementSuffix: onConflictSkipDuplicates,
		CommitBatchSize: 10,
		TxtBatchNumRows: 10,
	})
	rows := 0
	for range writerOut {
		rows++
	}
	if rows != 2 {
		t.Fatal("expected 2 rows written; got ", rows)
	}
	db.Close()
	var got []string
	for s := range sqlChan {
		got = append(got, s)
	}
	foundInsert := false
	for _, s := range got {
		if strings.Contains(s, "insert into transactions") {
			foundInsert = true
			if !strings.Contains(s, onConflictSkipDuplicates) {
				t.Fatal("insert is missing the duplicate-skip clause: ", s)
			}
			if !strings.Contains(s, "ik-1") || !strings.Contains(s, "ik-2") {
				t.Fatal("insert is missing the feed rows: ", s)
			}
		}
	}
	if !foundInsert {
		t.Fatal("no insert statement was executed; got ", got)
	}
	if got[len(got)-1] != "commit" {
		t.Fatal("expected a final commit; got ", got[len(got)-1])
	}
}

func TestRunIngestAction(t *testing.T) {
	cfg := &IngestActionConfig{
		LogLevel:       "info",
		FileName:       writeTestFeed(t),
		ConnectionName: constants.ConnectionNameOltp,
		Connections:    &mockConnectionLoader{},
	}
	if err := RunIngestAction(cfg); err != nil {
		t.Fatal(err)
	}
}

func TestRunIngestActionMissingFile(t *testing.T) {
	cfg := &IngestActionConfig{
		LogLevel:       "info",
		FileName:       filepath.Join(t.TempDir(), "no-such-feed.csv"),
		ConnectionName: constants.ConnectionNameOltp,
		Connections:    &mockConnectionLoader{},
	}
	if err := RunIngestAction(cfg); err == nil {
		t.Fatal("expected an error for a missing feed file")
	}
}
