package components

import (
	"testing"

	c "github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/payfraud/riskpipe/stream"
	"github.com/sirupsen/logrus"
)

func newAlertedTestRecord(txnId, alertId, caseId string) stream.Record {
	rec := stream.NewRecord()
	rec.SetData(c.FieldEventTime, "2026-01-01T00:00:00Z")
	rec.SetData(c.FieldTxnId, txnId)
	rec.SetData(c.FieldCustomerId, "c1")
	rec.SetData(c.FieldAlertId, alertId)
	rec.SetData(c.FieldRuleName, "high_risk_customer | bad_outcome")
	rec.SetData(c.FieldSeverity, c.SeverityMedium)
	rec.SetData(c.FieldScore, 0.55)
	rec.SetData(c.FieldDetails, `{"rules":["high_risk_customer","bad_outcome"]}`)
	if caseId != "" {
		rec.SetData(c.FieldCaseId, caseId)
		rec.SetData(c.FieldCaseStatus, c.CaseStatusOpen)
	}
	return rec
}

func TestAlertWriter(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	db, resultChan := shared.NewMockConnectionWithMockTx(log, "postgres")
	inputChan := make(chan stream.Record, 10)
	// One escalated alert, one plain record, one alert without a case.
	inputChan <- newAlertedTestRecord("t1", "a1", "k1")
	plain := stream.NewRecord()
	plain.SetData(c.FieldTxnId, "t2")
	inputChan <- plain
	inputChan <- newAlertedTestRecord("t3", "a3", "")
	close(inputChan)
	outputChan, _ := NewAlertWriter(&AlertWriterConfig{
		Log:             log,
		Name:            "Test AlertWriter",
		InputChan:       inputChan,
		OutputDb:        db,
		CommitBatchSize: 10,
		TxtBatchNumRows: 1, // exec per row so statement order is deterministic.
	})
	rowsOut := 0
	for range outputChan {
		rowsOut++
	}
	if rowsOut != 3 {
		t.Fatal("expected all 3 records forwarded; got ", rowsOut)
	}
	db.Close()
	resultList := make([]string, 0, 4)
	for str := range resultChan {
		resultList = append(resultList, str)
	}
	assertStr(t, log,
		"insert into alerts (alert_id,created_at,customer_id,txn_id,rule_name,severity,score,details) values ( $1,$2,$3,$4,$5,$6,$7,$8 ) "+
			`[a1 2026-01-01T00:00:00Z c1 t1 high_risk_customer | bad_outcome medium 0.55 {"rules":["high_risk_customer","bad_outcome"]}]`,
		resultList[0])
	assertStr(t, log,
		"insert into cases (case_id,created_at,alert_id,status) values ( $1,$2,$3,$4 ) [k1 2026-01-01T00:00:00Z a1 open]",
		resultList[1])
	assertStr(t, log,
		"insert into alerts (alert_id,created_at,customer_id,txn_id,rule_name,severity,score,details) values ( $1,$2,$3,$4,$5,$6,$7,$8 ) "+
			`[a3 2026-01-01T00:00:00Z c1 t3 high_risk_customer | bad_outcome medium 0.55 {"rules":["high_risk_customer","bad_outcome"]}]`,
		resultList[2])
	assertStr(t, log, "commit", resultList[3])
	if len(resultList) != 4 {
		t.Fatal("unexpected result list length: ", len(resultList))
	}
}

func TestAlertWriterNoAlertsNoTransaction(t *testing.T) {
	log := logrus.New()
	db, resultChan := shared.NewMockConnectionWithMockTx(log, "postgres")
	inputChan := make(chan stream.Record, 2)
	rec := stream.NewRecord()
	rec.SetData(c.FieldTxnId, "t1")
	inputChan <- rec
	close(inputChan)
	outputChan, _ := NewAlertWriter(&AlertWriterConfig{
		Log:       log,
		Name:      "Test AlertWriter no alerts",
		InputChan: inputChan,
		OutputDb:  db,
	})
	for range outputChan {
	}
	db.Close()
	for str := range resultChan {
		t.Fatal("expected no SQL when no records alerted; got ", str)
	}
}
