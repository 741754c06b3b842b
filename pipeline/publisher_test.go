package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/payfraud/riskpipe/schema"
	"github.com/payfraud/riskpipe/stream"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// collectSql closes the mock connection and returns everything it executed, in order.
func collectSql(db shared.Connector, sqlChan chan string) []string {
	db.Close()
	retval := make([]string, 0, 16)
	for s := range sqlChan {
		retval = append(retval, s)
	}
	return retval
}

func TestWindowPublisherStrategySelection(t *testing.T) {
	log := logrus.New()
	chDb, chChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeClickhouse)
	defer close(chChan)
	p, err := NewWindowPublisher(log, chDb, "2026-01-01T00:00:00Z", "2026-03-02T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*ClickhousePublisher); !ok {
		t.Fatal("expected the staging-swap strategy for clickhouse")
	}
	if !p.UseStagingTables() || p.Tx() != nil {
		t.Fatal("staging strategy must use staging tables and no shared transaction")
	}
	pgDb, pgChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	defer close(pgChan)
	p, err = NewWindowPublisher(log, pgDb, "2026-01-01T00:00:00Z", "2026-03-02T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*PostgresPublisher); !ok {
		t.Fatal("expected the delete-and-insert strategy for postgres")
	}
}

func TestWindowPublisherUnknownStoreType(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	defer close(sqlChan)
	mock := db.(*shared.MockConnectionWithMockTx)
	mock.DbType = "oracle"
	_, err := NewWindowPublisher(log, db, "", "")
	if err == nil {
		t.Fatal("expected an error for an unknown store type")
	}
	if ClassOf(err) != ErrorClassConfiguration {
		t.Fatal("expected a configuration error; got ", ClassOf(err))
	}
}

func TestPostgresPublisherLifecycle(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	p := NewPostgresPublisher(log, db, "2026-01-01T00:00:00Z", "2026-03-02T00:00:00Z")
	if err := p.Prepare(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.Tx() == nil {
		t.Fatal("expected a publish transaction after Prepare")
	}
	if err := p.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := collectSql(db, sqlChan)
	expected := []string{
		schema.CreatePublishMarkerTableSql,
		"select table_name from analytics_publish_markers where table_name = $1 [analytics.fct_transactions]",
		schema.InsertPublishMarkerSql + " [analytics.fct_transactions]",
		"delete from analytics.fct_transactions where event_time >= $1 and event_time < $2 [2026-01-01T00:00:00Z 2026-03-02T00:00:00Z]",
		"commit",
		schema.DeletePublishMarkerSql + " [analytics.fct_transactions]",
	}
	if len(got) != len(expected) {
		t.Fatal("expected ", len(expected), " statements; got ", len(got), ": ", got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatal("statement ", i, ": expected ", expected[i], "; got ", got[i])
		}
	}
}

func TestPostgresPublisherLeftoverMarker(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	defer close(sqlChan)
	mock := db.(*shared.MockConnectionWithMockTx)
	mock.MockQueryCols = []string{"table_name"}
	mock.MockQueryRows = [][]interface{}{{"analytics.fct_transactions"}}
	p := NewPostgresPublisher(log, db, "2026-01-01T00:00:00Z", "2026-03-02T00:00:00Z")
	err := p.Prepare(context.Background())
	if err == nil {
		t.Fatal("expected a leftover marker to fail Prepare")
	}
	if ClassOf(err) != ErrorClassConsistency {
		t.Fatal("expected a consistency error; got ", ClassOf(err))
	}
	if StageOf(err) != StageWritten {
		t.Fatal("expected stage written; got ", StageOf(err))
	}
}

func TestPostgresPublisherAbortRollsBack(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	p := NewPostgresPublisher(log, db, "2026-01-01T00:00:00Z", "2026-03-02T00:00:00Z")
	if err := p.Prepare(context.Background()); err != nil {
		t.Fatal(err)
	}
	p.Abort(context.Background())
	got := collectSql(db, sqlChan)
	var sawRollback, sawCommit bool
	for _, s := range got {
		if s == "rollback" {
			sawRollback = true
		}
		if s == "commit" {
			sawCommit = true
		}
	}
	if !sawRollback || sawCommit {
		t.Fatal("expected a rollback and no commit; got ", got)
	}
	if got[len(got)-1] != schema.DeletePublishMarkerSql+" [analytics.fct_transactions]" {
		t.Fatal("expected the marker to be removed after rollback; got ", got[len(got)-1])
	}
}

func TestPostgresPublisherAbortKeepsForeignMarker(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	mock := db.(*shared.MockConnectionWithMockTx)
	mock.MockQueryCols = []string{"table_name"}
	mock.MockQueryRows = [][]interface{}{{"analytics.fct_transactions"}} // another run's marker.
	p := NewPostgresPublisher(log, db, "2026-01-01T00:00:00Z", "2026-03-02T00:00:00Z")
	if err := p.Prepare(context.Background()); err == nil {
		t.Fatal("expected a leftover marker to fail Prepare")
	}
	p.Abort(context.Background())
	got := collectSql(db, sqlChan)
	for _, s := range got {
		if strings.Contains(s, schema.DeletePublishMarkerSql) {
			t.Fatal("abort must not remove a marker this run never wrote; got ", got)
		}
	}
}

func TestPostgresPublisherDeleteKpis(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	p := NewPostgresPublisher(log, db, "2026-01-01T00:00:00Z", "2026-03-02T00:00:00Z")
	if err := p.Prepare(context.Background()); err != nil {
		t.Fatal(err)
	}
	k1 := stream.NewRecord()
	k1.SetData("day", "2026-01-15")
	k1.SetData("merchant_id", "m1")
	k2 := stream.NewRecord()
	k2.SetData("day", "2026-01-15")
	k2.SetData("merchant_id", "m2")
	if err := p.DeleteKpis(context.Background(), []stream.Record{k1, k2}); err != nil {
		t.Fatal(err)
	}
	got := collectSql(db, sqlChan)
	expected := "delete from analytics.agg_daily_merchant_kpis tgt using " +
		"(select $1 as day,$2 as merchant_id union all select $3,$4) src " +
		"where src.day = tgt.day and src.merchant_id = tgt.merchant_id [2026-01-15 m1 2026-01-15 m2]"
	if got[len(got)-1] != expected {
		t.Fatal("expected ", expected, "; got ", got[len(got)-1])
	}
}

func TestClickhousePublisherLifecycle(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeClickhouse)
	p := NewClickhousePublisher(log, db)
	if err := p.Prepare(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.DeleteKpis(context.Background(), nil); err != nil { // staging load needs no delete.
		t.Fatal(err)
	}
	if err := p.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := collectSql(db, sqlChan)
	expected := []string{
		"CREATE TABLE analytics.fct_transactions_staging AS analytics.fct_transactions",
		"CREATE TABLE analytics.agg_daily_merchant_kpis_staging AS analytics.agg_daily_merchant_kpis",
		"EXCHANGE TABLES analytics.fct_transactions_staging AND analytics.fct_transactions",
		"DROP TABLE IF EXISTS analytics.fct_transactions_staging",
		"EXCHANGE TABLES analytics.agg_daily_merchant_kpis_staging AND analytics.agg_daily_merchant_kpis",
		"DROP TABLE IF EXISTS analytics.agg_daily_merchant_kpis_staging",
	}
	if len(got) != len(expected) {
		t.Fatal("expected ", len(expected), " statements; got ", len(got), ": ", got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatal("statement ", i, ": expected ", expected[i], "; got ", got[i])
		}
	}
}

func TestClickhousePublisherLeftoverStaging(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeClickhouse)
	defer close(sqlChan)
	mock := db.(*shared.MockConnectionWithMockTx)
	mock.ExecError = errors.New("table analytics.fct_transactions_staging already exists")
	mock.ExecErrorsOn = "CREATE TABLE"
	p := NewClickhousePublisher(log, db)
	err := p.Prepare(context.Background())
	if err == nil {
		t.Fatal("expected a leftover staging table to fail Prepare")
	}
	if ClassOf(err) != ErrorClassConsistency {
		t.Fatal("expected a consistency error; got ", ClassOf(err))
	}
	if !strings.Contains(err.Error(), "did not complete") {
		t.Fatal("expected the prior-publish hint in the error; got ", err)
	}
}

func TestClickhousePublisherAbortDropsStaging(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeClickhouse)
	p := NewClickhousePublisher(log, db)
	if err := p.Prepare(context.Background()); err != nil {
		t.Fatal(err)
	}
	p.Abort(context.Background())
	p.Abort(context.Background()) // second abort is a no-op.
	got := collectSql(db, sqlChan)
	expected := []string{
		"CREATE TABLE analytics.fct_transactions_staging AS analytics.fct_transactions",
		"CREATE TABLE analytics.agg_daily_merchant_kpis_staging AS analytics.agg_daily_merchant_kpis",
		"DROP TABLE IF EXISTS analytics.fct_transactions_staging",
		"DROP TABLE IF EXISTS analytics.agg_daily_merchant_kpis_staging",
	}
	if len(got) != len(expected) {
		t.Fatal("expected ", len(expected), " statements; got ", len(got), ": ", got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatal("statement ", i, ": expected ", expected[i], "; got ", got[i])
		}
	}
}
