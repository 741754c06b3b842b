package pipeline

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/fraud"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// newSyncTestStores returns mock transactional and analytical connections with a
// 4-row window snapshot: one high-risk chargeback that must alert, one clean
// authorized row, one row carrying an alert from a previous run, and one invalid
// row that must be quarantined.
func newSyncTestStores(log *logrus.Logger) (shared.Connector, chan string, shared.Connector, chan string) {
	day := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	oltpDb, oltpChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	oltpMock := oltpDb.(*shared.MockConnectionWithMockTx)
	oltpMock.MockQueryCols = []string{
		"event_time", "txn_id", "customer_id", "merchant_id", "payment_method_id",
		"amount_cents", "currency", "channel", "status", "country", "risk_tier",
		"merchant_risk_tier", "existing_alert_id",
	}
	oltpMock.MockQueryRows = [][]interface{}{
		{day, "t1", "c1", "m1", "pm1", int64(200000), "USD", "web", "chargeback", "US", "high", "low", ""},
		{day.Add(time.Hour), "t2", "c2", "m1", "pm2", int64(5000), "USD", "web", "authorized", "US", "low", "low", ""},
		{day.Add(2 * time.Hour), "t3", "c3", "m2", "pm3", int64(3000), "USD", "pos", "captured", "GB", "low", "low", "a-prev"},
		{day.Add(3 * time.Hour), "t4", "c4", "m2", "pm4", int64(-100), "USD", "web", "authorized", "US", "low", "low", ""},
	}
	olapDb, olapChan := shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypeMock)
	return oltpDb, oltpChan, olapDb, olapChan
}

func newSyncTestConfig(log *logrus.Logger, oltpDb, olapDb shared.Connector) *SyncConfig {
	th := fraud.DefaultThresholds()
	th.CaseEscalationProbability = 1.0 // make escalation deterministic.
	return &SyncConfig{
		Log:                   log,
		OltpDb:                oltpDb,
		OlapDb:                olapDb,
		WindowStart:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:             time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Thresholds:            th,
		MaxQuarantineFraction: 0.5,
	}
}

func TestRunSyncCommitsWindow(t *testing.T) {
	log := logrus.New()
	oltpDb, oltpChan, olapDb, olapChan := newSyncTestStores(log)
	registry := NewRunRegistry()
	cfg := newSyncTestConfig(log, oltpDb, olapDb)
	cfg.Registry = registry
	summary := RunSync(cfg)
	if summary.Failed() {
		t.Fatal("expected a committed run; got ", summary.Status, ": ", summary.Error)
	}
	if summary.Status != statusCommitted || summary.Stage != StageCommitted {
		t.Fatal("expected committed; got ", summary.Status, " / ", summary.Stage)
	}
	if summary.ReadCount != 4 || summary.QuarantinedCount != 1 || summary.ScoredCount != 3 {
		t.Fatal("unexpected read counts: ", summary.ReadCount, " / ", summary.QuarantinedCount, " / ", summary.ScoredCount)
	}
	// Only t1 alerts: t2 scores 0.0, t3 already has an alert, t4 was quarantined.
	if summary.AlertCount != 1 || summary.CaseCount != 1 {
		t.Fatal("unexpected alert counts: ", summary.AlertCount, " / ", summary.CaseCount)
	}
	// (2026-01-15, m1) and (2026-01-15, m2).
	if summary.AggregatedCount != 2 {
		t.Fatal("expected 2 rollups; got ", summary.AggregatedCount)
	}
	if summary.FactsWrittenCount != 3 || summary.KpisWrittenCount != 2 {
		t.Fatal("unexpected written counts: ", summary.FactsWrittenCount, " / ", summary.KpisWrittenCount)
	}
	if summary.Attempts != 1 {
		t.Fatal("expected 1 attempt; got ", summary.Attempts)
	}
	if got, ok := registry.Get(summary.RunId); !ok || got.RunId != summary.RunId || got.Status != statusCommitted {
		t.Fatal("expected the committed run in the registry")
	}

	// The transactional store saw the window query and the alert/case writes.
	oltpSql := collectSql(oltpDb, oltpChan)
	assertSqlSeen(t, oltpSql, "from transactions t")
	assertSqlSeen(t, oltpSql, "insert into alerts")
	assertSqlSeen(t, oltpSql, "insert into cases")
	assertSqlSeen(t, oltpSql, "commit")

	// The analytical store saw marker, window delete, loads and exactly one commit.
	olapSql := collectSql(olapDb, olapChan)
	assertSqlSeen(t, olapSql, "insert into analytics_publish_markers")
	assertSqlSeen(t, olapSql, "delete from analytics.fct_transactions where event_time >= $1 and event_time < $2")
	assertSqlSeen(t, olapSql, "insert into analytics.fct_transactions")
	assertSqlSeen(t, olapSql, "insert into analytics.agg_daily_merchant_kpis")
	commits := 0
	for _, s := range olapSql {
		if s == "commit" {
			commits++
		}
		if s == "rollback" {
			t.Fatal("unexpected rollback in a committed run")
		}
	}
	if commits != 1 {
		t.Fatal("expected exactly one analytical-store commit; got ", commits)
	}
	if olapSql[len(olapSql)-1] != "delete from analytics_publish_markers where table_name = $1 [analytics.fct_transactions]" {
		t.Fatal("expected the publish marker removed last; got ", olapSql[len(olapSql)-1])
	}
}

func TestRunSyncNoPartialWriteOnStoreFailure(t *testing.T) {
	log := logrus.New()
	oltpDb, oltpChan, olapDb, olapChan := newSyncTestStores(log)
	defer close(oltpChan)
	olapMock := olapDb.(*shared.MockConnectionWithMockTx)
	olapMock.ExecError = errors.New("connection reset by peer")
	olapMock.ExecErrorsOn = "insert into analytics.fct_transactions"
	cfg := newSyncTestConfig(log, oltpDb, olapDb)
	summary := RunSync(cfg)
	if !summary.Failed() {
		t.Fatal("expected a failed run")
	}
	if summary.Status != "failed(written)" {
		t.Fatal("expected failed(written); got ", summary.Status)
	}
	if summary.ErrorClass != string(ErrorClassTransient) {
		t.Fatal("expected a transient failure; got ", summary.ErrorClass)
	}
	olapSql := collectSql(olapDb, olapChan)
	assertSqlSeen(t, olapSql, "rollback")
	for _, s := range olapSql {
		if s == "commit" {
			t.Fatal("a failed run must not commit the analytical store")
		}
	}
	// Rollback means the marker no longer flags an in-flight publish.
	if olapSql[len(olapSql)-1] != "delete from analytics_publish_markers where table_name = $1 [analytics.fct_transactions]" {
		t.Fatal("expected the publish marker removed after abort; got ", olapSql[len(olapSql)-1])
	}
}

func TestRunSyncWithRetryRetriesTransientFailures(t *testing.T) {
	log := logrus.New()
	oltpDb, oltpChan, olapDb, olapChan := newSyncTestStores(log)
	defer close(oltpChan)
	defer close(olapChan)
	olapMock := olapDb.(*shared.MockConnectionWithMockTx)
	olapMock.ExecError = errors.New("connection reset by peer")
	olapMock.ExecErrorsOn = "insert into analytics.fct_transactions"
	cfg := newSyncTestConfig(log, oltpDb, olapDb)
	cfg.MaxStoreRetries = 2
	cfg.RetryBackoff = time.Millisecond
	summary := RunSyncWithRetry(cfg)
	if !summary.Failed() || summary.Status != "failed(written)" {
		t.Fatal("expected failed(written) after retries; got ", summary.Status)
	}
	if summary.Attempts != 2 {
		t.Fatal("expected 2 attempts; got ", summary.Attempts)
	}
}

func TestRunSyncWithRetryDoesNotRetryConsistencyFailures(t *testing.T) {
	log := logrus.New()
	oltpDb, oltpChan, olapDb, olapChan := newSyncTestStores(log)
	defer close(oltpChan)
	defer close(olapChan)
	olapMock := olapDb.(*shared.MockConnectionWithMockTx)
	olapMock.MockQueryCols = []string{"table_name"}
	olapMock.MockQueryRows = [][]interface{}{{"analytics.fct_transactions"}} // leftover publish marker.
	cfg := newSyncTestConfig(log, oltpDb, olapDb)
	cfg.MaxStoreRetries = 3
	cfg.RetryBackoff = time.Millisecond
	summary := RunSyncWithRetry(cfg)
	if !summary.Failed() || summary.Status != "failed(written)" {
		t.Fatal("expected failed(written); got ", summary.Status)
	}
	if summary.ErrorClass != string(ErrorClassConsistency) {
		t.Fatal("expected a consistency failure; got ", summary.ErrorClass)
	}
	if summary.Attempts != 1 {
		t.Fatal("consistency failures must not be retried; got ", summary.Attempts, " attempts")
	}
}

func TestRunSyncFailsValidationOverQuarantineLimit(t *testing.T) {
	log := logrus.New()
	oltpDb, oltpChan, olapDb, olapChan := newSyncTestStores(log)
	defer close(oltpChan)
	defer close(olapChan)
	cfg := newSyncTestConfig(log, oltpDb, olapDb)
	cfg.MaxQuarantineFraction = 0.1 // 1 of 4 quarantined is over the limit.
	summary := RunSync(cfg)
	if !summary.Failed() {
		t.Fatal("expected a failed run")
	}
	if summary.Status != "failed(read)" {
		t.Fatal("expected failed(read); got ", summary.Status)
	}
	if summary.ErrorClass != string(ErrorClassValidation) {
		t.Fatal("expected a validation failure; got ", summary.ErrorClass)
	}
	if !strings.Contains(summary.Error, "exceeds the limit") {
		t.Fatal("expected the quarantine limit in the error; got ", summary.Error)
	}
}

func TestRunSyncRepublishIsDeterministic(t *testing.T) {
	log := logrus.New()
	runOnce := func() []string {
		oltpDb, oltpChan, olapDb, olapChan := newSyncTestStores(log)
		defer close(oltpChan)
		summary := RunSync(newSyncTestConfig(log, oltpDb, olapDb))
		if summary.Failed() {
			t.Fatal("expected a committed run; got ", summary.Status, ": ", summary.Error)
		}
		return collectSql(olapDb, olapChan)
	}
	first := runOnce()
	second := runOnce()
	if len(first) != len(second) {
		t.Fatal("expected identical analytical statement counts; got ", len(first), " and ", len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("analytical statements diverge at ", i, ": ", first[i], " vs ", second[i])
		}
	}
}

func TestRegistryServesSnapshotsDuringRun(t *testing.T) {
	log := logrus.New()
	oltpDb, oltpChan, olapDb, olapChan := newSyncTestStores(log)
	defer close(oltpChan)
	defer close(olapChan)
	registry := NewRunRegistry()
	cfg := newSyncTestConfig(log, oltpDb, olapDb)
	cfg.Registry = registry
	summary, done := StartSync(cfg)
	stop := make(chan struct{})
	marshalErr := make(chan error, 1)
	go func() { // read the registry the way the web handlers do, while the run writes.
		for {
			select {
			case <-stop:
				marshalErr <- nil
				return
			default:
			}
			for _, s := range registry.List() {
				if _, err := json.Marshal(s); err != nil {
					marshalErr <- err
					return
				}
			}
			if s, ok := registry.Get(summary.RunId); ok {
				if _, err := json.Marshal(s); err != nil {
					marshalErr <- err
					return
				}
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for the run to finish")
	}
	close(stop)
	if err := <-marshalErr; err != nil {
		t.Fatal("unexpected marshal error: ", err)
	}
	got, ok := registry.Get(summary.RunId)
	if !ok || got.Stage != StageCommitted || got.Failed() {
		t.Fatal("expected a committed run in the registry; got ", got.Status, ": ", got.Error)
	}
}

func assertSqlSeen(t *testing.T, got []string, want string) {
	t.Helper()
	for _, s := range got {
		if strings.Contains(s, want) {
			return
		}
	}
	t.Fatal("expected a statement containing ", want, "; got ", got)
}
