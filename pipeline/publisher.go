package pipeline

import (
	"context"
	"strings"

	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/logger"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/payfraud/riskpipe/schema"
	"github.com/payfraud/riskpipe/stream"
	"github.com/pkg/errors"
)

// WindowPublisher stages analytical-store writes for one sync window and makes
// them visible atomically. Readers of the analytical store never observe a
// half-written window: before Commit they see the previous state, after Commit
// the new one.
type WindowPublisher interface {
	// Prepare stages the target tables before any row is written.
	Prepare(ctx context.Context) error
	// Tx returns the write transaction for table writers, or nil when the store
	// publishes via staging tables instead.
	Tx() shared.Transacter
	// UseStagingTables reports whether writers should target staging twins.
	UseStagingTables() bool
	// DeleteKpis removes existing rollup rows for the (day, merchant) keys about
	// to be re-inserted.
	DeleteKpis(ctx context.Context, kpis []stream.Record) error
	// Commit makes the staged window visible.
	Commit(ctx context.Context) error
	// Abort discards the staged window, leaving the target as it was.
	Abort(ctx context.Context)
}

// NewWindowPublisher picks the publish strategy for the analytical store type.
func NewWindowPublisher(log logger.Logger, db shared.Connector, windowStart, windowEnd string) (WindowPublisher, error) {
	switch db.GetType() {
	case constants.ConnectionTypeClickhouse:
		return NewClickhousePublisher(log, db), nil
	case constants.ConnectionTypePostgres, constants.ConnectionTypeMock:
		return NewPostgresPublisher(log, db, windowStart, windowEnd), nil
	default:
		return nil, NewConfigurationError(StageStarted, errors.Errorf("no publish strategy for store type %q", db.GetType()))
	}
}

// ClickhousePublisher publishes by loading staging twins of the target tables and
// atomically swapping them in with EXCHANGE TABLES. A leftover staging table means
// an earlier publish died mid-flight, which is surfaced as a consistency error
// rather than silently clobbered.
type ClickhousePublisher struct {
	Log    logger.Logger
	Db     shared.Connector
	Facts  schema.Table
	Kpis   schema.Table
	staged bool
}

func NewClickhousePublisher(log logger.Logger, db shared.Connector) *ClickhousePublisher {
	return &ClickhousePublisher{
		Log:   log,
		Db:    db,
		Facts: schema.FctTransactions(),
		Kpis:  schema.AggDailyMerchantKpis(),
	}
}

func (p *ClickhousePublisher) Prepare(ctx context.Context) error {
	for _, t := range []schema.Table{p.Facts, p.Kpis} {
		p.Log.Info("creating staging table ", t.StagingFullName())
		if _, err := p.Db.ExecContext(ctx, schema.CreateStagingSql(t)); err != nil {
			if strings.Contains(err.Error(), "already exists") { // if a previous publish died mid-flight...
				return NewConsistencyError(StageWritten,
					errors.Wrapf(err, "staging table %v exists; a previous publish did not complete", t.StagingFullName()))
			}
			return NewTransientError(StageWritten, errors.Wrapf(err, "unable to create staging table %v", t.StagingFullName()))
		}
	}
	p.staged = true
	return nil
}

func (p *ClickhousePublisher) Tx() shared.Transacter {
	return nil
}

func (p *ClickhousePublisher) UseStagingTables() bool {
	return true
}

func (p *ClickhousePublisher) DeleteKpis(ctx context.Context, kpis []stream.Record) error {
	// Rollups load into an empty staging table; there is nothing to delete.
	return nil
}

func (p *ClickhousePublisher) Commit(ctx context.Context) error {
	for _, t := range []schema.Table{p.Facts, p.Kpis} {
		p.Log.Info("exchanging staging table ", t.StagingFullName(), " with ", t.FullName())
		if _, err := p.Db.ExecContext(ctx, schema.ExchangeStagingSql(t)); err != nil {
			return NewTransientError(StageCommitted, errors.Wrapf(err, "unable to exchange %v", t.FullName()))
		}
		if _, err := p.Db.ExecContext(ctx, schema.DropStagingSql(t)); err != nil {
			return NewTransientError(StageCommitted, errors.Wrapf(err, "unable to drop staging table %v", t.StagingFullName()))
		}
	}
	p.staged = false
	return nil
}

func (p *ClickhousePublisher) Abort(ctx context.Context) {
	if !p.staged {
		return
	}
	for _, t := range []schema.Table{p.Facts, p.Kpis} {
		if _, err := p.Db.ExecContext(ctx, schema.DropStagingSql(t)); err != nil {
			p.Log.Error("unable to drop staging table ", t.StagingFullName(), " during abort: ", err)
		}
	}
	p.staged = false
}

// PostgresPublisher publishes with delete-and-insert inside a single transaction,
// so the window lands atomically or not at all. A marker row written before the
// transaction flags the publish as in-flight; finding one on Prepare means a
// previous publish died between marker and commit cleanup.
type PostgresPublisher struct {
	Log         logger.Logger
	Db          shared.Connector
	Facts       schema.Table
	Kpis        schema.Table
	WindowStart string
	WindowEnd   string
	tx          shared.Transacter
	staged      bool // set once this run owns the publish marker.
}

func NewPostgresPublisher(log logger.Logger, db shared.Connector, windowStart, windowEnd string) *PostgresPublisher {
	return &PostgresPublisher{
		Log:         log,
		Db:          db,
		Facts:       schema.FctTransactions(),
		Kpis:        schema.AggDailyMerchantKpis(),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}
}

func (p *PostgresPublisher) Prepare(ctx context.Context) error {
	if _, err := p.Db.ExecContext(ctx, schema.CreatePublishMarkerTableSql); err != nil {
		return NewTransientError(StageWritten, errors.Wrap(err, "unable to create publish marker table"))
	}
	rows, err := p.Db.QueryContext(ctx, "select table_name from analytics_publish_markers where table_name = $1", p.Facts.FullName())
	if err != nil {
		return NewTransientError(StageWritten, errors.Wrap(err, "unable to check publish markers"))
	}
	leftover := rows.Next()
	if err := rows.Close(); err != nil {
		return NewTransientError(StageWritten, errors.Wrap(err, "unable to close publish marker result set"))
	}
	if leftover { // if a previous publish died mid-flight...
		return NewConsistencyError(StageWritten,
			errors.Errorf("publish marker exists for %v; a previous publish did not complete", p.Facts.FullName()))
	}
	if _, err := p.Db.ExecContext(ctx, schema.InsertPublishMarkerSql, p.Facts.FullName()); err != nil {
		return NewTransientError(StageWritten, errors.Wrap(err, "unable to insert publish marker"))
	}
	p.staged = true
	p.tx, err = p.Db.Begin()
	if err != nil {
		return NewTransientError(StageWritten, errors.Wrap(err, "unable to begin publish transaction"))
	}
	// Clear the window ahead of re-insert, inside the same transaction as the writes.
	if _, err := p.tx.ExecContext(ctx, schema.DeleteWindowSql(p.Facts, "event_time"), p.WindowStart, p.WindowEnd); err != nil {
		return NewTransientError(StageWritten, errors.Wrapf(err, "unable to delete window rows from %v", p.Facts.FullName()))
	}
	return nil
}

func (p *PostgresPublisher) Tx() shared.Transacter {
	return p.tx
}

func (p *PostgresPublisher) UseStagingTables() bool {
	return false
}

// DeleteKpis removes the rollup rows about to be replaced, keyed by (day, merchant),
// using batched multi-row DELETE statements on the publish transaction.
func (p *PostgresPublisher) DeleteKpis(ctx context.Context, kpis []stream.Record) error {
	if len(kpis) == 0 {
		return nil
	}
	gen := p.Db.GetDmlGenerator().NewDeleteGenerator(&shared.SqlStatementGeneratorConfig{
		Log:           p.Log,
		OutputSchema:  p.Kpis.Schema,
		OutputTable:   p.Kpis.Name,
		TargetKeyCols: p.Kpis.KeyCols,
	})
	batcher, ok := gen.(shared.SqlStmtTxtBatcher)
	if !ok {
		return NewConfigurationError(StageWritten, errors.New("SQL text batch deletes are not supported"))
	}
	values := make([]interface{}, p.Kpis.KeyCols.Len())
	keyFields := []string{"day", constants.FieldMerchantId}
	batcher.InitBatch(constants.WriterTxtBatchNumRowsDefault)
	pending := false
	for _, rec := range kpis {
		p.Log.Debug("deleting rollup rows for key ", rec.GetDataKeysAsSlice(p.Log, keyFields))
		listIdx := 0
		rec.GetDataValuesByKeys(p.Log, p.Kpis.KeyCols, &values, &listIdx)
		batchIsFull, err := batcher.AddValuesToBatch(values)
		if err != nil {
			return NewValidationError(StageWritten, err)
		}
		pending = true
		if batchIsFull {
			if _, err := p.tx.ExecContext(ctx, batcher.GetStatement(), batcher.GetValues()...); err != nil {
				return NewTransientError(StageWritten, errors.Wrap(err, "unable to delete rollup rows"))
			}
			batcher.InitBatch(constants.WriterTxtBatchNumRowsDefault)
			pending = false
		}
	}
	if pending { // if a partial batch remains...
		if _, err := p.tx.ExecContext(ctx, batcher.GetStatement(), batcher.GetValues()...); err != nil {
			return NewTransientError(StageWritten, errors.Wrap(err, "unable to delete rollup rows"))
		}
	}
	return nil
}

func (p *PostgresPublisher) Commit(ctx context.Context) error {
	if p.tx == nil {
		return NewConsistencyError(StageCommitted, errors.New("no publish transaction to commit"))
	}
	if err := p.tx.Commit(); err != nil {
		return NewTransientError(StageCommitted, errors.Wrap(err, "unable to commit publish transaction"))
	}
	p.tx = nil
	if _, err := p.Db.ExecContext(ctx, schema.DeletePublishMarkerSql, p.Facts.FullName()); err != nil {
		return NewTransientError(StageCommitted, errors.Wrap(err, "unable to delete publish marker"))
	}
	p.staged = false
	return nil
}

func (p *PostgresPublisher) Abort(ctx context.Context) {
	if p.tx != nil {
		if err := p.tx.Rollback(); err != nil {
			p.Log.Error("unable to rollback publish transaction during abort: ", err)
		}
		p.tx = nil
	}
	if !p.staged { // a leftover marker from another run is evidence, not ours to clean up.
		return
	}
	// Rollback restored the target, so this run's in-flight marker can go.
	if _, err := p.Db.ExecContext(ctx, schema.DeletePublishMarkerSql, p.Facts.FullName()); err != nil {
		p.Log.Error("unable to delete publish marker during abort: ", err)
	}
	p.staged = false
}
