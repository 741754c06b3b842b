package shared

import (
	"context"
	"fmt"
	"strings"

	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/logger"
)

// NewMockConnectionWithMockTx returns a Connector whose executed SQL statements
// are written to the returned channel so tests can assert on them.
// Close() closes the channel.
func NewMockConnectionWithMockTx(log logger.Logger, dbType string) (Connector, chan string) {
	log.Debug("New mock connection...")
	outputChan := make(chan string, constants.ChanSize) // output channel so caller can validate input SQL statements.
	var dml DmlGenerator
	if dbType == constants.ConnectionTypeClickhouse {
		dml = NewClickhouseDmlGenerator()
	} else {
		dml = NewPostgresDmlGenerator()
	}
	return &MockConnectionWithMockTx{OutputChan: outputChan, Dml: dml, DbType: dbType}, outputChan
}

// MockConnectionWithMockTx implements Connector. Each Exec'd statement is sent
// to OutputChan with its args appended. Queries are served from MockQueryRows.
type MockConnectionWithMockTx struct {
	OutputChan    chan string
	Dml           DmlGenerator
	DbType        string
	MockQueryCols []string        // column names returned by Query().
	MockQueryRows [][]interface{} // rows returned by Query().
	ExecError     error           // when set, Exec calls fail with this error.
	ExecErrorsOn  string          // when set, only statements containing this text fail.
}

func (c *MockConnectionWithMockTx) Begin() (Transacter, error) {
	return &mockTx{conn: c}, nil
}

func (c *MockConnectionWithMockTx) Exec(query string, args ...interface{}) (Result, error) {
	return c.ExecContext(context.Background(), query, args...)
}

func (c *MockConnectionWithMockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	if err := ctx.Err(); err != nil { // fail like a real driver would on a dead context.
		return nil, err
	}
	if c.ExecError != nil && (c.ExecErrorsOn == "" || strings.Contains(query, c.ExecErrorsOn)) {
		return nil, c.ExecError
	}
	c.OutputChan <- formatSqlWithArgs(query, args)
	return &mockResult{rowsAffected: int64(len(args))}, nil
}

func (c *MockConnectionWithMockTx) Query(query string, args ...interface{}) (*RpRows, error) {
	return c.QueryContext(context.Background(), query, args...)
}

func (c *MockConnectionWithMockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*RpRows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.OutputChan <- formatSqlWithArgs(query, args)
	return &RpRows{mockCols: c.MockQueryCols, mockRows: c.MockQueryRows}, nil
}

func (c *MockConnectionWithMockTx) Close() {
	close(c.OutputChan)
}

func (c *MockConnectionWithMockTx) GetDmlGenerator() DmlGenerator {
	return c.Dml
}

func (c *MockConnectionWithMockTx) GetType() string {
	return c.DbType
}

type mockTx struct {
	conn *MockConnectionWithMockTx
}

func (t *mockTx) Exec(query string, args ...interface{}) (Result, error) {
	return t.ExecContext(context.Background(), query, args...)
}

func (t *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return t.conn.ExecContext(ctx, query, args...)
}

func (t *mockTx) Commit() error {
	t.conn.OutputChan <- "commit"
	return nil
}

func (t *mockTx) Rollback() error {
	t.conn.OutputChan <- "rollback"
	return nil
}

type mockResult struct {
	rowsAffected int64
}

func (r *mockResult) LastInsertId() (int64, error) {
	return 0, nil
}

func (r *mockResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

func formatSqlWithArgs(query string, args []interface{}) string {
	if len(args) == 0 {
		return query
	}
	return fmt.Sprintf("%v %v", query, args)
}
