package shared

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
)

// RpConnection is a wrapper around Go native sql.DB.
// It also adds the DmlGenerator interface for use in components that output records to a database.
type RpConnection struct {
	DbSql  *sql.DB
	Dml    DmlGenerator
	DbType string
}

// Connector:

func (c *RpConnection) Begin() (Transacter, error) {
	if c.DbSql == nil {
		return nil, errors.New("RpConnection was not configured correctly: DbSql is missing")
	}
	tx, err := c.DbSql.Begin()
	return &RpTx{txSql: tx}, err
}

func (c *RpConnection) Exec(query string, args ...interface{}) (Result, error) {
	return c.ExecContext(context.Background(), query, args...)
}

func (c *RpConnection) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return c.DbSql.ExecContext(ctx, query, args...)
}

func (c *RpConnection) Query(query string, args ...interface{}) (*RpRows, error) {
	return c.QueryContext(context.Background(), query, args...)
}

func (c *RpConnection) QueryContext(ctx context.Context, query string, args ...interface{}) (*RpRows, error) {
	r, err := c.DbSql.QueryContext(ctx, query, args...)
	return &RpRows{rowsSql: r}, err
}

func (c *RpConnection) Close() {
	_ = c.DbSql.Close()
}

func (c *RpConnection) GetDmlGenerator() DmlGenerator {
	return c.Dml
}

func (c *RpConnection) GetType() string {
	return c.DbType
}

// Transacter:

type RpTx struct {
	txSql *sql.Tx
}

func (t *RpTx) Exec(query string, args ...interface{}) (Result, error) {
	return t.ExecContext(context.Background(), query, args...)
}

func (t *RpTx) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return t.txSql.ExecContext(ctx, query, args...)
}

func (t *RpTx) Commit() error {
	return t.txSql.Commit()
}

func (t *RpTx) Rollback() error {
	return t.txSql.Rollback()
}

// Rows:

// RpRows wraps either real sql.Rows or canned rows supplied by a mock connection,
// so components that read query results can be tested without a database.
type RpRows struct {
	rowsSql  *sql.Rows
	mockCols []string
	mockRows [][]interface{}
	mockIdx  int
}

func (r *RpRows) Close() error {
	if r.rowsSql != nil {
		return r.rowsSql.Close()
	}
	return nil
}

func (r *RpRows) Columns() ([]string, error) {
	if r.rowsSql != nil {
		return r.rowsSql.Columns()
	}
	return r.mockCols, nil
}

func (r *RpRows) Err() error {
	if r.rowsSql != nil {
		return r.rowsSql.Err()
	}
	return nil
}

func (r *RpRows) Next() bool {
	if r.rowsSql != nil {
		return r.rowsSql.Next()
	}
	return r.mockIdx < len(r.mockRows)
}

func (r *RpRows) Scan(dest ...interface{}) error {
	if r.rowsSql != nil {
		return r.rowsSql.Scan(dest...)
	}
	if r.mockIdx >= len(r.mockRows) {
		return errors.New("scan called past the end of mock rows")
	}
	row := r.mockRows[r.mockIdx]
	if len(dest) != len(row) {
		return errors.New("scan destination count does not match mock row width")
	}
	for i := range dest {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(&row[i]).Elem())
	}
	r.mockIdx++
	return nil
}
