package rdbms

import (
	"database/sql"
	"fmt"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/lib/pq"
	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/logger"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/xo/dburl"
)

// OpenDbConnection opens a database connection using the supplied ConnectionDetails struct in c.
func OpenDbConnection(log logger.Logger, c shared.ConnectionDetails) (db shared.Connector, err error) {
	log.Debug("opening connection type ", c.Type, " with logicalName ", c.LogicalName) // don't log password details in c.Data!
	switch c.Type {
	case constants.ConnectionTypePostgres:
		db, err = newPostgresConnection(log, shared.GetDsnConnectionDetails(&c))
	case constants.ConnectionTypeClickhouse:
		db, err = newClickhouseConnection(log, shared.GetDsnConnectionDetails(&c))
	case constants.ConnectionTypeMock:
		db, _ = shared.NewMockConnectionWithMockTx(log, constants.ConnectionTypePostgres)
	default: // else we have an unsupported database...
		err = fmt.Errorf("unsupported database type, %q", c.Type)
	}
	return
}

func newPostgresConnection(log logger.Logger, d *shared.DsnConnectionDetails) (shared.Connector, error) {
	log.Info("Opening database connection: ", d)
	u, err := dburl.Parse(d.Dsn)
	if err != nil { // if the DSN could not be parsed...
		return nil, fmt.Errorf("error parsing DSN %q: %w", d.Dsn, err)
	}
	// Create the new Connector.
	conn := &shared.RpConnection{
		Dml:    shared.NewPostgresDmlGenerator(),
		DbType: u.OriginalScheme,
	}
	// Open the connection.
	conn.DbSql, err = sql.Open(u.Driver, u.DSN)
	if err != nil {
		return nil, err
	}
	// Test the connection.
	err = conn.DbSql.Ping()
	if err != nil {
		return nil, err
	}
	log.Info("Successful connection to: ", d)
	return conn, nil
}

func newClickhouseConnection(log logger.Logger, d *shared.DsnConnectionDetails) (shared.Connector, error) {
	log.Info("Opening database connection: ", d)
	opts, err := clickhouse.ParseDSN(d.Dsn)
	if err != nil { // if the DSN could not be parsed...
		return nil, fmt.Errorf("error parsing DSN %q: %w", shared.RedactedClickhouseDsn(d.Dsn), err)
	}
	conn := &shared.RpConnection{
		Dml:    shared.NewClickhouseDmlGenerator(),
		DbType: constants.ConnectionTypeClickhouse,
	}
	conn.DbSql = clickhouse.OpenDB(opts)
	// Test the connection.
	err = conn.DbSql.Ping()
	if err != nil {
		return nil, err
	}
	log.Info("Successful connection to: ", d)
	return conn, nil
}
