package actions

import (
	"fmt"
	"strings"

	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/helper"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/pkg/errors"
)

// ConnectionGetterSetter is the slice of config.File the connection actions need.
type ConnectionGetterSetter interface {
	Get(key string, out interface{}) error
	Set(key string, val interface{}) error
	Delete(key string) error
}

type ConnectionConfig struct {
	ConfigFile  ConnectionGetterSetter
	LogicalName string
	Type        string
	ConnDetails shared.DsnConnectionDetails
	Force       bool
}

// RunConnectionAdd validates and stores a logical store connection, e.g. the
// transactional store as "oltp" or the analytical store as "olap".
func RunConnectionAdd(cfg *ConnectionConfig) error {
	// Setup the basics ready to be persisted below.
	connection := shared.ConnectionDetails{
		LogicalName: cfg.LogicalName,
		Type:        cfg.Type,
		Data:        make(map[string]string),
	}
	if err := helper.ValidateStructIsPopulated(connection); err != nil { // if the basics were not supplied...
		return err
	}
	// Validate connection name.
	if strings.Contains(cfg.LogicalName, ".") {
		return fmt.Errorf("connection name cannot contain period characters '.'")
	}
	// Validate the DSN and check its scheme matches the declared store type.
	if err := cfg.ConnDetails.Parse(); err != nil {
		return errors.Wrap(err, "unable to create connection")
	}
	scheme, err := cfg.ConnDetails.GetScheme()
	if err != nil {
		return err
	}
	if !schemeMatchesType(scheme, cfg.Type) {
		return fmt.Errorf("DSN scheme %q does not match connection type %q", scheme, cfg.Type)
	}
	cfg.ConnDetails.GetMap(connection.Data)
	// Check for an existing saved connection.
	tmpConn := &shared.ConnectionDetails{}
	if err := cfg.ConfigFile.Get(cfg.LogicalName, tmpConn); err == nil {
		if tmpConn.LogicalName != "" && !cfg.Force { // if the connection exists, but we are not allowed to overwrite it...
			return fmt.Errorf("connection exists, use force to update the connection or remove it first")
		}
	}
	// Set config (creates the file if missing).
	if err := cfg.ConfigFile.Set(cfg.LogicalName, &connection); err != nil {
		return fmt.Errorf("error writing connections config file after adding: %v", err)
	}
	fmt.Printf("Connection %q added\n", cfg.LogicalName)
	return nil
}

// RunConnectionList loads each named connection and prints it with credentials redacted.
func RunConnectionList(getter shared.ConnectionGetter, names []string) error {
	conns := make(shared.DBConnections, len(names))
	for _, name := range names {
		conns[name] = shared.ConnectionDetails{LogicalName: name}
		if err := conns.LoadConnection(getter, name); err != nil {
			return errors.Wrapf(err, "unable to load connection %q", name)
		}
	}
	for _, name := range names {
		fmt.Printf("%v:\n%v\n", name, conns[name])
	}
	return nil
}

func RunConnectionRemove(cfg *ConnectionConfig) error {
	if cfg.LogicalName == "" {
		return errors.New("missing connection name")
	}
	if err := cfg.ConfigFile.Delete(cfg.LogicalName); err != nil {
		return fmt.Errorf("unable to delete connection %q from config: %v", cfg.LogicalName, err)
	}
	fmt.Printf("Connection %q removed\n", cfg.LogicalName)
	return nil
}

func schemeMatchesType(scheme string, connectionType string) bool {
	switch connectionType {
	case constants.ConnectionTypePostgres:
		return scheme == "postgres" || scheme == "postgresql"
	case constants.ConnectionTypeClickhouse:
		return scheme == "clickhouse" || scheme == "http" || scheme == "https"
	case constants.ConnectionTypeMock:
		return true
	default:
		return false
	}
}
