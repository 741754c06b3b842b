package config

import (
	"fmt"

	"github.com/payfraud/riskpipe/helper"
	"github.com/payfraud/riskpipe/rdbms/shared"
)

// GetConnectionType returns the connection type by un-marshalling the connection into
// a shared.ConnectionDetails struct - so connections need to match that structure for now.
// Return an error if the key doesn't exist.
func (c *File) GetConnectionType(connectionName string) (connectionType string, err error) {
	genericConn := &shared.ConnectionDetails{}
	if err := c.Get(connectionName, genericConn); err != nil {
		return "", err
	}
	if genericConn.Type == "" {
		return "", fmt.Errorf("unknown type for connection %q", connectionName)
	}
	return genericConn.Type, nil
}

// GetConnectionDetails fetches generic connection details from the File c using the connectionName to do the lookup.
// An environment variable of the form RP_<NAME>_DSN takes precedence over the stored connection
// so scheduled jobs can run without a config file.
// If the connection is not found then an error is produced.
func (c *File) GetConnectionDetails(connectionName string, connectionType string) (*shared.ConnectionDetails, error) {
	if dsn, _ := helper.GetEnvVar(helper.GetDsnEnvVarName(connectionName), false); dsn != "" { // if there is a DSN override...
		return &shared.ConnectionDetails{
			Type:        connectionType,
			LogicalName: connectionName,
			Data:        map[string]string{shared.DefaultDsnConnectionKeyNames.Dsn: dsn},
		}, nil
	}
	// Load generic connection details from file.
	genericConn := &shared.ConnectionDetails{}
	if err := c.Get(connectionName, genericConn); err != nil {
		return nil, err
	}
	if genericConn.Type == "" { // if the connection was not found...
		return nil, fmt.Errorf("connection %q is not configured: use 'config connections add' to create it", connectionName)
	}
	return genericConn, nil
}

func (c *File) LoadConnection(connectionName string) (shared.ConnectionDetails, error) {
	d := shared.ConnectionDetails{}
	err := c.Get(connectionName, &d)
	if err != nil { // if there was an error fetching the connection from config...
		return d, err
	}
	return d, nil
}

// SaveConnection validates and stores the supplied connection details under its logical name.
func (c *File) SaveConnection(d shared.ConnectionDetails) error {
	if err := helper.ValidateStructIsPopulated(&d); err != nil {
		return err
	}
	return c.Set(d.LogicalName, d)
}

// DeleteConnection removes the named connection from the config file.
func (c *File) DeleteConnection(connectionName string) error {
	return c.Delete(connectionName)
}
