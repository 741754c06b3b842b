package actions

import (
	"github.com/payfraud/riskpipe/rdbms/shared"
)

// ConnectionLoader fetches stored connection details by logical name.
// config.File implements this against ~/.riskpipe/connections.yaml; DSN
// environment variables take precedence inside GetConnectionDetails.
type ConnectionLoader interface {
	GetConnectionType(connectionName string) (string, error)
	GetConnectionDetails(connectionName string, connectionType string) (*shared.ConnectionDetails, error)
}
