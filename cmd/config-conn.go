package cmd

import (
	"github.com/spf13/cobra"
)

var connectionsCmd = &cobra.Command{
	Use:     "connections",
	Aliases: []string{"conn"},
	Short:   "Configure store connections used by sync and ingest actions",
}

func init() {
	configCmd.AddCommand(connectionsCmd)
	initConnAdd(connectionsCmd)
	initConnList(connectionsCmd)
	initConnRemove(connectionsCmd)
}
