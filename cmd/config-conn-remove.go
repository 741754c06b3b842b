package cmd

import (
	"github.com/payfraud/riskpipe/actions"
	"github.com/payfraud/riskpipe/config"
	"github.com/spf13/cobra"
)

func initConnRemove(cmdConnections *cobra.Command) {
	connCfg := actions.ConnectionConfig{}
	var c = &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm"},
		Short:   "Remove a store connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			connCfg.ConfigFile = config.Connections
			return actions.RunConnectionRemove(&connCfg)
		},
	}
	cmdConnections.AddCommand(c)
	c.Flags().StringVarP(&connCfg.LogicalName, "connection-name", "c", "", "Connection name to remove")
	_ = c.MarkFlagRequired("connection-name")
}
