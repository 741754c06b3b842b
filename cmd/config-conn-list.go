package cmd

import (
	"sort"

	"github.com/payfraud/riskpipe/actions"
	"github.com/payfraud/riskpipe/config"
	"github.com/spf13/cobra"
)

func initConnList(cmdConnections *cobra.Command) {
	var c = &cobra.Command{
		Use:   "list",
		Short: "List configured store connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			keys, err := config.Connections.GetAllKeys()
			if err != nil {
				return err
			}
			sort.Strings(keys)
			return actions.RunConnectionList(config.Connections, keys)
		},
	}
	cmdConnections.AddCommand(c)
}
