package cmd

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure RiskPipe defaults and store connections",
}

func init() {
	rootCmd.AddCommand(configCmd)
}
