package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2026-01-02T03:04+0000"
	stackDumpOnPanic bool
)

var rootCmd = &cobra.Command{
	Use: "riskpipe",
	Long: `RiskPipe batch-syncs payment transactions from the transactional store to the
analytical store: score each transaction for fraud, raise alerts and cases,
roll up daily merchant KPIs and publish the window atomically.

Use 'sync' for a one-off batch run, 'serve' to expose the same behaviour via a
RESTful API, and 'ingest' to load CSV transaction feeds into the transactional
store. Store connections are configured once with 'config connections add' or
supplied per run via RP_OLTP_DSN / RP_OLAP_DSN environment variables.`,
}

func init() {
	// General setup.
	cobra.EnableCommandSorting = false
	// Global flags.
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump if there is a panic")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Execute() prints the error.
		os.Exit(1)
	}
}
