package cmd

import (
	"net"

	"github.com/payfraud/riskpipe/actions"
	"github.com/payfraud/riskpipe/config"
	"github.com/spf13/cobra"
)

var serveConfig = actions.WebServerConfig{
	Scheme: "http",
	Addr:   net.IP{0, 0, 0, 0},
	Port:   8080,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a web service to launch and monitor sync runs",
	Long: `Serve starts a RESTful web service:

  POST /sync          launch a sync run (JSON body sets the window and thresholds)
  GET  /runs          list run summaries
  GET  /runs/{runId}  fetch one run summary
  GET  /health        liveness check
  GET  /stop          graceful shutdown`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		serveConfig.Connections = config.Connections
		serveConfig.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunWebServer(&serveConfig)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().SortFlags = false
	serveCmd.Flags().IPVarP(&serveConfig.Addr, "address", "a", serveConfig.Addr, "Interface address to listen on")
	switches.addFlag(serveCmd, &serveConfig.Port, "port", "8080", false, "")
	switches.addFlag(serveCmd, &serveConfig.StatsDumpFrequencySeconds, "stats", "0", false, "")
	switches.addFlag(serveCmd, &serveConfig.LogLevel, "log-level", "info", false, "")
}
