package cmd

import (
	"strconv"

	"github.com/payfraud/riskpipe/actions"
	"github.com/payfraud/riskpipe/config"
	"github.com/payfraud/riskpipe/constants"
	"github.com/spf13/cobra"
)

var syncActionCfg = actions.SyncActionConfig{}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync a window of transactions from the transactional store to the analytical store",
	Long: `Sync reads the window of transactions from the transactional store, scores each
one for fraud, raises alerts and cases, rolls up daily merchant KPIs and
publishes the facts and KPIs to the analytical store in one atomic step.
A machine-readable run summary is printed to stdout when the run ends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		syncActionCfg.Connections = config.Connections
		syncActionCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunSyncAction(&syncActionCfg)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().SortFlags = false
	switches.addFlag(syncCmd, &syncActionCfg.OltpConnectionName, "oltp-connection", constants.ConnectionNameOltp, false, "")
	switches.addFlag(syncCmd, &syncActionCfg.OlapConnectionName, "olap-connection", constants.ConnectionNameOlap, false, "")
	switches.addFlag(syncCmd, &syncActionCfg.WindowDays, "days", strconv.Itoa(constants.DefaultWindowDays), false, "")
	switches.addFlag(syncCmd, &syncActionCfg.StartString, "start", "", false, "")
	switches.addFlag(syncCmd, &syncActionCfg.EndString, "end", "", false, "")
	switches.addFlag(syncCmd, &syncActionCfg.EscalationProbability, "escalation-probability", "", false, "")
	switches.addFlag(syncCmd, &syncActionCfg.MaxQuarantineFraction, "max-quarantine-fraction", "", false, "")
	switches.addFlag(syncCmd, &syncActionCfg.CommitBatchSize, "commit-batch-size", strconv.Itoa(constants.WriterBatchSizeDefault), false, "")
	switches.addFlag(syncCmd, &syncActionCfg.TxtBatchNumRows, "sql-txt-batch-num-rows", strconv.Itoa(constants.WriterTxtBatchNumRowsDefault), false, "")
	switches.addFlag(syncCmd, &syncActionCfg.StoreTimeoutSeconds, "store-timeout", strconv.Itoa(constants.DefaultStoreTimeoutSeconds), false, "")
	switches.addFlag(syncCmd, &syncActionCfg.MaxStoreRetries, "max-retries", strconv.Itoa(constants.DefaultMaxStoreRetries), false, "")
	switches.addFlag(syncCmd, &syncActionCfg.RetryBackoffSeconds, "retry-backoff", strconv.Itoa(constants.DefaultRetryBackoffSeconds), false, "")
	switches.addFlag(syncCmd, &syncActionCfg.StatsDumpFrequencySeconds, "stats", "5", false, "")
	switches.addFlag(syncCmd, &syncActionCfg.ExportConfigType, "output", "json", false, "")
	switches.addFlag(syncCmd, &syncActionCfg.LogLevel, "log-level", "info", false, "")
}
