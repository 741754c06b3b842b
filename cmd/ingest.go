package cmd

import (
	"strconv"

	"github.com/payfraud/riskpipe/actions"
	"github.com/payfraud/riskpipe/config"
	"github.com/payfraud/riskpipe/constants"
	"github.com/spf13/cobra"
)

var ingestActionCfg = actions.IngestActionConfig{}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a CSV transaction feed into the transactional store",
	Long: `Ingest loads a CSV file of payment transactions into the transactional store.
Rows whose idempotency key has already been stored are skipped, so a feed file
may be loaded more than once without creating duplicates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ingestActionCfg.Connections = config.Connections
		ingestActionCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunIngestAction(&ingestActionCfg)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().SortFlags = false
	switches.addFlag(ingestCmd, &ingestActionCfg.FileName, "file", "", true, "")
	switches.addFlag(ingestCmd, &ingestActionCfg.ConnectionName, "connection-name", constants.ConnectionNameOltp, false, "")
	switches.addFlag(ingestCmd, &ingestActionCfg.CommitBatchSize, "commit-batch-size", strconv.Itoa(constants.WriterBatchSizeDefault), false, "")
	switches.addFlag(ingestCmd, &ingestActionCfg.TxtBatchNumRows, "sql-txt-batch-num-rows", strconv.Itoa(constants.WriterTxtBatchNumRowsDefault), false, "")
	switches.addFlag(ingestCmd, &ingestActionCfg.StatsDumpFrequencySeconds, "stats", "5", false, "")
	switches.addFlag(ingestCmd, &ingestActionCfg.LogLevel, "log-level", "info", false, "")
}
