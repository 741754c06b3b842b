package actions

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/fraud"
	"github.com/payfraud/riskpipe/helper"
	"github.com/payfraud/riskpipe/logger"
	"github.com/payfraud/riskpipe/pipeline"
	"github.com/payfraud/riskpipe/rdbms"
	"github.com/payfraud/riskpipe/rdbms/shared"
	"github.com/payfraud/riskpipe/stats"
	"github.com/pkg/errors"
)

type SyncActionConfig struct {
	LogLevel                  string `errorTxt:"log level" mandatory:"yes"`
	OltpConnectionName        string `errorTxt:"transactional connection name" mandatory:"yes"`
	OlapConnectionName        string `errorTxt:"analytical connection name" mandatory:"yes"`
	WindowDays                int
	StartString               string // window start, format 2006-01-02T15:04:05Z; with EndString it overrides WindowDays.
	EndString                 string
	EscalationProbability     string
	MaxQuarantineFraction     string
	CommitBatchSize           int
	TxtBatchNumRows           int
	StoreTimeoutSeconds       int
	MaxStoreRetries           int
	RetryBackoffSeconds       int
	StatsDumpFrequencySeconds int
	ExportConfigType          string // summary output format: json (default) or yaml.
	StackDumpOnPanic          bool
	Connections               ConnectionLoader
	Registry                  *pipeline.RunRegistry
}

// RunSyncAction runs one OLTP to OLAP sync over the configured window and prints
// the run summary to stdout. A failed run is also an error so the process exit
// code reflects it.
func RunSyncAction(cfg *SyncActionConfig) error {
	log := logger.NewLogger("riskpipe", cfg.LogLevel, cfg.StackDumpOnPanic)
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	pcfg, cleanup, err := BuildPipelineSyncConfig(log, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	summary := pipeline.RunSyncWithRetry(pcfg)
	if err := RenderSummary(os.Stdout, summary, cfg.ExportConfigType); err != nil {
		return err
	}
	if summary.Failed() {
		return errors.Errorf("sync run %v %v: %v", summary.RunId, summary.Status, summary.Error)
	}
	return nil
}

// BuildPipelineSyncConfig resolves the window, thresholds and store connections
// for a sync run. The returned cleanup func closes the connections.
func BuildPipelineSyncConfig(log logger.Logger, cfg *SyncActionConfig) (*pipeline.SyncConfig, func(), error) {
	start, end, err := ResolveWindow(cfg.WindowDays, cfg.StartString, cfg.EndString)
	if err != nil {
		return nil, nil, err
	}
	escalation, err := parseFraction("escalation-probability", cfg.EscalationProbability, constants.DefaultCaseEscalationProbability)
	if err != nil {
		return nil, nil, err
	}
	quarantine, err := parseFraction("max-quarantine-fraction", cfg.MaxQuarantineFraction, constants.DefaultQuarantineMaxFraction)
	if err != nil {
		return nil, nil, err
	}
	oltpDb, err := openConnection(log, cfg.Connections, cfg.OltpConnectionName, constants.ConnectionTypePostgres)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to open transactional store connection %q", cfg.OltpConnectionName)
	}
	olapDb, err := openConnection(log, cfg.Connections, cfg.OlapConnectionName, constants.ConnectionTypeClickhouse)
	if err != nil {
		oltpDb.Close()
		return nil, nil, errors.Wrapf(err, "unable to open analytical store connection %q", cfg.OlapConnectionName)
	}
	th := fraud.DefaultThresholds()
	th.CaseEscalationProbability = escalation
	pcfg := &pipeline.SyncConfig{
		Log:                   log,
		OltpDb:                oltpDb,
		OlapDb:                olapDb,
		WindowStart:           start,
		WindowEnd:             end,
		Thresholds:            th,
		MaxQuarantineFraction: quarantine,
		CommitBatchSize:       cfg.CommitBatchSize,
		TxtBatchNumRows:       cfg.TxtBatchNumRows,
		StoreTimeout:          time.Second * time.Duration(cfg.StoreTimeoutSeconds),
		MaxStoreRetries:       cfg.MaxStoreRetries,
		RetryBackoff:          time.Second * time.Duration(cfg.RetryBackoffSeconds),
		Stats:                 stats.NewPipelineStats(log, stats.SetStatsDumpFrequency(cfg.StatsDumpFrequencySeconds)),
		Registry:              cfg.Registry,
	}
	cleanup := func() {
		oltpDb.Close()
		olapDb.Close()
	}
	return pcfg, cleanup, nil
}

// ResolveWindow returns the [start, end) sync window. Explicit bounds win;
// otherwise the window is the last WindowDays days ending now.
func ResolveWindow(windowDays int, startString, endString string) (time.Time, time.Time, error) {
	if startString != "" || endString != "" { // if explicit bounds were supplied...
		if startString == "" || endString == "" {
			return time.Time{}, time.Time{}, errors.New("supply both start and end window bounds, or neither")
		}
		start, err := time.Parse(constants.TimeFormatWindow, startString)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(err, "invalid window start %q", startString)
		}
		end, err := time.Parse(constants.TimeFormatWindow, endString)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(err, "invalid window end %q", endString)
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, errors.Errorf("window end %v must be after start %v", endString, startString)
		}
		return start.UTC(), end.UTC(), nil
	}
	if windowDays <= 0 {
		windowDays = constants.DefaultWindowDays
	}
	end := time.Now().UTC()
	return end.AddDate(0, 0, -windowDays), end, nil
}

// RenderSummary writes the run summary to w as JSON (default) or YAML.
func RenderSummary(w io.Writer, summary *pipeline.Summary, format string) error {
	switch strings.ToLower(format) {
	case "", "json":
		b, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "yaml":
		b, err := yaml.Marshal(summary)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(b))
		return err
	default:
		return errors.Errorf("unsupported output format %q: use json or yaml", format)
	}
}

func parseFraction(flagName, value string, defaultValue float64) (float64, error) {
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid value %q for %v", value, flagName)
	}
	if f < 0 || f > 1 {
		return 0, errors.Errorf("value %v for %v must be between 0 and 1", value, flagName)
	}
	return f, nil
}

// openConnection opens the named store connection. When the DSN environment
// variable override is set the connection type is inferred from the DSN scheme,
// so scheduled jobs can run without a connections file.
func openConnection(log logger.Logger, loader ConnectionLoader, name string, defaultType string) (shared.Connector, error) {
	var ctype string
	if dsn, _ := helper.GetEnvVar(helper.GetDsnEnvVarName(name), false); dsn != "" { // if there is a DSN override...
		ctype = connectionTypeFromDsn(dsn, defaultType)
	} else {
		var err error
		ctype, err = loader.GetConnectionType(name)
		if err != nil {
			return nil, err
		}
	}
	details, err := loader.GetConnectionDetails(name, ctype)
	if err != nil {
		return nil, err
	}
	return rdbms.OpenDbConnection(log, *details)
}

func connectionTypeFromDsn(dsn string, defaultType string) string {
	switch {
	case strings.HasPrefix(dsn, "clickhouse"):
		return constants.ConnectionTypeClickhouse
	case strings.HasPrefix(dsn, "postgres"):
		return constants.ConnectionTypePostgres
	case strings.HasPrefix(dsn, "mock"):
		return constants.ConnectionTypeMock
	default:
		return defaultType
	}
}
