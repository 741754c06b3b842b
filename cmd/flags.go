package cmd

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/payfraud/riskpipe/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cliFlag struct {
	name      string // name of flag
	val       string // default value
	shortHand string // single character name for the flag
	desc      string // description of the flag; the long text
}

type cliFlags map[string]cliFlag

var switches = cliFlags{
	"days": cliFlag{name: "days", shortHand: "d",
		desc: "The number of days of transactions to sync, ending now.\n" +
			"Ignored when explicit start and end bounds are supplied"},
	"start": cliFlag{name: "start", shortHand: "s",
		desc: "Window start (inclusive) using format 2006-01-02T15:04:05Z.\n" +
			"Requires 'end' and overrides 'days'"},
	"end": cliFlag{name: "end", shortHand: "e",
		desc: "Window end (exclusive) using format 2006-01-02T15:04:05Z"},
	"escalation-probability": cliFlag{name: "escalation-probability", shortHand: "E",
		desc: "The probability (0..1) that a medium or high severity alert\n" +
			"is escalated to an open case"},
	"max-quarantine-fraction": cliFlag{name: "max-quarantine-fraction", shortHand: "Q",
		desc: "Abort the run when more than this fraction (0..1) of the window\n" +
			"fails validation and is quarantined"},
	"commit-batch-size": cliFlag{name: "commit-batch-size", shortHand: "B",
		desc: "Number of rows in each transaction before committing"},
	"sql-txt-batch-num-rows": cliFlag{name: "sql-txt-batch-num-rows", shortHand: "S",
		desc: "Number of rows combined into a single SQL statement before it is executed;\n" +
			"must be less than or equal to the commit batch size"},
	"store-timeout": cliFlag{name: "store-timeout", shortHand: "t",
		desc: "Number of seconds allowed for store operations during a sync run"},
	"max-retries": cliFlag{name: "max-retries", shortHand: "r",
		desc: "Number of attempts for a run that fails with a transient store error"},
	"retry-backoff": cliFlag{name: "retry-backoff", shortHand: "b",
		desc: "Base number of seconds to wait between retry attempts;\n" +
			"grows linearly with the attempt number"},
	"log-level": cliFlag{name: "log-level", shortHand: "l",
		desc: "Log level: \"error | warn | info | debug\""},
	"output": cliFlag{name: "output", shortHand: "o",
		desc: "Specify \"json\" or \"yaml\" to choose the run summary output format"},
	"stats": cliFlag{name: "stats", shortHand: "L",
		desc: "Number of seconds between dumping step statistics (use 0 to disable)"},
	"oltp-connection": cliFlag{name: "oltp-connection", shortHand: "T",
		desc: "Logical name of the transactional store connection\n" +
			"(or set " + "RP_OLTP_DSN" + " to skip the connections file)"},
	"olap-connection": cliFlag{name: "olap-connection", shortHand: "A",
		desc: "Logical name of the analytical store connection\n" +
			"(or set " + "RP_OLAP_DSN" + " to skip the connections file)"},
	"file": cliFlag{name: "file", shortHand: "f",
		desc: "CSV file containing transactions to ingest, with a header row naming the fields"},
	"port": cliFlag{name: "port", shortHand: "p",
		desc: "Port to listen on"},
	"connection-name": cliFlag{name: "connection-name", shortHand: "c",
		desc: "Connection name referred to by sync and ingest actions"},
	"dsn": cliFlag{name: "dsn", shortHand: "D",
		desc: "Connect string of the form <scheme>://<user>:<password>@<host>:<port>/<database>"},
	"force-connection": cliFlag{name: "force", shortHand: "F",
		desc: "Allow overwrite of existing connections"},
}

// addFlag adds a flag to cobra.Command c, based on the type of targetVar (which must be a pointer).
// The name of the flag is looked up in map, cliFlags.
// The default value is fetched from config if it exists else the supplied defaultValue is applied.
// The flag is marked as required in Cobra based on the value of required.
// Supply a value for desc2 to append to the existing description found in map cliFlags.
func (f *cliFlags) addFlag(c *cobra.Command, targetVar interface{}, name string, defaultValue string, required bool, desc2 string) {
	v := reflect.ValueOf(targetVar)
	if v.Kind() != reflect.Ptr {
		fmt.Println("error adding flag: targetVar must be a pointer")
		os.Exit(1)
	}
	sw := f.getCliFlag(name, defaultValue, config.Main.Get) // get the cliFlag details, with defaults taken from config or the supplied defaultValue
	desc := sw.desc + desc2                                 // create the full flag description for use below
	// Apply the flag.
	switch p := targetVar.(type) {
	case *string:
		c.Flags().StringVarP(p, sw.name, sw.shortHand, sw.val, desc)
		if sw.val != "" { // if there is a value via config or default...
			mustSetFlag(c.Flags(), sw.name, sw.val)
		}
	case *bool:
		defaultBool := strings.ToLower(sw.val) == "true"
		c.Flags().BoolVarP(p, sw.name, sw.shortHand, defaultBool, desc)
	case *int:
		defaultInt, err := strconv.Atoi(sw.val)
		if err != nil {
			fmt.Printf("the value for flag %q must be an integer: %v\n", sw.name, err)
			os.Exit(1)
		}
		c.Flags().IntVarP(p, sw.name, sw.shortHand, defaultInt, desc)
	default:
		panic("Error: unhandled CLI flag target value type")
	}
	// Optionally mark the flag as mandatory.
	if required { // if the flag is required...
		_ = c.MarkFlagRequired(sw.name)
	}
}

// getCliFlag reads the Main config file to find a default value for name.
// If a value cannot be found then use the supplied defaultValue in its place.
func (f *cliFlags) getCliFlag(name string, defaultValue string, fnGetConfig func(key string, out interface{}) error) cliFlag {
	s, ok := switches[name]
	if !ok {
		panic(fmt.Sprintf("unregistered CLI flag, %q", name))
	}
	err := fnGetConfig(s.name, &s.val)
	if errors.As(err, &config.KeyNotFoundError{}) || s.val == "" { // if there was no key found...
		// Apply the default.
		s.val = defaultValue
	}
	return s
}

func mustSetFlag(f *pflag.FlagSet, name string, val string) {
	if err := f.Set(name, val); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
