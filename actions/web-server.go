package actions

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/payfraud/riskpipe/helper"
	"github.com/payfraud/riskpipe/logger"
	"github.com/payfraud/riskpipe/pipeline"
	"github.com/pkg/errors"
	"golang.org/x/net/netutil"
)

const urlContext4Sync = "/sync"

const maxConcurrentConnections = 64

type WebServerConfig struct {
	LogLevel                  string `errorTxt:"log level" mandatory:"yes"`
	Scheme                    string `errorTxt:"scheme" mandatory:"no"`
	Addr                      net.IP `errorTxt:"address" mandatory:"no"`
	Port                      int    `errorTxt:"port" mandatory:"no"`
	Connections               ConnectionLoader
	StatsDumpFrequencySeconds int
	StackDumpOnPanic          bool
	Registry                  *pipeline.RunRegistry

	runStats sync.Map // runId -> stats.StatsFetcher for runs launched by this server.
}

// RunWebServer starts the HTTP API: launch sync runs, list them and fetch a
// run's summary. Blocks until /stop or SIGINT.
func RunWebServer(web *WebServerConfig) error {
	if web == nil {
		return errors.New("nil pointer to web server config supplied")
	}
	chanStopServer := make(chan string, 1)
	// A logrus fatal exit anywhere in the process still stops the listener cleanly.
	log := logger.NewWebLogger("riskpipe", web.LogLevel, web.StackDumpOnPanic, func() {
		select {
		case chanStopServer <- "fatal error":
		default:
		}
	})
	// Check if we have valid input params.
	err := helper.ValidateStructIsPopulated(web)
	if err != nil {
		return err
	}
	if web.Registry == nil {
		web.Registry = pipeline.NewRunRegistry()
	}
	// Start the web server.
	srv := runServer(log, web, chanStopServer)
	// Block & wait for completion.
	return waitForServer(log, srv, chanStopServer)
}

// runServer starts a web server non-blocking and returns it.
func runServer(log logger.Logger, web *WebServerConfig, chanStopServer chan string) *http.Server {
	// Create routes.
	r := mux.NewRouter()
	r.HandleFunc("/stop", GetHandlerStopServer(log, chanStopServer))
	r.Path("/health").HandlerFunc(GetHandlerHealth(log))
	r.Path("/runs").HandlerFunc(GetHandlerRunList(log, web.Registry))
	r.Path("/runs/{runId}").HandlerFunc(GetHandlerRunStatus(log, web.Registry))
	r.Path("/runs/{runId}/stats").HandlerFunc(GetHandlerRunStats(log, web))
	r.Path(urlContext4Sync).Methods(http.MethodPost).Headers("Content-Type", "application/json").HandlerFunc(
		GetHandlerSyncLaunch(log, web))
	// Configure HTTP server.
	srv := &http.Server{ // Good practice to set timeouts to avoid Slowloris attacks.
		Addr:         fmt.Sprintf("%v:%v", web.Addr, web.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r, // supply our instance of gorilla/mux.
	}
	// Run HTTP server non-blocking. Connections are capped since each sync
	// launch holds a pair of store connections for the life of the run.
	go func() {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			log.Panic(err)
		}
		if err := srv.Serve(netutil.LimitListener(ln, maxConcurrentConnections)); err != nil {
			if err == http.ErrServerClosed {
				log.Info(err)
			} else {
				log.Panic(err)
			}
		}
	}()
	log.Info(fmt.Sprintf("Listening on %v://%v:%v", strings.ToLower(web.Scheme), web.Addr, web.Port))
	return srv
}

func waitForServer(log logger.Logger, srv *http.Server, chanStopServer chan string) error {
	// Block & wait for shutdown signals.
	// Accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+\) will not be caught.
	chanOS := make(chan os.Signal, 1)
	signal.Notify(chanOS, os.Interrupt) // request signals be sent to chanOS.
	select {
	case <-chanStopServer:
	case <-chanOS:
	}
	fmt.Println() // print new line char for clean looking CLI.
	log.Info("Shutting down web server...")
	// In-flight sync runs keep going until their stores commit or abort; the
	// shutdown timeout gives handlers time to drain.
	wait := time.Second * 15
	ctx, cancel := context.WithTimeout(context.Background(), wait) // create a timeout to wait for.
	defer cancel()                                                 // cancel the timeout.
	return srv.Shutdown(ctx) // doesn't block if no connections, but will otherwise wait until the timeout deadline.
}
