package actions

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/helper"
	"github.com/payfraud/riskpipe/logger"
	"github.com/payfraud/riskpipe/pipeline"
	"github.com/payfraud/riskpipe/stats"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseRunList struct {
	Status WebServerResponse   `json:"status"`
	Runs   []*pipeline.Summary `json:"runs"`
}

type ResponseRunStatus struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	Run     *pipeline.Summary `json:"run,omitempty"`
}

type ResponseRunStats struct {
	Status       WebServerResponse `json:"status"`
	Message      string            `json:"message"`
	StatsSummary []stats.Stats     `json:"statsSummary,omitempty"`
}

type ResponseSyncLaunch struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunId   string            `json:"runId,omitempty"`
}

// SyncLaunchRequest is the POST /sync body. Window bounds use format
// 2006-01-02T15:04:05Z; omit them to sync the last WindowDays days.
type SyncLaunchRequest struct {
	WindowStart           string `json:"windowStart"`
	WindowEnd             string `json:"windowEnd"`
	WindowDays            int    `json:"windowDays"`
	EscalationProbability string `json:"escalationProbability"`
	MaxQuarantineFraction string `json:"maxQuarantineFraction"`
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStopServer(log logger.Logger, chanStop chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chanStop <- "stop"
		log.Info("Stop signal sent")
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

// GetHandlerSyncLaunch starts a sync run in the background and responds with its
// run id, which /runs/{runId} accepts for progress lookups.
func GetHandlerSyncLaunch(log logger.Logger, web *WebServerConfig) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// Ingest the launch request from the body JSON.
		b, _ := ioutil.ReadAll(r.Body)
		req := SyncLaunchRequest{}
		if err := json.Unmarshal(b, &req); err != nil {
			logAndRespond(log, err, w,
				ResponseSyncLaunch{Status: Error, Message: fmt.Sprintf("error unmarshalling JSON: %v", err)})
			return
		}
		cfg := &SyncActionConfig{
			LogLevel:                  "info",
			OltpConnectionName:        helper.ReadValueFromEnvWithDefault(constants.EnvVarPrefix+"_OLTP_CONNECTION", constants.ConnectionNameOltp),
			OlapConnectionName:        helper.ReadValueFromEnvWithDefault(constants.EnvVarPrefix+"_OLAP_CONNECTION", constants.ConnectionNameOlap),
			WindowDays:                req.WindowDays,
			StartString:               req.WindowStart,
			EndString:                 req.WindowEnd,
			EscalationProbability:     req.EscalationProbability,
			MaxQuarantineFraction:     req.MaxQuarantineFraction,
			StatsDumpFrequencySeconds: web.StatsDumpFrequencySeconds,
			StackDumpOnPanic:          web.StackDumpOnPanic,
			Connections:               web.Connections,
			Registry:                  web.Registry,
		}
		pcfg, cleanup, err := BuildPipelineSyncConfig(log, cfg)
		if err != nil {
			logAndRespond(log, err, w,
				ResponseSyncLaunch{Status: Error, Message: fmt.Sprintf("unable to launch sync: %v", err)})
			return
		}
		summary, chanDone := pipeline.StartSync(pcfg)
		if f, ok := pcfg.Stats.(stats.StatsFetcher); ok { // expose per-step stats for the run.
			web.runStats.Store(summary.RunId, f)
		}
		go func() { // close the store connections when the run ends.
			<-chanDone
			cleanup()
		}()
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSyncLaunch{Status: Okay, Message: "sync launched", RunId: summary.RunId})
	}
}

func GetHandlerRunList(log logger.Logger, registry *pipeline.RunRegistry) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunList{Status: Okay, Runs: registry.List()})
	}
}

func GetHandlerRunStatus(log logger.Logger, registry *pipeline.RunRegistry) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id := vars["runId"]
		s, ok := registry.Get(id)
		if ok { // if the run exists...
			w.WriteHeader(http.StatusOK)
			respond(log, w, ResponseRunStatus{Status: Okay, Message: "", Run: s})
		} else { // else the run doesn't exist...
			w.WriteHeader(http.StatusBadRequest)
			log.Info("HTTP request for status of run ", id, " that doesn't exist.")
			respond(log, w, ResponseRunStatus{Status: Error, Message: fmt.Sprintf("run %v does not exist", id)})
		}
	}
}

// GetHandlerRunStats serves the per-step row counts and rates of a run launched
// by this server.
func GetHandlerRunStats(log logger.Logger, web *WebServerConfig) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id := vars["runId"]
		v, ok := web.runStats.Load(id)
		if !ok { // if the run wasn't launched here...
			w.WriteHeader(http.StatusBadRequest)
			log.Info("HTTP request for stats of run ", id, " that doesn't exist.")
			respond(log, w, ResponseRunStats{Status: Error, Message: fmt.Sprintf("run %v does not exist", id)})
			return
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunStats{Status: Okay, StatsSummary: v.(stats.StatsFetcher).GetStats()})
	}
}

// logAndRespond will log the error, write a http.StatusBadRequest and r to w.
func logAndRespond(log logger.Logger, err error, w http.ResponseWriter, r interface{}) {
	log.Error(err)
	w.WriteHeader(http.StatusBadRequest)
	respond(log, w, r)
}

// respond will marshal i to a string and write it to w.
func respond(log logger.Logger, w http.ResponseWriter, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Panic(err)
	}
	_, err = fmt.Fprint(w, string(j))
	if err != nil {
		log.Panic(err)
	}
}
