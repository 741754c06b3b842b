package pipeline

// Stage names the phases a sync run moves through. A failed run records the stage
// it died in so the summary can report failed(stage).
type Stage string

const (
	StageUnknown    Stage = ""
	StageStarted    Stage = "started"
	StageRead       Stage = "read"
	StageScored     Stage = "scored"
	StageAggregated Stage = "aggregated"
	StageWritten    Stage = "written"
	StageCommitted  Stage = "committed"
	StageFailed     Stage = "failed"
)

// stageOrder gives the legal forward progression of a run.
var stageOrder = map[Stage]int{
	StageStarted:    0,
	StageRead:       1,
	StageScored:     2,
	StageAggregated: 3,
	StageWritten:    4,
	StageCommitted:  5,
}

// CanAdvance reports whether a run in stage 'from' may move to stage 'to'.
// Failed is reachable from any stage; otherwise stages only move forward one step.
func CanAdvance(from, to Stage) bool {
	if to == StageFailed {
		return true
	}
	fromIdx, ok := stageOrder[from]
	if !ok {
		return false
	}
	toIdx, ok := stageOrder[to]
	if !ok {
		return false
	}
	return toIdx == fromIdx+1
}
