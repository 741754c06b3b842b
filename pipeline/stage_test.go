package pipeline

import (
	"testing"
)

func TestCanAdvanceForwardOnly(t *testing.T) {
	forward := []struct{ from, to Stage }{
		{StageStarted, StageRead},
		{StageRead, StageScored},
		{StageScored, StageAggregated},
		{StageAggregated, StageWritten},
		{StageWritten, StageCommitted},
	}
	for _, tt := range forward {
		if !CanAdvance(tt.from, tt.to) {
			t.Fatal("expected legal transition from ", tt.from, " to ", tt.to)
		}
	}
	illegal := []struct{ from, to Stage }{
		{StageStarted, StageScored},  // skipping a stage.
		{StageScored, StageRead},     // going backwards.
		{StageCommitted, StageRead},  // reopening a finished run.
		{StageRead, StageRead},       // no self-loops.
		{StageUnknown, StageStarted}, // unknown stages never advance.
	}
	for _, tt := range illegal {
		if CanAdvance(tt.from, tt.to) {
			t.Fatal("expected illegal transition from ", tt.from, " to ", tt.to)
		}
	}
}

func TestCanAdvanceToFailedFromAnywhere(t *testing.T) {
	for _, from := range []Stage{StageStarted, StageRead, StageScored, StageAggregated, StageWritten, StageCommitted} {
		if !CanAdvance(from, StageFailed) {
			t.Fatal("expected failed to be reachable from ", from)
		}
	}
}
