package pipeline

import (
	"testing"

	"github.com/pkg/errors"
)

func TestErrorClassification(t *testing.T) {
	err := NewConsistencyError(StageWritten, errors.New("leftover staging table"))
	if ClassOf(err) != ErrorClassConsistency {
		t.Fatal("expected consistency class; got ", ClassOf(err))
	}
	if StageOf(err) != StageWritten {
		t.Fatal("expected stage written; got ", StageOf(err))
	}
	if IsRetryable(err) {
		t.Fatal("consistency errors must not be retryable")
	}
}

func TestErrorClassificationWrapped(t *testing.T) {
	// Classification must survive wrapping with pkg/errors.
	err := errors.Wrap(NewValidationError(StageRead, errors.New("bad row")), "sync failed")
	if ClassOf(err) != ErrorClassValidation {
		t.Fatal("expected validation class through the wrap; got ", ClassOf(err))
	}
	if StageOf(err) != StageRead {
		t.Fatal("expected stage read through the wrap; got ", StageOf(err))
	}
}

func TestErrorClassificationDefaultsToTransient(t *testing.T) {
	err := errors.New("connection reset by peer")
	if ClassOf(err) != ErrorClassTransient {
		t.Fatal("expected unclassified errors to be transient; got ", ClassOf(err))
	}
	if !IsRetryable(err) {
		t.Fatal("expected unclassified errors to be retryable")
	}
	if StageOf(err) != StageUnknown {
		t.Fatal("expected unknown stage for a plain error; got ", StageOf(err))
	}
}
