package components

import (
	"testing"

	"github.com/payfraud/riskpipe/stream"
	"github.com/sirupsen/logrus"
)

func TestChannelSplitter(t *testing.T) {
	log := logrus.New()
	inputChan := make(chan stream.Record, 2)
	r1 := stream.NewRecord()
	r1.SetData("a", 1)
	r2 := stream.NewRecord()
	r2.SetData("a", 2)
	inputChan <- r1
	inputChan <- r2
	close(inputChan)
	waiter := &MockComponentWaiter{}
	outA, outB, _ := NewChannelSplitter(&ChannelSplitterConfig{
		Log:         log,
		Name:        "Test ChannelSplitter",
		InputChan:   inputChan,
		WaitCounter: waiter,
	})
	gotA := make([]stream.Record, 0, 2)
	for rec := range outA {
		gotA = append(gotA, rec)
	}
	gotB := make([]stream.Record, 0, 2)
	for rec := range outB {
		gotB = append(gotB, rec)
	}
	if len(gotA) != 2 || len(gotB) != 2 {
		t.Fatal("expected 2 records on both outputs; got ", len(gotA), " and ", len(gotB))
	}
	if gotA[0].GetData("a").(int) != 1 || gotB[0].GetData("a").(int) != 1 {
		t.Fatal("unexpected first record")
	}
	// Copies must be independent.
	gotA[1].SetData("a", 99)
	if gotB[1].GetData("a").(int) != 2 {
		t.Fatal("expected independent record copies")
	}
	waiter.Wait() // the component goroutine must exit once both outputs drain.
}
