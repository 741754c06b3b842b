package components

import (
	"sync/atomic"

	c "github.com/payfraud/riskpipe/constants"
	"github.com/payfraud/riskpipe/logger"
	s "github.com/payfraud/riskpipe/stats"
	"github.com/payfraud/riskpipe/stream"
)

type ChannelSplitterConfig struct {
	Log            logger.Logger
	Name           string
	InputChan      chan stream.Record
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewChannelSplitter duplicates each input record onto two output channels so two
// downstream consumers each see the full stream. Each output gets its own copy of
// the record, so consumers may mutate without affecting each other.
func NewChannelSplitter(i interface{}) (chan stream.Record, chan stream.Record, chan ControlAction) {
	cfg := i.(*ChannelSplitterConfig)
	outputChanA := make(chan stream.Record, int(c.ChanSize))
	outputChanB := make(chan stream.Record, int(c.ChanSize))
	controlChan := make(chan ControlAction, 1)
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		cfg.Log.Info(cfg.Name, " is running")
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		rowCount := int64(0)
		if cfg.StepWatcher != nil {
			cfg.StepWatcher.StartWatching(&rowCount, &outputChanA)
			defer cfg.StepWatcher.StopWatching()
		}
		for {
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					close(outputChanA)
					close(outputChanB)
					cfg.Log.Info(cfg.Name, " complete; rows = ", atomic.LoadInt64(&rowCount))
					return
				}
				recA, err := stream.MergeDataStreams(rec, stream.NewNilRecord(), true)
				if err != nil {
					cfg.Log.Panic(cfg.Name, " unable to copy record: ", err)
				}
				recB, err := stream.MergeDataStreams(rec, stream.NewNilRecord(), true)
				if err != nil {
					cfg.Log.Panic(cfg.Name, " unable to copy record: ", err)
				}
				if rowSentOK := safeSend(recA, outputChanA, controlChan, sendNilControlResponse); !rowSentOK {
					cfg.Log.Info(cfg.Name, " shutdown")
					return
				}
				if rowSentOK := safeSend(recB, outputChanB, controlChan, sendNilControlResponse); !rowSentOK {
					cfg.Log.Info(cfg.Name, " shutdown")
					return
				}
				atomic.AddInt64(&rowCount, 1)
			case controlAction := <-controlChan: // if we were asked to shutdown...
				controlAction.ResponseChan <- nil
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
	}()
	return outputChanA, outputChanB, controlChan
}
