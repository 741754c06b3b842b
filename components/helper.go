package components

import (
	"fmt"

	"github.com/payfraud/riskpipe/stream"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func safeSend(rec stream.Record,
	outputChan chan stream.Record,
	controlChan chan ControlAction,
	controlFunc func(c ControlAction),
) (recordSentOK bool) {
	select {
	case outputChan <- rec: // if we can send the record to the outputChan...
		return true // signal that data was sent OK.
	case c := <-controlChan: // if we were asked to shutdown...
		controlFunc(c) // handle the control action...
		return false   // signal that the caller should shutdown.
	}
}

func sendNilControlResponse(c ControlAction) {
	c.ResponseChan <- nil // respond that we're done with a nil error.
}

// GetPanicHandlerWithErrorChanFunc returns a PanicHandlerFunc that converts a
// component panic into an error on errChan, so the caller can fail its run
// instead of the process. Only the first panic is captured; later ones are
// dropped since the run is already failing.
func GetPanicHandlerWithErrorChanFunc(errChan chan error) PanicHandlerFunc {
	return func() {
		if r := recover(); r != nil { // if there was a panic...
			var msg string
			switch x := r.(type) {
			case *logrus.Entry:
				msg = x.Message
			case string:
				msg = x
			case error:
				msg = x.Error()
			default:
				msg = fmt.Sprintf("%v", r)
			}
			select {
			case errChan <- errors.New(msg):
			default:
			}
		}
	}
}
