package fm

import (
	"errors"
	"sync"
	"time"

	"github.com/dougsko/fmd/pkg/hardware"
	"github.com/dougsko/fmd/pkg/logging"
	"github.com/dougsko/fmd/pkg/verbose"
)

// readRetryDelay paces the loop after a failed event read
const readRetryDelay = 50 * time.Millisecond

// eventReader drains the device event stream for one powered session
type eventReader struct {
	c        *Controller
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newEventReader(c *Controller) *eventReader {
	return &eventReader{
		c:    c,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (r *eventReader) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *eventReader) stopRequested() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

func (r *eventReader) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// run exits once stop was requested and the device is OFF, when the
// device handle is gone, or when a handler ends the session
func (r *eventReader) run() {
	defer close(r.done)
	logging.Debug("reader", "Event reader started")
	defer logging.Debug("reader", "Event reader stopped")

	buf := make([]byte, hardware.StdBufferSize)
	for {
		if r.stopRequested() && r.c.State() == Off {
			return
		}

		n, err := r.c.dev.ReadEventBlock(buf)
		if err != nil {
			if errors.Is(err, hardware.ErrClosed) {
				return
			}
			logging.Debugf("reader", "Event read failed: %v", err)
			select {
			case <-r.stop:
			case <-time.After(readRetryDelay):
			}
			continue
		}
		if n == 0 {
			continue
		}

		verbose.Dump("events", buf[:n])
		for _, b := range buf[:n] {
			if !r.c.dispatch(hardware.Event(b)) {
				return
			}
		}
	}
}
