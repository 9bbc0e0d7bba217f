package fm

import (
	"time"

	"github.com/dougsko/fmd/pkg/hardware"
	"github.com/dougsko/fmd/pkg/logging"
)

// eventHandler reacts to one device event. Returning false stops the
// event reader.
type eventHandler func(c *Controller) bool

// newDispatchTable maps every known event code to its handler
func newDispatchTable() map[hardware.Event]eventHandler {
	return map[hardware.Event]eventHandler{
		hardware.EventReady:          (*Controller).handleReady,
		hardware.EventTune:           (*Controller).handleTune,
		hardware.EventSeekComplete:   logOnly,
		hardware.EventScanNext:       logOnly,
		hardware.EventRawRDS:         logOnly,
		hardware.EventRT:             (*Controller).handleRT,
		hardware.EventPS:             (*Controller).handlePS,
		hardware.EventError:          (*Controller).handleError,
		hardware.EventBelowThreshold: (*Controller).handleBelowThreshold,
		hardware.EventAboveThreshold: (*Controller).handleAboveThreshold,
		hardware.EventStereo:         (*Controller).handleStereo,
		hardware.EventMono:           (*Controller).handleMono,
		hardware.EventRDSAvailable:   (*Controller).handleRDSAvailable,
		hardware.EventRDSUnavailable: logOnly,
		hardware.EventSearchList:     (*Controller).handleSearchList,
		hardware.EventAFList:         (*Controller).handleAFList,
		hardware.EventDisabled:       (*Controller).handleDisabled,
		hardware.EventRDSGroupMask:   (*Controller).handleGroupMaskRequest,
		hardware.EventRTPlus:         logOnly,
		hardware.EventERT:            logOnly,
		hardware.EventAFJump:         (*Controller).handleAFJump,
	}
}

// dispatch runs the handler for ev. Unknown codes are ignored.
func (c *Controller) dispatch(ev hardware.Event) bool {
	handler, ok := c.handlers[ev]
	if !ok {
		logging.Debugf("reader", "Ignoring unknown event 0x%02x", uint8(ev))
		return true
	}

	keepReading := handler(c)
	c.notify(ev)
	return keepReading
}

// notify publishes ev to the observer outside the lock
func (c *Controller) notify(ev hardware.Event) {
	if c.opts.Observer == nil {
		return
	}

	c.mu.Lock()
	n := Notification{
		Event:     ev,
		Name:      ev.String(),
		State:     c.state,
		StateName: c.state.String(),
		Frequency: c.frequency,
		Time:      time.Now(),
	}
	c.mu.Unlock()

	c.opts.Observer(n)
}

func logOnly(*Controller) bool {
	return true
}

func (c *Controller) handleReady() bool {
	if err := c.dev.SetControl(hardware.CtrlAudioPath, hardware.AudioPathDigital); err != nil {
		logging.Warnf("reader", "Failed to select audio path: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == OnInProgress {
		c.state = On
		c.slots.ready.signal()
	}
	return true
}

// handleTune completes a tune or seek. In the ON state a frequency change
// means the device jumped to an alternate frequency on its own.
func (c *Controller) handleTune() bool {
	khz, err := c.dev.GetFrequency()
	if err != nil {
		logging.Warnf("reader", "Tune event: failed to read frequency: %v", err)
		khz = -1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case On:
		if c.afEnabled && khz != c.prevFrequency && c.prevFrequency > 0 {
			logging.Infof("reader", "AF jump %d -> %d kHz", c.prevFrequency, khz)
			c.flags.AFJump = true
		}
	case TuneInProgress:
		c.state = On
		c.slots.tune.signal()
	case SeekInProgress:
		c.state = On
		c.slots.seek.signal()
	}

	c.prevFrequency = khz
	if khz > 0 {
		c.frequency = khz
	}
	return true
}

func (c *Controller) handleSearchList() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ScanInProgress {
		c.state = On
		c.slots.scan.signal()
	}
	return true
}

// handleDisabled forces OFF, releases every waiter and the device handle,
// and stops the reader
func (c *Controller) handleDisabled() bool {
	c.mu.Lock()
	if c.state == OffInProgress {
		logging.Info("reader", "Device disabled")
	} else {
		logging.Warnf("reader", "Unexpected disabled event in state %s", c.state)
	}
	c.state = Off
	c.rdsEnabled = false
	c.afEnabled = false
	c.slots.broadcast()
	c.mu.Unlock()

	if err := c.dev.Close(); err != nil {
		logging.Warnf("reader", "Failed to close device: %v", err)
	}
	return false
}

func (c *Controller) handleRT() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags.RT = true
	return true
}

func (c *Controller) handlePS() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags.PS = true
	return true
}

func (c *Controller) handleError() bool {
	logging.Warn("reader", "Device reported an error")
	return true
}

func (c *Controller) handleAboveThreshold() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aboveTh = true
	return true
}

func (c *Controller) handleBelowThreshold() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aboveTh = false
	return true
}

func (c *Controller) handleStereo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stereo = true
	return true
}

func (c *Controller) handleMono() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stereo = false
	return true
}

func (c *Controller) handleRDSAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rdsSupported = true
	return true
}

func (c *Controller) handleAFList() bool {
	buf := make([]byte, hardware.StdBufferSize)
	n, err := c.dev.ReadBuffer(hardware.BufferAFList, buf)
	if err != nil {
		logging.Warnf("reader", "Failed to read AF list: %v", err)
		return true
	}
	afs := decodeAFList(buf[:n])

	c.mu.Lock()
	defer c.mu.Unlock()
	c.afList = afs
	c.flags.AFList = true
	return true
}

func (c *Controller) handleAFJump() bool {
	khz, err := c.dev.GetFrequency()
	if err != nil {
		logging.Warnf("reader", "AF jump: failed to read frequency: %v", err)
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.afEnabled && khz != c.prevFrequency {
		logging.Infof("reader", "AF jump %d -> %d kHz", c.prevFrequency, khz)
		c.flags.AFJump = true
	}
	c.prevFrequency = khz
	c.frequency = khz
	return true
}

// handleGroupMaskRequest clears the raw RDS group mask on request
func (c *Controller) handleGroupMaskRequest() bool {
	if err := c.SetRDSGroupMask(0); err != nil {
		logging.Debugf("reader", "Group mask reset skipped: %v", err)
	}
	return true
}
