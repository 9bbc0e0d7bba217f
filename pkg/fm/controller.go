package fm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dougsko/fmd/pkg/hardware"
	"github.com/dougsko/fmd/pkg/logging"
)

// RDS groups processed by the device while RDS is enabled
const (
	rdsGroupRT       = 1 << 0
	rdsGroupPS       = 1 << 1
	rdsGroupPSSimple = 1 << 2
	rdsGroupAF       = 1 << 3
	rdsGroupECC      = 1 << 4
	rdsGroupRTPlus   = 1 << 5

	rdsGroupDefault = rdsGroupRT | rdsGroupPS | rdsGroupPSSimple | rdsGroupAF | rdsGroupECC | rdsGroupRTPlus
)

// RDSFlags reports which RDS notifications arrived since the last read
type RDSFlags struct {
	PS     bool `json:"ps"`
	RT     bool `json:"rt"`
	AFJump bool `json:"af_jump"`
	AFList bool `json:"af_list"`
}

// Any reports whether a flag is set
func (f RDSFlags) Any() bool {
	return f.PS || f.RT || f.AFJump || f.AFList
}

// Status is a point-in-time snapshot of the controller
type Status struct {
	State          string  `json:"state"`
	Frequency      int64   `json:"frequency_khz"`
	Band           string  `json:"band"`
	Spacing        int     `json:"spacing_khz"`
	Emphasis       int     `json:"emphasis_us"`
	RDSEnabled     bool    `json:"rds_enabled"`
	AFEnabled      bool    `json:"af_enabled"`
	RDSSupported   bool    `json:"rds_supported"`
	Stereo         bool    `json:"stereo"`
	AboveThreshold bool    `json:"above_threshold"`
	AFList         []int64 `json:"af_list,omitempty"`
}

// Controller drives one FM receiver. Blocking operations issue a device
// command and wait for the event reader to report completion.
//
// Operations are expected to be called sequentially; the state lock only
// serializes the controller against its own event reader.
type Controller struct {
	dev  hardware.DeviceChannel
	opts Options

	mu            sync.Mutex
	state         State
	frequency     int64
	prevFrequency int64
	band          Band
	spacing       Spacing
	emphasis      Emphasis
	rdsEnabled    bool
	afEnabled     bool
	canceled      bool
	flags         RDSFlags
	rdsSupported  bool
	stereo        bool
	aboveTh       bool
	afList        []int64
	slots         completions
	reader        *eventReader

	handlers map[hardware.Event]eventHandler
}

// NewController creates a controller in the OFF state
func NewController(dev hardware.DeviceChannel, opts Options) *Controller {
	opts.fillDefaults()
	c := &Controller{
		dev:      dev,
		opts:     opts,
		state:    Off,
		band:     opts.Band,
		spacing:  opts.Spacing,
		emphasis: opts.Emphasis,
		slots:    newCompletions(),
	}
	c.handlers = newDispatchTable()
	return c
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the controller state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		State:          c.state.String(),
		Frequency:      c.frequency,
		Band:           c.band.String(),
		Spacing:        c.spacing.KHz(),
		Emphasis:       c.emphasis.Microseconds(),
		RDSEnabled:     c.rdsEnabled,
		AFEnabled:      c.afEnabled,
		RDSSupported:   c.rdsSupported,
		Stereo:         c.stereo,
		AboveThreshold: c.aboveTh,
		AFList:         append([]int64(nil), c.afList...),
	}
}

// require checks the state under the lock
func (c *Controller) require(op string, ok func(State) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok(c.state) {
		return &StateError{Op: op, State: c.state}
	}
	return nil
}

func isOn(s State) bool { return s == On }

// waitError converts a wait that did not complete into an error
func waitError(ctx context.Context, op string, res WaitResult) error {
	if res == Canceled {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, ctx.Err())
	}
	return fmt.Errorf("%s: %w", op, ErrTimeout)
}

// PowerUp enables the receiver and tunes to khz
func (c *Controller) PowerUp(ctx context.Context, khz int64) error {
	if khz <= 0 {
		return invalidArgument("power_up", "frequency %d", khz)
	}

	c.mu.Lock()
	if c.state != Off {
		st := c.state
		c.mu.Unlock()
		return &StateError{Op: "power_up", State: st}
	}
	c.state = OnInProgress
	c.mu.Unlock()

	logging.Infof("fm", "Powering up at %d kHz", khz)

	if !c.dev.IsOpen() {
		if err := c.dev.Open(); err != nil {
			c.mu.Lock()
			c.state = Off
			c.mu.Unlock()
			return deviceError("power_up", err)
		}
	}
	c.startEventReader()

	c.mu.Lock()
	w := c.slots.ready.arm()
	c.mu.Unlock()

	if err := c.dev.Enable(hardware.ModeRX); err != nil {
		c.mu.Lock()
		c.slots.ready.disarm(w)
		c.mu.Unlock()
		c.teardown("power_up")
		return deviceError("power_up", err)
	}

	res := w.wait(ctx, c.opts.Timeouts.Ready)

	c.mu.Lock()
	c.slots.ready.disarm(w)
	st := c.state
	c.mu.Unlock()

	if st != On {
		c.teardown("power_up")
		if st == Off {
			return fmt.Errorf("power_up: %w", ErrDisabled)
		}
		return waitError(ctx, "power_up", res)
	}

	c.configure()

	if err := c.Tune(ctx, khz); err != nil {
		logging.Errorf("fm", "Initial tune failed, tearing down: %v", err)
		c.teardown("power_up")
		return fmt.Errorf("power_up: %w", err)
	}

	logging.Infof("fm", "Receiver on at %d kHz", khz)
	return nil
}

// configure applies the power-up defaults. Failures are logged only.
func (c *Controller) configure() {
	if err := c.SetBand(c.opts.Band); err != nil {
		logging.Warnf("fm", "Failed to set band: %v", err)
	}
	if err := c.SetChannelSpacing(c.opts.Spacing); err != nil {
		logging.Warnf("fm", "Failed to set channel spacing: %v", err)
	}
	if err := c.SetEmphasis(c.opts.Emphasis); err != nil {
		logging.Warnf("fm", "Failed to set emphasis: %v", err)
	}
	if c.opts.InternalAntenna {
		if err := c.SwitchAntenna(1); err != nil {
			logging.Warnf("fm", "Failed to select internal antenna: %v", err)
		}
	}
	if c.opts.Thresholds != nil {
		if err := c.opts.Thresholds.Apply(c.dev); err != nil {
			logging.Warnf("fm", "Threshold configuration incomplete: %v", err)
		}
	}
	if err := c.SetStereo(); err != nil {
		logging.Warnf("fm", "Failed to enable stereo: %v", err)
	}
}

// teardown disables the device, stops the reader, and forces OFF
func (c *Controller) teardown(op string) {
	logging.Warnf("fm", "%s: tearing down session", op)

	if c.dev.IsOpen() {
		if err := c.dev.Disable(); err != nil {
			logging.Debugf("fm", "Disable during teardown failed: %v", err)
		}
	}
	c.stopEventReader(c.opts.Timeouts.Off)
	c.forceOff()
}

// forceOff sets OFF, wakes every waiter, and releases the handle
func (c *Controller) forceOff() {
	c.mu.Lock()
	c.state = Off
	c.rdsEnabled = false
	c.afEnabled = false
	c.slots.broadcast()
	c.mu.Unlock()

	if err := c.dev.Close(); err != nil {
		logging.Warnf("fm", "Failed to close device: %v", err)
	}
}

// PowerDown disables the receiver. A running seek or scan is stopped first.
func (c *Controller) PowerDown() error {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()

	if st == Off {
		return &StateError{Op: "power_down", State: st}
	}

	if st.searching() {
		if err := c.StopScanSeek(); err != nil {
			logging.Warnf("fm", "Failed to stop search before power down: %v", err)
		}
	}

	c.mu.Lock()
	if c.state == Off {
		c.mu.Unlock()
		return nil
	}
	c.state = OffInProgress
	c.mu.Unlock()

	logging.Info("fm", "Powering down")

	var disableErr error
	if err := c.dev.Disable(); err != nil {
		disableErr = deviceError("power_down", err)
	}
	c.stopEventReader(c.opts.Timeouts.Off)
	c.forceOff()

	return disableErr
}

// Close powers the receiver down if needed and joins the event reader
func (c *Controller) Close() error {
	if c.State() != Off {
		if err := c.PowerDown(); err != nil && !errors.Is(err, ErrInvalidState) {
			logging.Warnf("fm", "Power down on close: %v", err)
		}
	}
	c.stopEventReader(c.opts.Timeouts.Off)
	return c.dev.Close()
}

// Tune sets the frequency and waits for the device to confirm it
func (c *Controller) Tune(ctx context.Context, khz int64) error {
	if khz <= 0 {
		return invalidArgument("tune", "frequency %d", khz)
	}

	c.mu.Lock()
	if c.state != On {
		st := c.state
		c.mu.Unlock()
		return &StateError{Op: "tune", State: st}
	}
	c.state = TuneInProgress
	w := c.slots.tune.arm()
	c.mu.Unlock()

	if err := c.dev.SetFrequency(khz); err != nil {
		c.mu.Lock()
		c.slots.tune.disarm(w)
		if c.state == TuneInProgress {
			c.state = On
		}
		c.mu.Unlock()
		return deviceError("tune", err)
	}

	res := w.wait(ctx, c.opts.Timeouts.Tune)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots.tune.disarm(w)

	switch c.state {
	case On:
		return nil
	case TuneInProgress:
		c.state = On
		logging.Warnf("fm", "Tune to %d kHz %s", khz, res)
		return waitError(ctx, "tune", res)
	case Off, OffInProgress:
		return fmt.Errorf("tune: %w", ErrDisabled)
	default:
		return &StateError{Op: "tune", State: c.state}
	}
}

// Seek searches for the next station in dir and returns its frequency
func (c *Controller) Seek(ctx context.Context, dir hardware.SearchDirection) (int64, error) {
	w, err := c.beginSearch("seek", SeekInProgress, &c.slots.seek)
	if err != nil {
		return 0, err
	}

	if err := c.startSearch(hardware.SearchModeSeek, dir); err != nil {
		c.abandonSearch(&c.slots.seek, w, SeekInProgress)
		return 0, deviceError("seek", err)
	}

	res := w.wait(ctx, c.opts.Timeouts.Seek)
	if err := c.finishSearch(ctx, "seek", &c.slots.seek, w, SeekInProgress, res); err != nil {
		return 0, err
	}

	khz, err := c.dev.GetFrequency()
	if err != nil {
		return 0, deviceError("seek", err)
	}
	logging.Infof("fm", "Seek %s found %d kHz", dir, khz)
	return khz, nil
}

// Scan searches the whole band upward and returns the strong stations found
func (c *Controller) Scan(ctx context.Context) ([]int64, error) {
	w, err := c.beginSearch("scan", ScanInProgress, &c.slots.scan)
	if err != nil {
		return nil, err
	}

	if err := c.startSearch(hardware.SearchModeListStrong, hardware.SearchUp); err != nil {
		c.abandonSearch(&c.slots.scan, w, ScanInProgress)
		return nil, deviceError("scan", err)
	}

	res := w.wait(ctx, c.opts.Timeouts.Scan)
	if err := c.finishSearch(ctx, "scan", &c.slots.scan, w, ScanInProgress, res); err != nil {
		return nil, err
	}

	stations, err := c.stationList()
	if err != nil {
		return nil, deviceError("scan", err)
	}
	logging.Infof("fm", "Scan found %d station(s)", len(stations))
	return stations, nil
}

func (c *Controller) beginSearch(op string, target State, slot *completionSlot) (pendingWait, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != On {
		return pendingWait{}, &StateError{Op: op, State: c.state}
	}
	c.state = target
	c.canceled = false
	return slot.arm(), nil
}

func (c *Controller) startSearch(mode int32, dir hardware.SearchDirection) error {
	if err := c.dev.SetControl(hardware.CtrlSearchMode, mode); err != nil {
		return err
	}
	if err := c.dev.SetControl(hardware.CtrlScanDwell, hardware.SeekDwellTime); err != nil {
		return err
	}
	return c.dev.StartSearch(dir)
}

// abandonSearch rolls back a search whose start command failed
func (c *Controller) abandonSearch(slot *completionSlot, w pendingWait, target State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot.disarm(w)
	if c.state == target {
		c.state = On
	}
	c.canceled = false
}

// finishSearch evaluates a completed seek or scan wait and consumes the
// cancellation flag. A nil return means a result can be read.
func (c *Controller) finishSearch(ctx context.Context, op string, slot *completionSlot, w pendingWait, target State, res WaitResult) error {
	c.mu.Lock()
	slot.disarm(w)
	st := c.state
	canceled := c.canceled
	c.canceled = false
	if st == target {
		// no completion event arrived in time
		c.state = On
	}
	c.mu.Unlock()

	switch {
	case st == target:
		if canceled {
			return fmt.Errorf("%s: %w", op, ErrAborted)
		}
		if err := c.dev.SetControl(hardware.CtrlSearchOn, 0); err != nil {
			logging.Debugf("fm", "Stop after %s timeout failed: %v", op, err)
		}
		return waitError(ctx, op, res)
	case st == Off || st == OffInProgress:
		return fmt.Errorf("%s: %w", op, ErrDisabled)
	case canceled:
		logging.Infof("fm", "%s aborted", op)
		return fmt.Errorf("%s: %w", op, ErrAborted)
	default:
		return nil
	}
}

func (c *Controller) stationList() ([]int64, error) {
	low, high, err := c.dev.GetBandLimits()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, hardware.StdBufferSize)
	n, err := c.dev.ReadBuffer(hardware.BufferStationList, buf)
	if err != nil {
		return nil, err
	}
	return decodeStationList(buf[:n], low, high), nil
}

// StopScanSeek asks the device to stop the running seek or scan. The
// waiting call still returns only once the device completes it.
func (c *Controller) StopScanSeek() error {
	c.mu.Lock()
	if !c.state.searching() {
		st := c.state
		c.mu.Unlock()
		return &StateError{Op: "stop_scan_seek", State: st}
	}
	c.canceled = true
	c.mu.Unlock()

	if err := c.dev.SetControl(hardware.CtrlSearchOn, 0); err != nil {
		c.mu.Lock()
		if c.state.searching() {
			c.canceled = false
		}
		c.mu.Unlock()
		return deviceError("stop_scan_seek", err)
	}
	return nil
}

// EnableRDS turns on RDS reception and group processing, then AF
func (c *Controller) EnableRDS() error {
	if err := c.require("enable_rds", isOn); err != nil {
		return err
	}
	if err := c.dev.SetControl(hardware.CtrlRDSOn, 1); err != nil {
		return deviceError("enable_rds", err)
	}
	if err := c.dev.SetControl(hardware.CtrlRDSGroupProc, rdsGroupDefault); err != nil {
		return deviceError("enable_rds", err)
	}

	c.mu.Lock()
	c.rdsEnabled = true
	c.mu.Unlock()

	if err := c.EnableAF(); err != nil {
		logging.Warnf("fm", "RDS on but AF not enabled: %v", err)
	}
	return nil
}

// DisableRDS turns off RDS reception and AF
func (c *Controller) DisableRDS() error {
	if err := c.require("disable_rds", isOn); err != nil {
		return err
	}
	if err := c.dev.SetControl(hardware.CtrlRDSOn, 0); err != nil {
		return deviceError("disable_rds", err)
	}

	c.mu.Lock()
	c.rdsEnabled = false
	c.mu.Unlock()

	if err := c.DisableAF(); err != nil {
		logging.Warnf("fm", "RDS off but AF still enabled: %v", err)
	}
	return nil
}

// EnableAF enables autonomous alternate frequency jumps
func (c *Controller) EnableAF() error {
	if err := c.require("enable_af", isOn); err != nil {
		return err
	}
	if err := c.dev.SetControl(hardware.CtrlRDSOn, 1); err != nil {
		return deviceError("enable_af", err)
	}
	if err := c.dev.SetControl(hardware.CtrlAFJump, 1); err != nil {
		return deviceError("enable_af", err)
	}

	c.mu.Lock()
	c.afEnabled = true
	c.mu.Unlock()
	return nil
}

// DisableAF disables alternate frequency jumps
func (c *Controller) DisableAF() error {
	if err := c.require("disable_af", isOn); err != nil {
		return err
	}
	if err := c.dev.SetControl(hardware.CtrlAFJump, 0); err != nil {
		return deviceError("disable_af", err)
	}

	c.mu.Lock()
	c.afEnabled = false
	c.mu.Unlock()
	return nil
}

// SetRDSGroupMask sets which RDS groups the device forwards raw
func (c *Controller) SetRDSGroupMask(mask int32) error {
	if err := c.require("set_rds_group_mask", State.Powered); err != nil {
		return err
	}
	if err := c.dev.SetControl(hardware.CtrlRDSGroupMask, mask); err != nil {
		return deviceError("set_rds_group_mask", err)
	}
	return nil
}

// SetMute mutes or unmutes both audio channels
func (c *Controller) SetMute(mute bool) error {
	if err := c.require("mute", State.Powered); err != nil {
		return err
	}
	value := hardware.UnmuteBoth
	if mute {
		value = hardware.MuteBoth
	}
	if err := c.dev.SetControl(hardware.CtrlAudioMute, value); err != nil {
		return deviceError("mute", err)
	}
	return nil
}

// SetSoftMute enables or disables soft mute on weak signals
func (c *Controller) SetSoftMute(on bool) error {
	if err := c.require("soft_mute", State.Powered); err != nil {
		return err
	}
	var value int32
	if on {
		value = 1
	}
	if err := c.dev.SetControl(hardware.CtrlSoftMute, value); err != nil {
		return deviceError("soft_mute", err)
	}
	return nil
}

// SoftMute reports whether soft mute is enabled
func (c *Controller) SoftMute() (bool, error) {
	if err := c.require("soft_mute", State.Powered); err != nil {
		return false, err
	}
	value, err := c.dev.GetControl(hardware.CtrlSoftMute)
	if err != nil {
		return false, deviceError("soft_mute", err)
	}
	return value != 0, nil
}

// SetStereo selects stereo audio output
func (c *Controller) SetStereo() error {
	return c.setAudioMode("stereo", hardware.AudioStereo)
}

// SetMono forces mono audio output
func (c *Controller) SetMono() error {
	return c.setAudioMode("mono", hardware.AudioMono)
}

func (c *Controller) setAudioMode(op string, mode hardware.AudioMode) error {
	if err := c.require(op, isOn); err != nil {
		return err
	}
	if err := c.dev.SetAudioMode(mode); err != nil {
		return deviceError(op, err)
	}
	return nil
}

// SetBand programs the band edges
func (c *Controller) SetBand(band Band) error {
	if err := c.require("set_band", isOn); err != nil {
		return err
	}
	low, high := band.Limits()
	if err := c.dev.SetBandLimits(low, high); err != nil {
		return deviceError("set_band", err)
	}

	c.mu.Lock()
	c.band = band
	c.mu.Unlock()
	return nil
}

// SetChannelSpacing programs the channel raster
func (c *Controller) SetChannelSpacing(spacing Spacing) error {
	if spacing < Spacing200kHz || spacing > Spacing50kHz {
		return invalidArgument("set_spacing", "spacing %d", spacing)
	}
	if err := c.require("set_spacing", isOn); err != nil {
		return err
	}
	if err := c.dev.SetControl(hardware.CtrlChannelSpacing, int32(spacing)); err != nil {
		return deviceError("set_spacing", err)
	}

	c.mu.Lock()
	c.spacing = spacing
	c.mu.Unlock()
	return nil
}

// SetEmphasis programs the de-emphasis time constant
func (c *Controller) SetEmphasis(emphasis Emphasis) error {
	if emphasis != Emphasis75us && emphasis != Emphasis50us {
		return invalidArgument("set_emphasis", "emphasis %d", emphasis)
	}
	if err := c.require("set_emphasis", isOn); err != nil {
		return err
	}
	if err := c.dev.SetControl(hardware.CtrlEmphasis, int32(emphasis)); err != nil {
		return deviceError("set_emphasis", err)
	}

	c.mu.Lock()
	c.emphasis = emphasis
	c.mu.Unlock()
	return nil
}

// SwitchAntenna selects the external (0) or internal (1) antenna
func (c *Controller) SwitchAntenna(antenna int) error {
	if antenna != 0 && antenna != 1 {
		return invalidArgument("switch_antenna", "antenna %d", antenna)
	}
	if err := c.require("switch_antenna", isOn); err != nil {
		return err
	}
	if err := c.dev.SetControl(hardware.CtrlAntenna, int32(antenna)); err != nil {
		return deviceError("switch_antenna", err)
	}
	return nil
}

// SetPowerMode selects normal or low power operation
func (c *Controller) SetPowerMode(mode PowerMode) error {
	if mode != PowerNormal && mode != PowerLow {
		return invalidArgument("set_power_mode", "mode %d", mode)
	}
	if err := c.require("set_power_mode", isOn); err != nil {
		return err
	}
	if err := c.dev.SetControl(hardware.CtrlLowPowerMode, int32(mode)); err != nil {
		return deviceError("set_power_mode", err)
	}
	return nil
}

// Channel returns the frequency the device is tuned to
func (c *Controller) Channel() (int64, error) {
	if err := c.require("get_channel", State.Powered); err != nil {
		return 0, err
	}
	khz, err := c.dev.GetFrequency()
	if err != nil {
		return 0, deviceError("get_channel", err)
	}
	return khz, nil
}

// CurrentRSSI returns the raw received signal strength
func (c *Controller) CurrentRSSI() (int32, error) {
	if err := c.require("get_rssi", State.Powered); err != nil {
		return 0, err
	}
	rssi, err := c.dev.GetSignalStrength()
	if err != nil {
		return 0, deviceError("get_rssi", err)
	}
	return rssi, nil
}

// IsRDSSupported reports whether the device has announced RDS availability
func (c *Controller) IsRDSSupported() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rdsSupported
}

// ReadRDSFlags returns the pending RDS flags and clears them
func (c *Controller) ReadRDSFlags() RDSFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	flags := c.flags
	c.flags = RDSFlags{}
	return flags
}

// AFList returns the most recently received alternate frequency list
func (c *Controller) AFList() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.afList...)
}

// AFFrequency returns the channel reached by an AF jump and clears the
// AF jump flag. The channel must lie inside the current band.
func (c *Controller) AFFrequency() (int64, error) {
	khz, err := c.Channel()
	if err != nil {
		return 0, err
	}
	low, high, err := c.dev.GetBandLimits()
	if err != nil {
		return 0, deviceError("af_frequency", err)
	}

	c.mu.Lock()
	c.flags.AFJump = false
	c.mu.Unlock()

	if khz < low || khz > high {
		return 0, invalidArgument("af_frequency", "%d kHz outside band %d-%d", khz, low, high)
	}
	return khz, nil
}

// startEventReader starts the reader unless one is already running
func (c *Controller) startEventReader() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reader != nil && !c.reader.finished() {
		return
	}
	c.reader = newEventReader(c)
	go c.reader.run()
}

// stopEventReader asks the reader to exit and joins it. If the device
// does not confirm OFF within grace, the session is forced off so the
// reader's next read fails.
func (c *Controller) stopEventReader(grace time.Duration) {
	c.mu.Lock()
	r := c.reader
	c.mu.Unlock()
	if r == nil {
		return
	}

	r.requestStop()
	select {
	case <-r.done:
	case <-time.After(grace):
		logging.Warn("fm", "Disabled event not received, forcing OFF")
		c.forceOff()
		select {
		case <-r.done:
		case <-time.After(grace):
			logging.Error("fm", "Event reader did not exit")
		}
	}

	c.mu.Lock()
	if c.reader == r {
		c.reader = nil
	}
	c.mu.Unlock()
}
