package hardware

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dougsko/fmd/pkg/logging"
)

// MockDeviceConfig configures the simulated tuner
type MockDeviceConfig struct {
	Latency       time.Duration // delay before ready/tune/disabled events
	SearchLatency time.Duration // delay before a seek or scan completes
	PollInterval  time.Duration // ReadEventBlock wait when idle
	BandLow       int64
	BandHigh      int64
	Stations      []int64 // kHz frequencies with a receivable carrier
	StationRSSI   int32
	NoiseRSSI     int32
}

// DefaultMockStations is the station set used when none is configured
var DefaultMockStations = []int64{88100, 91500, 94700, 98100, 101300, 104900, 107700}

// MockDevice implements DeviceChannel with a simulated asynchronous event stream
type MockDevice struct {
	config MockDeviceConfig
	mu     sync.Mutex

	open       bool
	generation int
	events     chan Event
	done       chan struct{}

	mode      DeviceMode
	frequency int64
	bandLow   int64
	bandHigh  int64
	audioMode AudioMode
	controls  map[ControlID]int32
	afList    []int64

	searchTimer *time.Timer
	searchScan  bool
	searchDir   SearchDirection

	suppressed map[Event]bool
	failures   map[string]error
	calls      []string
	opens      int
}

// NewMockDevice creates a simulated tuner
func NewMockDevice(config MockDeviceConfig) *MockDevice {
	if config.Latency <= 0 {
		config.Latency = 2 * time.Millisecond
	}
	if config.SearchLatency <= 0 {
		config.SearchLatency = 10 * time.Millisecond
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 20 * time.Millisecond
	}
	if config.BandLow == 0 && config.BandHigh == 0 {
		config.BandLow, config.BandHigh = 87500, 108000
	}
	if config.Stations == nil {
		config.Stations = DefaultMockStations
	}
	if config.StationRSSI == 0 {
		config.StationRSSI = -48
	}
	if config.NoiseRSSI == 0 {
		config.NoiseRSSI = -105
	}

	stations := append([]int64(nil), config.Stations...)
	sort.Slice(stations, func(i, j int) bool { return stations[i] < stations[j] })
	config.Stations = stations

	return &MockDevice{
		config:     config,
		bandLow:    config.BandLow,
		bandHigh:   config.BandHigh,
		controls:   make(map[ControlID]int32),
		suppressed: make(map[Event]bool),
		failures:   make(map[string]error),
	}
}

// Suppress stops the device from emitting ev until Release is called
func (m *MockDevice) Suppress(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed[ev] = true
}

// Release re-enables emission of ev
func (m *MockDevice) Release(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.suppressed, ev)
}

// FailNext makes the next call of op return err. Ops are named after
// the DeviceChannel methods in snake case, e.g. "set_frequency".
func (m *MockDevice) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// Inject queues raw events for the reader immediately, bypassing suppression
func (m *MockDevice) Inject(events ...Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		m.queueLocked(ev)
	}
}

// SetAFList sets the alternate frequencies reported in the AF list buffer
func (m *MockDevice) SetAFList(khz []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.afList = append([]int64(nil), khz...)
}

// SetSearchLatency changes how long later searches take to complete
func (m *MockDevice) SetSearchLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.SearchLatency = d
}

// Retune moves the carrier without a host request, as an AF jump does
func (m *MockDevice) Retune(khz int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frequency = khz
}

// Calls returns the log of device operations
func (m *MockDevice) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Control returns the last value written to a control
func (m *MockDevice) Control(id ControlID) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controls[id]
}

// Mode returns the current device mode
func (m *MockDevice) Mode() DeviceMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// AudioMode returns the current audio mode
func (m *MockDevice) AudioMode() AudioMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioMode
}

// Opens returns how many times the device has been opened
func (m *MockDevice) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

func (m *MockDevice) record(format string, args ...interface{}) {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

// failure consumes a pending injected failure for op. Caller holds the mutex.
func (m *MockDevice) failure(op string) error {
	if err, ok := m.failures[op]; ok {
		delete(m.failures, op)
		return err
	}
	return nil
}

// queueLocked pushes an event into the current session's queue
func (m *MockDevice) queueLocked(ev Event) {
	if !m.open {
		return
	}
	select {
	case m.events <- ev:
	default:
		logging.Warnf("mock", "Event queue full, dropping %s", ev)
	}
}

// emitLocked schedules ev after the configured latency
func (m *MockDevice) emitLocked(delay time.Duration, evs ...Event) {
	gen := m.generation
	time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.generation {
			return
		}
		for _, ev := range evs {
			if m.suppressed[ev] {
				continue
			}
			m.queueLocked(ev)
		}
	})
}

// Open acquires the simulated handle
func (m *MockDevice) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("open")
	if err := m.failure("open"); err != nil {
		return err
	}
	if m.open {
		return nil
	}
	m.open = true
	m.opens++
	m.generation++
	m.events = make(chan Event, 64)
	m.done = make(chan struct{})
	return nil
}

// Close releases the simulated handle
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil
	}
	m.record("close")
	m.open = false
	m.generation++
	m.mode = ModeNone
	if m.searchTimer != nil {
		m.searchTimer.Stop()
		m.searchTimer = nil
	}
	close(m.done)
	return nil
}

// IsOpen reports whether the handle is held
func (m *MockDevice) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Enable powers the receiver on and later emits the ready event
func (m *MockDevice) Enable(mode DeviceMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("enable:%d", mode)
	if !m.open {
		return ErrClosed
	}
	if err := m.failure("enable"); err != nil {
		return err
	}
	m.mode = mode
	m.emitLocked(m.config.Latency, EventReady)
	return nil
}

// Disable powers the receiver off and later emits the disabled event
func (m *MockDevice) Disable() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("disable")
	if !m.open {
		return ErrClosed
	}
	if err := m.failure("disable"); err != nil {
		return err
	}
	m.mode = ModeNone
	m.emitLocked(m.config.Latency, EventDisabled)
	return nil
}

// SetFrequency tunes and later emits the tune event
func (m *MockDevice) SetFrequency(khz int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("set_frequency:%d", khz)
	if !m.open {
		return ErrClosed
	}
	if err := m.failure("set_frequency"); err != nil {
		return err
	}
	if khz < m.bandLow || khz > m.bandHigh {
		return fmt.Errorf("frequency %d kHz outside band %d-%d", khz, m.bandLow, m.bandHigh)
	}
	m.frequency = khz
	m.emitLocked(m.config.Latency, EventTune)
	return nil
}

// GetFrequency returns the tuned frequency
func (m *MockDevice) GetFrequency() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return 0, ErrClosed
	}
	if err := m.failure("get_frequency"); err != nil {
		return 0, err
	}
	return m.frequency, nil
}

// StartSearch begins a seek or a strong-station scan depending on the search mode control
func (m *MockDevice) StartSearch(dir SearchDirection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("start_search:%s", dir)
	if !m.open {
		return ErrClosed
	}
	if err := m.failure("start_search"); err != nil {
		return err
	}
	if m.searchTimer != nil {
		return fmt.Errorf("search already running")
	}

	m.searchScan = m.controls[CtrlSearchMode] == SearchModeListStrong
	m.searchDir = dir
	gen := m.generation
	m.searchTimer = time.AfterFunc(m.config.SearchLatency, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.generation || m.searchTimer == nil {
			return
		}
		m.searchTimer = nil
		m.finishSearchLocked(true)
	})
	return nil
}

// finishSearchLocked emits the completion events of the running search
func (m *MockDevice) finishSearchLocked(found bool) {
	var evs []Event
	if m.searchScan {
		evs = []Event{EventSearchList}
	} else {
		if found {
			m.frequency = m.nextStation(m.frequency, m.searchDir)
		}
		evs = []Event{EventTune, EventSeekComplete}
	}
	for _, ev := range evs {
		if !m.suppressed[ev] {
			m.queueLocked(ev)
		}
	}
}

func (m *MockDevice) nextStation(from int64, dir SearchDirection) int64 {
	stations := m.inBandStations()
	if len(stations) == 0 {
		return from
	}
	if dir == SearchUp {
		for _, f := range stations {
			if f > from {
				return f
			}
		}
		return stations[0]
	}
	for i := len(stations) - 1; i >= 0; i-- {
		if stations[i] < from {
			return stations[i]
		}
	}
	return stations[len(stations)-1]
}

func (m *MockDevice) inBandStations() []int64 {
	var out []int64
	for _, f := range m.config.Stations {
		if f >= m.bandLow && f <= m.bandHigh {
			out = append(out, f)
		}
	}
	return out
}

// SetControl writes a control. Clearing CtrlSearchOn cancels a running search.
func (m *MockDevice) SetControl(id ControlID, value int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("set_control:0x%08x=%d", uint32(id), value)
	if !m.open {
		return ErrClosed
	}
	if err := m.failure("set_control"); err != nil {
		return err
	}
	m.controls[id] = value

	if id == CtrlSearchOn && value == 0 && m.searchTimer != nil {
		m.searchTimer.Stop()
		m.searchTimer = nil
		m.finishSearchLocked(false)
	}
	return nil
}

// GetControl reads a control
func (m *MockDevice) GetControl(id ControlID) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return 0, ErrClosed
	}
	if err := m.failure("get_control"); err != nil {
		return 0, err
	}
	return m.controls[id], nil
}

// GetBandLimits returns the band in kHz
func (m *MockDevice) GetBandLimits() (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return 0, 0, ErrClosed
	}
	return m.bandLow, m.bandHigh, nil
}

// SetBandLimits sets the band in kHz
func (m *MockDevice) SetBandLimits(low, high int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("set_band:%d-%d", low, high)
	if !m.open {
		return ErrClosed
	}
	if err := m.failure("set_band_limits"); err != nil {
		return err
	}
	if low <= 0 || high <= low {
		return fmt.Errorf("invalid band %d-%d", low, high)
	}
	m.bandLow, m.bandHigh = low, high
	return nil
}

// SetAudioMode selects stereo or mono
func (m *MockDevice) SetAudioMode(mode AudioMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("set_audio_mode:%d", mode)
	if !m.open {
		return ErrClosed
	}
	if err := m.failure("set_audio_mode"); err != nil {
		return err
	}
	m.audioMode = mode
	return nil
}

// GetSignalStrength reports a strong carrier on configured stations and noise elsewhere
func (m *MockDevice) GetSignalStrength() (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return 0, ErrClosed
	}
	if err := m.failure("get_signal_strength"); err != nil {
		return 0, err
	}
	for _, f := range m.config.Stations {
		if f == m.frequency {
			return m.config.StationRSSI, nil
		}
	}
	return m.config.NoiseRSSI, nil
}

// ReadEventBlock returns queued events, waiting up to the poll interval
func (m *MockDevice) ReadEventBlock(buf []byte) (int, error) {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	if err := m.failure("read_event_block"); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	events, done := m.events, m.done
	m.mu.Unlock()

	if len(buf) == 0 {
		return 0, nil
	}

	timer := time.NewTimer(m.config.PollInterval)
	defer timer.Stop()

	select {
	case ev := <-events:
		buf[0] = byte(ev)
	case <-done:
		return 0, ErrClosed
	case <-timer.C:
		return 0, nil
	}

	n := 1
	for n < len(buf) {
		select {
		case ev := <-events:
			buf[n] = byte(ev)
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

// ReadBuffer fills buf with the station or AF list buffer
func (m *MockDevice) ReadBuffer(index BufferIndex, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return 0, ErrClosed
	}
	if err := m.failure("read_buffer"); err != nil {
		return 0, err
	}
	if len(buf) < StdBufferSize {
		return 0, fmt.Errorf("buffer too small: %d", len(buf))
	}

	switch index {
	case BufferStationList:
		return EncodeStationList(buf, m.inBandStations(), m.bandLow), nil
	case BufferAFList:
		return EncodeAFList(buf, m.afList), nil
	default:
		return 0, ErrNotSupported
	}
}

// EncodeStationList writes a station list buffer and returns its length
func EncodeStationList(buf []byte, stations []int64, bandLow int64) int {
	if len(stations) > MaxStations {
		stations = stations[:MaxStations]
	}
	buf[StationListCountIndex] = byte(len(stations))
	for i, f := range stations {
		idx := (f - bandLow) / StationStepKHz
		off := StationListCountIndex + 1 + i*StationEntrySize
		buf[off] = byte(idx>>8) & StationIndexHighMask
		buf[off+1] = byte(idx)
	}
	return 1 + len(stations)*StationEntrySize
}

// EncodeAFList writes an AF list buffer and returns its length
func EncodeAFList(buf []byte, afs []int64) int {
	if len(afs) > MaxAFEntries {
		afs = afs[:MaxAFEntries]
	}
	buf[AFListCountIndex] = byte(len(afs))
	for i, f := range afs {
		off := AFListCountIndex + 1 + i*AFEntrySize
		binary.LittleEndian.PutUint32(buf[off:], uint32(f))
	}
	return AFListCountIndex + 1 + len(afs)*AFEntrySize
}
