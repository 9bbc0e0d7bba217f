package monitor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/dougsko/fmd/pkg/logging"
)

// SignalSource supplies RSSI readings
type SignalSource interface {
	CurrentRSSI() (int32, error)
}

// LevelData summarizes the RSSI samples in the current window
type LevelData struct {
	Timestamp int64   `json:"timestamp"`
	Samples   int     `json:"samples"`
	Current   int32   `json:"current"`
	Mean      float32 `json:"mean"`
	Peak      int32   `json:"peak"`
	Min       int32   `json:"min"`
	StdDev    float32 `json:"std_dev"`
}

// SpectrumData is the fading spectrum of the RSSI series
type SpectrumData struct {
	Timestamp int64     `json:"spectrum_timestamp"`
	Spectrum  []float32 `json:"spectrum"`  // magnitude in dB
	FreqStep  float32   `json:"freq_step"` // Hz per bin
}

// Snapshot combines level and spectrum data
type Snapshot struct {
	LevelData
	SpectrumData
}

// SignalMonitor samples RSSI periodically and keeps level statistics and
// an FFT of the signal strength variation
type SignalMonitor struct {
	mutex sync.RWMutex

	interval time.Duration
	fftSize  int

	samples []float64 // newest last, at most fftSize
	current int32
	peak    int32
	min     int32

	spectrum     []float32
	spectrumTime time.Time
	window       []float64

	sampleCount int64
	readErrors  int64

	onUpdate func(Snapshot)
	running  bool
}

// NewSignalMonitor creates a monitor. fftSize must be a power of two.
func NewSignalMonitor(interval time.Duration, fftSize int) *SignalMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	if fftSize < 4 {
		fftSize = 4
	}
	return &SignalMonitor{
		interval: interval,
		fftSize:  fftSize,
		samples:  make([]float64, 0, fftSize),
		spectrum: make([]float32, fftSize/2),
		window:   window.Hann(fftSize),
	}
}

// OnUpdate registers a callback run after every sample
func (m *SignalMonitor) OnUpdate(fn func(Snapshot)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onUpdate = fn
}

// ProcessSample adds one RSSI reading
func (m *SignalMonitor) ProcessSample(rssi int32) {
	m.mutex.Lock()

	if len(m.samples) == 0 || rssi > m.peak {
		m.peak = rssi
	}
	if len(m.samples) == 0 || rssi < m.min {
		m.min = rssi
	}
	m.current = rssi

	if len(m.samples) == m.fftSize {
		copy(m.samples, m.samples[1:])
		m.samples = m.samples[:m.fftSize-1]
	}
	m.samples = append(m.samples, float64(rssi))
	m.sampleCount++

	if len(m.samples) == m.fftSize {
		m.calculateSpectrum()
	}

	fn := m.onUpdate
	m.mutex.Unlock()

	if fn != nil {
		fn(m.Snapshot())
	}
}

// calculateSpectrum runs the FFT over the mean-removed, windowed window
func (m *SignalMonitor) calculateSpectrum() {
	mean := 0.0
	for _, s := range m.samples {
		mean += s
	}
	mean /= float64(len(m.samples))

	buf := make([]float64, m.fftSize)
	for i, s := range m.samples {
		buf[i] = (s - mean) * m.window[i]
	}

	result := fft.FFTReal(buf)
	for i := range m.spectrum {
		magnitude := math.Hypot(real(result[i]), imag(result[i]))
		if magnitude > 1e-9 {
			m.spectrum[i] = float32(20.0 * math.Log10(magnitude))
		} else {
			m.spectrum[i] = -100.0
		}
	}
	m.spectrumTime = time.Now()
}

// Reset drops the sample window, e.g. after a retune
func (m *SignalMonitor) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.samples = m.samples[:0]
	m.current, m.peak, m.min = 0, 0, 0
	for i := range m.spectrum {
		m.spectrum[i] = 0
	}
	m.spectrumTime = time.Time{}
}

// GetCurrentLevels returns level statistics over the sample window
func (m *SignalMonitor) GetCurrentLevels() LevelData {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	data := LevelData{
		Timestamp: time.Now().UnixMilli(),
		Samples:   len(m.samples),
		Current:   m.current,
		Peak:      m.peak,
		Min:       m.min,
	}
	if len(m.samples) == 0 {
		return data
	}

	var sum, sumSquares float64
	for _, s := range m.samples {
		sum += s
		sumSquares += s * s
	}
	n := float64(len(m.samples))
	mean := sum / n
	variance := sumSquares/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	data.Mean = float32(mean)
	data.StdDev = float32(math.Sqrt(variance))
	return data
}

// GetCurrentSpectrum returns the latest fading spectrum
func (m *SignalMonitor) GetCurrentSpectrum() SpectrumData {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	spectrum := make([]float32, len(m.spectrum))
	copy(spectrum, m.spectrum)

	var ts int64
	if !m.spectrumTime.IsZero() {
		ts = m.spectrumTime.UnixMilli()
	}
	return SpectrumData{
		Timestamp: ts,
		Spectrum:  spectrum,
		FreqStep:  float32(1.0 / (m.interval.Seconds() * float64(m.fftSize))),
	}
}

// Snapshot returns combined level and spectrum data
func (m *SignalMonitor) Snapshot() Snapshot {
	return Snapshot{
		LevelData:    m.GetCurrentLevels(),
		SpectrumData: m.GetCurrentSpectrum(),
	}
}

// GetStatistics returns monitoring statistics
func (m *SignalMonitor) GetStatistics() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return map[string]interface{}{
		"sample_count":   m.sampleCount,
		"read_errors":    m.readErrors,
		"interval_ms":    m.interval.Milliseconds(),
		"fft_size":       m.fftSize,
		"window_samples": len(m.samples),
		"running":        m.running,
	}
}

// Run polls src every interval until ctx is done. Failed reads (for
// example while the receiver is off) are counted and skipped.
func (m *SignalMonitor) Run(ctx context.Context, src SignalSource) {
	m.mutex.Lock()
	m.running = true
	m.mutex.Unlock()
	defer func() {
		m.mutex.Lock()
		m.running = false
		m.mutex.Unlock()
	}()

	logging.Debugf("monitor", "Signal monitor started (interval %v, fft %d)", m.interval, m.fftSize)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("monitor", "Signal monitor stopped")
			return
		case <-ticker.C:
			rssi, err := src.CurrentRSSI()
			if err != nil {
				m.mutex.Lock()
				m.readErrors++
				m.mutex.Unlock()
				continue
			}
			m.ProcessSample(rssi)
		}
	}
}

// IsRunning returns whether the polling loop is active
func (m *SignalMonitor) IsRunning() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.running
}
