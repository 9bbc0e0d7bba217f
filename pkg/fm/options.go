package fm

import (
	"fmt"
	"strings"
	"time"

	"github.com/dougsko/fmd/pkg/hardware"
)

// Band is a regional tuning range
type Band int

const (
	BandEurope    Band = iota // 87.5 - 108 MHz
	BandJapanWide             // 76 - 108 MHz
	BandJapan                 // 76 - 90 MHz
)

// Limits returns the band edges in kHz
func (b Band) Limits() (int64, int64) {
	switch b {
	case BandJapanWide:
		return 76000, 108000
	case BandJapan:
		return 76000, 90000
	default:
		return 87500, 108000
	}
}

func (b Band) String() string {
	switch b {
	case BandEurope:
		return "europe"
	case BandJapanWide:
		return "japan-wide"
	case BandJapan:
		return "japan"
	default:
		return "unknown"
	}
}

// ParseBand accepts a band name or its edges in MHz (e.g. "76-90")
func ParseBand(s string) (Band, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "europe", "us", "87.5-108", "":
		return BandEurope, nil
	case "japan-wide", "76-108":
		return BandJapanWide, nil
	case "japan", "76-90":
		return BandJapan, nil
	}
	return BandEurope, fmt.Errorf("unknown band %q", s)
}

// Spacing is the channel raster
type Spacing int32

const (
	Spacing200kHz Spacing = 0
	Spacing100kHz Spacing = 1
	Spacing50kHz  Spacing = 2
)

// KHz returns the raster width
func (s Spacing) KHz() int {
	switch s {
	case Spacing200kHz:
		return 200
	case Spacing50kHz:
		return 50
	default:
		return 100
	}
}

// ParseSpacing converts a raster width in kHz
func ParseSpacing(khz int) (Spacing, error) {
	switch khz {
	case 200:
		return Spacing200kHz, nil
	case 100:
		return Spacing100kHz, nil
	case 50:
		return Spacing50kHz, nil
	}
	return Spacing100kHz, fmt.Errorf("unsupported channel spacing %d kHz", khz)
}

// Emphasis is the de-emphasis time constant
type Emphasis int32

const (
	Emphasis75us Emphasis = 0
	Emphasis50us Emphasis = 1
)

// Microseconds returns the time constant
func (e Emphasis) Microseconds() int {
	if e == Emphasis50us {
		return 50
	}
	return 75
}

// ParseEmphasis converts a time constant in microseconds
func ParseEmphasis(us int) (Emphasis, error) {
	switch us {
	case 75:
		return Emphasis75us, nil
	case 50:
		return Emphasis50us, nil
	}
	return Emphasis75us, fmt.Errorf("unsupported emphasis %d us", us)
}

// PowerMode selects normal or low power operation
type PowerMode int32

const (
	PowerNormal PowerMode = 0
	PowerLow    PowerMode = 1
)

func (p PowerMode) String() string {
	if p == PowerLow {
		return "low"
	}
	return "normal"
}

// Timeouts bound every wait on a completion signal
type Timeouts struct {
	Ready time.Duration
	Tune  time.Duration
	Seek  time.Duration
	Scan  time.Duration
	// Off is how long teardown waits for the disabled event before forcing OFF
	Off time.Duration
}

// DefaultTimeouts returns the stock wait bounds
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Ready: 5 * time.Second,
		Tune:  2 * time.Second,
		Seek:  20 * time.Second,
		Scan:  240 * time.Second,
		Off:   2 * time.Second,
	}
}

// ThresholdApplier programs search and AF thresholds once per power-up
type ThresholdApplier interface {
	Apply(dev hardware.DeviceChannel) error
}

// Notification is published after each handled device event
type Notification struct {
	Event     hardware.Event `json:"-"`
	Name      string         `json:"event"`
	State     State          `json:"-"`
	StateName string         `json:"state"`
	Frequency int64          `json:"frequency_khz"`
	Time      time.Time      `json:"time"`
}

// Options configures a Controller
type Options struct {
	Timeouts        Timeouts
	Band            Band
	Spacing         Spacing
	Emphasis        Emphasis
	InternalAntenna bool
	Thresholds      ThresholdApplier
	// Observer is called on the event reader goroutine and must not block
	Observer func(Notification)
}

// DefaultOptions returns options for a European receiver
func DefaultOptions() Options {
	return Options{
		Timeouts: DefaultTimeouts(),
		Band:     BandEurope,
		Spacing:  Spacing100kHz,
		Emphasis: Emphasis50us,
	}
}

func (o *Options) fillDefaults() {
	def := DefaultTimeouts()
	if o.Timeouts.Ready <= 0 {
		o.Timeouts.Ready = def.Ready
	}
	if o.Timeouts.Tune <= 0 {
		o.Timeouts.Tune = def.Tune
	}
	if o.Timeouts.Seek <= 0 {
		o.Timeouts.Seek = def.Seek
	}
	if o.Timeouts.Scan <= 0 {
		o.Timeouts.Scan = def.Scan
	}
	if o.Timeouts.Off <= 0 {
		o.Timeouts.Off = def.Off
	}
}
