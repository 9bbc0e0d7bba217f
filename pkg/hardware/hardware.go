package hardware

import (
	"fmt"
	"sync"

	"github.com/dougsko/fmd/pkg/logging"
)

// HardwareConfig represents front-panel hardware configuration
type HardwareConfig struct {
	EnableGPIO   bool
	GPIORoot     string
	PowerLEDPin  int
	StereoLEDPin int
	RDSLEDPin    int
}

// GPIOInterface defines GPIO operations
type GPIOInterface interface {
	Initialize() error
	Close() error
	SetPin(pin int, value bool) error
	GetPin(pin int) (bool, error)
}

// Indicator is a front-panel LED
type Indicator int

const (
	IndicatorPower Indicator = iota
	IndicatorStereo
	IndicatorRDS
)

// String returns the indicator name
func (i Indicator) String() string {
	switch i {
	case IndicatorPower:
		return "power"
	case IndicatorStereo:
		return "stereo"
	case IndicatorRDS:
		return "rds"
	default:
		return "unknown"
	}
}

// HardwareManager owns the front-panel indicator LEDs
type HardwareManager struct {
	config HardwareConfig
	mutex  sync.RWMutex

	gpio   GPIOInterface
	states map[Indicator]bool

	initialized bool
}

// NewHardwareManager creates a new hardware manager. A nil gpio selects
// the sysfs driver when GPIO is enabled.
func NewHardwareManager(config HardwareConfig, gpio GPIOInterface) *HardwareManager {
	return &HardwareManager{
		config: config,
		gpio:   gpio,
		states: make(map[Indicator]bool),
	}
}

// Initialize prepares the GPIO driver
func (h *HardwareManager) Initialize() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.initialized {
		return nil
	}

	if h.config.EnableGPIO {
		if h.gpio == nil {
			h.gpio = NewSysfsGPIO(h.config.GPIORoot)
		}
		if err := h.gpio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize GPIO: %w", err)
		}
		logging.Infof("hardware", "GPIO initialized (power %d, stereo %d, rds %d)",
			h.config.PowerLEDPin, h.config.StereoLEDPin, h.config.RDSLEDPin)
	}

	h.initialized = true
	return nil
}

// Close turns every indicator off and releases the GPIO driver
func (h *HardwareManager) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.initialized {
		return nil
	}

	for ind, on := range h.states {
		if on {
			if err := h.setLocked(ind, false); err != nil {
				logging.Warnf("hardware", "Failed to clear %s LED: %v", ind, err)
			}
		}
	}

	if h.gpio != nil && h.config.EnableGPIO {
		if err := h.gpio.Close(); err != nil {
			logging.Warnf("hardware", "Error closing GPIO: %v", err)
		}
	}

	h.initialized = false
	return nil
}

// SetIndicator switches an indicator LED. Without GPIO the state is only tracked.
func (h *HardwareManager) SetIndicator(ind Indicator, on bool) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.states[ind] == on {
		return nil
	}
	return h.setLocked(ind, on)
}

// setLocked must be called with the mutex held
func (h *HardwareManager) setLocked(ind Indicator, on bool) error {
	if h.initialized && h.config.EnableGPIO && h.gpio != nil {
		pin := h.pinFor(ind)
		if pin < 0 {
			return fmt.Errorf("no pin configured for %s LED", ind)
		}
		if err := h.gpio.SetPin(pin, on); err != nil {
			return fmt.Errorf("failed to set %s LED: %w", ind, err)
		}
	}
	h.states[ind] = on
	logging.Debugf("hardware", "%s LED %s", ind, map[bool]string{true: "ON", false: "OFF"}[on])
	return nil
}

// GetIndicator returns the last state set for an indicator
func (h *HardwareManager) GetIndicator(ind Indicator) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.states[ind]
}

func (h *HardwareManager) pinFor(ind Indicator) int {
	switch ind {
	case IndicatorPower:
		return h.config.PowerLEDPin
	case IndicatorStereo:
		return h.config.StereoLEDPin
	case IndicatorRDS:
		return h.config.RDSLEDPin
	default:
		return -1
	}
}

// IsInitialized returns whether Initialize has run
func (h *HardwareManager) IsInitialized() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.initialized
}

// NewDevice creates the device driver named by config.Driver
func NewDevice(config DeviceConfig) (DeviceChannel, error) {
	switch config.Driver {
	case "v4l2", "":
		return NewV4L2Device(config), nil
	case "mock":
		return NewMockDevice(MockDeviceConfig{}), nil
	default:
		return nil, fmt.Errorf("unknown device driver: %s", config.Driver)
	}
}
