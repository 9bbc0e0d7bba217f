package hardware

import (
	"sync"

	"github.com/dougsko/fmd/pkg/logging"
)

// MockGPIO implements GPIOInterface in memory
type MockGPIO struct {
	pins   map[int]bool
	writes int
	mu     sync.RWMutex
}

// NewMockGPIO creates a new mock GPIO interface
func NewMockGPIO() *MockGPIO {
	return &MockGPIO{
		pins: make(map[int]bool),
	}
}

// Initialize initializes the mock GPIO
func (g *MockGPIO) Initialize() error {
	return nil
}

// Close closes the mock GPIO
func (g *MockGPIO) Close() error {
	return nil
}

// SetPin sets a GPIO pin value
func (g *MockGPIO) SetPin(pin int, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pins[pin] = value
	g.writes++
	logging.Debugf("gpio", "Mock pin %d set to %t", pin, value)
	return nil
}

// GetPin gets a GPIO pin value
func (g *MockGPIO) GetPin(pin int) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pins[pin], nil
}

// Writes returns how many SetPin calls were made
func (g *MockGPIO) Writes() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.writes
}
