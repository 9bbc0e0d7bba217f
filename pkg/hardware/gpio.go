package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/fmd/pkg/logging"
)

// DefaultGPIORoot is the sysfs GPIO class directory
const DefaultGPIORoot = "/sys/class/gpio"

// SysfsGPIO implements GPIOInterface using the Linux sysfs GPIO class
type SysfsGPIO struct {
	root         string
	exportedPins map[int]bool
	mutex        sync.Mutex
}

// NewSysfsGPIO creates a sysfs GPIO driver rooted at root
func NewSysfsGPIO(root string) *SysfsGPIO {
	if root == "" {
		root = DefaultGPIORoot
	}
	return &SysfsGPIO{
		root:         root,
		exportedPins: make(map[int]bool),
	}
}

// Initialize checks that the GPIO class is available
func (g *SysfsGPIO) Initialize() error {
	if _, err := os.Stat(g.root); err != nil {
		return fmt.Errorf("GPIO not available at %s: %w", g.root, err)
	}
	logging.Debugf("gpio", "Using %s", g.root)
	return nil
}

// Close unexports every pin this driver exported
func (g *SysfsGPIO) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for pin := range g.exportedPins {
		if err := g.writeAttr("unexport", strconv.Itoa(pin)); err != nil {
			logging.Warnf("gpio", "Failed to unexport pin %d: %v", pin, err)
		}
		delete(g.exportedPins, pin)
	}
	return nil
}

// SetPin drives an output pin
func (g *SysfsGPIO) SetPin(pin int, value bool) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.ensureExported(pin, "out"); err != nil {
		return err
	}

	level := "0"
	if value {
		level = "1"
	}
	if err := g.writeAttr(g.pinAttr(pin, "value"), level); err != nil {
		return fmt.Errorf("failed to set pin %d: %w", pin, err)
	}
	return nil
}

// GetPin reads an input pin
func (g *SysfsGPIO) GetPin(pin int) (bool, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.ensureExported(pin, "in"); err != nil {
		return false, err
	}

	data, err := os.ReadFile(filepath.Join(g.root, g.pinAttr(pin, "value")))
	if err != nil {
		return false, fmt.Errorf("failed to read pin %d: %w", pin, err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

func (g *SysfsGPIO) pinAttr(pin int, attr string) string {
	return filepath.Join("gpio"+strconv.Itoa(pin), attr)
}

func (g *SysfsGPIO) writeAttr(name, value string) error {
	return os.WriteFile(filepath.Join(g.root, name), []byte(value), 0644)
}

// ensureExported exports pin and sets its direction on first use.
// Caller holds the mutex.
func (g *SysfsGPIO) ensureExported(pin int, direction string) error {
	if g.exportedPins[pin] {
		return nil
	}

	pinDir := filepath.Join(g.root, "gpio"+strconv.Itoa(pin))
	if _, err := os.Stat(pinDir); err != nil {
		if err := g.writeAttr("export", strconv.Itoa(pin)); err != nil {
			return fmt.Errorf("failed to export pin %d: %w", pin, err)
		}
		// the kernel creates the pin directory asynchronously
		for i := 0; ; i++ {
			if _, err := os.Stat(pinDir); err == nil {
				break
			}
			if i == 10 {
				return fmt.Errorf("pin %d directory did not appear after export", pin)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	if err := g.writeAttr(g.pinAttr(pin, "direction"), direction); err != nil {
		return fmt.Errorf("failed to set pin %d direction to %s: %w", pin, direction, err)
	}

	g.exportedPins[pin] = true
	logging.Debugf("gpio", "Exported pin %d as %s", pin, direction)
	return nil
}
