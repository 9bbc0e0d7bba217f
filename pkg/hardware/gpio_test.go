package hardware

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeSysfs lays out a GPIO class directory with pin 17 already exported
func fakeSysfs(t *testing.T) string {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "gpio17"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"export", "unexport"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func readAttr(t *testing.T, path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.TrimSpace(string(data))
}

func TestSysfsGPIO(t *testing.T) {
	root := fakeSysfs(t)
	gpio := NewSysfsGPIO(root)

	if err := gpio.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	t.Run("Set Pin", func(t *testing.T) {
		if err := gpio.SetPin(17, true); err != nil {
			t.Fatalf("SetPin failed: %v", err)
		}
		if got := readAttr(t, filepath.Join(root, "gpio17", "direction")); got != "out" {
			t.Errorf("Expected direction out, got %q", got)
		}
		if got := readAttr(t, filepath.Join(root, "gpio17", "value")); got != "1" {
			t.Errorf("Expected value 1, got %q", got)
		}

		if err := gpio.SetPin(17, false); err != nil {
			t.Fatalf("SetPin failed: %v", err)
		}
		if got := readAttr(t, filepath.Join(root, "gpio17", "value")); got != "0" {
			t.Errorf("Expected value 0, got %q", got)
		}
	})

	t.Run("Get Pin", func(t *testing.T) {
		value, err := gpio.GetPin(17)
		if err != nil {
			t.Fatalf("GetPin failed: %v", err)
		}
		if value {
			t.Error("Expected pin to read low")
		}
	})

	t.Run("Export Timeout", func(t *testing.T) {
		// nothing creates gpio99 after the export write
		if err := gpio.SetPin(99, true); err == nil {
			t.Error("Expected error for pin that never appears")
		}
	})

	t.Run("Close Unexports", func(t *testing.T) {
		if err := gpio.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if got := readAttr(t, filepath.Join(root, "unexport")); got != "17" {
			t.Errorf("Expected pin 17 unexported, got %q", got)
		}
	})
}

func TestSysfsGPIOMissingRoot(t *testing.T) {
	gpio := NewSysfsGPIO(filepath.Join(t.TempDir(), "missing"))
	if err := gpio.Initialize(); err == nil {
		t.Error("Expected error for missing GPIO root")
	}
}
