package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the fmd configuration
type Config struct {
	Device struct {
		// Tuner access
		Driver       string `yaml:"driver"`
		Path         string `yaml:"path"`
		PollInterval int    `yaml:"poll_interval"`

		// Power-up defaults
		Frequency       int64  `yaml:"frequency"`
		Band            string `yaml:"band"`
		Spacing         int    `yaml:"spacing"`
		Emphasis        int    `yaml:"emphasis"`
		InternalAntenna bool   `yaml:"internal_antenna"`
		ThresholdsFile  string `yaml:"thresholds_file"`
	} `yaml:"device"`

	// Timeouts in milliseconds
	Timeouts struct {
		Ready int `yaml:"ready"`
		Tune  int `yaml:"tune"`
		Seek  int `yaml:"seek"`
		Scan  int `yaml:"scan"`
		Off   int `yaml:"off"`
	} `yaml:"timeouts"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
		JWTSecret  string `yaml:"jwt_secret"`
	} `yaml:"api"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
		MaxScans     int    `yaml:"max_scans"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`

	Hardware struct {
		EnableGPIO   bool   `yaml:"enable_gpio"`
		GPIORoot     string `yaml:"gpio_root"`
		PowerLEDPin  int    `yaml:"power_led_pin"`
		StereoLEDPin int    `yaml:"stereo_led_pin"`
		RDSLEDPin    int    `yaml:"rds_led_pin"`
	} `yaml:"hardware"`

	Monitor struct {
		Enabled  bool `yaml:"enabled"`
		Interval int  `yaml:"interval"`
		FFTSize  int  `yaml:"fft_size"`
	} `yaml:"monitor"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills every unset field with its default
func (c *Config) ApplyDefaults() {
	if c.Device.Driver == "" {
		c.Device.Driver = "v4l2"
	}
	if c.Device.Path == "" {
		c.Device.Path = "/dev/radio0"
	}
	if c.Device.PollInterval == 0 {
		c.Device.PollInterval = 100
	}
	if c.Device.Frequency == 0 {
		c.Device.Frequency = 98100
	}
	if c.Device.Band == "" {
		c.Device.Band = "europe"
	}
	if c.Device.Spacing == 0 {
		c.Device.Spacing = 100
	}
	if c.Device.Emphasis == 0 {
		c.Device.Emphasis = 50
	}
	if c.Timeouts.Ready == 0 {
		c.Timeouts.Ready = 5000
	}
	if c.Timeouts.Tune == 0 {
		c.Timeouts.Tune = 2000
	}
	if c.Timeouts.Seek == 0 {
		c.Timeouts.Seek = 20000
	}
	if c.Timeouts.Scan == 0 {
		c.Timeouts.Scan = 240000
	}
	if c.Timeouts.Off == 0 {
		c.Timeouts.Off = 2000
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = "/tmp/fmd.sock"
	}
	if c.Storage.MaxScans == 0 {
		c.Storage.MaxScans = 500
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
	if c.Hardware.GPIORoot == "" {
		c.Hardware.GPIORoot = "/sys/class/gpio"
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 1000
	}
	if c.Monitor.FFTSize == 0 {
		c.Monitor.FFTSize = 64
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Device.Driver {
	case "v4l2", "mock":
	default:
		return fmt.Errorf("unknown device driver %q", c.Device.Driver)
	}
	if c.Device.Driver == "v4l2" && c.Device.Path == "" {
		return fmt.Errorf("device path is required for the v4l2 driver")
	}
	if c.Device.Frequency <= 0 {
		return fmt.Errorf("default frequency must be positive")
	}
	switch c.Device.Spacing {
	case 50, 100, 200:
	default:
		return fmt.Errorf("unsupported channel spacing %d kHz", c.Device.Spacing)
	}
	switch c.Device.Emphasis {
	case 50, 75:
	default:
		return fmt.Errorf("unsupported emphasis %d us", c.Device.Emphasis)
	}
	if c.Timeouts.Ready < 0 || c.Timeouts.Tune < 0 || c.Timeouts.Seek < 0 ||
		c.Timeouts.Scan < 0 || c.Timeouts.Off < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web port %d", c.Web.Port)
	}
	if c.Monitor.FFTSize&(c.Monitor.FFTSize-1) != 0 {
		return fmt.Errorf("monitor fft_size must be a power of two, got %d", c.Monitor.FFTSize)
	}
	if c.Hardware.EnableGPIO && c.Hardware.PowerLEDPin == 0 &&
		c.Hardware.StereoLEDPin == 0 && c.Hardware.RDSLEDPin == 0 {
		return fmt.Errorf("enable_gpio requires at least one LED pin")
	}
	return nil
}

// Duration converts a millisecond setting to a time.Duration
func Duration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
