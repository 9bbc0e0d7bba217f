package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/fmd/pkg/client"
	"github.com/dougsko/fmd/pkg/config"
	"github.com/dougsko/fmd/pkg/hardware"
	"github.com/dougsko/fmd/pkg/protocol"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond

	powerPin  = 17
	stereoPin = 27
	rdsPin    = 22
)

type testEngine struct {
	*CoreEngine
	dev    *hardware.MockDevice
	gpio   *hardware.MockGPIO
	socket string
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Device.Driver = "mock"
	cfg.Storage.DatabasePath = filepath.Join(dir, "stations.db")
	cfg.Timeouts.Ready = 1000
	cfg.Timeouts.Tune = 1000
	cfg.Timeouts.Seek = 1000
	cfg.Timeouts.Scan = 1000
	cfg.Timeouts.Off = 200
	cfg.Hardware.EnableGPIO = true
	cfg.Hardware.PowerLEDPin = powerPin
	cfg.Hardware.StereoLEDPin = stereoPin
	cfg.Hardware.RDSLEDPin = rdsPin
	cfg.Monitor.Enabled = true
	cfg.Monitor.Interval = 5
	cfg.Monitor.FFTSize = 8
	cfg.ApplyDefaults()
	return cfg
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	// short path, unix socket names are limited to 108 bytes
	dir, err := os.MkdirTemp("", "fmd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg := testConfig(t, dir)
	socket := filepath.Join(dir, "fmd.sock")
	dev := hardware.NewMockDevice(hardware.MockDeviceConfig{})
	gpio := hardware.NewMockGPIO()

	e, err := NewCoreEngineWithDevice(cfg, socket, dev, gpio)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	t.Cleanup(func() { e.Stop() })

	return &testEngine{CoreEngine: e, dev: dev, gpio: gpio, socket: socket}
}

// run parses and handles one command line
func (te *testEngine) run(t *testing.T, line string) *protocol.Response {
	t.Helper()
	cmd, err := protocol.ParseCommand(line)
	require.NoError(t, err)
	return te.HandleCommand(cmd)
}

func (te *testEngine) mustRun(t *testing.T, line string) *protocol.Response {
	t.Helper()
	resp := te.run(t, line)
	require.True(t, resp.Success, "%s failed: %s (%s)", line, resp.Error, resp.Code)
	return resp
}

func (te *testEngine) pin(pin int) bool {
	v, _ := te.gpio.GetPin(pin)
	return v
}

func hasCall(dev *hardware.MockDevice, prefix string) bool {
	for _, call := range dev.Calls() {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

func TestNewCoreEngine(t *testing.T) {
	dir := t.TempDir()

	t.Run("Mock Driver", func(t *testing.T) {
		e, err := NewCoreEngine(testConfig(t, dir), filepath.Join(dir, "a.sock"))
		require.NoError(t, err)
		assert.NotNil(t, e.Radio())
		assert.NotNil(t, e.SignalMonitor())
		assert.Nil(t, e.Store(), "store opens on Start")
		require.NoError(t, e.Stop())
	})

	t.Run("Unknown Driver", func(t *testing.T) {
		cfg := testConfig(t, dir)
		cfg.Device.Driver = "usb"
		_, err := NewCoreEngine(cfg, filepath.Join(dir, "b.sock"))
		assert.Error(t, err)
	})

	t.Run("Invalid Band", func(t *testing.T) {
		cfg := testConfig(t, dir)
		cfg.Device.Band = "mars"
		_, err := NewCoreEngine(cfg, filepath.Join(dir, "c.sock"))
		assert.Error(t, err)
	})

	t.Run("Thresholds File", func(t *testing.T) {
		path := filepath.Join(dir, "thresholds.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sinr: 6\n"), 0644))

		cfg := testConfig(t, dir)
		cfg.Device.ThresholdsFile = path
		opts, err := controllerOptions(cfg)
		require.NoError(t, err)
		require.NotNil(t, opts.Thresholds)

		cfg.Device.ThresholdsFile = filepath.Join(dir, "missing.yaml")
		_, err = controllerOptions(cfg)
		assert.Error(t, err)
	})

	t.Run("Monitor Disabled", func(t *testing.T) {
		cfg := testConfig(t, dir)
		cfg.Monitor.Enabled = false
		e, err := NewCoreEngine(cfg, filepath.Join(dir, "d.sock"))
		require.NoError(t, err)
		defer e.Stop()
		assert.Nil(t, e.SignalMonitor())

		resp := e.HandleCommand(&protocol.Command{Type: protocol.CmdSignal})
		assert.False(t, resp.Success)
		assert.Equal(t, protocol.CodeDisabled, resp.Code)
	})
}

func TestRadioCommands(t *testing.T) {
	te := newTestEngine(t)

	resp := te.run(t, "TUNE:98100")
	assert.Equal(t, protocol.CodeInvalidState, resp.Code, "tune while off")

	resp = te.mustRun(t, "POWERUP")
	assert.Equal(t, "ON", resp.Data["state"])
	assert.Equal(t, int64(98100), resp.Data["frequency_khz"])

	te.mustRun(t, "TUNE:101300")
	resp = te.mustRun(t, "CHANNEL")
	assert.Equal(t, int64(101300), resp.Data["frequency_khz"])

	resp = te.mustRun(t, "SEEK:UP")
	assert.Equal(t, int64(104900), resp.Data["frequency_khz"])
	resp = te.mustRun(t, "SEEK:down")
	assert.Equal(t, int64(101300), resp.Data["frequency_khz"])

	resp = te.mustRun(t, "RSSI")
	assert.Equal(t, int32(-48), resp.Data["rssi"])

	te.mustRun(t, "RDS:ON")
	te.mustRun(t, "AF:OFF")
	resp = te.mustRun(t, "RDSFLAGS")
	assert.NotNil(t, resp.Data["flags"])
	te.mustRun(t, "AFLIST")

	te.mustRun(t, "MUTE:ON")
	te.mustRun(t, "SOFTMUTE:ON")
	resp = te.mustRun(t, "SOFTMUTE")
	assert.Equal(t, true, resp.Data["enabled"])

	resp = te.mustRun(t, "AUDIO:MONO")
	assert.Equal(t, "mono", resp.Data["mode"])
	assert.Equal(t, hardware.AudioMono, te.dev.AudioMode())

	resp = te.mustRun(t, "SPACING:50")
	assert.Equal(t, 50, resp.Data["spacing_khz"])
	resp = te.mustRun(t, "EMPHASIS:75")
	assert.Equal(t, 75, resp.Data["emphasis_us"])
	te.mustRun(t, "ANTENNA:1")
	resp = te.mustRun(t, "POWERMODE:LOW")
	assert.Equal(t, "low", resp.Data["mode"])

	resp = te.mustRun(t, "BAND:japan")
	assert.Equal(t, "japan", resp.Data["band"])

	resp = te.mustRun(t, "STATUS")
	status, ok := resp.Data["status"].(protocol.Status)
	require.True(t, ok)
	assert.Equal(t, "ON", status.Radio.State)
	assert.Equal(t, "japan", status.Radio.Band)
	assert.Equal(t, "mock", status.Driver)
	assert.Equal(t, Version, status.Version)

	resp = te.mustRun(t, "POWERDOWN")
	assert.Equal(t, "OFF", resp.Data["state"])

	resp = te.run(t, "CHANNEL")
	assert.Equal(t, protocol.CodeInvalidState, resp.Code)
}

func TestInvalidArguments(t *testing.T) {
	te := newTestEngine(t)
	te.mustRun(t, "POWERUP:98100")

	for _, line := range []string{
		"TUNE",
		"TUNE:abc",
		"POWERUP:fm",
		"SEEK:SIDEWAYS",
		"RDS:MAYBE",
		"AUDIO:SURROUND",
		"BAND:mars",
		"SPACING:25",
		"EMPHASIS:60",
		"POWERMODE:TURBO",
		"STATIONS:many",
		"FAVORITE:12",
	} {
		t.Run(line, func(t *testing.T) {
			resp := te.run(t, line)
			assert.False(t, resp.Success)
			assert.Equal(t, protocol.CodeInvalidArgument, resp.Code, resp.Error)
		})
	}

	resp := te.run(t, "TUNE:120000")
	assert.False(t, resp.Success, "out of band frequency")

	resp = te.run(t, "FLY")
	assert.Equal(t, protocol.CodeUnknownCommand, resp.Code)
}

func TestScanRecording(t *testing.T) {
	te := newTestEngine(t)
	te.mustRun(t, "POWERUP")

	resp := te.mustRun(t, "SCAN")
	assert.Equal(t, hardware.DefaultMockStations, resp.Data["stations"])
	assert.Equal(t, len(hardware.DefaultMockStations), resp.Data["count"])
	assert.NotNil(t, resp.Data["scan_id"])

	resp = te.mustRun(t, "STATIONS")
	assert.Equal(t, len(hardware.DefaultMockStations), resp.Data["count"])
	resp = te.mustRun(t, "STATIONS:3")
	assert.Equal(t, 3, resp.Data["count"])

	resp = te.mustRun(t, "SCANS")
	assert.Equal(t, 1, resp.Data["count"])

	resp = te.mustRun(t, "FAVORITE:98100:Radio One")
	assert.NotNil(t, resp.Data["station"])
	resp = te.mustRun(t, "STATIONS:FAV")
	assert.Equal(t, 1, resp.Data["count"])

	te.mustRun(t, "FAVORITE:98100:OFF")
	resp = te.mustRun(t, "STATIONS:FAV")
	assert.Equal(t, 0, resp.Data["count"])

	// tuning a known station stores its signal
	te.mustRun(t, "TUNE:94700")
	station, err := te.Store().GetStation(94700)
	require.NoError(t, err)
	require.NotNil(t, station.LastRSSI)
	assert.Equal(t, int32(-48), *station.LastRSSI)
}

func TestStopAbortsScan(t *testing.T) {
	te := newTestEngine(t)
	te.mustRun(t, "POWERUP")
	te.dev.SetSearchLatency(time.Hour)

	done := make(chan *protocol.Response, 1)
	go func() {
		done <- te.run(t, "SCAN")
	}()
	require.Eventually(t, func() bool { return hasCall(te.dev, "start_search") }, waitFor, tick)

	te.mustRun(t, "STOP")
	select {
	case resp := <-done:
		assert.False(t, resp.Success)
		assert.Equal(t, protocol.CodeAborted, resp.Code)
	case <-time.After(waitFor):
		t.Fatal("scan did not return after stop")
	}

	stats, err := te.Store().GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalScans, "aborted scans are not recorded")

	resp := te.run(t, "STOP")
	assert.Equal(t, protocol.CodeInvalidState, resp.Code, "nothing left to stop")
}

func TestIndicators(t *testing.T) {
	te := newTestEngine(t)

	te.mustRun(t, "POWERUP")
	assert.Eventually(t, func() bool { return te.pin(powerPin) }, waitFor, tick)

	te.dev.Inject(hardware.EventStereo, hardware.EventRDSAvailable)
	assert.Eventually(t, func() bool { return te.pin(stereoPin) && te.pin(rdsPin) }, waitFor, tick)

	te.dev.Inject(hardware.EventMono)
	assert.Eventually(t, func() bool { return !te.pin(stereoPin) }, waitFor, tick)

	resp := te.mustRun(t, "STATUS")
	indicators, ok := resp.Data["indicators"].(map[string]bool)
	require.True(t, ok)
	assert.True(t, indicators["power"])
	assert.True(t, indicators["rds"])

	te.mustRun(t, "POWERDOWN")
	assert.Eventually(t, func() bool {
		return !te.pin(powerPin) && !te.pin(stereoPin) && !te.pin(rdsPin)
	}, waitFor, tick)
}

func TestSignalMonitor(t *testing.T) {
	te := newTestEngine(t)
	mon := te.SignalMonitor()
	require.NotNil(t, mon)
	assert.False(t, mon.IsRunning())

	te.mustRun(t, "POWERUP")
	require.Eventually(t, func() bool {
		return mon.IsRunning() && mon.GetCurrentLevels().Samples >= 8
	}, waitFor, tick)

	resp := te.mustRun(t, "SIGNAL")
	assert.NotNil(t, resp.Data["signal"])
	assert.NotNil(t, resp.Data["statistics"])

	levels := mon.GetCurrentLevels()
	assert.Equal(t, int32(-48), levels.Current)

	te.mustRun(t, "POWERDOWN")
	assert.Eventually(t, func() bool { return !mon.IsRunning() }, waitFor, tick)
}

func TestEventStream(t *testing.T) {
	te := newTestEngine(t)
	events, cancel := te.Subscribe(64)
	defer cancel()

	te.mustRun(t, "POWERUP")

	seen := map[string]bool{}
	timeout := time.After(waitFor)
	for !seen["ready"] || !seen["tune"] {
		select {
		case ev := <-events:
			if ev.Type == "radio" {
				seen[ev.Name] = true
			}
			if ev.Name == "tune" {
				assert.Equal(t, int64(98100), ev.Frequency)
				assert.Equal(t, "ON", ev.State)
			}
		case <-timeout:
			t.Fatalf("missing events, saw %v", seen)
		}
	}
}

func TestSocketServer(t *testing.T) {
	te := newTestEngine(t)
	c := client.NewSocketClient(te.socket)
	c.SetTimeout(5 * time.Second)

	require.NoError(t, c.Ping())
	assert.True(t, c.IsConnected())

	require.NoError(t, c.PowerUp(0))
	khz, err := c.Channel()
	require.NoError(t, err)
	assert.Equal(t, int64(98100), khz)

	require.NoError(t, c.Tune(91500))
	khz, err = c.Seek("up")
	require.NoError(t, err)
	assert.Equal(t, int64(94700), khz)

	stations, err := c.Scan()
	require.NoError(t, err)
	assert.Equal(t, hardware.DefaultMockStations, stations)

	require.NoError(t, c.SetFavorite(101300, "City FM", true))
	favorites, err := c.GetStations(0, true)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "City FM", favorites[0].Name)

	status, err := c.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "ON", status.Radio.State)

	err = c.Stop()
	var cmdErr *client.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, protocol.CodeInvalidState, cmdErr.Code)

	resp, err := c.SendCommand("BOGUS")
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeUnknownCommand, resp.Code)

	require.NoError(t, c.PowerDown())
}

func TestConcurrentClients(t *testing.T) {
	te := newTestEngine(t)
	te.mustRun(t, "POWERUP")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := client.NewSocketClient(te.socket)
			if _, err := c.GetStatus(); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("status failed: %v", err)
	}
}

func TestStopPowersDown(t *testing.T) {
	te := newTestEngine(t)
	te.mustRun(t, "POWERUP")

	require.NoError(t, te.Stop())
	assert.Equal(t, "OFF", te.Radio().State().String())
	assert.False(t, te.dev.IsOpen())
	assert.False(t, te.pin(powerPin))

	_, err := os.Stat(te.socket)
	assert.True(t, os.IsNotExist(err), "socket file removed")

	// second stop from cleanup is harmless
	require.NoError(t, te.Stop())
}
