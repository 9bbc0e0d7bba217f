package engine

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/fmd/pkg/config"
	"github.com/dougsko/fmd/pkg/fm"
	"github.com/dougsko/fmd/pkg/hardware"
	"github.com/dougsko/fmd/pkg/logging"
	"github.com/dougsko/fmd/pkg/monitor"
	"github.com/dougsko/fmd/pkg/protocol"
	"github.com/dougsko/fmd/pkg/storage"
)

// Version of the daemon reported by STATUS
const Version = "0.1.0-dev"

// CoreEngine owns the radio controller and serves it over a Unix socket
type CoreEngine struct {
	config     *config.Config
	socketPath string
	listener   net.Listener
	running    bool
	mutex      sync.RWMutex
	startTime  time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	device          hardware.DeviceChannel
	radio           *fm.Controller
	hardwareManager *hardware.HardwareManager
	store           *storage.StationStore
	signalMonitor   *monitor.SignalMonitor
	monitorCancel   context.CancelFunc

	// serializes indicator and monitor updates against the live radio state
	syncMutex sync.Mutex

	events        *EventBus
	notifications chan fm.Notification
}

// NewCoreEngine creates a new core engine with the device named in cfg
func NewCoreEngine(cfg *config.Config, socketPath string) (*CoreEngine, error) {
	device, err := hardware.NewDevice(hardware.DeviceConfig{
		Driver:       cfg.Device.Driver,
		Path:         cfg.Device.Path,
		PollInterval: cfg.Device.PollInterval,
	})
	if err != nil {
		return nil, err
	}
	return NewCoreEngineWithDevice(cfg, socketPath, device, nil)
}

// NewCoreEngineWithDevice creates a core engine around an existing device.
// A nil gpio selects the sysfs driver when GPIO is enabled.
func NewCoreEngineWithDevice(cfg *config.Config, socketPath string, device hardware.DeviceChannel, gpio hardware.GPIOInterface) (*CoreEngine, error) {
	opts, err := controllerOptions(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &CoreEngine{
		config:        cfg,
		socketPath:    socketPath,
		startTime:     time.Now(),
		ctx:           ctx,
		cancel:        cancel,
		device:        device,
		events:        NewEventBus(),
		notifications: make(chan fm.Notification, 64),
		hardwareManager: hardware.NewHardwareManager(hardware.HardwareConfig{
			EnableGPIO:   cfg.Hardware.EnableGPIO,
			GPIORoot:     cfg.Hardware.GPIORoot,
			PowerLEDPin:  cfg.Hardware.PowerLEDPin,
			StereoLEDPin: cfg.Hardware.StereoLEDPin,
			RDSLEDPin:    cfg.Hardware.RDSLEDPin,
		}, gpio),
	}

	opts.Observer = e.observe
	e.radio = fm.NewController(device, opts)

	if cfg.Monitor.Enabled {
		e.signalMonitor = monitor.NewSignalMonitor(config.Duration(cfg.Monitor.Interval), cfg.Monitor.FFTSize)
		e.signalMonitor.OnUpdate(func(s monitor.Snapshot) {
			e.events.Publish(protocol.Event{
				Type:      "signal",
				Name:      "rssi",
				Frequency: e.radio.Status().Frequency,
				Time:      time.UnixMilli(s.LevelData.Timestamp),
				Data:      s.LevelData,
			})
		})
	}

	return e, nil
}

// controllerOptions translates the device and timeout sections
func controllerOptions(cfg *config.Config) (fm.Options, error) {
	opts := fm.DefaultOptions()

	band, err := fm.ParseBand(cfg.Device.Band)
	if err != nil {
		return opts, err
	}
	spacing, err := fm.ParseSpacing(cfg.Device.Spacing)
	if err != nil {
		return opts, err
	}
	emphasis, err := fm.ParseEmphasis(cfg.Device.Emphasis)
	if err != nil {
		return opts, err
	}

	opts.Band = band
	opts.Spacing = spacing
	opts.Emphasis = emphasis
	opts.InternalAntenna = cfg.Device.InternalAntenna
	opts.Timeouts = fm.Timeouts{
		Ready: config.Duration(cfg.Timeouts.Ready),
		Tune:  config.Duration(cfg.Timeouts.Tune),
		Seek:  config.Duration(cfg.Timeouts.Seek),
		Scan:  config.Duration(cfg.Timeouts.Scan),
		Off:   config.Duration(cfg.Timeouts.Off),
	}

	if cfg.Device.ThresholdsFile != "" {
		profile, err := hardware.LoadThresholdProfile(cfg.Device.ThresholdsFile)
		if err != nil {
			return opts, err
		}
		opts.Thresholds = profile
	}

	return opts, nil
}

// Start opens the station store, the indicators and the Unix socket server
func (e *CoreEngine) Start() error {
	store, err := storage.NewStationStore(e.config.Storage.DatabasePath, e.config.Storage.MaxScans)
	if err != nil {
		return fmt.Errorf("failed to open station store: %w", err)
	}
	e.store = store

	if err := e.hardwareManager.Initialize(); err != nil {
		logging.Warnf("engine", "Indicators unavailable: %v", err)
	}

	// Remove existing socket file
	os.Remove(e.socketPath)

	listener, err := net.Listen("unix", e.socketPath)
	if err != nil {
		e.store.Close()
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}
	e.listener = listener

	// Readable/writable by owner and group
	if err := os.Chmod(e.socketPath, 0660); err != nil {
		logging.Warnf("engine", "Failed to set socket permissions: %v", err)
	}

	e.mutex.Lock()
	e.running = true
	e.mutex.Unlock()

	logging.Infof("engine", "Core engine listening on %s", e.socketPath)

	e.wg.Add(2)
	go e.notificationProcessor()
	go e.acceptConnections()

	return nil
}

// Stop powers the radio down and releases every resource
func (e *CoreEngine) Stop() error {
	e.mutex.Lock()
	wasRunning := e.running
	e.running = false
	e.mutex.Unlock()

	if e.listener != nil {
		e.listener.Close()
	}
	e.cancel()

	if err := e.radio.Close(); err != nil {
		logging.Warnf("engine", "Radio shutdown error: %v", err)
	}
	e.stopMonitor()

	if wasRunning {
		e.wg.Wait()
	}

	if err := e.hardwareManager.Close(); err != nil {
		logging.Warnf("engine", "Indicator shutdown error: %v", err)
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logging.Warnf("engine", "Station store close error: %v", err)
		}
		e.store = nil
	}
	e.events.Close()

	os.Remove(e.socketPath)
	return nil
}

// Radio returns the controller owned by the engine
func (e *CoreEngine) Radio() *fm.Controller {
	return e.radio
}

// Store returns the station store, nil before Start
func (e *CoreEngine) Store() *storage.StationStore {
	return e.store
}

// SignalMonitor returns the RSSI monitor, nil when disabled
func (e *CoreEngine) SignalMonitor() *monitor.SignalMonitor {
	return e.signalMonitor
}

// Subscribe registers for radio and signal events
func (e *CoreEngine) Subscribe(buffer int) (<-chan protocol.Event, func()) {
	return e.events.Subscribe(buffer)
}

// isRunning checks if the engine is running
func (e *CoreEngine) isRunning() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.running
}

// observe runs on the controller's event reader and must not block
func (e *CoreEngine) observe(n fm.Notification) {
	e.events.Publish(notificationEvent(n))

	select {
	case e.notifications <- n:
	default:
		logging.Debugf("engine", "Notification queue full, dropping %s", n.Name)
	}
}

// notificationProcessor applies controller notifications to the indicators
// and the signal monitor
func (e *CoreEngine) notificationProcessor() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case n := <-e.notifications:
			e.applyNotification(n)
		}
	}
}

// applyNotification uses the live controller state, the notification may be stale
func (e *CoreEngine) applyNotification(n fm.Notification) {
	e.syncMutex.Lock()
	defer e.syncMutex.Unlock()

	state := e.radio.State()
	if state.Powered() {
		switch n.Event {
		case hardware.EventStereo:
			e.setIndicator(hardware.IndicatorStereo, true)
		case hardware.EventMono:
			e.setIndicator(hardware.IndicatorStereo, false)
		case hardware.EventRDSAvailable:
			e.setIndicator(hardware.IndicatorRDS, true)
		case hardware.EventRDSUnavailable:
			e.setIndicator(hardware.IndicatorRDS, false)
		case hardware.EventTune:
			if e.signalMonitor != nil {
				e.signalMonitor.Reset()
			}
		}
	}
	e.syncPowerLocked(state)
}

// syncPower drives the power LED and the signal monitor from the radio state
func (e *CoreEngine) syncPower() {
	e.syncMutex.Lock()
	defer e.syncMutex.Unlock()
	e.syncPowerLocked(e.radio.State())
}

func (e *CoreEngine) syncPowerLocked(state fm.State) {
	powered := state.Powered()
	e.setIndicator(hardware.IndicatorPower, powered)

	if !powered {
		e.setIndicator(hardware.IndicatorStereo, false)
		e.setIndicator(hardware.IndicatorRDS, false)
		e.stopMonitor()
		return
	}
	e.startMonitor()
}

func (e *CoreEngine) setIndicator(ind hardware.Indicator, on bool) {
	if err := e.hardwareManager.SetIndicator(ind, on); err != nil {
		logging.Warnf("engine", "Failed to set %s LED: %v", ind, err)
	}
}

func (e *CoreEngine) startMonitor() {
	if e.signalMonitor == nil {
		return
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.monitorCancel != nil || !e.running {
		return
	}

	ctx, cancel := context.WithCancel(e.ctx)
	e.monitorCancel = cancel
	e.signalMonitor.Reset()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.signalMonitor.Run(ctx, e.radio)
	}()
}

func (e *CoreEngine) stopMonitor() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.monitorCancel != nil {
		e.monitorCancel()
		e.monitorCancel = nil
	}
}

// acceptConnections accepts and handles socket connections
func (e *CoreEngine) acceptConnections() {
	defer e.wg.Done()

	for e.isRunning() {
		conn, err := e.listener.Accept()
		if err != nil {
			if e.isRunning() {
				logging.Warnf("engine", "Socket accept error: %v", err)
				time.Sleep(50 * time.Millisecond)
			}
			continue
		}

		go e.handleConnection(conn)
	}
}

// handleConnection handles a single socket connection
func (e *CoreEngine) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewCodedErrorResponse(protocol.CodeInvalidArgument, fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		response := e.HandleCommand(cmd)
		if _, err := conn.Write([]byte(response.String() + "\n")); err != nil {
			logging.Debugf("engine", "Client went away: %v", err)
			return
		}

		// Close connection after QUIT command
		if cmd.Type == protocol.CmdQuit {
			return
		}
	}
}

// HandleCommand processes a single command
func (e *CoreEngine) HandleCommand(cmd *protocol.Command) *protocol.Response {
	logging.Debugf("engine", "Command %s %v", cmd.Type, cmd.Args)

	switch cmd.Type {
	case protocol.CmdStatus:
		return e.handleStatus()
	case protocol.CmdPowerUp:
		return e.handlePowerUp(cmd)
	case protocol.CmdPowerDown:
		return e.handlePowerDown()
	case protocol.CmdTune:
		return e.handleTune(cmd)
	case protocol.CmdChannel:
		return e.handleChannel()
	case protocol.CmdSeek:
		return e.handleSeek(cmd)
	case protocol.CmdScan:
		return e.handleScan()
	case protocol.CmdStop:
		return result(e.radio.StopScanSeek(), nil)
	case protocol.CmdRDS:
		return e.handleSwitch(cmd, e.radio.EnableRDS, e.radio.DisableRDS)
	case protocol.CmdAF:
		return e.handleSwitch(cmd, e.radio.EnableAF, e.radio.DisableAF)
	case protocol.CmdRDSFlags:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"flags": e.radio.ReadRDSFlags(),
		})
	case protocol.CmdAFFreq:
		return e.handleAFFrequency()
	case protocol.CmdAFList:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"af_list": e.radio.AFList(),
		})
	case protocol.CmdMute:
		return e.handleSwitch(cmd,
			func() error { return e.radio.SetMute(true) },
			func() error { return e.radio.SetMute(false) })
	case protocol.CmdSoftMute:
		return e.handleSoftMute(cmd)
	case protocol.CmdAudio:
		return e.handleAudio(cmd)
	case protocol.CmdBand:
		return e.handleBand(cmd)
	case protocol.CmdSpacing:
		return e.handleSpacing(cmd)
	case protocol.CmdEmphasis:
		return e.handleEmphasis(cmd)
	case protocol.CmdAntenna:
		return e.handleAntenna(cmd)
	case protocol.CmdPowerMode:
		return e.handlePowerMode(cmd)
	case protocol.CmdRSSI:
		return e.handleRSSI()
	case protocol.CmdStations:
		return e.handleStations(cmd)
	case protocol.CmdFavorite:
		return e.handleFavorite(cmd)
	case protocol.CmdScans:
		return e.handleScans(cmd)
	case protocol.CmdSignal:
		return e.handleSignal()
	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})
	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})
	default:
		return protocol.NewCodedErrorResponse(protocol.CodeUnknownCommand,
			fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

// result builds the response for an operation that returns only an error
func result(err error, data map[string]interface{}) *protocol.Response {
	if err != nil {
		return protocol.ErrorResponse(err)
	}
	return protocol.NewSuccessResponse(data)
}

func badArgument(err error) *protocol.Response {
	return protocol.NewCodedErrorResponse(protocol.CodeInvalidArgument, err.Error())
}

// handleStatus returns current daemon status
func (e *CoreEngine) handleStatus() *protocol.Response {
	status := protocol.Status{
		Radio:     e.radio.Status(),
		Driver:    e.config.Device.Driver,
		Device:    e.config.Device.Path,
		Uptime:    time.Since(e.startTime).Round(time.Second).String(),
		StartTime: e.startTime,
		Version:   Version,
	}

	data := map[string]interface{}{
		"status": status,
	}

	if e.hardwareManager.IsInitialized() {
		data["indicators"] = map[string]bool{
			hardware.IndicatorPower.String():  e.hardwareManager.GetIndicator(hardware.IndicatorPower),
			hardware.IndicatorStereo.String(): e.hardwareManager.GetIndicator(hardware.IndicatorStereo),
			hardware.IndicatorRDS.String():    e.hardwareManager.GetIndicator(hardware.IndicatorRDS),
		}
	}

	return protocol.NewSuccessResponse(data)
}

func (e *CoreEngine) handlePowerUp(cmd *protocol.Command) *protocol.Response {
	khz := e.config.Device.Frequency
	if cmd.Has("frequency") {
		var err error
		if khz, err = cmd.Int("frequency"); err != nil {
			return badArgument(err)
		}
	}

	err := e.radio.PowerUp(e.ctx, khz)
	e.syncPower()
	if err != nil {
		return protocol.ErrorResponse(err)
	}

	logging.Infof("engine", "Radio on at %.1f MHz", float64(khz)/1000)
	return protocol.NewSuccessResponse(map[string]interface{}{
		"state":         e.radio.State().String(),
		"frequency_khz": khz,
	})
}

func (e *CoreEngine) handlePowerDown() *protocol.Response {
	err := e.radio.PowerDown()
	e.syncPower()
	if err != nil {
		return protocol.ErrorResponse(err)
	}

	logging.Info("engine", "Radio off")
	return protocol.NewSuccessResponse(map[string]interface{}{
		"state": e.radio.State().String(),
	})
}

func (e *CoreEngine) handleTune(cmd *protocol.Command) *protocol.Response {
	khz, err := cmd.Int("frequency")
	if err != nil {
		return badArgument(err)
	}

	if err := e.radio.Tune(e.ctx, khz); err != nil {
		return protocol.ErrorResponse(err)
	}
	e.recordSignal(khz)

	return protocol.NewSuccessResponse(map[string]interface{}{
		"frequency_khz": khz,
	})
}

// recordSignal stores the RSSI of a freshly tuned channel on a known station
func (e *CoreEngine) recordSignal(khz int64) {
	if e.store == nil {
		return
	}
	rssi, err := e.radio.CurrentRSSI()
	if err != nil {
		return
	}
	if err := e.store.UpdateSignal(khz, rssi); err != nil {
		logging.Warnf("engine", "Failed to store signal for %d kHz: %v", khz, err)
	}
}

func (e *CoreEngine) handleChannel() *protocol.Response {
	khz, err := e.radio.Channel()
	if err != nil {
		return protocol.ErrorResponse(err)
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"frequency_khz": khz,
	})
}

func (e *CoreEngine) handleSeek(cmd *protocol.Command) *protocol.Response {
	var dir hardware.SearchDirection
	switch strings.ToUpper(cmd.Args["direction"]) {
	case "UP", "":
		dir = hardware.SearchUp
	case "DOWN":
		dir = hardware.SearchDown
	default:
		return badArgument(fmt.Errorf("invalid direction %q, expected UP or DOWN", cmd.Args["direction"]))
	}

	khz, err := e.radio.Seek(e.ctx, dir)
	if err != nil {
		return protocol.ErrorResponse(err)
	}
	e.recordSignal(khz)

	return protocol.NewSuccessResponse(map[string]interface{}{
		"frequency_khz": khz,
	})
}

func (e *CoreEngine) handleScan() *protocol.Response {
	started := time.Now()
	stations, err := e.radio.Scan(e.ctx)
	if err != nil {
		return protocol.ErrorResponse(err)
	}

	data := map[string]interface{}{
		"stations": stations,
		"count":    len(stations),
	}

	if e.store != nil {
		id, err := e.store.RecordScan(storage.ScanRecord{
			Time:        started,
			Band:        e.radio.Status().Band,
			Duration:    time.Since(started),
			Frequencies: stations,
		})
		if err != nil {
			logging.Errorf("engine", "Failed to record scan: %v", err)
		} else {
			data["scan_id"] = id
		}
	}

	logging.Infof("engine", "Scan found %d station(s)", len(stations))
	return protocol.NewSuccessResponse(data)
}

// handleSwitch runs on or off depending on the "enabled" argument
func (e *CoreEngine) handleSwitch(cmd *protocol.Command, on, off func() error) *protocol.Response {
	enabled, err := cmd.Switch("enabled")
	if err != nil {
		return badArgument(err)
	}

	if enabled {
		err = on()
	} else {
		err = off()
	}
	return result(err, map[string]interface{}{"enabled": enabled})
}

func (e *CoreEngine) handleAFFrequency() *protocol.Response {
	khz, err := e.radio.AFFrequency()
	if err != nil {
		return protocol.ErrorResponse(err)
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"frequency_khz": khz,
	})
}

func (e *CoreEngine) handleSoftMute(cmd *protocol.Command) *protocol.Response {
	if !cmd.Has("enabled") {
		on, err := e.radio.SoftMute()
		return result(err, map[string]interface{}{"enabled": on})
	}
	return e.handleSwitch(cmd,
		func() error { return e.radio.SetSoftMute(true) },
		func() error { return e.radio.SetSoftMute(false) })
}

func (e *CoreEngine) handleAudio(cmd *protocol.Command) *protocol.Response {
	mode := strings.ToUpper(cmd.Args["mode"])
	switch mode {
	case "STEREO":
		return result(e.radio.SetStereo(), map[string]interface{}{"mode": "stereo"})
	case "MONO":
		return result(e.radio.SetMono(), map[string]interface{}{"mode": "mono"})
	default:
		return badArgument(fmt.Errorf("invalid audio mode %q, expected STEREO or MONO", cmd.Args["mode"]))
	}
}

func (e *CoreEngine) handleBand(cmd *protocol.Command) *protocol.Response {
	band, err := fm.ParseBand(cmd.Args["band"])
	if err != nil || !cmd.Has("band") {
		return badArgument(fmt.Errorf("invalid band %q", cmd.Args["band"]))
	}
	return result(e.radio.SetBand(band), map[string]interface{}{"band": band.String()})
}

func (e *CoreEngine) handleSpacing(cmd *protocol.Command) *protocol.Response {
	khz, err := cmd.Int("spacing")
	if err != nil {
		return badArgument(err)
	}
	spacing, err := fm.ParseSpacing(int(khz))
	if err != nil {
		return badArgument(err)
	}
	return result(e.radio.SetChannelSpacing(spacing), map[string]interface{}{"spacing_khz": spacing.KHz()})
}

func (e *CoreEngine) handleEmphasis(cmd *protocol.Command) *protocol.Response {
	us, err := cmd.Int("emphasis")
	if err != nil {
		return badArgument(err)
	}
	emphasis, err := fm.ParseEmphasis(int(us))
	if err != nil {
		return badArgument(err)
	}
	return result(e.radio.SetEmphasis(emphasis), map[string]interface{}{"emphasis_us": emphasis.Microseconds()})
}

func (e *CoreEngine) handleAntenna(cmd *protocol.Command) *protocol.Response {
	antenna, err := cmd.Int("antenna")
	if err != nil {
		return badArgument(err)
	}
	return result(e.radio.SwitchAntenna(int(antenna)), map[string]interface{}{"antenna": antenna})
}

func (e *CoreEngine) handlePowerMode(cmd *protocol.Command) *protocol.Response {
	var mode fm.PowerMode
	switch strings.ToUpper(cmd.Args["mode"]) {
	case "NORMAL":
		mode = fm.PowerNormal
	case "LOW":
		mode = fm.PowerLow
	default:
		return badArgument(fmt.Errorf("invalid power mode %q, expected NORMAL or LOW", cmd.Args["mode"]))
	}
	return result(e.radio.SetPowerMode(mode), map[string]interface{}{"mode": mode.String()})
}

func (e *CoreEngine) handleRSSI() *protocol.Response {
	rssi, err := e.radio.CurrentRSSI()
	if err != nil {
		return protocol.ErrorResponse(err)
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"rssi": rssi,
	})
}

func (e *CoreEngine) handleStations(cmd *protocol.Command) *protocol.Response {
	if e.store == nil {
		return protocol.NewErrorResponse("station store not available")
	}

	query := storage.StationQuery{
		FavoritesOnly: cmd.Args["favorites"] == "true",
	}
	if cmd.Has("limit") {
		limit, err := cmd.Int("limit")
		if err != nil {
			return badArgument(err)
		}
		query.Limit = int(limit)
	}

	stations, err := e.store.GetStations(query)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"stations": stations,
		"count":    len(stations),
	})
}

func (e *CoreEngine) handleFavorite(cmd *protocol.Command) *protocol.Response {
	if e.store == nil {
		return protocol.NewErrorResponse("station store not available")
	}

	khz, err := cmd.Int("frequency")
	if err != nil {
		return badArgument(err)
	}
	low, high := e.bandLimits()
	if khz < low || khz > high {
		return badArgument(fmt.Errorf("frequency %d kHz outside band %d-%d", khz, low, high))
	}

	favorite := cmd.Args["enabled"] != "OFF"
	if err := e.store.SetFavorite(khz, cmd.Args["name"], favorite); err != nil {
		return protocol.NewErrorResponse(err.Error())
	}

	station, err := e.store.GetStation(khz)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"station": station,
	})
}

// bandLimits returns the widest range any band allows
func (e *CoreEngine) bandLimits() (int64, int64) {
	low, _ := fm.BandJapanWide.Limits()
	_, high := fm.BandEurope.Limits()
	return low, high
}

func (e *CoreEngine) handleScans(cmd *protocol.Command) *protocol.Response {
	if e.store == nil {
		return protocol.NewErrorResponse("station store not available")
	}

	limit := int64(10)
	if cmd.Has("limit") {
		var err error
		if limit, err = cmd.Int("limit"); err != nil {
			return badArgument(err)
		}
	}

	scans, err := e.store.GetScans(int(limit))
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"scans": scans,
		"count": len(scans),
	})
}

func (e *CoreEngine) handleSignal() *protocol.Response {
	if e.signalMonitor == nil {
		return protocol.NewCodedErrorResponse(protocol.CodeDisabled, "signal monitor not enabled")
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"signal":     e.signalMonitor.Snapshot(),
		"statistics": e.signalMonitor.GetStatistics(),
	})
}
