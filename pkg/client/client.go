package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dougsko/fmd/pkg/fm"
	"github.com/dougsko/fmd/pkg/monitor"
	"github.com/dougsko/fmd/pkg/protocol"
	"github.com/dougsko/fmd/pkg/storage"
)

// DefaultTimeout covers a full band scan plus margin
const DefaultTimeout = 5 * time.Minute

// CommandError is a failed response from the engine
type CommandError struct {
	Command string
	Code    string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", strings.ToLower(e.Command), e.Message)
}

// SocketClient talks to the engine over its Unix socket
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    DefaultTimeout,
	}
}

// SetTimeout changes the per-command deadline
func (c *SocketClient) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &response, nil
}

// call sends cmd and fails on an unsuccessful response
func (c *SocketClient) call(cmd string) (*protocol.Response, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		name := strings.SplitN(cmd, ":", 2)[0]
		return resp, &CommandError{Command: name, Code: resp.Code, Message: resp.Error}
	}
	return resp, nil
}

// decode re-marshals one response field into out
func decode(resp *protocol.Response, key string, out interface{}) error {
	raw, ok := resp.Data[key]
	if !ok {
		return fmt.Errorf("%s not found in response", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// GetStatus gets the current daemon status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	resp, err := c.call(protocol.CmdStatus)
	if err != nil {
		return nil, err
	}
	var status protocol.Status
	if err := decode(resp, "status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// PowerUp turns the receiver on. khz 0 uses the configured default.
func (c *SocketClient) PowerUp(khz int64) error {
	cmd := protocol.CmdPowerUp
	if khz > 0 {
		cmd = fmt.Sprintf("%s:%d", protocol.CmdPowerUp, khz)
	}
	_, err := c.call(cmd)
	return err
}

// PowerDown turns the receiver off
func (c *SocketClient) PowerDown() error {
	_, err := c.call(protocol.CmdPowerDown)
	return err
}

// Tune sets the frequency in kHz
func (c *SocketClient) Tune(khz int64) error {
	_, err := c.call(fmt.Sprintf("%s:%d", protocol.CmdTune, khz))
	return err
}

// Channel returns the tuned frequency in kHz
func (c *SocketClient) Channel() (int64, error) {
	resp, err := c.call(protocol.CmdChannel)
	if err != nil {
		return 0, err
	}
	var khz int64
	err = decode(resp, "frequency_khz", &khz)
	return khz, err
}

// Seek finds the next station in direction "up" or "down"
func (c *SocketClient) Seek(direction string) (int64, error) {
	resp, err := c.call(fmt.Sprintf("%s:%s", protocol.CmdSeek, strings.ToUpper(direction)))
	if err != nil {
		return 0, err
	}
	var khz int64
	err = decode(resp, "frequency_khz", &khz)
	return khz, err
}

// Scan lists the strong stations in the band
func (c *SocketClient) Scan() ([]int64, error) {
	resp, err := c.call(protocol.CmdScan)
	if err != nil {
		return nil, err
	}
	var stations []int64
	err = decode(resp, "stations", &stations)
	return stations, err
}

// Stop aborts a running seek or scan
func (c *SocketClient) Stop() error {
	_, err := c.call(protocol.CmdStop)
	return err
}

// SetRDS enables or disables RDS
func (c *SocketClient) SetRDS(on bool) error {
	_, err := c.call(protocol.CmdRDS + ":" + onOff(on))
	return err
}

// SetAF enables or disables alternate frequency jumps
func (c *SocketClient) SetAF(on bool) error {
	_, err := c.call(protocol.CmdAF + ":" + onOff(on))
	return err
}

// SetMute mutes or unmutes audio
func (c *SocketClient) SetMute(on bool) error {
	_, err := c.call(protocol.CmdMute + ":" + onOff(on))
	return err
}

// RDSFlags reads and clears the pending RDS flags
func (c *SocketClient) RDSFlags() (fm.RDSFlags, error) {
	var flags fm.RDSFlags
	resp, err := c.call(protocol.CmdRDSFlags)
	if err != nil {
		return flags, err
	}
	err = decode(resp, "flags", &flags)
	return flags, err
}

// GetStations lists stored stations
func (c *SocketClient) GetStations(limit int, favoritesOnly bool) ([]storage.Station, error) {
	cmd := protocol.CmdStations
	if favoritesOnly {
		cmd += ":FAV"
	}
	if limit > 0 {
		cmd = fmt.Sprintf("%s:%d", cmd, limit)
	}

	resp, err := c.call(cmd)
	if err != nil {
		return nil, err
	}
	stations := []storage.Station{}
	if _, ok := resp.Data["stations"]; !ok {
		return stations, nil
	}
	err = decode(resp, "stations", &stations)
	return stations, err
}

// SetFavorite bookmarks a station, or clears the bookmark
func (c *SocketClient) SetFavorite(khz int64, name string, favorite bool) error {
	cmd := fmt.Sprintf("%s:%d", protocol.CmdFavorite, khz)
	if !favorite {
		cmd += ":OFF"
	} else if name != "" {
		cmd += ":" + name
	}
	_, err := c.call(cmd)
	return err
}

// Signal returns the signal monitor snapshot
func (c *SocketClient) Signal() (*monitor.Snapshot, error) {
	resp, err := c.call(protocol.CmdSignal)
	if err != nil {
		return nil, err
	}
	var snap monitor.Snapshot
	if err := decode(resp, "signal", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	_, err := c.call(protocol.CmdPing)
	return err
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
