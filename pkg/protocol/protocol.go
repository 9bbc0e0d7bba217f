package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dougsko/fmd/pkg/fm"
)

// Command represents a command sent to the engine
type Command struct {
	Type string            `json:"type"`
	Args map[string]string `json:"args,omitempty"`
}

// Response represents a response from the engine
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Code    string                 `json:"code,omitempty"`
}

// Status represents the current daemon status
type Status struct {
	Radio     fm.Status `json:"radio"`
	Driver    string    `json:"driver"`
	Device    string    `json:"device"`
	Uptime    string    `json:"uptime"`
	StartTime time.Time `json:"start_time"`
	Version   string    `json:"version"`
}

// Event is a controller notification as published to subscribers
type Event struct {
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Frequency int64     `json:"frequency_khz"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

// Error codes carried in Response.Code
const (
	CodeInvalidState    = "invalid_state"
	CodeInvalidArgument = "invalid_argument"
	CodeDevice          = "device"
	CodeTimeout         = "timeout"
	CodeAborted         = "aborted"
	CodeDisabled        = "disabled"
	CodeUnknownCommand  = "unknown_command"
	CodeInternal        = "internal"
)

// Protocol commands
const (
	CmdStatus    = "STATUS"
	CmdPowerUp   = "POWERUP"
	CmdPowerDown = "POWERDOWN"
	CmdTune      = "TUNE"
	CmdChannel   = "CHANNEL"
	CmdSeek      = "SEEK"
	CmdScan      = "SCAN"
	CmdStop      = "STOP"
	CmdRDS       = "RDS"
	CmdAF        = "AF"
	CmdRDSFlags  = "RDSFLAGS"
	CmdAFFreq    = "AFFREQ"
	CmdAFList    = "AFLIST"
	CmdMute      = "MUTE"
	CmdSoftMute  = "SOFTMUTE"
	CmdAudio     = "AUDIO"
	CmdBand      = "BAND"
	CmdSpacing   = "SPACING"
	CmdEmphasis  = "EMPHASIS"
	CmdAntenna   = "ANTENNA"
	CmdPowerMode = "POWERMODE"
	CmdRSSI      = "RSSI"
	CmdStations  = "STATIONS"
	CmdFavorite  = "FAVORITE"
	CmdScans     = "SCANS"
	CmdSignal    = "SIGNAL"
	CmdPing      = "PING"
	CmdQuit      = "QUIT"
)

// argument name per command for the single-argument forms
var singleArg = map[string]string{
	CmdPowerUp:   "frequency",
	CmdTune:      "frequency",
	CmdSeek:      "direction",
	CmdRDS:       "enabled",
	CmdAF:        "enabled",
	CmdMute:      "enabled",
	CmdSoftMute:  "enabled",
	CmdAudio:     "mode",
	CmdBand:      "band",
	CmdSpacing:   "spacing",
	CmdEmphasis:  "emphasis",
	CmdAntenna:   "antenna",
	CmdPowerMode: "mode",
	CmdScans:     "limit",
}

// ParseCommand parses a text command into a Command struct
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty command")
	}
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(strings.TrimSpace(parts[0])),
		Args: make(map[string]string),
	}
	if len(parts) < 2 {
		return cmd, nil
	}
	args := strings.TrimSpace(parts[1])

	switch cmd.Type {
	case CmdStations:
		// STATIONS:20 or STATIONS:FAV or STATIONS:FAV:20
		for _, p := range strings.Split(args, ":") {
			if strings.EqualFold(p, "FAV") {
				cmd.Args["favorites"] = "true"
			} else if p != "" {
				cmd.Args["limit"] = p
			}
		}

	case CmdFavorite:
		// FAVORITE:98100:Station name or FAVORITE:98100:OFF
		favParts := strings.SplitN(args, ":", 2)
		cmd.Args["frequency"] = favParts[0]
		if len(favParts) > 1 {
			if strings.EqualFold(favParts[1], "OFF") {
				cmd.Args["enabled"] = "OFF"
			} else {
				cmd.Args["name"] = favParts[1]
			}
		}

	default:
		if name, ok := singleArg[cmd.Type]; ok {
			cmd.Args[name] = args
		} else {
			cmd.Args["value"] = args
		}
	}

	return cmd, nil
}

// Has reports whether the argument was given
func (c *Command) Has(key string) bool {
	_, ok := c.Args[key]
	return ok
}

// Int parses an integer argument
func (c *Command) Int(key string) (int64, error) {
	v, ok := c.Args[key]
	if !ok || v == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

// Switch parses an ON/OFF argument
func (c *Command) Switch(key string) (bool, error) {
	switch strings.ToUpper(c.Args[key]) {
	case "ON", "TRUE", "1":
		return true, nil
	case "OFF", "FALSE", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s %q, expected ON or OFF", key, c.Args[key])
	}
}

// String converts a Response to a JSON line
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
		Code:    CodeInternal,
	}
}

// NewCodedErrorResponse creates an error response with an explicit code
func NewCodedErrorResponse(code, err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// ErrorResponse maps a controller error to a response
func ErrorResponse(err error) *Response {
	return NewCodedErrorResponse(ErrorCode(err), err.Error())
}

// ErrorCode classifies a controller error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, fm.ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, fm.ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, fm.ErrAborted):
		return CodeAborted
	case errors.Is(err, fm.ErrDisabled):
		return CodeDisabled
	case errors.Is(err, fm.ErrTimeout):
		return CodeTimeout
	case errors.Is(err, fm.ErrDevice):
		return CodeDevice
	default:
		return CodeInternal
	}
}
