package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dougsko/fmd/pkg/fm"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantType string
		wantArgs map[string]string
	}{
		{"STATUS", CmdStatus, map[string]string{}},
		{"  status  ", CmdStatus, map[string]string{}},
		{"POWERUP", CmdPowerUp, map[string]string{}},
		{"POWERUP:98100", CmdPowerUp, map[string]string{"frequency": "98100"}},
		{"tune:101300", CmdTune, map[string]string{"frequency": "101300"}},
		{"SEEK:UP", CmdSeek, map[string]string{"direction": "UP"}},
		{"RDS:ON", CmdRDS, map[string]string{"enabled": "ON"}},
		{"MUTE:off", CmdMute, map[string]string{"enabled": "off"}},
		{"AUDIO:MONO", CmdAudio, map[string]string{"mode": "MONO"}},
		{"BAND:japan-wide", CmdBand, map[string]string{"band": "japan-wide"}},
		{"SPACING:200", CmdSpacing, map[string]string{"spacing": "200"}},
		{"POWERMODE:LOW", CmdPowerMode, map[string]string{"mode": "LOW"}},
		{"STATIONS:20", CmdStations, map[string]string{"limit": "20"}},
		{"STATIONS:FAV", CmdStations, map[string]string{"favorites": "true"}},
		{"STATIONS:fav:5", CmdStations, map[string]string{"favorites": "true", "limit": "5"}},
		{"FAVORITE:98100", CmdFavorite, map[string]string{"frequency": "98100"}},
		{"FAVORITE:98100:Radio One: Live", CmdFavorite, map[string]string{"frequency": "98100", "name": "Radio One: Live"}},
		{"FAVORITE:98100:OFF", CmdFavorite, map[string]string{"frequency": "98100", "enabled": "OFF"}},
		{"FOO:bar", "FOO", map[string]string{"value": "bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := ParseCommand(tt.input)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if cmd.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, cmd.Type)
			}
			if len(cmd.Args) != len(tt.wantArgs) {
				t.Errorf("Expected args %v, got %v", tt.wantArgs, cmd.Args)
			}
			for k, v := range tt.wantArgs {
				if cmd.Args[k] != v {
					t.Errorf("Arg %s: expected %q, got %q", k, v, cmd.Args[k])
				}
			}
		})
	}

	t.Run("Empty", func(t *testing.T) {
		if _, err := ParseCommand("   "); err == nil {
			t.Error("Expected error for empty command")
		}
	})
}

func TestCommandArgs(t *testing.T) {
	cmd, _ := ParseCommand("TUNE:101300")
	khz, err := cmd.Int("frequency")
	if err != nil || khz != 101300 {
		t.Errorf("Expected 101300, got %d (%v)", khz, err)
	}

	if _, err := cmd.Int("limit"); err == nil {
		t.Error("Expected error for missing argument")
	}

	bad, _ := ParseCommand("TUNE:98.1")
	if _, err := bad.Int("frequency"); err == nil {
		t.Error("Expected error for non-integer frequency")
	}

	for input, want := range map[string]bool{"RDS:ON": true, "RDS:off": false, "RDS:1": true} {
		cmd, _ := ParseCommand(input)
		got, err := cmd.Switch("enabled")
		if err != nil || got != want {
			t.Errorf("%s: expected %v, got %v (%v)", input, want, got, err)
		}
	}

	maybe, _ := ParseCommand("RDS:MAYBE")
	if _, err := maybe.Switch("enabled"); err == nil {
		t.Error("Expected error for invalid switch")
	}
}

func TestResponse(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		resp := NewSuccessResponse(map[string]interface{}{"frequency_khz": 98100})
		line := resp.String()
		if strings.Contains(line, "\n") {
			t.Error("Response must be a single line")
		}

		var decoded Response
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if !decoded.Success || decoded.Data["frequency_khz"].(float64) != 98100 {
			t.Errorf("Unexpected response: %+v", decoded)
		}
		if strings.Contains(line, `"error"`) {
			t.Errorf("Expected error to be omitted, got %s", line)
		}
	})

	t.Run("Error", func(t *testing.T) {
		resp := NewErrorResponse("boom")
		if resp.Success || resp.Code != CodeInternal {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&fm.StateError{Op: "tune", State: fm.Off}, CodeInvalidState},
		{fmt.Errorf("tune: %w", fm.ErrInvalidArgument), CodeInvalidArgument},
		{fmt.Errorf("seek: %w", fm.ErrAborted), CodeAborted},
		{fmt.Errorf("tune: %w", fm.ErrDisabled), CodeDisabled},
		{fmt.Errorf("scan: %w", fm.ErrTimeout), CodeTimeout},
		{fmt.Errorf("mute: %w: %w", fm.ErrDevice, errors.New("ioctl")), CodeDevice},
		{errors.New("other"), CodeInternal},
	}

	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}

	resp := ErrorResponse(fmt.Errorf("seek: %w", fm.ErrAborted))
	if resp.Success || resp.Code != CodeAborted || resp.Error == "" {
		t.Errorf("Unexpected response: %+v", resp)
	}
}
