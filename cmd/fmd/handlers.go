package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v2"

	"github.com/dougsko/fmd/pkg/client"
	"github.com/dougsko/fmd/pkg/engine"
	"github.com/dougsko/fmd/pkg/protocol"
)

// httpStatus maps an engine error code to the HTTP status it is served with
func httpStatus(code string) int {
	switch code {
	case protocol.CodeInvalidState:
		return http.StatusConflict
	case protocol.CodeInvalidArgument:
		return http.StatusBadRequest
	case protocol.CodeTimeout:
		return http.StatusGatewayTimeout
	case protocol.CodeAborted:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a socket client error. An aborted seek or scan is
// not a failure and is reported as a result.
func writeError(c *gin.Context, err error) {
	code := protocol.CodeInternal
	var cmdErr *client.CommandError
	if errors.As(err, &cmdErr) {
		code = cmdErr.Code
	}

	if code == protocol.CodeAborted {
		c.JSON(http.StatusOK, gin.H{"result": "aborted"})
		return
	}
	c.JSON(httpStatus(code), gin.H{
		"error": err.Error(),
		"code":  code,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": err.Error(),
		"code":  protocol.CodeInvalidArgument,
	})
}

// handleGetStatus returns receiver and daemon status via socket
func (d *FMDaemon) handleGetStatus(c *gin.Context) {
	status, err := d.socketClient.GetStatus()
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "running",
		"version": engine.Version,
		"radio":   status.Radio,
		"driver":  status.Driver,
		"device":  status.Device,
		"uptime":  status.Uptime,
	})
}

// handleGetConfig returns the running configuration without secrets
func (d *FMDaemon) handleGetConfig(c *gin.Context) {
	cfg := *d.config
	if cfg.API.JWTSecret != "" {
		cfg.API.JWTSecret = "********"
	}

	// round trip through YAML so keys match the config file
	yamlData, err := yaml.Marshal(&cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to marshal config: %v", err),
		})
		return
	}

	var yamlConfig interface{}
	if err := yaml.Unmarshal(yamlData, &yamlConfig); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to unmarshal config: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, yamlToJSON(yamlConfig))
}

// yamlToJSON converts yaml.v2 map[interface{}]interface{} values to map[string]interface{}
func yamlToJSON(i interface{}) interface{} {
	switch x := i.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = yamlToJSON(v)
		}
		return m
	case []interface{}:
		for i, v := range x {
			x[i] = yamlToJSON(v)
		}
	}
	return i
}

// handleGetChannel returns the tuned frequency
func (d *FMDaemon) handleGetChannel(c *gin.Context) {
	khz, err := d.socketClient.Channel()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frequency_khz": khz})
}

// handlePower powers the receiver up or down
func (d *FMDaemon) handlePower(c *gin.Context) {
	var req struct {
		On        *bool `json:"on"`
		Frequency int64 `json:"frequency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.On == nil {
		badRequest(c, errors.New(`"on" is required`))
		return
	}

	if !*req.On {
		if err := d.socketClient.PowerDown(); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": "OFF"})
		return
	}

	if err := d.socketClient.PowerUp(req.Frequency); err != nil {
		writeError(c, err)
		return
	}
	khz, err := d.socketClient.Channel()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": "ON", "frequency_khz": khz})
}

// handleSetFrequency tunes the receiver
func (d *FMDaemon) handleSetFrequency(c *gin.Context) {
	var req struct {
		Frequency int64 `json:"frequency" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := d.socketClient.Tune(req.Frequency); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"frequency_khz": req.Frequency,
	})
}

// handleSeek seeks to the next station in a direction
func (d *FMDaemon) handleSeek(c *gin.Context) {
	var req struct {
		Direction string `json:"direction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dir := strings.ToLower(req.Direction)
	if dir != "up" && dir != "down" {
		badRequest(c, fmt.Errorf("invalid direction %q", req.Direction))
		return
	}

	khz, err := d.socketClient.Seek(dir)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":        "found",
		"frequency_khz": khz,
	})
}

// handleScan runs a full band scan
func (d *FMDaemon) handleScan(c *gin.Context) {
	stations, err := d.socketClient.Scan()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":   "complete",
		"stations": stations,
		"count":    len(stations),
	})
}

// handleStop aborts a running seek or scan
func (d *FMDaemon) handleStop(c *gin.Context) {
	if err := d.socketClient.Stop(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// bindSwitch reads {"<field>": bool} from the request body
func bindSwitch(c *gin.Context, field string) (bool, bool) {
	var req map[string]*bool
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return false, false
	}
	v, ok := req[field]
	if !ok || v == nil {
		badRequest(c, fmt.Errorf("%q is required", field))
		return false, false
	}
	return *v, true
}

func (d *FMDaemon) handleSetRDS(c *gin.Context) {
	on, ok := bindSwitch(c, "enabled")
	if !ok {
		return
	}
	if err := d.socketClient.SetRDS(on); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rds_enabled": on})
}

func (d *FMDaemon) handleSetAF(c *gin.Context) {
	on, ok := bindSwitch(c, "enabled")
	if !ok {
		return
	}
	if err := d.socketClient.SetAF(on); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"af_enabled": on})
}

func (d *FMDaemon) handleSetMute(c *gin.Context) {
	muted, ok := bindSwitch(c, "muted")
	if !ok {
		return
	}
	if err := d.socketClient.SetMute(muted); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": muted})
}

// handleGetRDSFlags returns the RDS groups the tuner processes
func (d *FMDaemon) handleGetRDSFlags(c *gin.Context) {
	flags, err := d.socketClient.RDSFlags()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": flags})
}

// handleGetStations lists stored stations
func (d *FMDaemon) handleGetStations(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		badRequest(c, fmt.Errorf("invalid limit %q", c.Query("limit")))
		return
	}
	favorites := c.Query("favorites") == "true"

	stations, err := d.socketClient.GetStations(limit, favorites)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stations": stations,
		"count":    len(stations),
	})
}

// handleSetFavorite marks or unmarks a favorite station
func (d *FMDaemon) handleSetFavorite(c *gin.Context) {
	var req struct {
		Frequency int64  `json:"frequency" binding:"required"`
		Name      string `json:"name"`
		Favorite  *bool  `json:"favorite"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	favorite := req.Favorite == nil || *req.Favorite

	if err := d.socketClient.SetFavorite(req.Frequency, req.Name, favorite); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"frequency_khz": req.Frequency,
		"name":          req.Name,
		"favorite":      favorite,
	})
}

// handleGetSignal returns the current signal monitor snapshot
func (d *FMDaemon) handleGetSignal(c *gin.Context) {
	snap, err := d.socketClient.Signal()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signal": snap})
}
