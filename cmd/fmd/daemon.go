package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/fmd/pkg/auth"
	"github.com/dougsko/fmd/pkg/client"
	"github.com/dougsko/fmd/pkg/config"
	"github.com/dougsko/fmd/pkg/engine"
	"github.com/dougsko/fmd/pkg/logging"
)

// FMDaemon runs the core engine and the HTTP API in front of it
type FMDaemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	coreEngine   *engine.CoreEngine
	socketClient *client.SocketClient
	verifier     *auth.Verifier
	router       *gin.Engine
	webServer    *http.Server

	socketPath string
}

// NewFMDaemon creates a new daemon instance
func NewFMDaemon(cfg *config.Config) (*FMDaemon, error) {
	socketPath := cfg.API.UnixSocket
	if socketPath == "" {
		socketPath = "/tmp/fmd.sock"
	}

	coreEngine, err := engine.NewCoreEngine(cfg, socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create core engine: %w", err)
	}

	return newDaemon(cfg, coreEngine, socketPath)
}

func newDaemon(cfg *config.Config, coreEngine *engine.CoreEngine, socketPath string) (*FMDaemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &FMDaemon{
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		coreEngine:   coreEngine,
		socketClient: client.NewSocketClient(socketPath),
		socketPath:   socketPath,
	}

	if cfg.API.JWTSecret != "" {
		verifier, err := auth.NewVerifier(cfg.API.JWTSecret)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create token verifier: %w", err)
		}
		d.verifier = verifier
	} else {
		logging.Warn("web", "api.jwt_secret is empty, mutating routes are unauthenticated")
	}

	d.router = d.setupRouter()
	d.webServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Web.BindAddress, cfg.Web.Port),
		Handler:           d.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return d, nil
}

// Start starts the daemon
func (d *FMDaemon) Start() error {
	logging.Info("main", "Starting fmd daemon...")

	if err := d.coreEngine.Start(); err != nil {
		return fmt.Errorf("failed to start core engine: %w", err)
	}

	// Wait a moment for socket to be ready
	time.Sleep(100 * time.Millisecond)

	if !d.socketClient.IsConnected() {
		return fmt.Errorf("failed to connect to core engine socket %s", d.socketPath)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logging.Infof("web", "Starting web server on %s", d.webServer.Addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("web", "Web server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the daemon gracefully
func (d *FMDaemon) Stop() error {
	logging.Info("main", "Stopping daemon...")

	// closes websocket streams
	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Errorf("web", "Web server shutdown error: %v", err)
		}
	}

	if d.coreEngine != nil {
		if err := d.coreEngine.Stop(); err != nil {
			logging.Errorf("main", "Core engine shutdown error: %v", err)
		}
	}

	d.wg.Wait()

	logging.Info("main", "Daemon stopped")
	return nil
}

// setupRouter builds the HTTP API
func (d *FMDaemon) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())

	control := auth.RequireRole(d.verifier, auth.RoleController)

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/config", d.handleGetConfig)

		api.GET("/radio/channel", d.handleGetChannel)
		api.GET("/radio/rds/flags", d.handleGetRDSFlags)
		api.POST("/radio/power", control, d.handlePower)
		api.PUT("/radio/frequency", control, d.handleSetFrequency)
		api.POST("/radio/seek", control, d.handleSeek)
		api.POST("/radio/scan", control, d.handleScan)
		api.POST("/radio/stop", control, d.handleStop)
		api.PUT("/radio/rds", control, d.handleSetRDS)
		api.PUT("/radio/af", control, d.handleSetAF)
		api.PUT("/radio/mute", control, d.handleSetMute)

		api.GET("/stations", d.handleGetStations)
		api.POST("/stations/favorite", control, d.handleSetFavorite)

		api.GET("/signal", d.handleGetSignal)
	}

	ws := router.Group("/ws")
	{
		ws.GET("/events", d.handleEventsWebSocket)
		ws.GET("/signal", d.handleSignalWebSocket)
	}

	return router
}

// requestLogger writes one line per request through the daemon logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		line := fmt.Sprintf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, time.Since(start).Round(time.Microsecond))
		switch {
		case status >= http.StatusInternalServerError:
			logging.Warn("web", line)
		default:
			logging.Debug("web", line)
		}
	}
}
