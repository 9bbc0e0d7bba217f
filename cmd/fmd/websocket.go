package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/fmd/pkg/config"
	"github.com/dougsko/fmd/pkg/logging"
)

const (
	writeWait         = 5 * time.Second
	eventBuffer       = 64
	minSignalInterval = 100 * time.Millisecond
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// readUntilClosed drains client messages and closes the returned channel
// once the peer goes away.
func readUntilClosed(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// handleEventsWebSocket streams controller notifications and monitor updates
func (d *FMDaemon) handleEventsWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("web", "WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := d.coreEngine.Subscribe(eventBuffer)
	defer cancel()

	logging.Debugf("web", "Event stream client %s connected", c.Request.RemoteAddr)
	closed := readUntilClosed(conn)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeJSON(conn, ev); err != nil {
				logging.Debugf("web", "Event stream write error: %v", err)
				return
			}

		case <-closed:
			logging.Debugf("web", "Event stream client %s disconnected", c.Request.RemoteAddr)
			return

		case <-d.ctx.Done():
			return
		}
	}
}

// handleSignalWebSocket sends signal monitor snapshots at the monitor interval
func (d *FMDaemon) handleSignalWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("web", "WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	signalMonitor := d.coreEngine.SignalMonitor()
	if signalMonitor == nil {
		writeJSON(conn, gin.H{"error": "signal monitor not enabled"})
		return
	}

	ticker := time.NewTicker(signalInterval(d.config))
	defer ticker.Stop()

	closed := readUntilClosed(conn)

	for {
		select {
		case <-ticker.C:
			data := gin.H{
				"type":    "signal",
				"running": signalMonitor.IsRunning(),
				"signal":  signalMonitor.Snapshot(),
			}
			if err := writeJSON(conn, data); err != nil {
				logging.Debugf("web", "Signal stream write error: %v", err)
				return
			}

		case <-closed:
			return

		case <-d.ctx.Done():
			return
		}
	}
}

func signalInterval(cfg *config.Config) time.Duration {
	interval := config.Duration(cfg.Monitor.Interval)
	if interval < minSignalInterval {
		interval = minSignalInterval
	}
	return interval
}
