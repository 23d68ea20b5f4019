package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Dadudekc/DreamVault/internal/usecase"
)

const defaultPushInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The stats feed is read-only operator tooling; same-origin checks
	// are left to the reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StatsFeed pushes live queue and limiter snapshots to websocket
// clients at a fixed interval.
type StatsFeed struct {
	queueManager usecase.QueueManager
	interval     time.Duration
}

// NewStatsFeed creates a feed. interval <= 0 takes the default.
func NewStatsFeed(queueManager usecase.QueueManager, interval time.Duration) *StatsFeed {
	if interval <= 0 {
		interval = defaultPushInterval
	}
	return &StatsFeed{queueManager: queueManager, interval: interval}
}

// Handle upgrades the connection and streams stats until the client
// hangs up or the request context ends.
func (f *StatsFeed) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	slog.Info("stats feed client connected", "remote_addr", r.RemoteAddr)

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	// First snapshot goes out immediately.
	if !f.push(conn, r) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !f.push(conn, r) {
				return
			}
		}
	}
}

func (f *StatsFeed) push(conn *websocket.Conn, r *http.Request) bool {
	stats, err := f.queueManager.Stats(r.Context())
	if err != nil {
		slog.Error("Failed to collect stats for feed", "error", err)
		return false
	}
	if err := conn.WriteJSON(stats); err != nil {
		slog.Info("stats feed client disconnected", "remote_addr", r.RemoteAddr)
		return false
	}
	return true
}
