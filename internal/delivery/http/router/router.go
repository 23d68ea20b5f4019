package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dadudekc/DreamVault/internal/delivery/http/handler"
	"github.com/Dadudekc/DreamVault/internal/delivery/http/middleware"
	"github.com/Dadudekc/DreamVault/internal/delivery/http/ws"
)

func New(h *handler.Handler, feed *ws.StatsFeed) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.HandleHealthCheck)
	mux.HandleFunc("POST /api/jobs", h.HandleEnqueueJob)
	mux.HandleFunc("GET /api/jobs/status", h.HandleJobStatus)
	mux.HandleFunc("GET /api/stats", h.HandleStats)
	mux.HandleFunc("POST /api/queue/requeue-failed", h.HandleRequeueFailed)
	mux.HandleFunc("POST /api/queue/requeue-retries", h.HandleRequeueRetries)
	mux.HandleFunc("POST /api/queue/cleanup", h.HandleCleanup)
	mux.HandleFunc("GET /api/search", h.HandleSearch)

	mux.HandleFunc("GET /ws/stats", feed.Handle)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Apply middlewares
	var chainedHandler http.Handler = mux
	chainedHandler = middleware.Metrics(chainedHandler)
	chainedHandler = middleware.Logging(chainedHandler)

	return chainedHandler
}
