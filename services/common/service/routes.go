package service

import (
	"net/http"
	"time"

	"github.com/R3E-Network/worldstore/internal/httputil"
	"github.com/R3E-Network/worldstore/internal/metrics"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string         `json:"status"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// InfoResponse is the body of GET /info.
type InfoResponse struct {
	Status     string         `json:"status"`
	Service    string         `json:"service"`
	Version    string         `json:"version"`
	Timestamp  string         `json:"timestamp"`
	Statistics map[string]any `json:"statistics,omitempty"`
}

// RegisterStandardRoutes mounts /health, /info and /metrics on the root
// router. None of them require a signed request.
func (b *BaseService) RegisterStandardRoutes() {
	r := b.Router()
	r.HandleFunc("/health", b.serveHealth).Methods(http.MethodGet)
	r.HandleFunc("/info", b.serveInfo).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

// serveHealth probes storage; anything but healthy is a 503.
func (b *BaseService) serveHealth(w http.ResponseWriter, r *http.Request) {
	status := b.HealthStatus(r.Context())
	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, HealthResponse{
		Status:    status,
		Service:   b.Name(),
		Version:   b.Version(),
		Timestamp: now(),
		Details:   b.HealthDetails(),
	})
}

func (b *BaseService) serveInfo(w http.ResponseWriter, _ *http.Request) {
	var stats map[string]any
	if b.statsFn != nil {
		stats = b.statsFn()
	}
	httputil.WriteJSON(w, http.StatusOK, InfoResponse{
		Status:     "active",
		Service:    b.Name(),
		Version:    b.Version(),
		Timestamp:  now(),
		Statistics: stats,
	})
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }
