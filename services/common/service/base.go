// Package service provides common service infrastructure: router, standard
// endpoints, background workers and HTTP server lifecycle.
package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/worldstore/internal/logging"
)

const (
	healthCheckTimeout = 5 * time.Second
	readHeaderTimeout  = 10 * time.Second
	idleTimeout        = 120 * time.Second
)

// HealthChecker probes a critical dependency such as the database.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BaseConfig contains shared configuration for services.
type BaseConfig struct {
	Name    string
	Version string
	Addr    string
	// Health is optional; a nil checker reports healthy.
	Health HealthChecker
	Logger *logging.Logger
}

// BaseService owns the root router, the HTTP server and the background
// workers of a service. Stop is safe to call more than once.
type BaseService struct {
	name    string
	version string
	addr    string
	router  *mux.Router
	logger  *logging.Logger

	serverMu sync.Mutex
	server   *http.Server

	stopCh   chan struct{}
	stopOnce sync.Once

	statsFn func() map[string]any
	workers []func(context.Context)

	health HealthChecker
	probe  probeState
}

// NewBase constructs a BaseService from shared config.
func NewBase(cfg BaseConfig) *BaseService {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &BaseService{
		name:    cfg.Name,
		version: cfg.Version,
		addr:    cfg.Addr,
		router:  mux.NewRouter(),
		logger:  logger,
		stopCh:  make(chan struct{}),
		health:  cfg.Health,
		probe:   probeState{ok: true},
	}
}

// Name returns the service name.
func (b *BaseService) Name() string { return b.name }

// Version returns the service version.
func (b *BaseService) Version() string { return b.version }

// Router returns the root router.
func (b *BaseService) Router() *mux.Router { return b.router }

// Logger returns the service logger.
func (b *BaseService) Logger() *logging.Logger { return b.logger }

// WithStats sets a statistics provider function for the /info endpoint.
// The function will be called on each /info request.
func (b *BaseService) WithStats(fn func() map[string]any) *BaseService {
	b.statsFn = fn
	return b
}

// AddTickerWorker runs fn every interval from Start until Stop or ctx ends.
// Errors are logged and do not stop the ticker.
func (b *BaseService) AddTickerWorker(interval time.Duration, fn func(context.Context) error) *BaseService {
	b.workers = append(b.workers, func(ctx context.Context) {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-t.C:
				if err := fn(ctx); err != nil {
					b.logger.WithError(err).Warn("Background worker failed")
				}
			}
		}
	})
	return b
}

// Start records the start time and launches the registered workers.
func (b *BaseService) Start(ctx context.Context) error {
	b.probe.markStarted()
	for _, w := range b.workers {
		go w(ctx)
	}
	return nil
}

// Stop signals workers. It is idempotent.
func (b *BaseService) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	return nil
}

// ListenAndServe serves handler on the configured address until Shutdown.
// A nil handler serves the router directly.
func (b *BaseService) ListenAndServe(handler http.Handler) error {
	if handler == nil {
		handler = b.router
	}

	b.serverMu.Lock()
	b.server = &http.Server{
		Addr:              b.addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	server := b.server
	b.serverMu.Unlock()

	b.logger.WithFields(map[string]interface{}{
		"addr":    b.addr,
		"version": b.version,
	}).Info("HTTP server listening")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops workers and gracefully drains the HTTP server.
func (b *BaseService) Shutdown(ctx context.Context) error {
	_ = b.Stop()

	b.serverMu.Lock()
	server := b.server
	b.serverMu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// HealthStatus probes storage and returns "healthy" or "unhealthy".
func (b *BaseService) HealthStatus(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var err error
	if b.health != nil {
		err = b.health.HealthCheck(ctx)
	}
	if err != nil {
		b.logger.WithContext(ctx).WithError(err).Warn("Storage health probe failed")
	}
	b.probe.record(err == nil)

	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// HealthDetails reports the outcome of the last probe and the uptime.
func (b *BaseService) HealthDetails() map[string]any {
	ok, at, started := b.probe.snapshot()

	lastCheck := ""
	if !at.IsZero() {
		lastCheck = at.UTC().Format(time.RFC3339)
	}
	var uptime time.Duration
	if !started.IsZero() {
		uptime = time.Since(started).Truncate(time.Second)
	}
	return map[string]any{
		"db_connected": ok,
		"last_check":   lastCheck,
		"uptime":       uptime.String(),
	}
}

// probeState is the last storage probe result plus the service start time.
type probeState struct {
	mu      sync.RWMutex
	ok      bool
	at      time.Time
	started time.Time
}

func (p *probeState) record(ok bool) {
	p.mu.Lock()
	p.ok, p.at = ok, time.Now()
	p.mu.Unlock()
}

func (p *probeState) markStarted() {
	p.mu.Lock()
	if p.started.IsZero() {
		p.started = time.Now()
	}
	p.mu.Unlock()
}

func (p *probeState) snapshot() (bool, time.Time, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ok, p.at, p.started
}
