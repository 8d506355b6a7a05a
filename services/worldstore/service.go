// Package worldstore serves the world, player and env key-value namespaces.
package worldstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/R3E-Network/worldstore/internal/authz"
	"github.com/R3E-Network/worldstore/internal/crypto"
	svcerrors "github.com/R3E-Network/worldstore/internal/errors"
	"github.com/R3E-Network/worldstore/internal/httputil"
	"github.com/R3E-Network/worldstore/internal/logging"
	"github.com/R3E-Network/worldstore/internal/metrics"
	"github.com/R3E-Network/worldstore/internal/middleware"
	"github.com/R3E-Network/worldstore/internal/pagination"
	"github.com/R3E-Network/worldstore/internal/quota"
	"github.com/R3E-Network/worldstore/internal/signedfetch"
	"github.com/R3E-Network/worldstore/internal/storage"
	commonservice "github.com/R3E-Network/worldstore/services/common/service"
)

const (
	ServiceName = "worldstore"
	Version     = "1.0.0"

	// ConfirmDeleteHeader must be present and non-empty on bulk deletes.
	ConfirmDeleteHeader = "X-Confirm-Delete-All"

	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 10 * time.Minute

	maxEscapeExpansion = 6
	bodyEnvelopeBytes  = 64 << 10
)

// Service implements the world storage HTTP API.
type Service struct {
	*commonservice.BaseService

	world   storage.WorldStore
	players storage.PlayerStore
	env     storage.EnvStore

	cipher    *crypto.Cipher
	verifier  signedfetch.Verifier
	gate      *authz.Gate
	validator *quota.Validator
	limiter   *middleware.RateLimiter
	pages     pagination.Config
	prefix    string
	maxBody   int64
}

// Config configures the world storage service.
type Config struct {
	Addr    string
	Version string
	// PathPrefix is mounted in front of every storage route.
	PathPrefix string

	World   storage.WorldStore
	Players storage.PlayerStore
	Env     storage.EnvStore
	Health  commonservice.HealthChecker

	Cipher     *crypto.Cipher
	Verifier   signedfetch.Verifier
	Gate       *authz.Gate
	Validator  *quota.Validator
	Pagination pagination.Config
	// RateLimiter is optional. It runs after signed-fetch verification so
	// callers are keyed by signer.
	RateLimiter *middleware.RateLimiter

	Logger *logging.Logger
}

func (c Config) validate() error {
	switch {
	case c.World == nil || c.Players == nil || c.Env == nil:
		return errors.New("world, player and env stores are required")
	case c.Cipher == nil:
		return errors.New("cipher is required")
	case c.Verifier == nil:
		return errors.New("signed fetch verifier is required")
	case c.Gate == nil:
		return errors.New("authorization gate is required")
	case c.Validator == nil:
		return errors.New("storage limits validator is required")
	}
	return nil
}

// New creates the service and registers its routes.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("worldstore: %w", err)
	}

	version := cfg.Version
	if version == "" {
		version = Version
	}

	base := commonservice.NewBase(commonservice.BaseConfig{
		Name:    ServiceName,
		Version: version,
		Addr:    cfg.Addr,
		Health:  cfg.Health,
		Logger:  cfg.Logger,
	})

	pages := cfg.Pagination
	if pages.DefaultLimit <= 0 {
		pages.DefaultLimit = 100
	}
	if pages.MaxLimit <= 0 {
		pages.MaxLimit = 1000
	}

	s := &Service{
		BaseService: base,
		world:       cfg.World,
		players:     cfg.Players,
		env:         cfg.Env,
		cipher:      cfg.Cipher,
		verifier:    cfg.Verifier,
		gate:        cfg.Gate,
		validator:   cfg.Validator,
		limiter:     cfg.RateLimiter,
		pages:       pages,
		prefix:      strings.TrimRight(cfg.PathPrefix, "/"),
		maxBody:     requestBodyLimit(cfg.Validator.MaxValueSize()),
	}

	base.WithStats(s.statistics)
	if s.limiter != nil {
		base.AddTickerWorker(limiterCleanupInterval, func(context.Context) error {
			if evicted := s.limiter.Cleanup(limiterMaxIdle); evicted > 0 {
				s.Logger().WithFields(map[string]interface{}{"evicted": evicted}).Debug("Evicted idle rate limiters")
			}
			return nil
		})
	}
	base.RegisterStandardRoutes()
	s.registerRoutes()

	return s, nil
}

// requestBodyLimit sizes the body cap so that any value within the configured
// limits still reaches the quota check, even when every byte is sent as a
// \u00XX escape.
func requestBodyLimit(maxValueSize int64) int64 {
	return max(httputil.DefaultMaxBodyBytes, maxEscapeExpansion*maxValueSize+bodyEnvelopeBytes)
}

func (s *Service) statistics() map[string]any {
	stats := map[string]any{
		"path_prefix":              s.prefix,
		"pagination_default_limit": s.pages.DefaultLimit,
		"pagination_max_limit":     s.pages.MaxLimit,
	}
	for _, ns := range []storage.Namespace{storage.NamespaceWorld, storage.NamespacePlayer, storage.NamespaceEnv} {
		limits := s.validator.Limits(ns)
		stats[string(ns)+"_max_value_size_bytes"] = limits.MaxValueSizeBytes
		stats[string(ns)+"_max_total_size_bytes"] = limits.MaxTotalSizeBytes
	}
	return stats
}

// =============================================================================
// Helpers
// =============================================================================

// respondError writes err. Errors outside the taxonomy become an Internal
// error carrying message; server-side failures are logged with their cause.
func (s *Service) respondError(w http.ResponseWriter, r *http.Request, err error, message string) {
	serviceErr := svcerrors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = svcerrors.Internal(message, err)
	}
	if serviceErr.HTTPStatus >= http.StatusInternalServerError {
		s.Logger().WithContext(r.Context()).WithError(err).Error(serviceErr.Message)
	}
	httputil.WriteServiceError(w, serviceErr)
}

func recordStorage(ns storage.Namespace, op string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	metrics.RecordStorageOperation(string(ns), op, err)
}

func requireConfirmation(w http.ResponseWriter, r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get(ConfirmDeleteHeader)) == "" {
		httputil.BadRequest(w, "Missing "+ConfirmDeleteHeader+" header")
		return false
	}
	return true
}

func listOptions(params pagination.Params) storage.ListOptions {
	return storage.ListOptions{Limit: params.Limit, Offset: params.Offset, Prefix: params.Prefix}
}

func writePage(w http.ResponseWriter, data any, params pagination.Params, total int64) {
	httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Data: data,
		Pagination: pagination.Page{
			Limit:  params.Limit,
			Offset: params.Offset,
			Total:  total,
		},
	})
}
