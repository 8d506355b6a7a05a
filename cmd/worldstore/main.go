// Package main runs the world storage service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/R3E-Network/worldstore/internal/authz"
	"github.com/R3E-Network/worldstore/internal/config"
	"github.com/R3E-Network/worldstore/internal/crypto"
	"github.com/R3E-Network/worldstore/internal/httputil"
	"github.com/R3E-Network/worldstore/internal/logging"
	"github.com/R3E-Network/worldstore/internal/middleware"
	"github.com/R3E-Network/worldstore/internal/permissions"
	"github.com/R3E-Network/worldstore/internal/quota"
	"github.com/R3E-Network/worldstore/internal/signedfetch"
	"github.com/R3E-Network/worldstore/services/worldstore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := pflag.String("env-file", ".env", "optional dotenv file loaded before reading the environment")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(worldstore.ServiceName, cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Service failed")
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	cipher, err := crypto.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	client, err := httputil.NewClient(httputil.ClientConfig{
		BaseURL: cfg.WorldContentURL,
		Timeout: cfg.WorldContentTimeout,
	})
	if err != nil {
		return fmt.Errorf("world-content client: %w", err)
	}
	resolver, err := permissions.NewResolver(client, logger)
	if err != nil {
		return err
	}

	gate := authz.NewGate(resolver, authz.Config{
		AuthoritativeServerAddress: cfg.AuthoritativeServerAddress,
		AuthorizedAddresses:        cfg.AuthorizedAddresses(),
	}, logger)

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	svc, err := worldstore.New(worldstore.Config{
		Addr:        cfg.HTTPAddr,
		PathPrefix:  cfg.APIPathPrefix,
		World:       stores.world,
		Players:     stores.players,
		Env:         stores.env,
		Health:      stores.health,
		Cipher:      cipher,
		Verifier:    verifier,
		Gate:        gate,
		Validator:   quota.NewValidator(cfg.Limits),
		Pagination:  cfg.Pagination(),
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	router := svc.Router()
	router.Use(middleware.MetricsMiddleware())

	// CORS wraps the router so preflight requests are answered before route matching.
	var handler http.Handler = middleware.NewCORSMiddleware(cfg.CORSOrigins()).Handler(router)
	handler = middleware.LoggingMiddleware(logger)(handler)

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.ListenAndServe(handler)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.WithFields(map[string]interface{}{"signal": sig.String()}).Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
		return err
	}
	logger.Info("Service stopped")
	return nil
}

func newVerifier(cfg *config.Config) (signedfetch.Verifier, error) {
	if cfg.SignedFetchMode == config.SignedFetchModeJWT {
		v, err := signedfetch.NewJWTVerifier(cfg.SignedFetchJWTSecret)
		if err != nil {
			return nil, err
		}
		return v.WithStrictChecksum(cfg.SignedFetchStrictChecksum), nil
	}
	return signedfetch.NewHeaderVerifier().WithStrictChecksum(cfg.SignedFetchStrictChecksum), nil
}
