// Package authz decides whether a signer may operate on a world's storage.
package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/R3E-Network/worldstore/internal/errors"
	"github.com/R3E-Network/worldstore/internal/httputil"
	"github.com/R3E-Network/worldstore/internal/logging"
	"github.com/R3E-Network/worldstore/internal/metrics"
	"github.com/R3E-Network/worldstore/internal/signedfetch"
)

const (
	MsgNoSigner           = "No signer address found"
	MsgVerifyFailed       = "Failed to verify world permissions"
	MsgSignerUnauthorized = "Signer is not authorized to perform operations on this world"

	// redactedSigner replaces the authoritative server address in logs.
	redactedSigner = "[authoritative-server]"
)

// Policy selects which addresses a route accepts.
type Policy int

const (
	// OwnerOrDeployer accepts the world owner and allow-listed deployers only.
	OwnerOrDeployer Policy = iota
	// OwnerDeployerOrAuthorized also accepts the configured static addresses.
	OwnerDeployerOrAuthorized
)

func (p Policy) String() string {
	switch p {
	case OwnerOrDeployer:
		return "owner_or_deployer"
	case OwnerDeployerOrAuthorized:
		return "owner_deployer_or_authorized"
	default:
		return "unknown"
	}
}

func (p Policy) allowStatic() bool {
	return p == OwnerDeployerOrAuthorized
}

// PermissionChecker answers owner/deployer questions. *permissions.Resolver implements it.
type PermissionChecker interface {
	HasWorldPermission(ctx context.Context, world, address string) (bool, error)
}

// Config holds the static addresses.
type Config struct {
	AuthoritativeServerAddress string
	AuthorizedAddresses        []string
}

// Gate is stateless per request. The static address set is built once.
type Gate struct {
	checker       PermissionChecker
	authoritative string
	static        map[string]struct{}
	logger        *logging.Logger
}

// NewGate creates a gate.
func NewGate(checker PermissionChecker, cfg Config, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}

	authoritative := strings.ToLower(strings.TrimSpace(cfg.AuthoritativeServerAddress))
	static := make(map[string]struct{})
	if authoritative != "" {
		static[authoritative] = struct{}{}
	}
	for _, addr := range cfg.AuthorizedAddresses {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr != "" {
			static[addr] = struct{}{}
		}
	}

	return &Gate{
		checker:       checker,
		authoritative: authoritative,
		static:        static,
		logger:        logger,
	}
}

// Check runs the authorization steps in order: signer presence, owner or
// deployer permission (fail closed on lookup errors), then static addresses
// when allowStatic is set.
func (g *Gate) Check(ctx context.Context, world, signer string, allowStatic bool) error {
	signer = strings.TrimSpace(signer)
	if signer == "" {
		g.logger.LogSecurityEvent(ctx, "missing_signer", map[string]interface{}{"world_name": world})
		return errors.NotAuthorized(MsgNoSigner)
	}

	label := g.SignerLabel(signer)
	ok, err := g.checker.HasWorldPermission(ctx, world, signer)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"world_name": world,
			"signer":     label,
		}).Error("Permission lookup failed, denying request")
		return errors.NotAuthorizedWithCause(MsgVerifyFailed, err)
	}
	if ok {
		return nil
	}

	if allowStatic {
		if _, found := g.static[strings.ToLower(signer)]; found {
			return nil
		}
	}

	g.logger.LogSecurityEvent(ctx, "unauthorized_signer", map[string]interface{}{
		"world_name": world,
		"signer":     label,
	})
	return errors.NotAuthorized(MsgSignerUnauthorized)
}

// SignerLabel returns the form of signer that is safe to log.
func (g *Gate) SignerLabel(signer string) string {
	if g.authoritative != "" && strings.EqualFold(strings.TrimSpace(signer), g.authoritative) {
		return redactedSigner
	}
	return signer
}

// Middleware enforces policy using the identity placed in the context by
// signedfetch.Middleware.
func (g *Gate) Middleware(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			signer := signedfetch.SignerFrom(ctx)
			world := signedfetch.WorldFrom(ctx)

			if signer != "" {
				ctx = logging.WithSigner(ctx, g.SignerLabel(signer))
			}

			err := g.Check(ctx, world, signer, policy.allowStatic())
			metrics.RecordAuthorization(policy.String(), err == nil)
			if err != nil {
				httputil.WriteServiceError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
