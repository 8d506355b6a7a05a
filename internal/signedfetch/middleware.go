package signedfetch

import (
	"context"
	"net/http"

	"github.com/R3E-Network/worldstore/internal/httputil"
	"github.com/R3E-Network/worldstore/internal/logging"
)

type contextKey string

const (
	identityKey contextKey = "signedfetch_identity"
	worldKey    contextKey = "signedfetch_world"
)

// WithIdentity stores a verified identity and its world name in ctx.
func WithIdentity(ctx context.Context, identity *Identity, world string) context.Context {
	ctx = context.WithValue(ctx, identityKey, identity)
	ctx = context.WithValue(ctx, worldKey, world)
	return logging.WithWorld(ctx, world)
}

// IdentityFrom returns the verified identity stored in ctx, or nil.
func IdentityFrom(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityKey).(*Identity)
	return identity
}

// SignerFrom returns the verified signer address, or "".
func SignerFrom(ctx context.Context) string {
	if identity := IdentityFrom(ctx); identity != nil {
		return identity.SignerAddress
	}
	return ""
}

// WorldFrom returns the world name extracted from the signed metadata, or "".
func WorldFrom(ctx context.Context) string {
	world, _ := ctx.Value(worldKey).(string)
	return world
}

// Middleware verifies each request and resolves its world name. Verification
// failures are 401; a request that names no world is 400.
func Middleware(verifier Verifier, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(r)
			if err != nil {
				logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
					"path":   r.URL.Path,
					"method": r.Method,
				}).Warn("Signed fetch verification failed")
				httputil.Unauthorized(w, "Invalid signed fetch")
				return
			}

			world := WorldName(identity.Metadata)
			if world == "" {
				httputil.BadRequest(w, "Invalid world name")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity, world)))
		})
	}
}
