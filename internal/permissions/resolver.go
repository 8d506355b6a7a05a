// Package permissions resolves world ownership and deployment rights from the
// world-content server.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/R3E-Network/worldstore/internal/httputil"
	"github.com/R3E-Network/worldstore/internal/logging"
	"github.com/R3E-Network/worldstore/internal/metrics"
)

// DeploymentAllowList is the only deployment type that grants address-based access.
const DeploymentAllowList = "allow-list"

// ErrUpstreamUnavailable is returned when the world-content server cannot be reached.
var ErrUpstreamUnavailable = errors.New("permissions: world-content server unavailable")

// UpstreamError is returned when the world-content server answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("permissions: world-content server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("permissions: world-content server returned %d: %s", e.StatusCode, e.Body)
}

// Deployment describes who may deploy content to a world.
type Deployment struct {
	Type    string   `json:"type"`
	Wallets []string `json:"wallets"`
}

// WorldPermissions is the permission document of one world.
type WorldPermissions struct {
	Owner       string `json:"owner"`
	Permissions struct {
		Deployment Deployment `json:"deployment"`
	} `json:"permissions"`
}

// Deployment returns the deployment section.
func (p *WorldPermissions) Deployment() Deployment {
	return p.Permissions.Deployment
}

// Resolver fetches permissions on every call. There is no cache and no retry.
type Resolver struct {
	client *httputil.Client
	logger *logging.Logger
}

// NewResolver creates a resolver backed by the given world-content client.
func NewResolver(client *httputil.Client, logger *logging.Logger) (*Resolver, error) {
	if client == nil {
		return nil, fmt.Errorf("permissions: client is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{client: client, logger: logger}, nil
}

// GetPermissions fetches the permission document of a world.
func (r *Resolver) GetPermissions(ctx context.Context, world string) (*WorldPermissions, error) {
	start := time.Now()
	path := "/world/" + url.PathEscape(world) + "/permissions"

	resp, err := r.client.Get(ctx, path)
	if err != nil {
		metrics.RecordPermissionFetch("unavailable", time.Since(start))
		r.logger.WithContext(ctx).WithError(err).WithField("world_name", world).
			Error("World-content server unreachable")
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	var out WorldPermissions
	if err := httputil.DecodeResponse(resp, &out); err != nil {
		metrics.RecordPermissionFetch("upstream_error", time.Since(start))
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			r.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"world_name": world,
				"status":     statusErr.StatusCode,
			}).Warn("World-content server rejected permission lookup")
			return nil, &UpstreamError{StatusCode: statusErr.StatusCode, Body: statusErr.Body}
		}
		r.logger.WithContext(ctx).WithError(err).WithField("world_name", world).
			Error("Invalid permission document")
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: err.Error()}
	}

	metrics.RecordPermissionFetch("ok", time.Since(start))
	return &out, nil
}

// HasWorldPermission reports whether address owns the world or is on its
// deployment allow-list. Comparison is case-insensitive.
func (r *Resolver) HasWorldPermission(ctx context.Context, world, address string) (bool, error) {
	perms, err := r.GetPermissions(ctx, world)
	if err != nil {
		return false, err
	}
	return perms.Allows(address), nil
}

// Allows applies the owner and allow-list rules to address.
func (p *WorldPermissions) Allows(address string) bool {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return false
	}
	if strings.ToLower(strings.TrimSpace(p.Owner)) == address {
		return true
	}

	deployment := p.Deployment()
	if deployment.Type != DeploymentAllowList {
		return false
	}
	for _, wallet := range deployment.Wallets {
		if strings.ToLower(strings.TrimSpace(wallet)) == address {
			return true
		}
	}
	return false
}
