// Package quota enforces per-namespace storage limits on upserts.
//
// Validation is check-then-act: the size lookup and the following write are not
// isolated, so concurrent upserts into one scope can each pass and together
// exceed the total limit.
package quota

import (
	"context"
	"fmt"

	"github.com/R3E-Network/worldstore/internal/config"
	"github.com/R3E-Network/worldstore/internal/errors"
	"github.com/R3E-Network/worldstore/internal/metrics"
	"github.com/R3E-Network/worldstore/internal/storage"
)

// SizeLookup returns the existing size of the key being written and the
// current total of its scope, in one query.
type SizeLookup func(ctx context.Context) (storage.SizeInfo, error)

// Validator checks upserts against immutable limits.
type Validator struct {
	limits config.Limits
}

// NewValidator creates a validator.
func NewValidator(limits config.Limits) *Validator {
	return &Validator{limits: limits}
}

// MaxValueSize returns the largest per-value limit across namespaces.
func (v *Validator) MaxValueSize() int64 {
	return max(v.limits.World.MaxValueSizeBytes, v.limits.Player.MaxValueSizeBytes, v.limits.Env.MaxValueSizeBytes)
}

// Limits returns the limits of a namespace.
func (v *Validator) Limits(ns storage.Namespace) config.NamespaceLimits {
	switch ns {
	case storage.NamespaceWorld:
		return v.limits.World
	case storage.NamespacePlayer:
		return v.limits.Player
	case storage.NamespaceEnv:
		return v.limits.Env
	default:
		return config.NamespaceLimits{}
	}
}

// ValidateUpsert checks the serialized value against the value limit, then the
// projected scope total against the total limit. lookup is only called when
// the value itself fits.
func (v *Validator) ValidateUpsert(ctx context.Context, ns storage.Namespace, serialized string, lookup SizeLookup) error {
	limits := v.Limits(ns)
	newSize := storage.SizeOf(serialized)

	if newSize > limits.MaxValueSizeBytes {
		metrics.RecordQuotaRejection(string(ns), "value")
		return errors.StorageLimitExceeded(fmt.Sprintf(
			"Value size %d bytes exceeds maximum allowed size of %d bytes", newSize, limits.MaxValueSizeBytes)).
			WithDetails("maxValueSizeBytes", limits.MaxValueSizeBytes)
	}

	info, err := lookup(ctx)
	if err != nil {
		return errors.Internal("Failed to validate storage limits", err)
	}

	projected := info.TotalSize - info.ExistingValueSize + newSize
	if projected > limits.MaxTotalSizeBytes {
		metrics.RecordQuotaRejection(string(ns), "total")
		return errors.StorageLimitExceeded(fmt.Sprintf(
			"Total storage size %d bytes would exceed maximum allowed size of %d bytes", projected, limits.MaxTotalSizeBytes)).
			WithDetails("maxTotalSizeBytes", limits.MaxTotalSizeBytes)
	}
	return nil
}
