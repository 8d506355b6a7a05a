// Package storage defines the key-value contracts shared by the world, player and env namespaces.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist in its scope.
var ErrNotFound = errors.New("storage: not found")

// Namespace names one of the three storage partitions.
type Namespace string

const (
	NamespaceWorld  Namespace = "world"
	NamespacePlayer Namespace = "player"
	NamespaceEnv    Namespace = "env"
)

// Item is a JSON value stored under a world (and optionally a player).
type Item struct {
	WorldName     string          `db:"world_name" json:"-"`
	PlayerAddress string          `db:"player_address" json:"-"`
	Key           string          `db:"key" json:"key"`
	Value         json.RawMessage `db:"value" json:"value"`
	SizeBytes     int64           `db:"size_bytes" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"-"`
	UpdatedAt     time.Time       `db:"updated_at" json:"-"`
}

// EnvSecret is an encrypted environment value. SizeBytes is the plaintext length.
type EnvSecret struct {
	WorldName string    `db:"world_name"`
	Key       string    `db:"key"`
	Envelope  []byte    `db:"value_enc"`
	SizeBytes int64     `db:"size_bytes"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SizeInfo is the result of the combined size lookup used by quota validation.
type SizeInfo struct {
	ExistingValueSize int64 `db:"existing_value_size"`
	TotalSize         int64 `db:"total_size"`
}

// ListOptions controls listing. Results are always ordered by key ascending.
type ListOptions struct {
	Limit  int
	Offset int
	// Prefix is a case-sensitive exact prefix. Empty matches everything.
	Prefix string
}

// WorldStore persists world-scoped JSON values.
type WorldStore interface {
	GetValue(ctx context.Context, world, key string) (*Item, error)
	SetValue(ctx context.Context, world, key string, value json.RawMessage) (*Item, error)
	DeleteValue(ctx context.Context, world, key string) error
	DeleteAll(ctx context.Context, world string) (int64, error)
	ListValues(ctx context.Context, world string, opts ListOptions) ([]Item, error)
	CountValues(ctx context.Context, world string, prefix string) (int64, error)
	SizeInfo(ctx context.Context, world, key string) (SizeInfo, error)
}

// PlayerStore persists per-player JSON values inside a world.
type PlayerStore interface {
	GetValue(ctx context.Context, world, player, key string) (*Item, error)
	SetValue(ctx context.Context, world, player, key string, value json.RawMessage) (*Item, error)
	DeleteValue(ctx context.Context, world, player, key string) error
	DeleteAllForPlayer(ctx context.Context, world, player string) (int64, error)
	DeleteAllPlayers(ctx context.Context, world string) (int64, error)
	ListValues(ctx context.Context, world, player string, opts ListOptions) ([]Item, error)
	CountValues(ctx context.Context, world, player string, prefix string) (int64, error)
	ListPlayers(ctx context.Context, world string, opts ListOptions) ([]string, error)
	CountPlayers(ctx context.Context, world string, prefix string) (int64, error)
	SizeInfo(ctx context.Context, world, player, key string) (SizeInfo, error)
}

// EnvStore persists encrypted env secrets. It never sees plaintext.
type EnvStore interface {
	GetSecret(ctx context.Context, world, key string) (*EnvSecret, error)
	SetSecret(ctx context.Context, world, key string, envelope []byte, plaintextSize int64) (*EnvSecret, error)
	DeleteSecret(ctx context.Context, world, key string) error
	DeleteAll(ctx context.Context, world string) (int64, error)
	ListSecrets(ctx context.Context, world string, opts ListOptions) ([]EnvSecret, error)
	CountSecrets(ctx context.Context, world string, prefix string) (int64, error)
	SizeInfo(ctx context.Context, world, key string) (SizeInfo, error)
}

// HealthChecker is implemented by stores backed by a remote database.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
