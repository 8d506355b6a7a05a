// Package memory is an in-memory implementation of the storage contracts. It
// is safe for concurrent use and is intended for tests and local development.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/worldstore/internal/storage"
)

// Store holds all three namespaces behind one lock.
type Store struct {
	mu      sync.RWMutex
	world   map[string]map[string]storage.Item            // world -> key
	players map[string]map[string]map[string]storage.Item // world -> player -> key
	env     map[string]map[string]storage.EnvSecret       // world -> key
}

// New creates an empty store.
func New() *Store {
	return &Store{
		world:   make(map[string]map[string]storage.Item),
		players: make(map[string]map[string]map[string]storage.Item),
		env:     make(map[string]map[string]storage.EnvSecret),
	}
}

// World returns the world namespace view.
func (s *Store) World() *WorldStore { return &WorldStore{s: s} }

// Players returns the player namespace view.
func (s *Store) Players() *PlayerStore { return &PlayerStore{s: s} }

// Env returns the env namespace view.
func (s *Store) Env() *EnvStore { return &EnvStore{s: s} }

// HealthCheck always succeeds.
func (s *Store) HealthCheck(context.Context) error { return nil }

var _ storage.HealthChecker = (*Store)(nil)

// page returns the sorted keys of m matching prefix, sliced by limit/offset,
// plus the number of matching keys.
func page[V any](m map[string]V, opts storage.ListOptions) ([]string, int) {
	keys := matching(m, opts.Prefix)
	total := len(keys)
	if opts.Offset >= total {
		return nil, total
	}
	end := total
	if opts.Limit > 0 && opts.Offset+opts.Limit < total {
		end = opts.Offset + opts.Limit
	}
	return keys[opts.Offset:end], total
}

func matching[V any](m map[string]V, prefix string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func sizeInfo[V any](m map[string]V, key string, size func(V) int64) storage.SizeInfo {
	var info storage.SizeInfo
	for k, v := range m {
		n := size(v)
		info.TotalSize += n
		if k == key {
			info.ExistingValueSize = n
		}
	}
	return info
}

func canonical(value json.RawMessage) (json.RawMessage, int64, error) {
	c, err := storage.CanonicalJSON(value)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid json value: %w", err)
	}
	return c, storage.SizeOf(string(c)), nil
}

func itemSize(item storage.Item) int64 { return item.SizeBytes }
func secretSize(secret storage.EnvSecret) int64 { return secret.SizeBytes }

func copyItem(item storage.Item) *storage.Item {
	item.Value = append(json.RawMessage(nil), item.Value...)
	return &item
}

func copySecret(secret storage.EnvSecret) *storage.EnvSecret {
	secret.Envelope = append([]byte(nil), secret.Envelope...)
	return &secret
}

// =============================================================================
// World
// =============================================================================

// WorldStore is the world namespace of a Store.
type WorldStore struct{ s *Store }

var _ storage.WorldStore = (*WorldStore)(nil)

func (w *WorldStore) GetValue(_ context.Context, world, key string) (*storage.Item, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()

	item, ok := w.s.world[world][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyItem(item), nil
}

func (w *WorldStore) SetValue(_ context.Context, world, key string, value json.RawMessage) (*storage.Item, error) {
	value, size, err := canonical(value)
	if err != nil {
		return nil, err
	}

	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	scope := w.s.world[world]
	if scope == nil {
		scope = make(map[string]storage.Item)
		w.s.world[world] = scope
	}
	now := time.Now().UTC()
	item, exists := scope[key]
	if !exists {
		item = storage.Item{WorldName: world, Key: key, CreatedAt: now}
	}
	item.Value = value
	item.SizeBytes = size
	item.UpdatedAt = now
	scope[key] = item
	return copyItem(item), nil
}

func (w *WorldStore) DeleteValue(_ context.Context, world, key string) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	if _, ok := w.s.world[world][key]; !ok {
		return storage.ErrNotFound
	}
	delete(w.s.world[world], key)
	return nil
}

func (w *WorldStore) DeleteAll(_ context.Context, world string) (int64, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	n := int64(len(w.s.world[world]))
	delete(w.s.world, world)
	return n, nil
}

func (w *WorldStore) ListValues(_ context.Context, world string, opts storage.ListOptions) ([]storage.Item, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()

	scope := w.s.world[world]
	keys, _ := page(scope, opts)
	items := make([]storage.Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, *copyItem(scope[k]))
	}
	return items, nil
}

func (w *WorldStore) CountValues(_ context.Context, world string, prefix string) (int64, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	return int64(len(matching(w.s.world[world], prefix))), nil
}

func (w *WorldStore) SizeInfo(_ context.Context, world, key string) (storage.SizeInfo, error) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	return sizeInfo(w.s.world[world], key, itemSize), nil
}

// =============================================================================
// Players
// =============================================================================

// PlayerStore is the player namespace of a Store.
type PlayerStore struct{ s *Store }

var _ storage.PlayerStore = (*PlayerStore)(nil)

func (p *PlayerStore) GetValue(_ context.Context, world, player, key string) (*storage.Item, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	item, ok := p.s.players[world][player][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyItem(item), nil
}

func (p *PlayerStore) SetValue(_ context.Context, world, player, key string, value json.RawMessage) (*storage.Item, error) {
	value, size, err := canonical(value)
	if err != nil {
		return nil, err
	}

	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	byPlayer := p.s.players[world]
	if byPlayer == nil {
		byPlayer = make(map[string]map[string]storage.Item)
		p.s.players[world] = byPlayer
	}
	scope := byPlayer[player]
	if scope == nil {
		scope = make(map[string]storage.Item)
		byPlayer[player] = scope
	}

	now := time.Now().UTC()
	item, exists := scope[key]
	if !exists {
		item = storage.Item{WorldName: world, PlayerAddress: player, Key: key, CreatedAt: now}
	}
	item.Value = value
	item.SizeBytes = size
	item.UpdatedAt = now
	scope[key] = item
	return copyItem(item), nil
}

func (p *PlayerStore) DeleteValue(_ context.Context, world, player, key string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	scope := p.s.players[world][player]
	if _, ok := scope[key]; !ok {
		return storage.ErrNotFound
	}
	delete(scope, key)
	if len(scope) == 0 {
		delete(p.s.players[world], player)
	}
	return nil
}

func (p *PlayerStore) DeleteAllForPlayer(_ context.Context, world, player string) (int64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	n := int64(len(p.s.players[world][player]))
	delete(p.s.players[world], player)
	return n, nil
}

func (p *PlayerStore) DeleteAllPlayers(_ context.Context, world string) (int64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	var n int64
	for _, scope := range p.s.players[world] {
		n += int64(len(scope))
	}
	delete(p.s.players, world)
	return n, nil
}

func (p *PlayerStore) ListValues(_ context.Context, world, player string, opts storage.ListOptions) ([]storage.Item, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	scope := p.s.players[world][player]
	keys, _ := page(scope, opts)
	items := make([]storage.Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, *copyItem(scope[k]))
	}
	return items, nil
}

func (p *PlayerStore) CountValues(_ context.Context, world, player string, prefix string) (int64, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return int64(len(matching(p.s.players[world][player], prefix))), nil
}

func (p *PlayerStore) ListPlayers(_ context.Context, world string, opts storage.ListOptions) ([]string, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	players, _ := page(p.s.players[world], opts)
	if players == nil {
		players = []string{}
	}
	return players, nil
}

func (p *PlayerStore) CountPlayers(_ context.Context, world string, prefix string) (int64, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return int64(len(matching(p.s.players[world], prefix))), nil
}

func (p *PlayerStore) SizeInfo(_ context.Context, world, player, key string) (storage.SizeInfo, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return sizeInfo(p.s.players[world][player], key, itemSize), nil
}

// =============================================================================
// Env
// =============================================================================

// EnvStore is the env namespace of a Store.
type EnvStore struct{ s *Store }

var _ storage.EnvStore = (*EnvStore)(nil)

func (e *EnvStore) GetSecret(_ context.Context, world, key string) (*storage.EnvSecret, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	secret, ok := e.s.env[world][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copySecret(secret), nil
}

func (e *EnvStore) SetSecret(_ context.Context, world, key string, envelope []byte, plaintextSize int64) (*storage.EnvSecret, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	scope := e.s.env[world]
	if scope == nil {
		scope = make(map[string]storage.EnvSecret)
		e.s.env[world] = scope
	}
	now := time.Now().UTC()
	secret, exists := scope[key]
	if !exists {
		secret = storage.EnvSecret{WorldName: world, Key: key, CreatedAt: now}
	}
	secret.Envelope = append([]byte(nil), envelope...)
	secret.SizeBytes = plaintextSize
	secret.UpdatedAt = now
	scope[key] = secret
	return copySecret(secret), nil
}

func (e *EnvStore) DeleteSecret(_ context.Context, world, key string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	if _, ok := e.s.env[world][key]; !ok {
		return storage.ErrNotFound
	}
	delete(e.s.env[world], key)
	return nil
}

func (e *EnvStore) DeleteAll(_ context.Context, world string) (int64, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	n := int64(len(e.s.env[world]))
	delete(e.s.env, world)
	return n, nil
}

func (e *EnvStore) ListSecrets(_ context.Context, world string, opts storage.ListOptions) ([]storage.EnvSecret, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	scope := e.s.env[world]
	keys, _ := page(scope, opts)
	secrets := make([]storage.EnvSecret, 0, len(keys))
	for _, k := range keys {
		secrets = append(secrets, *copySecret(scope[k]))
	}
	return secrets, nil
}

func (e *EnvStore) CountSecrets(_ context.Context, world string, prefix string) (int64, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	return int64(len(matching(e.s.env[world], prefix))), nil
}

func (e *EnvStore) SizeInfo(_ context.Context, world, key string) (storage.SizeInfo, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	return sizeInfo(e.s.env[world], key, secretSize), nil
}
