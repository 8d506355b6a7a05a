package postgres

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/worldstore/internal/storage"
)

const playerColumns = `world_name, player_address, key, value, size_bytes, created_at, updated_at`

// PlayerStore persists per-player values in player_storage. Addresses are
// expected in normalized (lower-case) form.
type PlayerStore struct {
	db *sqlx.DB
}

var _ storage.PlayerStore = (*PlayerStore)(nil)

func (s *PlayerStore) GetValue(ctx context.Context, world, player, key string) (*storage.Item, error) {
	var row itemRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+playerColumns+`
		FROM player_storage
		WHERE world_name = $1 AND player_address = $2 AND key = $3
	`, world, player, key)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toItem(), nil
}

func (s *PlayerStore) SetValue(ctx context.Context, world, player, key string, value json.RawMessage) (*storage.Item, error) {
	serialized, size, err := jsonParam(value)
	if err != nil {
		return nil, err
	}

	var row itemRow
	err = s.db.GetContext(ctx, &row, `
		INSERT INTO player_storage (world_name, player_address, key, value, size_bytes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (world_name, player_address, key) DO UPDATE
		SET value = EXCLUDED.value, size_bytes = EXCLUDED.size_bytes, updated_at = NOW()
		RETURNING `+playerColumns, world, player, key, serialized, size)
	if err != nil {
		return nil, err
	}
	return row.toItem(), nil
}

func (s *PlayerStore) DeleteValue(ctx context.Context, world, player, key string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM player_storage
		WHERE world_name = $1 AND player_address = $2 AND key = $3
	`, world, player, key)
	if err != nil {
		return err
	}
	return deletedOne(result)
}

func (s *PlayerStore) DeleteAllForPlayer(ctx context.Context, world, player string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM player_storage WHERE world_name = $1 AND player_address = $2
	`, world, player)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *PlayerStore) DeleteAllPlayers(ctx context.Context, world string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM player_storage WHERE world_name = $1`, world)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *PlayerStore) ListValues(ctx context.Context, world, player string, opts storage.ListOptions) ([]storage.Item, error) {
	f := &filter{}
	f.eq("world_name", world)
	f.eq("player_address", player)
	f.prefix("key", opts.Prefix)
	query := `SELECT ` + playerColumns + ` FROM player_storage` + f.where() + f.page("key", opts)

	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, query, f.args...); err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

func (s *PlayerStore) CountValues(ctx context.Context, world, player string, prefix string) (int64, error) {
	f := &filter{}
	f.eq("world_name", world)
	f.eq("player_address", player)
	f.prefix("key", prefix)

	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM player_storage`+f.where(), f.args...)
	return count, err
}

func (s *PlayerStore) ListPlayers(ctx context.Context, world string, opts storage.ListOptions) ([]string, error) {
	f := &filter{}
	f.eq("world_name", world)
	f.prefix("player_address", opts.Prefix)
	query := `SELECT player_address FROM player_storage` + f.where() +
		` GROUP BY player_address` + f.page("player_address", opts)

	players := []string{}
	if err := s.db.SelectContext(ctx, &players, query, f.args...); err != nil {
		return nil, err
	}
	return players, nil
}

func (s *PlayerStore) CountPlayers(ctx context.Context, world string, prefix string) (int64, error) {
	f := &filter{}
	f.eq("world_name", world)
	f.prefix("player_address", prefix)

	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(DISTINCT player_address) FROM player_storage`+f.where(), f.args...)
	return count, err
}

func (s *PlayerStore) SizeInfo(ctx context.Context, world, player, key string) (storage.SizeInfo, error) {
	var info storage.SizeInfo
	err := s.db.GetContext(ctx, &info, `
		SELECT
			COALESCE(SUM(size_bytes) FILTER (WHERE key = $3), 0) AS existing_value_size,
			COALESCE(SUM(size_bytes), 0) AS total_size
		FROM player_storage
		WHERE world_name = $1 AND player_address = $2
	`, world, player, key)
	return info, err
}
