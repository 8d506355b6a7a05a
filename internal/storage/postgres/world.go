package postgres

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/worldstore/internal/storage"
)

const worldColumns = `world_name, key, value, size_bytes, created_at, updated_at`

// WorldStore persists world-scoped values in world_storage.
type WorldStore struct {
	db *sqlx.DB
}

var _ storage.WorldStore = (*WorldStore)(nil)

func (s *WorldStore) GetValue(ctx context.Context, world, key string) (*storage.Item, error) {
	var row itemRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+worldColumns+`
		FROM world_storage
		WHERE world_name = $1 AND key = $2
	`, world, key)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toItem(), nil
}

func (s *WorldStore) SetValue(ctx context.Context, world, key string, value json.RawMessage) (*storage.Item, error) {
	serialized, size, err := jsonParam(value)
	if err != nil {
		return nil, err
	}

	var row itemRow
	err = s.db.GetContext(ctx, &row, `
		INSERT INTO world_storage (world_name, key, value, size_bytes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (world_name, key) DO UPDATE
		SET value = EXCLUDED.value, size_bytes = EXCLUDED.size_bytes, updated_at = NOW()
		RETURNING `+worldColumns, world, key, serialized, size)
	if err != nil {
		return nil, err
	}
	return row.toItem(), nil
}

func (s *WorldStore) DeleteValue(ctx context.Context, world, key string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM world_storage WHERE world_name = $1 AND key = $2
	`, world, key)
	if err != nil {
		return err
	}
	return deletedOne(result)
}

func (s *WorldStore) DeleteAll(ctx context.Context, world string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM world_storage WHERE world_name = $1`, world)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *WorldStore) ListValues(ctx context.Context, world string, opts storage.ListOptions) ([]storage.Item, error) {
	f := &filter{}
	f.eq("world_name", world)
	f.prefix("key", opts.Prefix)
	query := `SELECT ` + worldColumns + ` FROM world_storage` + f.where() + f.page("key", opts)

	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, query, f.args...); err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

func (s *WorldStore) CountValues(ctx context.Context, world string, prefix string) (int64, error) {
	f := &filter{}
	f.eq("world_name", world)
	f.prefix("key", prefix)

	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM world_storage`+f.where(), f.args...)
	return count, err
}

func (s *WorldStore) SizeInfo(ctx context.Context, world, key string) (storage.SizeInfo, error) {
	var info storage.SizeInfo
	err := s.db.GetContext(ctx, &info, `
		SELECT
			COALESCE(SUM(size_bytes) FILTER (WHERE key = $2), 0) AS existing_value_size,
			COALESCE(SUM(size_bytes), 0) AS total_size
		FROM world_storage
		WHERE world_name = $1
	`, world, key)
	return info, err
}
