package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/worldstore/internal/storage"
)

const envColumns = `world_name, key, value_enc, size_bytes, created_at, updated_at`

// EnvStore persists encrypted env values in env_variables. It only handles
// envelopes; encryption happens before the store is called.
type EnvStore struct {
	db *sqlx.DB
}

var _ storage.EnvStore = (*EnvStore)(nil)

func (s *EnvStore) GetSecret(ctx context.Context, world, key string) (*storage.EnvSecret, error) {
	var secret storage.EnvSecret
	err := s.db.GetContext(ctx, &secret, `
		SELECT `+envColumns+`
		FROM env_variables
		WHERE world_name = $1 AND key = $2
	`, world, key)
	if err != nil {
		return nil, notFound(err)
	}
	return &secret, nil
}

func (s *EnvStore) SetSecret(ctx context.Context, world, key string, envelope []byte, plaintextSize int64) (*storage.EnvSecret, error) {
	var secret storage.EnvSecret
	err := s.db.GetContext(ctx, &secret, `
		INSERT INTO env_variables (world_name, key, value_enc, size_bytes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (world_name, key) DO UPDATE
		SET value_enc = EXCLUDED.value_enc, size_bytes = EXCLUDED.size_bytes, updated_at = NOW()
		RETURNING `+envColumns, world, key, envelope, plaintextSize)
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

func (s *EnvStore) DeleteSecret(ctx context.Context, world, key string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM env_variables WHERE world_name = $1 AND key = $2
	`, world, key)
	if err != nil {
		return err
	}
	return deletedOne(result)
}

func (s *EnvStore) DeleteAll(ctx context.Context, world string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM env_variables WHERE world_name = $1`, world)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *EnvStore) ListSecrets(ctx context.Context, world string, opts storage.ListOptions) ([]storage.EnvSecret, error) {
	f := &filter{}
	f.eq("world_name", world)
	f.prefix("key", opts.Prefix)
	query := `SELECT ` + envColumns + ` FROM env_variables` + f.where() + f.page("key", opts)

	secrets := []storage.EnvSecret{}
	if err := s.db.SelectContext(ctx, &secrets, query, f.args...); err != nil {
		return nil, err
	}
	return secrets, nil
}

func (s *EnvStore) CountSecrets(ctx context.Context, world string, prefix string) (int64, error) {
	f := &filter{}
	f.eq("world_name", world)
	f.prefix("key", prefix)

	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM env_variables`+f.where(), f.args...)
	return count, err
}

// SizeInfo sums plaintext sizes over the whole world. key selects the
// existing value being replaced.
func (s *EnvStore) SizeInfo(ctx context.Context, world, key string) (storage.SizeInfo, error) {
	var info storage.SizeInfo
	err := s.db.GetContext(ctx, &info, `
		SELECT
			COALESCE(SUM(size_bytes) FILTER (WHERE key = $2), 0) AS existing_value_size,
			COALESCE(SUM(size_bytes), 0) AS total_size
		FROM env_variables
		WHERE world_name = $1
	`, world, key)
	return info, err
}
