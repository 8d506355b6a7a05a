// Package postgres implements the storage contracts on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/R3E-Network/worldstore/internal/config"
	"github.com/R3E-Network/worldstore/internal/storage"
)

// DriverName is the database/sql driver registered by lib/pq.
const DriverName = "postgres"

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sqlx.Open(DriverName, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Store bundles the three namespace stores over one connection pool.
type Store struct {
	db      *sqlx.DB
	world   *WorldStore
	players *PlayerStore
	env     *EnvStore
}

var _ storage.HealthChecker = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:      db,
		world:   &WorldStore{db: db},
		players: &PlayerStore{db: db},
		env:     &EnvStore{db: db},
	}
}

// World returns the world namespace store.
func (s *Store) World() *WorldStore { return s.world }

// Players returns the player namespace store.
func (s *Store) Players() *PlayerStore { return s.players }

// Env returns the env namespace store.
func (s *Store) Env() *EnvStore { return s.env }

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// Query helpers
// =============================================================================

// itemRow mirrors storage.Item with a plain byte slice so database/sql copies
// the driver buffer on scan.
type itemRow struct {
	WorldName     string    `db:"world_name"`
	PlayerAddress string    `db:"player_address"`
	Key           string    `db:"key"`
	Value         []byte    `db:"value"`
	SizeBytes     int64     `db:"size_bytes"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r itemRow) toItem() *storage.Item {
	return &storage.Item{
		WorldName:     r.WorldName,
		PlayerAddress: r.PlayerAddress,
		Key:           r.Key,
		Value:         r.Value,
		SizeBytes:     r.SizeBytes,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toItems(rows []itemRow) []storage.Item {
	items := make([]storage.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, *row.toItem())
	}
	return items
}

// filter accumulates WHERE conditions with positional arguments.
type filter struct {
	conds []string
	args  []interface{}
}

func (f *filter) eq(column string, value interface{}) {
	f.args = append(f.args, value)
	f.conds = append(f.conds, column+" = $"+strconv.Itoa(len(f.args)))
}

// prefix adds a literal, case-sensitive prefix match. An empty prefix is a no-op.
func (f *filter) prefix(column, prefix string) {
	if prefix == "" {
		return
	}
	f.args = append(f.args, storage.EscapeLikePrefix(prefix)+"%")
	f.conds = append(f.conds, column+" LIKE $"+strconv.Itoa(len(f.args))+` ESCAPE '\'`)
}

func (f *filter) where() string {
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// page appends ordering and offset pagination. Ordering uses the C collation
// so it is plain byte order regardless of the database locale.
func (f *filter) page(orderColumn string, opts storage.ListOptions) string {
	f.args = append(f.args, opts.Limit)
	limitArg := len(f.args)
	f.args = append(f.args, opts.Offset)
	offsetArg := len(f.args)
	return fmt.Sprintf(` ORDER BY %s COLLATE "C" ASC LIMIT $%d OFFSET $%d`, orderColumn, limitArg, offsetArg)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func deletedOne(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func jsonParam(value []byte) (string, int64, error) {
	canonical, err := storage.CanonicalJSON(value)
	if err != nil {
		return "", 0, fmt.Errorf("invalid json value: %w", err)
	}
	serialized := string(canonical)
	return serialized, storage.SizeOf(serialized), nil
}
