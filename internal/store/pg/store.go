package pg

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/campuskit/idp/internal/observability/logger"
	migrations "github.com/campuskit/idp/migrations/postgres"
)

type Store struct{ pool *pgxpool.Pool }

// Tuning opcional del pool (mapeo desde config).
type Tuning struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

func New(ctx context.Context, dsn string, t Tuning) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if t.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(t.MaxOpenConns)
	}
	// Mapear MaxIdleConns → MinConns (pgxpool)
	if t.MaxIdleConns > 0 {
		pcfg.MinConns = int32(t.MaxIdleConns)
	}
	if t.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(t.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (metrics/tests de integración).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Migrate aplica las migraciones embebidas en orden lexicográfico.
// Cada archivo se registra en schema_migrations; re-ejecutar es no-op.
func (s *Store) Migrate(ctx context.Context) error {
	log := logger.Named("pg.migrate")

	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   text PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("migrate bootstrap: %w", err)
	}

	entries, err := migrations.FS.ReadDir(migrations.Dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename=$1)`, name,
		).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}

		sqlBytes, err := migrations.FS.ReadFile(migrations.Dir + "/" + name)
		if err != nil {
			return err
		}
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migrate %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}
