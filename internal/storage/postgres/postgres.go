package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeovahfialho/capgains-ledger/internal/config"
)

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(cfg *config.Config) (*DB, error) {
	return Connect(context.Background(), cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns, cfg.DatabaseMaxConnLife)
}

func Connect(ctx context.Context, url string, maxConns, minConns int32, maxConnLife time.Duration) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("erro ao parsear config: %w", err)
	}

	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	if minConns > 0 {
		poolConfig.MinConns = minConns
	}
	if maxConnLife > 0 {
		poolConfig.MaxConnLifetime = maxConnLife
	}
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("erro ao conectar: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) HealthCheck(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

// Os valores ficam como texto: a validação de quantidade, preço e data é
// feita pelo motor de lotes, que trata registros malformados como zero ou
// os descarta.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		seq            BIGSERIAL PRIMARY KEY,
		id             TEXT NOT NULL UNIQUE,
		action         TEXT NOT NULL DEFAULT '',
		token          TEXT NOT NULL DEFAULT '',
		quantity       TEXT NOT NULL DEFAULT '',
		price_per_unit TEXT NOT NULL DEFAULT '',
		trade_date     TEXT NOT NULL DEFAULT '',
		source         TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_token ON trades (token)`,
}

// Migrate cria o esquema se ainda não existir.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("erro na migração %d: %w", i+1, err)
		}
	}
	return nil
}
