package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"food-storefront/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is shared by the postgres-backed catalog, carts, orders, users and links.
var Pool *pgxpool.Pool

// ConnString builds the postgres URL; credentials are escaped.
func ConnString(cfg config.DBConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// Init opens the pool and checks the server is reachable.
func Init(cfg config.DBConfig) error {
	poolCfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return fmt.Errorf("parse db config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping db: %w", err)
	}
	Pool = pool
	return nil
}

func Close() {
	if Pool != nil {
		Pool.Close()
	}
}
