package export

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JonMunkholm/csvkit/internal/core"
)

// Dialect captures the few SQL differences between supported stores.
type Dialect struct {
	Name        string
	Placeholder func(n int) string
}

var (
	Postgres = Dialect{Name: "postgres", Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
	SQLite   = Dialect{Name: "sqlite", Placeholder: func(int) string { return "?" }}
)

// Source is the query-execute-fetch capability the exporter needs. Every
// value is fetched as text; NULL becomes "".
type Source interface {
	Dialect() Dialect
	// QueryText runs query and calls fn once per row. The row slice is
	// reused between calls.
	QueryText(ctx context.Context, query string, args []any, fn func(row []string) error) error
	Close()
}

// PoolSettings tunes the Postgres connection pool. Zero values keep the
// pgx defaults.
type PoolSettings struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// OpenFunc opens a Source for a connection URL.
type OpenFunc func(ctx context.Context, rawURL string, pool PoolSettings) (Source, error)

// Open dispatches on the URL scheme: postgres:// and postgresql:// use a pgx
// pool, sqlite:// and file: use database/sql with the modernc driver.
func Open(ctx context.Context, rawURL string, pool PoolSettings) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, core.E(core.KindConnection, "connect", "", fmt.Errorf("parse url: %w", err))
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return openPostgres(ctx, rawURL, pool)
	case "sqlite":
		return openSQLite(ctx, strings.TrimPrefix(rawURL, u.Scheme+"://"))
	case "file":
		return openSQLite(ctx, rawURL)
	}
	return nil, core.E(core.KindConnection, "connect", "", fmt.Errorf("unsupported url scheme %q", u.Scheme))
}

type pgxSource struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, rawURL string, ps PoolSettings) (*pgxSource, error) {
	cfg, err := pgxpool.ParseConfig(rawURL)
	if err != nil {
		return nil, core.E(core.KindConnection, "connect", "", fmt.Errorf("parse database url: %w", err))
	}

	if ps.MaxConns > 0 {
		cfg.MaxConns = int32(ps.MaxConns)
	}
	if ps.MinConns > 0 {
		cfg.MinConns = int32(ps.MinConns)
	}
	if ps.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = ps.MaxConnLifetime
	}
	if ps.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = ps.MaxConnIdleTime
	}
	if ps.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = ps.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, core.E(core.KindConnection, "connect", cfg.ConnConfig.Host, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.E(core.KindConnection, "connect", cfg.ConnConfig.Host, err)
	}
	return &pgxSource{pool: pool}, nil
}

func (s *pgxSource) Dialect() Dialect { return Postgres }

func (s *pgxSource) QueryText(ctx context.Context, query string, args []any, fn func([]string) error) error {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	n := len(rows.FieldDescriptions())
	vals := make([]pgtype.Text, n)
	dest := make([]any, n)
	for i := range vals {
		dest[i] = &vals[i]
	}
	row := make([]string, n)

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		for i, v := range vals {
			row[i] = v.String // "" when NULL
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *pgxSource) Close() { s.pool.Close() }

type sqlSource struct {
	db *sql.DB
}

func openSQLite(ctx context.Context, dsn string) (*sqlSource, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, core.E(core.KindConnection, "connect", dsn, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, core.E(core.KindConnection, "connect", dsn, err)
	}
	return &sqlSource{db: db}, nil
}

func (s *sqlSource) Dialect() Dialect { return SQLite }

func (s *sqlSource) QueryText(ctx context.Context, query string, args []any, fn func([]string) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	row := make([]string, len(cols))

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		for i, v := range vals {
			row[i] = v.String
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *sqlSource) Close() { s.db.Close() }
