package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"time"

	"exam-service/internal/config"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	bunschema "github.com/uptrace/bun/schema"
)

// New opens and pings the configured database, exiting the process on failure.
func New(cfg config.DatabaseConfig) *bun.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatal("Error connecting to database:", err) // Fatal is OK here - can't run without DB
	}
	return db
}

// Open returns a bun handle for cfg.Driver. Every Postgres flavour shares pgdialect.
func Open(cfg config.DatabaseConfig) (*bun.DB, error) {
	var (
		sqldb   *sql.DB
		err     error
		dialect bunschema.Dialect
	)

	switch cfg.Driver {
	case config.DriverPostgres, "":
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN())))
		dialect = pgdialect.New()
	case config.DriverPgx:
		sqldb, err = sql.Open("pgx", cfg.PostgresDSN())
		dialect = pgdialect.New()
	case config.DriverPq:
		sqldb, err = sql.Open("postgres", cfg.PostgresDSN())
		dialect = pgdialect.New()
	case config.DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:exams.db?cache=shared"
		}
		sqldb, err = sql.Open(sqliteshim.ShimName, dsn)
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	db := bun.NewDB(sqldb, dialect)
	configurePool(db, cfg)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	slog.Info("database connected successfully", "driver", cfg.Driver)
	return db, nil
}

func configurePool(db *bun.DB, cfg config.DatabaseConfig) {
	sqlDB := db.DB

	// SQLite serialises writers; a single connection also keeps in-memory databases alive.
	if cfg.Driver == config.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
		return
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 25
	}
	sqlDB.SetMaxOpenConns(maxOpen)

	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 10
	}
	sqlDB.SetMaxIdleConns(maxIdle)

	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime == 0 {
		connMaxLifetime = 300
	}
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	connMaxIdleTime := cfg.ConnMaxIdleTime
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 60
	}
	sqlDB.SetConnMaxIdleTime(time.Duration(connMaxIdleTime) * time.Second)

	slog.Info("database pool configured",
		"max_open_conns", maxOpen,
		"max_idle_conns", maxIdle,
		"conn_max_lifetime_seconds", connMaxLifetime,
		"conn_max_idle_time_seconds", connMaxIdleTime,
	)
}

func Close(db *bun.DB) {
	if db != nil {
		db.Close()
	}
}

func RunMigrations(ctx context.Context, db *bun.DB, models ...interface{}) error {
	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for model: %w", err)
		}
	}
	slog.Info("database migrations completed successfully")
	return nil
}

// Index describes a secondary index created after the tables exist.
type Index struct {
	Model   interface{}
	Name    string
	Columns []string
	Unique  bool
}

func CreateIndexes(ctx context.Context, db *bun.DB, indexes ...Index) error {
	for _, idx := range indexes {
		q := db.NewCreateIndex().
			Model(idx.Model).
			Index(idx.Name).
			Column(idx.Columns...).
			IfNotExists()
		if idx.Unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.Name, err)
		}
	}
	return nil
}
