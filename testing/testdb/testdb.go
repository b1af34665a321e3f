// Package testdb hands out migrated databases for repository and handler tests.
//
// By default every call to Setup gets a private in-memory SQLite database.
// With TEST_DB=postgres the tests share one PostgreSQL testcontainer instead
// and tables are truncated between tests.
package testdb

import (
	"context"
	"os"
	"reflect"
	"testing"

	"exam-service/internal/config"
	"exam-service/internal/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Setup returns an empty database with the given schema applied.
func Setup(t *testing.T, models []interface{}, indexes []db.Index) *bun.DB {
	t.Helper()
	ctx := context.Background()

	var database *bun.DB
	if os.Getenv("TEST_DB") == "postgres" {
		database = SetupSharedPostgres(t).DB
	} else {
		database = NewSQLite(t)
	}

	require.NoError(t, db.RunMigrations(ctx, database, models...))
	require.NoError(t, db.CreateIndexes(ctx, database, indexes...))

	tables := make([]string, 0, len(models))
	for _, m := range models {
		tables = append(tables, database.Table(reflectType(m)).Name)
	}
	CleanupTables(t, database, tables...)

	return database
}

// NewSQLite opens a fresh in-memory SQLite database closed when t finishes.
func NewSQLite(t *testing.T) *bun.DB {
	t.Helper()

	database, err := db.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)

	t.Cleanup(func() { database.Close() })
	return database
}

// CleanupTables empties tables and resets their identity counters.
func CleanupTables(t *testing.T, database *bun.DB, tables ...string) {
	t.Helper()

	ctx := context.Background()

	for _, table := range tables {
		var err error
		switch database.Dialect().Name() {
		case dialect.PG:
			_, err = database.ExecContext(ctx, "TRUNCATE "+table+" RESTART IDENTITY CASCADE")
		default:
			_, err = database.ExecContext(ctx, "DELETE FROM "+table)
		}
		require.NoError(t, err, "failed to clean table: %s", table)
	}
}

func reflectType(model interface{}) reflect.Type {
	typ := reflect.TypeOf(model)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ
}
