package config_test

import (
	"testing"
	"time"

	"exam-service/internal/config"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("local defaults", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "s3cret")

		cfg, err := config.Load(nil)
		require.NoError(t, err)

		assert.Equal(t, "unit", cfg.Env)
		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, config.DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, config.EventsNone, cfg.Events.Driver)
		assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
		assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL())
	})

	t.Run("flags override env", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("DATABASE_DRIVER", "sqlite")

		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		config.RegisterFlags(fs)
		require.NoError(t, fs.Parse([]string{"--port", "9999"}))

		cfg, err := config.Load(fs)
		require.NoError(t, err)

		assert.Equal(t, "9999", cfg.Server.Port)
		assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("DATABASE_DRIVER", "oracle")

		_, err := config.Load(nil)
		assert.Error(t, err)
	})

	t.Run("secret required outside local", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "")

		_, err := config.Load(nil)
		assert.Error(t, err)
	})
}

func TestPostgresDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "exams"}
	assert.Equal(t, "postgres://u:p@db:5432/exams?sslmode=disable", cfg.PostgresDSN())

	cfg.DSN = "postgres://override"
	assert.Equal(t, "postgres://override", cfg.PostgresDSN())
}
