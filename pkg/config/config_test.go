package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("projecthub")
	require.NoError(t, err)

	assert.Equal(t, "projecthub", cfg.ServiceName)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 24, cfg.JWT.ExpirationHours)
	assert.Equal(t, 10*time.Second, cfg.DB.QueryTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/hub.db")
	t.Setenv("JWT_EXPIRATION_HOURS", "2")
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("FRONTEND_URL", "http://a.test, http://b.test")

	cfg, err := Load("projecthub")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.JWT.ExpirationHours)
	assert.Equal(t, logger.Silent, cfg.DB.LogLevel)
	assert.Equal(t, "file:/tmp/hub.db?_foreign_keys=on&_busy_timeout=5000", cfg.DB.GetDSN())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mysql")
		_, err := Load("projecthub")
		require.Error(t, err)
	})

	t.Run("non positive ttl", func(t *testing.T) {
		t.Setenv("JWT_EXPIRATION_HOURS", "0")
		_, err := Load("projecthub")
		require.Error(t, err)
	})
}

func TestPostgresDSN(t *testing.T) {
	c := DBConfig{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", DBName: "hub", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=hub sslmode=disable", c.GetDSN())
}
