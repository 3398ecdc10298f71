package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Engine.DefaultPerPage)
	assert.Equal(t, 100, cfg.Engine.MaxPerPage)
	assert.Equal(t, 5*time.Minute, cfg.Engine.ImportTimeout)
	assert.Equal(t, "UTC", cfg.Engine.Location.String())
	assert.True(t, cfg.Auth.EnforcePrivileges)
	assert.NotEmpty(t, cfg.Auth.JWTSecret, "development generates a secret")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DEFAULT_PER_PAGE", "25")
	t.Setenv("IMPORT_TIMEOUT", "30s")
	t.Setenv("ENFORCE_PRIVILEGES", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("TIMEZONE", "Asia/Kolkata")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Engine.DefaultPerPage)
	assert.Equal(t, 30*time.Second, cfg.Engine.ImportTimeout)
	assert.False(t, cfg.Auth.EnforcePrivileges)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "Asia/Kolkata", cfg.Engine.Location.String())
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	t.Setenv("JWT_SECRET", "x")

	_, err := Load()
	assert.Error(t, err)
}
