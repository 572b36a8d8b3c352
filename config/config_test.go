package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.True(t, cfg.IsDevelopment())
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoadDatabaseURLSelectsPostgres(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/coparent")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestLoadLists(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,,")
	t.Setenv("ADMIN_EMAILS", "Root@Example.com")
	t.Setenv("APP_ENV", "production")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.IsAdminEmail("root@example.com"))
	assert.False(t, cfg.IsAdminEmail("other@example.com"))
	assert.False(t, cfg.IsDevelopment())
}
