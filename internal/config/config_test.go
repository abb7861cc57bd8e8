package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDevConfig() *Config {
	return &Config{
		Port:                   "8375",
		JWTSecret:              "dev-secret",
		DBPassword:             "password",
		DBSSLMode:              "disable",
		DefaultProfileImageURL: "https://static.flatnest.dev/profiles/default.jpg",
		DefaultProfileImageID:  "profiles/default",
		Env:                    "development",
	}
}

func validProdConfig() *Config {
	cfg := validDevConfig()
	cfg.Env = "production"
	cfg.JWTSecret = strings.Repeat("s", 32)
	cfg.DBPassword = "a-real-database-password"
	cfg.DBSSLMode = "require"
	cfg.StorageCloudName = "flatnest"
	cfg.StorageAPIKey = "key"
	cfg.StorageAPISecret = "secret"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	t.Run("development defaults pass", func(t *testing.T) {
		assert.NoError(t, validDevConfig().Validate())
	})

	t.Run("missing port", func(t *testing.T) {
		cfg := validDevConfig()
		cfg.Port = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		cfg := validDevConfig()
		cfg.JWTSecret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing profile image sentinels", func(t *testing.T) {
		cfg := validDevConfig()
		cfg.DefaultProfileImageID = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("valid production config passes", func(t *testing.T) {
		assert.NoError(t, validProdConfig().Validate())
	})

	t.Run("production rejects the default jwt secret", func(t *testing.T) {
		cfg := validProdConfig()
		cfg.JWTSecret = "your-secret-key-change-in-production"
		assert.Error(t, cfg.Validate())
	})

	t.Run("production rejects a short jwt secret", func(t *testing.T) {
		cfg := validProdConfig()
		cfg.JWTSecret = "short"
		assert.Error(t, cfg.Validate())
	})

	t.Run("production rejects a default db password", func(t *testing.T) {
		cfg := validProdConfig()
		cfg.DBPassword = "password"
		assert.Error(t, cfg.Validate())
	})

	t.Run("production requires storage credentials", func(t *testing.T) {
		cfg := validProdConfig()
		cfg.StorageAPISecret = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8375", cfg.Port)
	assert.Equal(t, "flatnest", cfg.DBName)
	assert.Equal(t, "localhost:6379", cfg.RedisURL)
	assert.Equal(t, "profiles/default", cfg.DefaultProfileImageID)
	assert.NotEmpty(t, cfg.AllowedOrigins)
}
