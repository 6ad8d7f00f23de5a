package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.App.Addr())
	assert.Equal(t, "/api/v1", cfg.App.APIPrefix)
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, time.Duration(0), cfg.Auth.ClockSkew)
	assert.True(t, cfg.Auth.RevocationEnabled)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("AUTH_JWT_SECRET", "s3cr3t")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL", "15m")
	t.Setenv("AUTH_CLOCK_SKEW", "5s")
	t.Setenv("AUTH_REVOCATION_ENABLED", "false")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "s3cr3t", cfg.Auth.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Auth.ClockSkew)
	assert.False(t, cfg.Auth.RevocationEnabled)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{Auth: AuthConfig{JWTSecret: "k", AccessTokenTTL: time.Hour, BcryptCost: 10}}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "AUTH_JWT_SECRET"},
		{name: "zero ttl", mutate: func(c *Config) { c.Auth.AccessTokenTTL = 0 }, wantErr: "AUTH_ACCESS_TOKEN_TTL"},
		{name: "negative skew", mutate: func(c *Config) { c.Auth.ClockSkew = -time.Second }, wantErr: "AUTH_CLOCK_SKEW"},
		{name: "cost too low", mutate: func(c *Config) { c.Auth.BcryptCost = 1 }, wantErr: "AUTH_BCRYPT_COST"},
		{name: "cost too high", mutate: func(c *Config) { c.Auth.BcryptCost = 40 }, wantErr: "AUTH_BCRYPT_COST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClientConfig_HTTPTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Second, ClientConfig{}.HTTPTimeout())
	assert.Equal(t, 3*time.Second, ClientConfig{HTTPTimeoutSeconds: 3}.HTTPTimeout())
}
