package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)
	require.Equal(t, ":8443", cfg.Addr)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, StorePostgres, cfg.Store)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, "goph-share", cfg.TOTPIssuer)
	require.Equal(t, "member-activity", cfg.Kafka.Topic)
	require.Equal(t, 5, cfg.Limiter.MaxFails)
	require.Empty(t, cfg.Redis.Addr)
	require.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"STORE":           "memory",
		"JWT_KEY":         "k",
		"AGE_IDENTITY":    "id",
		"REDIS_ADDR":      "redis:6379",
		"REDIS_DB":        "2",
		"LOGIN_BLOCK_FOR": "1h",
		"CORS_ORIGINS":    "https://a.example,https://b.example",
	}))
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.Store)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
	require.Equal(t, 2, cfg.Redis.DB)
	require.Equal(t, time.Hour, cfg.Limiter.BlockFor)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadWith_BadValue(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{"ACCESS_TTL": "soon"}))
	require.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"STORE":    "sqlite",
		"TLS_CERT": "cert.pem",
	}))
	require.NoError(t, err)
	err = cfg.Validate()
	require.ErrorContains(t, err, "jwt signing key")
	require.ErrorContains(t, err, "age identity")
	require.ErrorContains(t, err, "unknown store")
	require.ErrorContains(t, err, "tls cert and key")
}
