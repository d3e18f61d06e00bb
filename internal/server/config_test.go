package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	req := require.New(t)

	cfg := NewConfig()

	req.Equal(":8080", cfg.Port)
	req.Equal([]string{"http://localhost:8080"}, cfg.AllowedOrigins)
	req.EqualValues(4096, cfg.MaxMessageSize)
	req.Equal(RateLimitConfig{Burst: 5, RefillInterval: time.Second}, cfg.RateLimit)
	req.Equal(256, cfg.SendBufferSize)
	req.Equal(30*time.Second, cfg.ShutdownTimeout)
	req.Equal("none", cfg.StatusStore)
	req.False(cfg.AuthEnabled())
}

func TestSanitizeConfig(t *testing.T) {
	req := require.New(t)

	cfg := sanitizeConfig(Config{
		Port:                    "9090",
		AllowedOrigins:          []string{" http://a.example ", "", "  "},
		MaxMessageSize:          -1,
		RateLimitBurst:          0,
		RateLimitRefillInterval: 3,
	})

	req.Equal(":9090", cfg.Port)
	req.Equal([]string{"http://a.example"}, cfg.AllowedOrigins)
	req.EqualValues(4096, cfg.MaxMessageSize)
	req.Equal(RateLimitConfig{Burst: 5, RefillInterval: 3 * time.Second}, cfg.RateLimit)
	req.Equal(5*time.Second, cfg.ObserverTimeout)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STATUS_STORE", "Redis")
	t.Setenv("REDIS_DB", "3")

	cfg, err := LoadConfig("")

	req.NoError(err)
	req.Equal(":9999", cfg.Port)
	req.Equal([]string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	req.EqualValues(1024, cfg.MaxMessageSize)
	req.Equal(RateLimitConfig{Burst: 10, RefillInterval: 2 * time.Second}, cfg.RateLimit)
	req.Equal(5*time.Second, cfg.ShutdownTimeout)
	req.True(cfg.AuthEnabled())
	req.Equal("chatrelay", cfg.JWTIssuer)
	req.Equal("redis", cfg.StatusStore)
	req.Equal(3, cfg.RedisDB)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "lots")
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestLoadConfig_UnknownStatusStore(t *testing.T) {
	t.Setenv("STATUS_STORE", "etcd")
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), ".env")
	req.NoError(os.WriteFile(path, []byte("NATS_SUBJECT=presence.test\nLOG_LEVEL=debug\n"), 0o600))
	// godotenv does not override variables that are already set, so make
	// sure these are unset and restored afterwards.
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("LOG_LEVEL", "")
	req.NoError(os.Unsetenv("NATS_SUBJECT"))
	req.NoError(os.Unsetenv("LOG_LEVEL"))

	cfg, err := LoadConfig(path)

	req.NoError(err)
	req.Equal("presence.test", cfg.NATSSubject)
	req.Equal("debug", cfg.LogLevel)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	req.NoError(err)
}
