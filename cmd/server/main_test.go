package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatrelay/internal/auth"
	"github.com/Tyrowin/chatrelay/internal/server"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")

	require.NoError(t, err)
	require.Equal(t, "dev\n", out)
}

func TestTokenCommand(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "cli-secret-0123456789")
	t.Setenv("JWT_ISSUER", "chatrelay-test")

	out, err := run(t, "token", "alice", "--ttl", "1h", "--env-file", "")
	req.NoError(err)

	claims, err := auth.NewJWTAuthenticator("cli-secret-0123456789", "chatrelay-test").Validate(strings.TrimSpace(out))
	req.NoError(err)
	req.Equal("alice", claims.Username)
	req.WithinDuration(time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenCommand_Requires_Secret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := run(t, "token", "alice", "--env-file", "")

	require.Error(t, err)
}

func TestTokenCommand_Requires_Identity(t *testing.T) {
	_, err := run(t, "token")
	require.Error(t, err)
}

func TestLoadConfig_Flag_Overrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("SERVER_PORT", ":7000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := loadConfig(&globalOptions{port: ":7100", logLevel: "debug"})
	req.NoError(err)
	req.Equal(":7100", cfg.Port)
	req.Equal("debug", cfg.LogLevel)

	cfg, err = loadConfig(&globalOptions{})
	req.NoError(err)
	req.Equal(":7000", cfg.Port)
	req.Equal("warn", cfg.LogLevel)
}

func TestConnectObservers_None(t *testing.T) {
	req := require.New(t)
	cfg := server.NewConfig()

	observers, closeAll, err := connectObservers(t.Context(), cfg, nil)

	req.NoError(err)
	req.Empty(observers)
	req.NotPanics(closeAll)
}
