package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, DefaultWSURL, cfg.WSURL)
	assert.Equal(t, DefaultWSPrefix, cfg.WSPrefix)
	assert.Equal(t, DefaultRESTTimeout, cfg.RESTTimeout)
	assert.Equal(t, DefaultRefreshInterval, cfg.RefreshInterval)
	assert.Equal(t, ArchiveOff, cfg.Archive)
	assert.False(t, cfg.StreamingEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("LAUNCH_MEME_WS_TOKEN", " secret ")
	t.Setenv("LAUNCH_MEME_WS_PREFIX", "env-prefix")
	t.Setenv("LAUNCH_MEME_REFRESH_INTERVAL", "30s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("ws-prefix", DefaultWSPrefix, "")
	flags.String("api", DefaultAPIBaseURL, "")
	require.NoError(t, flags.Parse([]string{"--api", "http://localhost:9000/api/"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.WSToken)
	assert.True(t, cfg.StreamingEnabled())
	assert.Equal(t, "env-prefix", cfg.WSPrefix, "env beats an unset flag default")
	assert.Equal(t, "http://localhost:9000/api", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terminal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("archive: postgres\npostgres-dsn: postgres://x\nhttp-addr: \":9999\"\n"), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ArchivePostgres, cfg.Archive)
	assert.Equal(t, "postgres://x", cfg.PostgresDSN)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.NoError(t, cfg.Validate())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no api", func(c *Config) { c.APIBaseURL = "" }},
		{"zero timeout", func(c *Config) { c.RESTTimeout = 0 }},
		{"zero refresh", func(c *Config) { c.RefreshInterval = 0 }},
		{"postgres without dsn", func(c *Config) { c.Archive = ArchivePostgres }},
		{"clickhouse without dsn", func(c *Config) { c.Archive = ArchiveClickHouse }},
		{"unknown archive", func(c *Config) { c.Archive = "s3" }},
		{"no buffer", func(c *Config) { c.Archive = ArchiveMemory; c.ArchiveBuffer = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(""))
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LAUNCH_MEME_TEST_ONLY=from-file\n"), 0o600))
	t.Setenv("LAUNCH_MEME_TEST_ONLY", "")
	os.Unsetenv("LAUNCH_MEME_TEST_ONLY")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("LAUNCH_MEME_TEST_ONLY"))
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestInspectCredential(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	valid, err := InspectCredential(signed(t, jwt.MapClaims{"sub": "user-1", "exp": now.Add(time.Hour).Unix()}), now)
	require.NoError(t, err)
	assert.Equal(t, "user-1", valid.Subject)
	assert.False(t, valid.Expired)
	assert.True(t, now.Add(time.Hour).Equal(valid.ExpiresAt))

	expired, err := InspectCredential(signed(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}), now)
	require.NoError(t, err)
	assert.True(t, expired.Expired)

	noExp, err := InspectCredential(signed(t, jwt.MapClaims{"sub": "x"}), now)
	require.NoError(t, err)
	assert.True(t, noExp.ExpiresAt.IsZero())
	assert.False(t, noExp.Expired)

	_, err = InspectCredential("opaque-api-key", now)
	assert.ErrorIs(t, err, ErrNotJWT)
}
