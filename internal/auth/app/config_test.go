package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"AUTH_CONFIG_FILE", "PORT", "AUTH_DATABASE_DRIVER", "AUTH_ACCESS_TTL", "AUTH_REFRESH_TTL", "AUTH_LOCKOUT_DURATION_MINUTES"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, time.Hour, cfg.AccessTTL)
	require.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	require.Equal(t, 5, cfg.MaxFailedAttempts)
	require.Equal(t, 30*time.Minute, cfg.LockoutDuration.Duration())
	require.Equal(t, "CC AutoPay", cfg.MFAIssuer)
	require.Equal(t, "cc-autopay-system", cfg.Issuer)
	require.Equal(t, "cc-autopay-client", cfg.Audience)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "auth.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = 9090
database_driver = "postgres"
database_url = "postgres://auth@db/auth"
lockout_duration_minutes = 15
max_failed_attempts = 3
admin_emails = ["ops@example.com"]
`), 0o600))

	t.Setenv("AUTH_CONFIG_FILE", path)
	t.Setenv("AUTH_LOCKOUT_DURATION_MINUTES", "")
	t.Setenv("PORT", "7070")
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("AUTH_REFRESH_TTL", "3600")
	t.Setenv("AUTH_TRUST_PROXY", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Port)
	require.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	require.Equal(t, "postgres://auth@db/auth", cfg.DatabaseURL)
	require.Equal(t, 15*time.Minute, cfg.LockoutDuration.Duration())
	require.Equal(t, 3, cfg.MaxFailedAttempts)
	require.Equal(t, []string{"ops@example.com"}, cfg.AdminEmails)
	require.Equal(t, time.Hour, cfg.RefreshTTL)
	require.True(t, cfg.TrustProxy)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_LockoutMinutes(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		toml string
		env  string
		want time.Duration
	}{
		{"toml integer is minutes", "lockout_duration_minutes = 30", "", 30 * time.Minute},
		{"toml duration string", `lockout_duration_minutes = "2h"`, "", 2 * time.Hour},
		{"env integer is minutes", "", "45", 45 * time.Minute},
		{"env duration string", "", "90m", 90 * time.Minute},
		{"env overrides file", "lockout_duration_minutes = 10", "20", 20 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "auth.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.toml+"\n"), 0o600))
			t.Setenv("AUTH_CONFIG_FILE", path)
			t.Setenv("AUTH_LOCKOUT_DURATION_MINUTES", tt.env)

			cfg, err := LoadConfig()
			require.NoError(t, err)
			require.Equal(t, tt.want, cfg.LockoutDuration.Duration())
		})
	}
}

func TestLoadConfig_LockoutMinutesRejectsBool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.toml")
	require.NoError(t, os.WriteFile(path, []byte("lockout_duration_minutes = true\n"), 0o600))
	t.Setenv("AUTH_CONFIG_FILE", path)

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("AUTH_CONFIG_FILE", "")
	// godotenv never overrides a variable that is already present.
	t.Setenv("AUTH_GATEWAY_TOKEN", "")
	require.NoError(t, os.Unsetenv("AUTH_GATEWAY_TOKEN"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AUTH_GATEWAY_TOKEN=from-dotenv\n"), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.GatewayToken)
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = \"not a number\""), 0o600))
	t.Setenv("AUTH_CONFIG_FILE", path)

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.JWTSecret = testSecret
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "AUTH_JWT_SECRET"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "AUTH_JWT_SECRET"},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, "mysql"},
		{"postgres without url", func(c *Config) { c.DatabaseDriver = DriverPostgres }, "AUTH_DATABASE_URL"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "port"},
		{"zero lockout", func(c *Config) { c.LockoutDuration = 0 }, "lockout"},
		{"sub-minute lockout", func(c *Config) { c.LockoutDuration = Minutes(30 * time.Second) }, "at least one minute"},
		{"zero threshold", func(c *Config) { c.MaxFailedAttempts = 0 }, "threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWTSecret = testSecret
	cfg.GatewayToken = "gw"

	r := cfg.Redacted()
	require.NotContains(t, strings.Join([]string{r.JWTSecret, r.GatewayToken}, " "), testSecret)
	require.Empty(t, r.SentryDSN)
	require.Equal(t, testSecret, cfg.JWTSecret)
}

func TestGetEnvListOrDefault(t *testing.T) {
	t.Setenv("LIST", " A@x.com, ,b@y.com ")
	require.Equal(t, []string{"a@x.com", "b@y.com"}, getEnvListOrDefault("LIST", nil))
	require.Equal(t, []string{"d"}, getEnvListOrDefault("UNSET_LIST_KEY", []string{"d"}))
}
