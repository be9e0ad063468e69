package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/autopay/internal/auth/service"
	"github.com/aussiebroadwan/autopay/pkg/jwtx"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full runtime configuration. Values come from, in increasing
// priority: defaults, the TOML file named by AUTH_CONFIG_FILE, and the
// environment (a .env file in the working directory is loaded first).
type Config struct {
	Env                 string        `toml:"env"`                   // dev, staging, prod (default: dev)
	LogLevel            string        `toml:"log_level"`             // debug, info, warn, error (default: info)
	LogFormat           string        `toml:"log_format"`            // json, text (default: json)
	Port                int           `toml:"port"`                  // HTTP port (default: 8080)
	ShutdownGracePeriod time.Duration `toml:"shutdown_grace_period"` // default: 10s
	TrustProxy          bool          `toml:"trust_proxy"`           // honour X-Forwarded-For for client IPs
	SentryDSN           string        `toml:"sentry_dsn"`            // optional error reporting

	DatabaseDriver    string        `toml:"database_driver"` // sqlite or postgres (default: sqlite)
	DatabaseFile      string        `toml:"database_file"`   // sqlite path (default: auth.db)
	DatabaseURL       string        `toml:"database_url"`    // postgres://...
	DBMaxOpenConns    int           `toml:"db_max_open_conns"`
	DBMaxIdleConns    int           `toml:"db_max_idle_conns"`
	DBConnMaxLifetime time.Duration `toml:"db_conn_max_lifetime"`
	StorageTimeout    time.Duration `toml:"storage_timeout"` // per storage call (default: 5s)
	PepperFile        string        `toml:"pepper_file"`     // default: ./pepper

	JWTSecret   string        `toml:"jwt_secret"` // Required: HS256 key, at least 32 bytes
	Issuer      string        `toml:"issuer"`
	Audience    string        `toml:"audience"`
	AccessTTL   time.Duration `toml:"access_ttl"`
	RefreshTTL  time.Duration `toml:"refresh_ttl"`
	TokenLeeway time.Duration `toml:"token_leeway"`

	MFAIssuer         string        `toml:"mfa_issuer"`
	MaxFailedAttempts int           `toml:"max_failed_attempts"`
	LockoutDuration   Minutes       `toml:"lockout_duration_minutes"` // default: 30
	AdminEmails       []string      `toml:"admin_emails"`
	GatewayToken      string        `toml:"gateway_token"` // shared secret of the OAuth2 gateway

	AuditBuffer          int           `toml:"audit_buffer"`
	HousekeepingInterval time.Duration `toml:"housekeeping_interval"` // default: 1h
	SessionRetention     time.Duration `toml:"session_retention"`     // default: 90 days
	AuditRetention       time.Duration `toml:"audit_retention"`       // default: 365 days
}

// DefaultConfig returns the built-in defaults. JWTSecret has none.
func DefaultConfig() Config {
	return Config{
		Env:                 "dev",
		LogLevel:            "info",
		LogFormat:           "json",
		Port:                8080,
		ShutdownGracePeriod: 10 * time.Second,

		DatabaseDriver: DriverSQLite,
		DatabaseFile:   "auth.db",
		DBMaxOpenConns: 20,
		DBMaxIdleConns: 5,
		StorageTimeout: service.DefaultStorageTimeout,
		PepperFile:     "pepper",

		Issuer:     "cc-autopay-system",
		Audience:   "cc-autopay-client",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: service.DefaultRefreshTTL,

		MFAIssuer:         service.DefaultMFAIssuer,
		MaxFailedAttempts: service.DefaultMaxFailedAttempts,
		LockoutDuration:   Minutes(service.DefaultLockoutDuration),

		AuditBuffer:          1024,
		HousekeepingInterval: service.DefaultHousekeepingInterval,
		SessionRetention:     service.DefaultSessionRetention,
		AuditRetention:       service.DefaultAuditRetention,
	}
}

// LoadConfig assembles the configuration. It does not validate it.
func LoadConfig() (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path := os.Getenv("AUTH_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Env = getEnvOrDefault("ENV", c.Env)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
	c.Port = getEnvIntOrDefault("PORT", c.Port)
	c.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", c.ShutdownGracePeriod)
	c.TrustProxy = getEnvBoolOrDefault("AUTH_TRUST_PROXY", c.TrustProxy)
	c.SentryDSN = getEnvOrDefault("SENTRY_DSN", c.SentryDSN)

	c.DatabaseDriver = strings.ToLower(getEnvOrDefault("AUTH_DATABASE_DRIVER", c.DatabaseDriver))
	c.DatabaseFile = getEnvOrDefault("AUTH_DATABASE_FILE", c.DatabaseFile)
	c.DatabaseURL = getEnvOrDefault("AUTH_DATABASE_URL", c.DatabaseURL)
	c.DBMaxOpenConns = getEnvIntOrDefault("AUTH_DB_MAX_OPEN_CONNS", c.DBMaxOpenConns)
	c.DBMaxIdleConns = getEnvIntOrDefault("AUTH_DB_MAX_IDLE_CONNS", c.DBMaxIdleConns)
	c.DBConnMaxLifetime = getEnvDurationOrDefault("AUTH_DB_CONN_MAX_LIFETIME", c.DBConnMaxLifetime)
	c.StorageTimeout = getEnvDurationOrDefault("AUTH_STORAGE_TIMEOUT", c.StorageTimeout)
	c.PepperFile = getEnvOrDefault("AUTH_PEPPER_FILE", c.PepperFile)

	c.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", c.JWTSecret)
	c.Issuer = getEnvOrDefault("AUTH_ISSUER", c.Issuer)
	c.Audience = getEnvOrDefault("AUTH_AUDIENCE", c.Audience)
	c.AccessTTL = getEnvDurationOrDefault("AUTH_ACCESS_TTL", c.AccessTTL)
	c.RefreshTTL = getEnvDurationOrDefault("AUTH_REFRESH_TTL", c.RefreshTTL)
	c.TokenLeeway = getEnvDurationOrDefault("AUTH_TOKEN_LEEWAY", c.TokenLeeway)

	c.MFAIssuer = getEnvOrDefault("AUTH_MFA_ISSUER", c.MFAIssuer)
	c.MaxFailedAttempts = getEnvIntOrDefault("AUTH_MAX_FAILED_ATTEMPTS", c.MaxFailedAttempts)
	c.LockoutDuration = getEnvMinutesOrDefault("AUTH_LOCKOUT_DURATION_MINUTES", c.LockoutDuration)
	c.AdminEmails = getEnvListOrDefault("AUTH_ADMIN_EMAILS", c.AdminEmails)
	c.GatewayToken = getEnvOrDefault("AUTH_GATEWAY_TOKEN", c.GatewayToken)

	c.AuditBuffer = getEnvIntOrDefault("AUTH_AUDIT_BUFFER", c.AuditBuffer)
	c.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", c.HousekeepingInterval)
	c.SessionRetention = getEnvDurationOrDefault("SESSION_RETENTION", c.SessionRetention)
	c.AuditRetention = getEnvDurationOrDefault("AUDIT_RETENTION", c.AuditRetention)
}

// Minutes is a duration configured in minutes. Integers, in TOML or the
// environment, count minutes; strings such as "90m" or "2h" are Go durations.
type Minutes time.Duration

func (m Minutes) Duration() time.Duration { return time.Duration(m) }

func (m Minutes) String() string { return time.Duration(m).String() }

// UnmarshalTOML implements toml.Unmarshaler.
func (m *Minutes) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case int64:
		*m = Minutes(time.Duration(x) * time.Minute)
	case string:
		d, err := parseMinutes(x)
		if err != nil {
			return err
		}
		*m = Minutes(d)
	default:
		return fmt.Errorf("minutes: want an integer or a duration string, got %T", v)
	}
	return nil
}

func parseMinutes(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	return time.ParseDuration(s)
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < jwtx.MinKeyLength {
		errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", jwtx.MinKeyLength))
	}
	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.DatabaseDriver))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.Issuer == "" || c.Audience == "" {
		errs = append(errs, errors.New("token issuer and audience are required"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.MaxFailedAttempts <= 0 {
		errs = append(errs, errors.New("lockout threshold must be positive"))
	}
	if c.LockoutDuration.Duration() < time.Minute {
		errs = append(errs, fmt.Errorf("lockout duration must be at least one minute, got %s", c.LockoutDuration.Duration()))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "[REDACTED]"
	}
	c.JWTSecret = mask(c.JWTSecret)
	c.GatewayToken = mask(c.GatewayToken)
	c.SentryDSN = mask(c.SentryDSN)
	c.DatabaseURL = mask(c.DatabaseURL)
	return c
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvMinutesOrDefault(key string, defaultValue Minutes) Minutes {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := parseMinutes(value); err == nil {
		return Minutes(d)
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
