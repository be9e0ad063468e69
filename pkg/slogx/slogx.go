package slogx

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Service string
	Version string
	Env     string // e.g. "dev", "prod"
	Level   string // e.g. "debug", "info", "warn", "error"
	Format  string // e.g. "json", "text"

	// Output defaults to stdout.
	Output io.Writer
}

// New returns a configured slog.Logger instance and installs it as the
// process default. Secret-looking attributes are always redacted.
func New(cfg Config) *slog.Logger {
	var handler slog.Handler

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		AddSource:   cfg.Env == "dev",
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: Redact,
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler).With(
		"service", cfg.Service,
		"version", cfg.Version,
		"env", cfg.Env,
	)

	slog.SetDefault(logger)
	return logger
}

const redacted = "[REDACTED]"

// sensitiveKeys are matched exactly after lower-casing and dropping "_" and
// "-", so mfa_secret and mfaSecret both hit while token_type does not.
var sensitiveKeys = map[string]struct{}{
	"password": {}, "currentpassword": {}, "newpassword": {}, "passwordhash": {},
	"token": {}, "accesstoken": {}, "refreshtoken": {}, "challengetoken": {},
	"enrollmenttoken": {}, "resettoken": {}, "verificationtoken": {}, "gatewaytoken": {},
	"secret": {}, "mfasecret": {}, "totpsecret": {}, "jwtsecret": {},
	"pepper": {}, "authorization": {},
	"code": {}, "totpcode": {}, "mfacode": {},
}

// Redact is a slog ReplaceAttr hook that blanks attributes carrying a
// credential. Passwords, tokens, secrets and TOTP codes must never reach the
// log sink.
func Redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if isSensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

func isSensitive(key string) bool {
	k := strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(key))
	_, ok := sensitiveKeys[k]
	return ok
}

// parseLevel maps a string to slog.Level.
func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
