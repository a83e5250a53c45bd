// Package logging builds the zap logger used across fieldforms and scrubs
// credentials from strings before they are logged.
package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New returns a logger at the given level ("debug", "info", "warn",
// "error"). The json format uses the production encoder; console uses the
// development one.
func New(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if level == "" {
		level = "info"
	}
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", FormatJSON:
		cfg = zap.NewProductionConfig()
	case FormatConsole:
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Redacted replaces secrets in logged strings.
const Redacted = "[REDACTED]"

var (
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)
	userinfoPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`)
	bearerPattern   = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]*`)
)

// SanitizeDSN hides the password of a database connection string in either
// URL or key=value form.
func SanitizeDSN(dsn string) string {
	out := passwordPattern.ReplaceAllString(dsn, "${1}="+Redacted)
	return userinfoPattern.ReplaceAllString(out, "://"+Redacted+"@")
}

// SanitizeError returns err's message with connection passwords and bearer
// tokens removed.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	out := SanitizeDSN(err.Error())
	return bearerPattern.ReplaceAllString(out, "Bearer "+Redacted)
}
