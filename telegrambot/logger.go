package telegrambot

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SecretToken is a string type that redacts itself in logs and string output.
// Use this for sensitive values like the bot token or the webhook secret.
type SecretToken string

// LogValue implements slog.LogValuer to redact sensitive tokens in logs.
func (SecretToken) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// String returns "[REDACTED]" to prevent accidental exposure in fmt.Print, logs, etc.
func (SecretToken) String() string {
	return "[REDACTED]"
}

// Value returns the actual secret value. Use sparingly and never log the result.
func (t SecretToken) Value() string {
	return string(t)
}

// ValidateBotToken checks the "<bot id>:<secret>" shape of a bot token.
func ValidateBotToken(token SecretToken) error {
	raw := token.Value()
	if raw == "" {
		return ErrBotTokenRequired
	}
	id, secret, ok := strings.Cut(raw, ":")
	if !ok || id == "" || len(secret) < 30 {
		return ErrInvalidBotToken
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ErrInvalidBotToken
		}
	}
	for _, r := range secret {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return ErrInvalidBotToken
		}
	}
	return nil
}

// ParseLevel maps a config string (debug, info, warn, error) to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// NewLogger creates a production-ready structured logger using Go's built-in log/slog.
// Logs are output in JSON format to stdout and optionally to a log file under ./logs.
func NewLogger(logLevel slog.Level, logFilePath string) (*slog.Logger, error) {
	var logOutput io.Writer = os.Stdout

	if logFilePath != "" {
		safeDir := "./logs"
		cleanPath := filepath.Clean(filepath.Join(safeDir, filepath.Base(logFilePath)))
		if err := ensureLogPath(cleanPath); err != nil {
			return nil, err
		}

		logFile, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, err
		}
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}

	handler := slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler), nil
}

// ensureLogPath creates all parent directories for the log file.
func ensureLogPath(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
