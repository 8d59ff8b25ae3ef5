package utils

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// InitLogger sets up the process-wide slog logger.
// Logs go to stderr, and additionally to ~/.sagekit/logs/sagekit.log when the
// directory can be created. Level is Debug when SAGEKIT_DEBUG is set.
func InitLogger() {
	loggerOnce.Do(func() {
		level := slog.LevelInfo
		if os.Getenv("SAGEKIT_DEBUG") != "" {
			level = slog.LevelDebug
		}

		var w io.Writer = os.Stderr
		if home, err := os.UserHomeDir(); err == nil {
			logDir := filepath.Join(home, ".sagekit", "logs")
			if err := os.MkdirAll(logDir, 0o700); err == nil {
				f, err := os.OpenFile(filepath.Join(logDir, "sagekit.log"),
					os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err == nil {
					w = io.MultiWriter(os.Stderr, f)
				}
			}
		}

		logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	})
}

// GetLogger returns the shared logger, initializing it on first use.
func GetLogger() *slog.Logger {
	if logger == nil {
		InitLogger()
	}
	return logger
}
