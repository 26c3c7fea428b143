package laketesting

import (
	"log/slog"
	"os"

	"github.com/playlake/dashboard/utils/pkg/logger"
)

// NewLogger returns a logger for tests. Debug output is enabled with DEBUG=1.
func NewLogger() *slog.Logger {
	return logger.NewWithWriter(os.Stderr, os.Getenv("DEBUG") == "1")
}
