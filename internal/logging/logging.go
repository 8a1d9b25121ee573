// Package logging configures the process-wide slog logger used by
// package archive for structured diagnostics.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
)

// Setup installs the default slog logger: a colorized console handler
// at levelStr, fanned out to a timestamped JSON file under logDir when
// logDir is non-empty.
func Setup(levelStr string, logDir string) error {
	level := parseLevel(levelStr)

	console := tint.NewHandler(os.Stdout, &tint.Options{Level: level})

	if logDir == "" {
		slog.SetDefault(slog.New(console))
		return nil
	}

	dir := os.ExpandEnv(logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("neofile: create log directory: %w", err)
	}

	name := fmt.Sprintf("neofile_%s.log", time.Now().Format("20060102_150405"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("neofile: open log file: %w", err)
	}

	file := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(slogmulti.Fanout(console, file)))
	return nil
}

func parseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
