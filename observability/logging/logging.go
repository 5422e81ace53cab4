// Package logging configures structured JSON logging for hydroclient
// binaries and bridges the standard library logger into it.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options tune the log output beyond the defaults.
type Options struct {
	// File routes output through a size-rotated file instead of stdout.
	File string
	// MaxSizeMB caps a rotated file's size; zero means 100.
	MaxSizeMB int
	// MaxBackups caps the retained rotated files; zero keeps them all.
	MaxBackups int
}

// Setup installs a JSON slog handler as the process default and returns it.
// Every line carries the service name and, when provided, the environment.
// Timestamp, severity and message keys follow the fleet-wide log schema.
func Setup(service, env string, opts Options) *slog.Logger {
	var out io.Writer = os.Stdout
	if strings.TrimSpace(opts.File) != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Packages still using the standard library logger land in the same
	// stream.
	bridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	bridge.SetFlags(0)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
