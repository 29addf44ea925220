// Package logger sets up zerolog the same way for all binaries.
package logger

import (
	"io"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Default creates a new JSON logger with the given app name.  If the binary
// carries VCS information, the short commit hash is added to every entry.
func Default(appName string, w io.Writer) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Str("app", appName).Logger()
	if info, ok := debug.ReadBuildInfo(); ok {
		if commit := revision(info); commit != "" {
			logger = logger.With().Str("commit", commit).Logger()
		}
	}
	return logger
}

func revision(info *debug.BuildInfo) string {
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) == 40 {
			return s.Value[:7]
		}
	}
	return ""
}

// SetLevel sets the global log level if the given level is not empty.
func SetLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
