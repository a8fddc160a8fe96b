// Package logger wires reposcribe's structured logging, following the
// console-writer-in-text-mode / stdout-in-json-mode pattern used
// throughout the server this project started from.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reposcribe/reposcribe/internal/config"
)

// Format names the supported log output formats.
type Format string

// The two supported formats.
const (
	Text Format = "text"
	JSON Format = "json"
)

// FromFlags configures logging and returns a logger matching cfg. It
// also performs some global initialization, because that's how
// zerolog works.
func FromFlags(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var loggers []io.Writer

	zerolog.ErrorFieldName = "exception.message"
	zerolog.TimestampFieldName = "Timestamp"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixNano

	if cfg.LogFile != "" {
		path := filepath.Clean(cfg.LogFile)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			log.Err(err).Msg("failed to open log file, defaulting to stdout")
		} else {
			loggers = append(loggers, file)
		}
	}

	if Format(cfg.Format) == Text {
		loggers = append(loggers, zerolog.NewConsoleWriter())
	} else {
		loggers = append(loggers, os.Stdout)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(loggers...)).With().Timestamp().Logger()

	// Use this logger when calling zerolog.Ctx(nil), etc.
	zerolog.DefaultContextLogger = &logger
	return logger
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
