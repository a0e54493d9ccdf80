package session

import (
	"log"

	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the session layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logWarnf(format string, args ...any) {
	if zlog != nil {
		zlog.Warn().Msgf(format, args...)
		return
	}
	log.Printf("WARN "+format, args...)
}

func logDebugf(format string, args ...any) {
	if zlog != nil {
		zlog.Debug().Msgf(format, args...)
		return
	}
	log.Printf(format, args...)
}
