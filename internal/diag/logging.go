package diag

import (
	"log"

	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the diagnostics layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logErrorf(format string, args ...any) {
	if zlog != nil {
		zlog.Error().Msgf(format, args...)
		return
	}
	log.Printf("ERROR "+format, args...)
}
