package logging

import (
	"io"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// NewZerolog builds the zerolog logger used by the catalog and influx
// managers: console output, plus a GELF writer when graylog shipping is
// enabled. A failed Graylog connection degrades to console-only.
func NewZerolog(level string, graylogEnabled bool, graylogAddr string) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	writers := []io.Writer{console}

	if graylogEnabled {
		gw, err := gelf.NewWriter(graylogAddr)
		if err == nil {
			writers = append(writers, gw)
		} else {
			fallback := zerolog.New(console)
			fallback.Warn().Err(err).Str("address", graylogAddr).
				Msg("Failed to connect GELF writer, console only")
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).With().Timestamp().Logger()
}
