package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ParseZerologLevel maps a config level to zerolog, defaulting to info.
func ParseZerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewZerolog builds the component logger used by the storage and metrics
// managers. Each writer gets an uncoloured console encoder.
func NewZerolog(level string, writers ...io.Writer) zerolog.Logger {
	outs := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		outs = append(outs, zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: time.RFC3339,
		})
	}
	if len(outs) == 0 {
		return zerolog.Nop()
	}

	return zerolog.New(zerolog.MultiLevelWriter(outs...)).
		Level(ParseZerologLevel(level)).
		With().Timestamp().Logger()
}
