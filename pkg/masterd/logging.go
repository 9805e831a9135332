package masterd

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// logLevel maps the numeric verbosity setting onto zerolog levels. Each
// level includes everything above it, matching the documented scale in the
// preferences file.
func logLevel(verbosity uint32) zerolog.Level {
	switch verbosity {
	case 0:
		return zerolog.Disabled
	case 1:
		return zerolog.ErrorLevel
	case 2:
		return zerolog.WarnLevel
	case 3:
		return zerolog.InfoLevel
	case 4:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// NewLogger builds the daemon logger from the configuration. Output is a
// console writer on w; timestamps are dropped entirely when the timestamp
// setting is zero.
func NewLogger(cfg *Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	l := zerolog.New(cw).Level(logLevel(cfg.Verbosity))
	if cfg.Timestamp != 0 {
		l = l.With().Timestamp().Logger()
	}
	return l
}
