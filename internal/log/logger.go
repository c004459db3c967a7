package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "ztconsole"

// New returns the process logger. Production emits JSON lines at info;
// anything else gets a human readable console at debug.
func New(environment string) zerolog.Logger {
	return build(environment, os.Stdout)
}

func build(environment string, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.DebugLevel
	var w io.Writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	if environment == "production" {
		level = zerolog.InfoLevel
		w = out
	}

	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", serviceName).
		Str("env", environment).
		Logger()
}
