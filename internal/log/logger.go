package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Production writes JSON, everything else a
// console writer. An explicit level overrides the environment default.
func New(environment string, level string) zerolog.Logger {
	var output io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	if environment == "production" {
		output = os.Stdout
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("env", environment).
		Logger()

	zerolog.SetGlobalLevel(resolveLevel(environment, level))

	return logger
}

func resolveLevel(environment string, level string) zerolog.Level {
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			return parsed
		}
	}
	if environment != "production" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
