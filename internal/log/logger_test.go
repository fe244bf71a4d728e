package log

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		level string
		want  zerolog.Level
	}{
		{name: "development default", env: "development", want: zerolog.DebugLevel},
		{name: "production default", env: "production", want: zerolog.InfoLevel},
		{name: "explicit override", env: "production", level: "warn", want: zerolog.WarnLevel},
		{name: "invalid falls back", env: "production", level: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveLevel(tt.env, tt.level))
		})
	}
}
