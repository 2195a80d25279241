package logging

import (
	"context"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, ParseLevel(tt.in), tt.want)
		})
	}
}

func TestNop(t *testing.T) {
	l := Nop().With("component", "test").WithGroup("g")
	assert.Equal(t, l.Enabled(context.Background(), LevelError), false)
	l.Error("dropped")
}
