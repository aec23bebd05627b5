package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		name  string
		json  bool
		debug bool
		want  zapcore.Level
	}{
		{name: "console info", want: zapcore.InfoLevel},
		{name: "json debug", json: true, debug: true, want: zapcore.DebugLevel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := New(tc.json, tc.debug)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !l.Core().Enabled(tc.want) {
				t.Fatalf("expected %s to be enabled", tc.want)
			}
			if tc.want == zapcore.InfoLevel && l.Core().Enabled(zapcore.DebugLevel) {
				t.Fatalf("debug must be disabled without the debug flag")
			}
		})
	}
}
