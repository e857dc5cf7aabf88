package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/lazypower/keepstreak/internal/config"
)

func TestNewLevels(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := New(config.LogConfig{Level: "warn", Format: format})
		if err != nil {
			t.Fatalf("New(%s): %v", format, err)
		}
		if l.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("%s: info should be disabled at warn", format)
		}
		if !l.Core().Enabled(zapcore.ErrorLevel) {
			t.Errorf("%s: error should be enabled at warn", format)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
