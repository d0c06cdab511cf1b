package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewParsesLevel(t *testing.T) {
	cases := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := New("prod", tc.level, "identity-service").GetLevel(); got != tc.want {
			t.Errorf("level %q: got %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestNewAttachesServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger := New("prod", "info", "identity-service").Output(&buf)

	logger.Info().Msg("ready")

	if !strings.Contains(buf.String(), `"service":"identity-service"`) {
		t.Fatalf("service field missing from output: %s", buf.String())
	}
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New("prod", "info", "identity-service").Output(&buf)

	child := With(logger, Fields{"component": "auth"})
	child.Info().Msg("ready")

	out := buf.String()
	if !strings.Contains(out, `"component":"auth"`) {
		t.Fatalf("component field missing from output: %s", out)
	}
	if !strings.Contains(out, `"service":"identity-service"`) {
		t.Fatalf("parent context must survive With: %s", out)
	}
}
