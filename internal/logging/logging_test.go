package logging

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{input: "", want: zerolog.InfoLevel},
		{input: "info", want: zerolog.InfoLevel},
		{input: "DEBUG", want: zerolog.DebugLevel},
		{input: " warn ", want: zerolog.WarnLevel},
		{input: "warning", want: zerolog.WarnLevel},
		{input: "error", want: zerolog.ErrorLevel},
		{input: "disabled", want: zerolog.Disabled},
		{input: "verbose", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWithRequestID(t *testing.T) {
	ctx, id := WithRequestID(context.Background(), "")
	if id == "" {
		t.Fatal("expected a generated request id")
	}
	if got := RequestIDFrom(ctx); got != id {
		t.Errorf("RequestIDFrom = %q, want %q", got, id)
	}

	ctx, id = WithRequestID(context.Background(), "req-7")
	if id != "req-7" {
		t.Errorf("explicit id rewritten to %q", id)
	}
	if got := RequestIDFrom(ctx); got != "req-7" {
		t.Errorf("RequestIDFrom = %q, want req-7", got)
	}

	if got := RequestIDFrom(context.Background()); got != "" {
		t.Errorf("empty context produced id %q", got)
	}
}
