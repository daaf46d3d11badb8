package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"dev", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"prod", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOutputFallsBackWithWarning(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing", "warpcall.log")

	out := output(path, &stderr)
	if _, ok := out.(zerolog.ConsoleWriter); !ok {
		t.Fatalf("output = %T, want console writer", out)
	}
	if got := stderr.String(); !strings.Contains(got, "cannot open LOG_FILE") || strings.Count(got, "\n") != 1 {
		t.Errorf("warning = %q", got)
	}
}

func TestOutputWritesFile(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "warpcall.log")

	out := output(path, &stderr)
	f, ok := out.(*os.File)
	if !ok {
		t.Fatalf("output = %T, want file", out)
	}
	defer f.Close()
	if stderr.Len() != 0 {
		t.Errorf("unexpected warning %q", stderr.String())
	}

	logger := zerolog.New(out)
	logger.Info().Msg("hello")
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), `"message":"hello"`) {
		t.Fatalf("log file = %q, %v", data, err)
	}
}
