package runner

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeInput(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello world", "hello world"},
		{"preserves newline and tab", "a\n\tb", "a\n\tb"},
		{"strips ansi escape", "red\x1b[31mtext", "red[31mtext"},
		{"strips null and bell", "a\x00b\x07c", "abc"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SanitizeInput(tc.input)
			if err != nil {
				t.Fatalf("SanitizeInput: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSanitizeInputRejectsOversize(t *testing.T) {
	_, err := SanitizeInput(strings.Repeat("x", DefaultMaxInputSize+1))
	if !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("expected ErrInputTooLarge, got %v", err)
	}
}

func TestSanitizeInputRejectsInvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("ok\xff")
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
}

func TestSanitizeInputEnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "8")

	if _, err := SanitizeInput("under"); err != nil {
		t.Fatalf("under limit: %v", err)
	}
	if _, err := SanitizeInput("well over the limit"); !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("expected ErrInputTooLarge, got %v", err)
	}
}
