package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLogLevel_AllVariants(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"  DeBuG  ", zerolog.DebugLevel}, // case + trim
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel}, // empty -> info
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel}, // alias
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel}, // default
	}

	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q) -> %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	origLevel := zerolog.GlobalLevel()
	origLogger := log.Logger
	origCtx := zerolog.DefaultContextLogger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
		zerolog.DefaultContextLogger = origCtx
	})

	SetupLogger("error", true, "svc")
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Fatalf("level not applied")
	}
	if zerolog.DefaultContextLogger == nil {
		t.Fatalf("context fallback logger not installed")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "a", "b"); got != "a" {
		t.Fatalf("got %q", got)
	}
	if got := FirstNonEmpty("", " "); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestSecretEqual(t *testing.T) {
	if !SecretEqual("s3cret", "s3cret") {
		t.Fatalf("equal secrets should match")
	}
	if SecretEqual("s3cret", "other") {
		t.Fatalf("different secrets should not match")
	}
	if SecretEqual("", "") {
		t.Fatalf("empty configured secret must never match")
	}
}
