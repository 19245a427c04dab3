package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"YES", false, true},
		{" on ", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Setenv("REGFLOW_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("REGFLOW_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Hour},
		{"90s", 90 * time.Second},
		{"24h", 24 * time.Hour},
		{"0", 0},
		{"soon", time.Hour},
		{"-5m", time.Hour},
	}
	for _, tt := range tests {
		t.Setenv("REGFLOW_TEST_DURATION", tt.value)
		if got := ParseDurationEnv("REGFLOW_TEST_DURATION", time.Hour); got != tt.want {
			t.Errorf("ParseDurationEnv(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("REGFLOW_TEST_STR", "  ")
	if got := GetEnv("REGFLOW_TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("blank value should fall back, got %q", got)
	}
	t.Setenv("REGFLOW_TEST_STR", " value ")
	if got := GetEnv("REGFLOW_TEST_STR", "fallback"); got != "value" {
		t.Errorf("expected trimmed value, got %q", got)
	}
}
