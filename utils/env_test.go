package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue string
		expected     string
	}{
		{"environment variable set", "https://example.org/items", "default", "https://example.org/items"},
		{"empty environment variable returns default", "", "fallback", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOSPITALSYNC_TEST_VAR", tt.envValue)
			assert.Equal(t, tt.expected, GetEnv("HOSPITALSYNC_TEST_VAR", tt.defaultValue))
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		expected     int
	}{
		{"valid integer", "16", 8, 16},
		{"negative integer", "-1", 8, -1},
		{"invalid integer returns default", "eight", 8, 8},
		{"unset returns default", "", 8, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOSPITALSYNC_TEST_INT", tt.envValue)
			assert.Equal(t, tt.expected, GetEnvInt("HOSPITALSYNC_TEST_INT", tt.defaultValue))
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("HOSPITALSYNC_TEST_INT64", "1073741824")
	assert.Equal(t, int64(1<<30), GetEnvInt64("HOSPITALSYNC_TEST_INT64", 1))

	t.Setenv("HOSPITALSYNC_TEST_INT64", "big")
	assert.Equal(t, int64(1), GetEnvInt64("HOSPITALSYNC_TEST_INT64", 1))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
	}{
		{"true", "true", false, true},
		{"numeric false", "0", true, false},
		{"invalid returns default", "maybe", true, true},
		{"unset returns default", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOSPITALSYNC_TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.expected, GetEnvBool("HOSPITALSYNC_TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue string
		expected     time.Duration
	}{
		{"valid duration", "90s", "30s", 90 * time.Second},
		{"compound duration", "1m30s", "30s", 90 * time.Second},
		{"invalid duration falls back", "soon", "30s", 30 * time.Second},
		{"unset uses default", "", "2m", 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOSPITALSYNC_TEST_DURATION", tt.envValue)
			assert.Equal(t, tt.expected, GetEnvDuration("HOSPITALSYNC_TEST_DURATION", tt.defaultValue))
		})
	}
}

func TestGetEnvFloat64(t *testing.T) {
	t.Setenv("HOSPITALSYNC_TEST_FLOAT", "1.5")
	assert.Equal(t, 1.5, GetEnvFloat64("HOSPITALSYNC_TEST_FLOAT", 2.0))

	t.Setenv("HOSPITALSYNC_TEST_FLOAT", "x")
	assert.Equal(t, 2.0, GetEnvFloat64("HOSPITALSYNC_TEST_FLOAT", 2.0))
}

func TestGetEnvRune(t *testing.T) {
	tests := []struct {
		envValue string
		expected rune
	}{
		{"", ','},
		{";", ';'},
		{`\t`, '\t'},
		{"TAB", '\t'},
		{"|x", '|'},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("HOSPITALSYNC_TEST_RUNE", tt.envValue)
			assert.Equal(t, tt.expected, GetEnvRune("HOSPITALSYNC_TEST_RUNE", ','))
		})
	}
}
