package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetenvOrDefault(t *testing.T) {
	t.Setenv("VARP_TEST_STR", "value")

	assert.Equal(t, "value", GetenvOrDefault("VARP_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", GetenvOrDefault("VARP_TEST_MISSING", "fallback"))

	t.Setenv("VARP_TEST_BLANK", "   ")
	assert.Equal(t, "fallback", GetenvOrDefault("VARP_TEST_BLANK", "fallback"))
}

func TestGetenvIntOrDefault(t *testing.T) {
	t.Setenv("VARP_TEST_INT", "42")

	assert.Equal(t, int64(42), GetenvIntOrDefault("VARP_TEST_INT", 7))
	assert.Equal(t, int64(7), GetenvIntOrDefault("VARP_TEST_INT_MISSING", 7))

	t.Setenv("VARP_TEST_INT_BAD", "abc")
	assert.Equal(t, int64(7), GetenvIntOrDefault("VARP_TEST_INT_BAD", 7))
}

func TestGetenvBoolOrDefault(t *testing.T) {
	t.Setenv("VARP_TEST_BOOL", "true")

	assert.True(t, GetenvBoolOrDefault("VARP_TEST_BOOL", false))
	assert.True(t, GetenvBoolOrDefault("VARP_TEST_BOOL_MISSING", true))
}

func TestSetConfigFromEnvVars(t *testing.T) {
	type config struct {
		Host    string `env:"VARP_TEST_HOST"`
		Port    int64  `env:"VARP_TEST_PORT"`
		Enabled bool   `env:"VARP_TEST_ENABLED"`
		Skipped string
	}

	t.Setenv("VARP_TEST_HOST", "rabbit.local")
	t.Setenv("VARP_TEST_PORT", "5672")
	t.Setenv("VARP_TEST_ENABLED", "true")

	cfg := &config{}
	require.NoError(t, SetConfigFromEnvVars(cfg))

	assert.Equal(t, "rabbit.local", cfg.Host)
	assert.Equal(t, int64(5672), cfg.Port)
	assert.True(t, cfg.Enabled)
	assert.Empty(t, cfg.Skipped)
}

func TestSetConfigFromEnvVars_RequiresPointer(t *testing.T) {
	type config struct{}

	err := SetConfigFromEnvVars(config{})
	require.Error(t, err)
}
