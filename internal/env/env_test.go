package env

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type basicConfig struct {
	Name    string        `env:"TEST_NAME"`
	Port    int           `env:"TEST_PORT" default:"8080"`
	Debug   bool          `env:"TEST_DEBUG" default:"false"`
	Timeout time.Duration `env:"TEST_TIMEOUT" default:"5s"`

	unexported string `env:"TEST_HIDDEN"`
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TEST_NAME", "pantry")
	t.Setenv("TEST_PORT", "9090")
	t.Setenv("TEST_DEBUG", "true")
	t.Setenv("TEST_TIMEOUT", "1m30s")

	var cfg basicConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "pantry", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.unexported)
}

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	var cfg basicConfig
	require.NoError(t, Load(&cfg))

	assert.Empty(t, cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("TEST_PORT", "1234")

	var cfg basicConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 1234, cfg.Port)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_PORT", "not-a-number")

	var cfg basicConfig
	err := Load(&cfg)
	require.Error(t, err)

	var invalid ErrInvalidValue
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "TEST_PORT", invalid.EnvVar)
	assert.Equal(t, "not-a-number", invalid.Value)
}

func TestLoad_NotStructPointer(t *testing.T) {
	var cfg basicConfig
	assert.Error(t, Load(cfg))
	assert.Error(t, Load("nope"))
}

type nestedConfig struct {
	Inner validatedConfig
}

type validatedConfig struct {
	Level int `env:"TEST_LEVEL" default:"1"`
}

func (c *validatedConfig) Validate() error {
	if c.Level < 0 {
		return errors.New("level must not be negative")
	}
	return nil
}

func TestLoad_NestedStructWithValidation(t *testing.T) {
	t.Setenv("TEST_LEVEL", "3")

	var cfg nestedConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 3, cfg.Inner.Level)

	t.Setenv("TEST_LEVEL", "-1")
	assert.Error(t, Load(&cfg))
}
