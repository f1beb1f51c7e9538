package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.EndpointAddr)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 720*time.Hour, c.RefreshTokenValidityDuration)
	assert.NotEmpty(t, c.DatabaseDSN)
}

func TestParseEnv_Overrides(t *testing.T) {
	t.Setenv("ADDRESS", ":9999")
	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("ACCESS_TOKEN_VALIDITY", "30m")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, ":9999", c.EndpointAddr)
	assert.Equal(t, "from-env", c.SecretKey)
	assert.Equal(t, 30*time.Minute, c.AccessTokenValidityDuration)
	// untouched by env
	assert.Equal(t, 720*time.Hour, c.RefreshTokenValidityDuration)
}

func TestParseEnv_BadDurationPanics(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_VALIDITY", "not-a-duration")

	var c Config
	c.LoadDefaults()
	assert.Panics(t, func() { parseEnv(&c) })
}
