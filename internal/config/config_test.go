package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: "8080"
backend:
  driver: legacy
legacy:
  baseURL: https://script.example.com/exec
  pollInterval: 5s
jwt:
  secret: test-secret
officials:
  - username: verifier1
    name: Verifier One
    role: verifier
    password: verify123
  - username: admin
    name: Administrator
    role: all
    password: admin123
`

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleYAML), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverLegacy, cfg.Backend.Driver)
	assert.Equal(t, 5*time.Second, cfg.Legacy.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.Legacy.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL())
	require.Len(t, cfg.Officials, 2)
	assert.Equal(t, "all", cfg.Officials[1].Role)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleYAML), 0o600))
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT.Secret")
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Backend: BackendConfig{Driver: "dynamo"},
		JWT:     JWTConfig{Secret: "x", ExpiresIn: 60},
	}
	assert.Error(t, cfg.Validate())

	cfg.Backend.Driver = DriverLegacy
	assert.Error(t, cfg.Validate(), "legacy needs a base url")

	cfg.Legacy.BaseURL = "http://legacy"
	assert.NoError(t, cfg.Validate())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("AGRICLAIM_TEST_STR", "value")
	t.Setenv("AGRICLAIM_TEST_BOOL", "true")
	t.Setenv("AGRICLAIM_TEST_DUR", "2m")
	t.Setenv("AGRICLAIM_TEST_BAD", "soon")

	assert.Equal(t, "value", GetEnv("AGRICLAIM_TEST_STR", "x"))
	assert.Equal(t, "x", GetEnv("AGRICLAIM_TEST_MISSING", "x"))
	assert.True(t, GetEnvAsBool("AGRICLAIM_TEST_BOOL", false))
	assert.False(t, GetEnvAsBool("AGRICLAIM_TEST_BAD", false))
	assert.Equal(t, 2*time.Minute, GetEnvAsDuration("AGRICLAIM_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, GetEnvAsDuration("AGRICLAIM_TEST_BAD", time.Second))
}
