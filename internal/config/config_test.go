package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/odata", cfg.Server.BasePath)
	assert.Equal(t, "Container", cfg.Schema.Container)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "odatagate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
  base_path: /svc/
schema:
  container: FromFile
log:
  level: debug
`), 0o644))

	t.Setenv("ODATAGATE_SERVER_PORT", "9090")
	t.Setenv("ODATAGATE_DATABASE_AUTO_MIGRATE", "true")

	cfg, err := Load(flags(t, "--config", path, "--container", "FromFlag"))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port, "env over file")
	assert.Equal(t, "/svc", cfg.Server.BasePath)
	assert.Equal(t, "FromFlag", cfg.Schema.Container, "flag over file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string][]string{
		"port":      {"--port", "70000"},
		"mode":      {"--mode", "fast"},
		"base path": {"--base-path", "odata"},
		"db url":    {"--db", "not a url"},
		"log":       {"--log-format", "xml"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(flags(t, args...))
			assert.ErrorContains(t, err, "invalid config")
		})
	}

	_, err := Load(flags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}
