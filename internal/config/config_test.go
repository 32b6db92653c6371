package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "duka.sqlite3", cfg.Database.Path)
	assert.Equal(t, "Admin", cfg.Auth.AdminUser)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenExpiry)
	assert.Equal(t, 5, cfg.Ledger.MaxAttempts)
	assert.Equal(t, 1024, cfg.Images.MaxDimension)
	assert.Equal(t, int64(10<<20), cfg.Images.MaxUploadBytes)
}

func TestLoadPriority(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := `
[server]
addr = ":9000"

[database]
path = "from-file.db"

[ledger]
max_attempts = 9

[log]
level = "warn"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "duka.toml"), []byte(file), 0o644))
	t.Setenv("DUKA_DATABASE_PATH", "from-env.db")
	t.Setenv("DUKA_AUTH_TOKEN_EXPIRY", "2h")

	cfg, err := Load([]string{"-a", ":7000"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr, "flag beats file")
	assert.Equal(t, "from-env.db", cfg.Database.Path, "env beats file")
	assert.Equal(t, 9, cfg.Ledger.MaxAttempts, "file beats default")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenExpiry)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("images:\n  max_dimension: 512\n"), 0o644))

	cfg, err := Load([]string{"--config", path}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Images.MaxDimension)

	_, err = Load([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	_, err := Load([]string{"-h"}, &out)
	assert.True(t, errors.Is(err, ErrHelp))
	assert.Contains(t, out.String(), "--db")

	_, err = Load([]string{"extra"}, &bytes.Buffer{})
	assert.Error(t, err)

	t.Setenv("DUKA_LEDGER_MAX_ATTEMPTS", "0")
	_, err = Load(nil, &bytes.Buffer{})
	assert.ErrorContains(t, err, "ledger.max_attempts")
}
