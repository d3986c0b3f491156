package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string, body string) string {
	path := filepath.Join(dir, "node.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadParsesRecognizedSchema(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"paths": {"plugins": "/var/lib/hived/plugins", "runtime": "/run/hived", "spool": "/var/spool/hived"},
		"network": {"hostname": "node-1", "ports": [10000, 10100], "threads": 4},
		"storages": {"apps": {"type": "memory", "args": {}}},
		"loggers": {"main": {"type": "zap", "args": {"level": "info"}}},
		"services": {}
	}`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "node-1", cfg.Network.Hostname)
	assert.Equal(t, 10000, cfg.Network.PortLo)
	assert.Equal(t, 10100, cfg.Network.PortHi)
	assert.Equal(t, "memory", cfg.Storages["apps"].Type)
}

func TestLoadRejectsInvertedPortRange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"network": {"ports": [100, 10]}}`)

	_, err := Load(path, "")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), "")
	require.Error(t, err)
}
