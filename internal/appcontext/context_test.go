package appcontext_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/appcontext"
	"github.com/hiveforge/hived/internal/config"
	"github.com/hiveforge/hived/internal/logging/zaplog"
	"github.com/hiveforge/hived/internal/registry"
	"github.com/hiveforge/hived/internal/storage/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Network: config.Network{Hostname: "node-1", PortLo: 10000, PortHi: 10010},
		Loggers: map[string]config.ComponentSpec{
			"zap": {Type: "zap", Args: json.RawMessage(`{"level":"info"}`)},
		},
	}
}

func TestNewBuildsInOrderAndExposesAccessors(t *testing.T) {
	cfg := testConfig()
	loaders := []appcontext.PluginLoader{zaplog.Register, memory.Register}

	c, err := appcontext.New(cfg, loaders, "zap", nil)
	require.NoError(t, err)

	assert.NotNil(t, c.IO())
	assert.NotNil(t, c.Ports())
	assert.NotNil(t, c.Registry())
	assert.NotNil(t, c.Logger())
	assert.NotEmpty(t, c.Route())
	assert.GreaterOrEqual(t, c.Uptime().Nanoseconds(), int64(0))

	instance, err := c.GetStorage("memory", "apps", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.NotNil(t, instance)
}

func TestRegistryIsFrozenAfterConstruction(t *testing.T) {
	cfg := testConfig()
	c, err := appcontext.New(cfg, []appcontext.PluginLoader{zaplog.Register}, "zap", nil)
	require.NoError(t, err)

	err = c.Registry().Register(registry.CategoryStorage, "memory", memory.Factory)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Configuration))
}

func TestNewRequiresLoggerTypeOrPreset(t *testing.T) {
	cfg := testConfig()
	_, err := appcontext.New(cfg, nil, "", nil)
	require.Error(t, err)
}

func TestShutdownClosesIOMultiplexor(t *testing.T) {
	cfg := testConfig()
	c, err := appcontext.New(cfg, []appcontext.PluginLoader{zaplog.Register}, "zap", nil)
	require.NoError(t, err)

	c.Shutdown()
	select {
	case <-c.IO().Done():
	default:
		t.Fatal("expected IO multiplexor to be shut down")
	}
}
