package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/printmon/internal/config"
	"github.com/joshp123/printmon/internal/core"
	"github.com/joshp123/printmon/internal/host"
)

func TestCompiledFollowsConfig(t *testing.T) {
	env := Env{Host: host.New(nil)}

	empty := Compiled(&config.Config{SchemaVersion: config.SchemaVersion, Core: &config.CoreConfig{}}, env)
	assert.Empty(t, empty)

	cfg := &config.Config{
		SchemaVersion: config.SchemaVersion,
		Core:          &config.CoreConfig{},
		PrusaLink:     &config.PrusaLinkConfig{Host: "printer.local", APIKey: "k"},
	}
	got := Compiled(cfg, env)
	require.Len(t, got, 1)
	assert.Equal(t, "prusalink", got[0].ID())
	require.NoError(t, core.ValidatePlugins(got))
	require.NoError(t, core.ValidateEnabledPlugins(got, config.EnabledPlugins(cfg), false))

	assert.Nil(t, Compiled(nil, env))
}
