package plugins

import (
	"go.uber.org/zap"

	"github.com/joshp123/printmon/internal/config"
	"github.com/joshp123/printmon/internal/core"
	"github.com/joshp123/printmon/internal/host"
)

// Env is what factories get besides the config.
type Env struct {
	Host   *host.Host
	Logger *zap.Logger
}

// Factory builds a plugin instance from the loaded config.
type Factory func(*config.Config, Env) (core.Plugin, bool)

var compiled []Factory

// Register adds a compiled-in plugin factory to the registry.
func Register(factory Factory) {
	compiled = append(compiled, factory)
}

// Compiled returns the configured plugin instances for this build.
func Compiled(cfg *config.Config, env Env) []core.Plugin {
	if cfg == nil {
		return nil
	}
	out := make([]core.Plugin, 0, len(compiled))
	for _, factory := range compiled {
		plugin, ok := factory(cfg, env)
		if !ok {
			continue
		}
		out = append(out, plugin)
	}
	return out
}
