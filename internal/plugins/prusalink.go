//go:build !printmon_no_prusalink

package plugins

import (
	"github.com/joshp123/printmon/internal/config"
	"github.com/joshp123/printmon/internal/core"
	"github.com/joshp123/printmon/plugins/prusalink"
)

func init() {
	Register(func(cfg *config.Config, env Env) (core.Plugin, bool) {
		p, ok := prusalink.NewPlugin(cfg.PrusaLink, env.Host, env.Logger)
		if !ok {
			return nil, false
		}
		return p, true
	})
}
