package main

import (
	"os"
	"path/filepath"

	"github.com/joshp123/printmon/internal/config"
)

const fallbackAddr = "localhost:9000"

// resolveAddr picks the daemon address: flag, env, then the first readable
// config file.
func resolveAddr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if value := os.Getenv("PRINTMON_GRPC_ADDR"); value != "" {
		return value
	}
	for _, path := range configSearchPaths() {
		if addr := addrFromConfig(path); addr != "" {
			return addr
		}
	}
	return fallbackAddr
}

func configSearchPaths() []string {
	paths := []string{config.DefaultPath}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "printmon", "config.yaml"))
	}
	return paths
}

func addrFromConfig(path string) string {
	cfg, err := config.Load(path)
	if err != nil || cfg == nil || cfg.Core == nil {
		return ""
	}
	return cfg.Core.GRPCAddr
}
