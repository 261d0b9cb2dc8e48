package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"staged/internal/config"
)

var activeConfig *config.File

// loadConfig reads --config or the nearest stagec.toml and keeps it for the
// subcommands.
func loadConfig(cmd *cobra.Command) (*config.File, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg *config.File
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return nil, err
	}
	activeConfig = cfg
	return cfg, nil
}

func currentConfig() *config.File {
	if activeConfig == nil {
		return config.Default()
	}
	return activeConfig
}
