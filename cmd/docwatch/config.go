// Config loading for the docwatch CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir       = "data_dir"
	cfgKeySyncStrategy  = "sync"
)

const defaultConfigYAML = `# docwatch CLI configuration

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# Sync strategy: immediate, on_close, or batch
sync: immediate
`

// loadConfig reads config.yaml from configDir using Viper, creating the
// directory and a default config.yaml on first run. A missing config.yaml
// is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeySyncStrategy, "immediate")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
