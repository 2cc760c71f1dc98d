// Root command for the docwatch CLI.
package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docwatch/internal/paths"
	"github.com/mesh-intelligence/docwatch/pkg/docwatch"
)

const exitSysError = 2

var (
	flagConfigDir string
	flagDataDir   string
	flagDBName    string

	configDataDir      string
	configSyncStrategy string

	db *docwatch.Database
)

var rootCmd = &cobra.Command{
	Use:   "docwatch",
	Short: "docwatch is an embedded document store with change-data-capture",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		configDataDir = cfg.GetString(cfgKeyDataDir)
		configSyncStrategy = cfg.GetString(cfgKeySyncStrategy)

		dataDir, err := resolveDataDir()
		if err != nil {
			return err
		}

		opened, err := docwatch.Open(cmd.Context(), flagDBName,
			docwatch.WithDataDir(dataDir),
			docwatch.WithSyncStrategy(docwatch.SyncStrategy(configSyncStrategy)),
		)
		if err != nil {
			return err
		}
		db = opened
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if db == nil {
			return nil
		}
		return db.Close(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $DOCWATCH_CONFIG_DIR, else the platform config dir, e.g. ~/.config/docwatch)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.docwatch-db)")
	rootCmd.PersistentFlags().StringVar(&flagDBName, "db", "default", "database name")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(unsubscribeCmd)
}

func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}

func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, configDataDir)
}
