// Command nvsd is the minimal entrypoint for the node view synchronizer,
// grounded on the teacher's cmd/tendermint/commands.RootCommand. It writes a
// default config.toml (init) and loads and validates one (validate-config)
// through package config's TOML helpers. It constructs no
// sync.Synchronizer: the network transport and node view holder are
// external collaborators (spec §1, §6) and are not constructed here.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gonvs/nodesync/config"
	"github.com/gonvs/nodesync/libs/log"
)

const envPrefix = "NVSD"

var (
	homeDir   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nvsd",
		Short: "Node view synchronizer daemon",
	}
	cmd.PersistentFlags().StringVar(&homeDir, "home", os.ExpandEnv(filepath.Join("$HOME", ".nvsd")), "directory for config and data")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", log.LogLevelInfo, "log level (debug|info|error|none)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", log.LogFormatText, "log format (json|text)")
	cobra.OnInitialize(initViper)

	cmd.AddCommand(initCmd())
	cmd.AddCommand(validateConfigCmd())
	return cmd
}

func initViper() {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
}

// initCmd writes the default config as config.toml under --home, the way
// cmd/tendermint's InitFilesCmd seeds a fresh node directory.
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a config.toml with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(homeDir, 0o755); err != nil {
				return err
			}
			path := config.DefaultConfigFilePath(homeDir)
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "config already exists at %s\n", path)
				return nil
			}
			if err := config.WriteConfigFile(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}

// validateConfigCmd loads --home/config.toml and runs ValidateBasic,
// mirroring the teacher's ParseConfig/conf.ValidateBasic pairing.
func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load config.toml under --home and validate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilePath(homeDir)
			cfg, err := config.LoadConfigFile(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			if err := cfg.ValidateBasic(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger, err := log.NewDefaultLogger(logFormat, logLevel)
			if err != nil {
				return err
			}
			logger.Info("config is valid", "path", path)
			return nil
		},
	}
}
