// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ManuGH/condense/internal/config"
	"github.com/ManuGH/condense/internal/log"
	"github.com/ManuGH/condense/internal/validate"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	dataDirFlag  *string

	configOnce sync.Once
	config     config.Config
	loader     *config.Loader
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, dataDirFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag, dataDirFlag: dataDirFlag}
}

// ensureConfig loads the configuration once and configures logging from it.
func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		c.loader = config.NewLoader(strings.TrimSpace(*c.configFlag), version)
		if dir := strings.TrimSpace(*c.dataDirFlag); dir != "" {
			// The flag outranks CONDENSE_DATA_DIR, also on hot reload.
			c.loader.WithEnv(func(key string) (string, bool) {
				if key == config.EnvPrefix+"DATA_DIR" {
					return dir, true
				}
				return os.LookupEnv(key)
			})
		}
		cfg, err := c.loader.Load()
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if lvl := strings.TrimSpace(*c.logLevelFlag); lvl != "" {
			parsed, err := validate.ParseLogLevel(lvl)
			if err != nil {
				c.configErr = err
				return
			}
			cfg.Log.Level = string(parsed)
		}
		log.Configure(log.Config{Level: cfg.Log.Level, Service: cfg.Log.Service, Version: version})
		c.config = cfg
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag, logLevelFlag, dataDirFlag string
	ctx := newCommandContext(&configFlag, &logLevelFlag, &dataDirFlag)

	rootCmd := &cobra.Command{
		Use:           "condense",
		Short:         "Video compression service and CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Override the data directory")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newCompressCommand(ctx))
	rootCmd.AddCommand(newCommandCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (commit: %s, built: %s)\n", version, commit, buildDate)
			return err
		},
	}
}

// skipConfig reports commands that run without configuration.
func skipConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "command", "help":
		return true
	}
	return false
}
