package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/replconsole/internal/config"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "replconsole",
		Short: "read-eval-print console",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "serve the console page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	replCmd := &cobra.Command{
		Use:   "repl [file [args...]]",
		Short: "run the console in this terminal, or run a script file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				return runScript(cmd.Context(), cfg, args[0], args[1:], cmd.OutOrStdout(), cmd.ErrOrStderr())
			}
			return runRepl(cmd.Context(), cfg)
		},
	}
	replCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	// everything after the script path belongs to the script
	replCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(runCmd, replCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}
