package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"taskhub/internal/config"
	"taskhub/internal/logger"
	"taskhub/internal/storage"
)

var (
	configFile string

	cfg       *config.Config
	logCloser io.Closer = io.NopCloser(nil)
)

var rootCmd = &cobra.Command{
	Use:   "taskhub",
	Short: "Task and user REST service",
	Long: `taskhub keeps tasks and users with two-way assignment links.

Configuration is read from defaults, a .env file in the working directory,
an optional YAML file (--config) and environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("некорректная конфигурация: %w", err)
		}
		cfg = c
		logCloser = logger.Setup(cfg.LogLevel, cfg.LogFile)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logCloser.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	rootCmd.AddCommand(serveCmd, exportCmd, reconcileCmd)
}

// openStore открывает хранилище из текущей конфигурации
func openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия хранилища: %w", err)
	}
	logger.Info(ctx, "Хранилище открыто", "store", cfg.Store)
	return store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
