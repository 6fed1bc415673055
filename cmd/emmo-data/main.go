package main

import (
	"fmt"
	"os"

	"emmo-data/internal/common/logger"
	"emmo-data/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "emmo-data"

var configFile string

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Electric motor maintenance records service",
	Long: `emmo-data tracks drives, their parts and inspections, and maintenance records
whose status follows their checklist.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().String("addr", "", "HTTP listen address")

	rootCmd.AddCommand(serveCmd, migrateCmd, importCmd, exportCmd)
}

// setup loads the configuration and builds the logger shared by every subcommand.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func main() {
	// .env 可选
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
