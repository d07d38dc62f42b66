package main

import (
	"fmt"
	"os"

	"github.com/optik-pos/api/internal/config"
	"github.com/optik-pos/api/internal/logger"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:     "optik",
	Short:   "Optik POS API - invoices, work orders and the payment ledger",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		return logger.Setup(cfg.Log)
	},
	SilenceUsage: true,
}

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
