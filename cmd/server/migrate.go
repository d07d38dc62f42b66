package main

import (
	"fmt"

	"github.com/optik-pos/api/internal/database"
	"github.com/optik-pos/api/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Example:   "  optik migrate up\n  optik migrate down",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("migrate")

		var steps int
		switch args[0] {
		case "up":
			steps = 0
		case "down":
			steps = -1
		default:
			return fmt.Errorf("unknown direction %q, want up or down", args[0])
		}

		if err := database.Migrate(cfg.DatabaseURL, steps); err != nil {
			return err
		}
		log.Info().Str("direction", args[0]).Msg("migrations applied")
		return nil
	},
}
