package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deepseaguard/insight-engine/internal/config"
	"github.com/deepseaguard/insight-engine/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status|version]",
	Short:     "Apply or inspect database schema migrations",
	Long:      `Schema changes are always explicit; the serving process never migrates on its own. With no argument, migrates up to the latest version.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "status", "version"},
	Run: func(cmd *cobra.Command, args []string) {
		command := "up"
		if len(args) > 0 {
			command = args[0]
		}

		dsn, err := config.LoadDatabaseURL()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load database configuration")
		}
		if err := store.Migrate(cmd.Context(), dsn, command); err != nil {
			log.Fatal().Err(err).Str("command", command).Msg("Migration failed")
		}
		log.Info().Str("command", command).Msg("Migration complete")
	},
}
