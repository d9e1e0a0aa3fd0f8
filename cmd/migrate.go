package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/portal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Create or update the event and read model tables, and the contents index when Elasticsearch is enabled`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := database.Connect(cfg.DB, cfg.IsDevelopment(), nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	log.Info().Msg("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		return err
	}
	log.Info().Msg("Database migrations completed successfully")

	if !cfg.Elastic.Enabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a := &app{cfg: cfg}
	if _, err := a.searchIndexer(ctx); err != nil {
		return err
	}
	log.Info().Msg("Contents index is ready")
	return nil
}
