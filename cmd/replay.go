package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var projectNow bool

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild the read models from the event log",
	Long: `Clear the read models and the processing flags of every event. The worker
then projects the whole log again; with --project this command does it itself.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&projectNow, "project", false, "project every event before exiting")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return replay(ctx, a, projectNow)
}

// replay clears the read models before resetting the events so a running
// worker never projects into tables being cleared
func replay(ctx context.Context, a *app, project bool) error {
	log.Info().Msg("Clearing read models")
	if err := a.repositories.Reset(ctx); err != nil {
		return err
	}
	if err := a.cache.FlushAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush cache")
	}
	if err := a.events.Store().ResetProcessing(ctx); err != nil {
		return err
	}
	log.Info().Msg("Every event is marked unprocessed")

	if !project {
		return nil
	}

	indexer, err := a.searchIndexer(ctx)
	if err != nil {
		return err
	}
	projected, err := a.processor(indexer, nil).Drain(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("events", projected).Msg("Read models rebuilt")
	return nil
}
