package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var standaloneCmd = &cobra.Command{
	Use:   "standalone",
	Short: "Run the API and the worker in memory",
	Long:  `Run the API and the projection worker in one process on in-memory stores. Nothing is persisted.`,
	RunE:  runStandalone,
}

func init() {
	rootCmd.AddCommand(standaloneCmd)
}

func runStandalone(cmd *cobra.Command, args []string) error {
	log.Info().Msg("Starting standalone portal")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, true, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	indexer, err := a.searchIndexer(ctx)
	if err != nil {
		return err
	}
	processor := a.processor(indexer, nil)
	if err := processor.Start(); err != nil {
		return err
	}
	defer processor.Stop()

	server := a.server(a.dispatcher())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		return shutdownServer(server)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Standalone portal exited properly")
	return nil
}
