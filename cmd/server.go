package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/portal/api"
	"example.com/backstage/services/portal/messaging"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long:  `Start the HTTP API and, when Service Bus is configured, the command queue consumers`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	log.Info().Msg("Starting server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	dispatcher := a.dispatcher()
	server := a.server(dispatcher)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)

	if cfg.Azure.QueueConnStr != "" {
		azureClient, err := messaging.NewAzureClient(cfg.Azure)
		if err != nil {
			return err
		}
		defer closeAzure(azureClient)

		processor := messaging.NewProcessor(dispatcher, a.tracer)
		g.Go(func() error {
			return azureClient.StartConsumers(ctx, cfg.Azure.CommandsQueueName, processor)
		})
	} else {
		log.Warn().Msg("Service Bus connection string not set, commands are accepted over HTTP only")
	}

	g.Go(func() error {
		<-ctx.Done()
		return shutdownServer(server)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited properly")
	return nil
}

func shutdownServer(server *api.Server) error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}
	return nil
}

func closeAzure(client *messaging.AzureClient) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := client.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close Service Bus client")
	}
}
