package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/portal/messaging"
	"example.com/backstage/services/portal/projections"
)

var metricsAddress string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the projection worker",
	Long:  `Project stored events into the read models and Elasticsearch, then notify Service Bus subscribers`,
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&metricsAddress, "metrics-address", "0.0.0.0:9090", "address of the metrics endpoint, empty to disable")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	log.Info().Msg("Starting worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	indexer, err := a.searchIndexer(ctx)
	if err != nil {
		return err
	}

	var publisher projections.EventPublisher
	if cfg.Azure.QueueConnStr != "" {
		azureClient, err := messaging.NewAzureClient(cfg.Azure)
		if err != nil {
			return err
		}
		defer closeAzure(azureClient)

		sender, err := azureClient.NewSender(cfg.Azure.EventsTopicName)
		if err != nil {
			return err
		}
		eventPublisher := messaging.NewEventPublisher(sender, "portal")
		defer func() {
			if err := eventPublisher.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to close event publisher")
			}
		}()
		publisher = eventPublisher
	} else {
		log.Warn().Msg("Service Bus connection string not set, events are not published")
	}

	processor := a.processor(indexer, publisher)
	if err := processor.Start(); err != nil {
		return err
	}
	defer processor.Stop()

	g, ctx := errgroup.WithContext(ctx)
	if metricsAddress != "" {
		metricsServer := newMetricsServer(a)
		g.Go(func() error {
			log.Info().Str("address", metricsAddress).Msg("Metrics endpoint starting")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down worker...")
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Worker exited properly")
	return nil
}

func newMetricsServer(a *app) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	router.GET("/health", func(c *gin.Context) {
		if err := a.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &http.Server{
		Addr:              metricsAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
