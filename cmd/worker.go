package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"govrag/src/infrastructure/job"
	"govrag/src/infrastructure/log"
	"govrag/src/infrastructure/metrics"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background ingestion worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9091)")
	_ = viper.BindPFlag("worker.metrics_addr", workerCmd.Flags().Lookup("metrics-addr"))
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.NewWatermillAdapter(log.WithName("worker"))

	db, err := newDB()
	if err != nil {
		return err
	}
	defer closeDB(db)

	jobRepo := job.NewPostgresJobRepository(db)
	if err := jobRepo.Migrate(ctx); err != nil {
		return err
	}

	subscriber, err := job.NewAMQPSubscriber(viper.GetString("amqp.url"), logger)
	if err != nil {
		return err
	}
	defer subscriber.Close()

	// Without a metrics address the worker records nothing
	var m *metrics.Metrics
	if addr := viper.GetString("worker.metrics_addr"); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)

		srv := metrics.NewServer(addr, reg)
		go func() {
			log.Info("Serving worker metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "Metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("server.shutdown_timeout"))
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(err, "Metrics server forced to shutdown")
			}
		}()
	}

	task, err := newIngestTask(m)
	if err != nil {
		return fmt.Errorf("failed to initialize ingestion: %w", err)
	}

	// Consumers never publish
	jobService := job.NewJobService(nil, jobRepo, logger, task)

	router, err := job.NewRouter(job.DefaultRouterConfig(), subscriber, jobService, logger)
	if err != nil {
		return err
	}

	log.Info("Worker started", "topic", job.Topic)
	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("router stopped: %w", err)
	}
	log.Info("Router stopped")
	return nil
}
