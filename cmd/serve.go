package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	v2 "govrag/handler/http/v2"
	"govrag/src/core/chat"
	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/log"
	"govrag/src/infrastructure/metrics"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat and search API server",
	Long: `The serve command starts an HTTP server exposing chat, session and search
APIs over the configured document store. When the store is unreachable,
search falls back to scoring a local corpus.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, _, err := newDocumentStore(newEmbedder())
	if err != nil {
		return fmt.Errorf("failed to initialize document store: %w", err)
	}
	engine, liveStore := newRetrievalEngine(ctx, store, m)

	composer, generationHealth, err := newComposer()
	if err != nil {
		return fmt.Errorf("failed to initialize generation: %w", err)
	}

	sessions, err := newSessionBackend(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer func() {
		if err := sessions.close(); err != nil {
			log.Error(err, "Error closing session store")
		}
	}()

	cfg := chatConfig()
	generator, err := chat.NewGenerator(engine, sessions.store, composer, cfg, chat.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	if sessions.memory != nil {
		go sessions.memory.RunSweeper(ctx, time.Minute, viper.GetDuration("session.expiry"))
	}

	handler := v2.NewHandler(
		generator,
		engine,
		knowledgebase.NewSystemService(map[string]knowledgebase.HealthCheck{
			"store":      knowledgebase.StoreHealthCheck(liveStore),
			"generation": generationHealth,
			"sessions":   sessions.health,
		}),
	)

	r := gin.Default()
	handler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", srv.Addr, "retrieval", engine.Backend())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		log.Error(err, "Invalid shutdown timeout, using default 5s")
		timeout = 5 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
	return nil
}
