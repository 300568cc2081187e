package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pharma-enrich/internal/api"
	"github.com/sells-group/pharma-enrich/internal/monitoring"
)

var servePort int

// storedResultsInterval is how often the stored-results gauges are refreshed.
const storedResultsInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, cfg, "serve", true)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Store != nil {
			go refreshStoredResults(ctx, monitoring.NewCollector(env.Store, env.Metrics), storedResultsInterval)
		}

		thresholds := env.Classifier.Thresholds
		handler := api.NewRouter(api.Deps{
			Enricher:      env.Aggregator,
			Runner:        env.Runner,
			Store:         env.Store,
			Metrics:       env.Metrics,
			Thresholds:    thresholds,
			UpcomingRatio: env.Upcoming.Ratio,
			CORSOrigins:   cfg.Server.CORSOrigins,
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// refreshStoredResults updates the stored-results gauges until ctx ends.
func refreshStoredResults(ctx context.Context, c *monitoring.Collector, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := c.Collect(ctx); err != nil && ctx.Err() == nil {
			zap.L().Warn("refresh stored results", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
