// Command gateway serves the heek.lihee.Search streaming RPC and a REST
// mirror of it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/lihee-search/pkg/aggregator"
	"github.com/yourusername/lihee-search/pkg/config"
	"github.com/yourusername/lihee-search/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("LIHEE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("gateway exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := telemetry.NewLogger(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Stdout:       cfg.Telemetry.Stdout,
	})
	if err != nil {
		logger.Warn("failed to init tracer", "error", err)
	} else {
		defer shutdownTracer(context.Background())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	sources, closeSources, err := buildSources(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSources(); err != nil {
			logger.Warn("closing data sources", "error", err)
		}
	}()

	agg := aggregator.New(sources,
		aggregator.WithLogger(logger),
		aggregator.WithMetrics(metrics),
		aggregator.WithCapacity(cfg.Stream.Capacity),
	)

	gin.SetMode(gin.ReleaseMode)
	router := setupRouter(routerDeps{
		agg:         agg,
		gatherer:    reg,
		logger:      logger,
		serviceName: cfg.Telemetry.ServiceName,
	})
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(router, &http2.Server{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gateway starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway listen failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gateway...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("gateway forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("gateway exiting")
	return err
}
