package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/iris-server/config"
	"github.com/angeloszaimis/iris-server/internal/dataset"
	"github.com/angeloszaimis/iris-server/internal/handler"
	"github.com/angeloszaimis/iris-server/internal/healthcheck"
	"github.com/angeloszaimis/iris-server/internal/httpserver"
	"github.com/angeloszaimis/iris-server/internal/metrics"
	"github.com/angeloszaimis/iris-server/internal/middleware"
	"github.com/angeloszaimis/iris-server/pkg/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "iris-server",
		Short: "Serve an iris dataset as XML",
		Long: `iris-server reads a JSON or newline-delimited JSON iris dataset on every
request, keeps the records whose petal.length exceeds ?min_petal_length and
returns them as XML, including the variety when ?variety=true.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Usage is only useful for flag errors, which cobra reports before RunE.
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true

			cfg, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}

			return run(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	// -h belongs to --host, so help gets no shorthand.
	flags.Bool("help", false, "help for iris-server")
	flags.StringP("input", "i", "", "path to the input JSON file")
	flags.StringP("host", "h", "", "server host address")
	flags.StringP("port", "p", "", "server port number")
	flags.StringVarP(&configFile, "config", "c", "", "optional YAML config file")
	flags.String("format", "", "dataset encoding: json, ndjson or auto")
	flags.String("env", "", "environment: dev, staging or prod")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("metrics-addr", "", "host:port for the metrics listener, empty to disable")
	flags.Float64("rate-limit", 0, "requests per second allowed per client, 0 to disable")
	flags.Int("rate-burst", 1, "burst size for the per-client rate limit")

	for _, name := range []string{"input", "host", "port"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func run(parent context.Context, cfg *config.Config, stderr io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.AddSource, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loader, err := initializeDataset(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return err
	}

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)

	var limiter *middleware.LimiterStore
	if cfg.RateLimit.Enabled() {
		limiter = middleware.NewLimiterStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		limiter.StartJanitor(ctx)
	}

	irisHandler := handler.NewIrisHandler(log, loader, collector)

	read, write, idle, shutdown := cfg.Server.Durations()
	srv, err := httpserver.New(cfg.Server.Address(), setupRouter(log, irisHandler, limiter),
		httpserver.WithTimeouts(read, write, idle),
		httpserver.WithShutdownTimeout(shutdown))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		return err
	}

	var metricsSrv *httpserver.Server
	if cfg.Metrics.Enabled() {
		metricsSrv, err = httpserver.New(cfg.Metrics.Address, setupMetricsRouter(collector),
			httpserver.WithShutdownTimeout(shutdown))
		if err != nil {
			log.Error("Failed to create metrics server", slog.Any("err", err))
			return err
		}
	}

	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		log.Error("Failed to listen", slog.String("addr", srv.Addr()), slog.Any("err", err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(ln)
	})
	log.Info("Server running",
		slog.String("url", fmt.Sprintf("http://%s", srv.Addr())),
		slog.String("input", loader.Path()),
		slog.String("format", string(loader.Format())))

	if metricsSrv != nil {
		g.Go(metricsSrv.Start)
		log.Info("Metrics listener running", slog.String("addr", metricsSrv.Addr()))
	}

	if interval := cfg.Dataset.CheckEvery(); interval > 0 {
		g.Go(func() error {
			healthcheck.HealthCheck(gctx, loader, interval, collector.EventChannel(), log)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")

		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(context.Background()); err != nil {
				log.Error("Error during metrics shutdown", slog.Any("err", err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", slog.Any("err", err))
		return err
	}

	return nil
}

// initializeDataset builds the loader and, unless disabled, reads the file
// once so that a missing dataset stops the process before it binds.
func initializeDataset(ctx context.Context, cfg *config.Config, log *slog.Logger) (*dataset.Loader, error) {
	format, err := dataset.ParseFormat(cfg.Dataset.Format)
	if err != nil {
		return nil, err
	}

	loader := dataset.NewLoader(cfg.Dataset.Input, format)
	if !cfg.Dataset.VerifyOnStartup {
		return loader, nil
	}

	records, err := loader.Load(ctx)
	if err != nil {
		log.Error("Cannot find input file",
			slog.String("input", cfg.Dataset.Input),
			slog.Any("cause", errors.Unwrap(err)))
		return nil, err
	}

	log.Info("Dataset loaded",
		slog.String("input", cfg.Dataset.Input),
		slog.Int("records", len(records)))

	return loader, nil
}
