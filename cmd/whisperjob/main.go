// Command whisperjob runs the transcription job worker. Jobs arrive over the
// HTTP job API (runtime.mode: http) or a Kafka topic (runtime.mode: kafka).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/whisperjob/aggregate"
	"github.com/kbukum/whisperjob/bootstrap"
	"github.com/kbukum/whisperjob/config"
	"github.com/kbukum/whisperjob/kafka"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/modelcache"
	"github.com/kbukum/whisperjob/observability"
	"github.com/kbukum/whisperjob/redis"
	"github.com/kbukum/whisperjob/runtime"
	"github.com/kbukum/whisperjob/server"
	"github.com/kbukum/whisperjob/server/endpoint"
	"github.com/kbukum/whisperjob/server/middleware"
	"github.com/kbukum/whisperjob/storage/s3"
	"github.com/kbukum/whisperjob/transcription/sidecar"
	"github.com/kbukum/whisperjob/version"
	"github.com/kbukum/whisperjob/worker"
)

func main() {
	configFile := flag.String("config", "", "path to the config file (default: search ./cmd/whisperjob, ./config and .)")
	envFile := flag.String("env", "", "path to a .env file")
	flag.Parse()

	var opts []config.LoaderOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}

	var cfg Config
	if err := config.LoadConfig("whisperjob", &cfg, opts...); err != nil {
		fmt.Fprintf(os.Stderr, "whisperjob: %v\n", err)
		os.Exit(1)
	}
	if cfg.Version == "" {
		cfg.Version = version.Short()
	}

	var appOpts []bootstrap.Option
	if cfg.Runtime.ShutdownTimeout > 0 {
		appOpts = append(appOpts, bootstrap.WithGracefulTimeout(cfg.Runtime.ShutdownTimeout))
	}
	app, err := bootstrap.NewApp(&cfg, appOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "whisperjob: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := setup(ctx, app); err != nil {
		app.Logger.Fatal("Setup failed", logger.MergeWithError(nil, err))
	}
	if err := app.Run(ctx); err != nil {
		app.Logger.Fatal("Application failed", logger.MergeWithError(nil, err))
	}
}

// setup builds the object graph and registers components in start order.
func setup(ctx context.Context, app *bootstrap.App[*Config]) error {
	cfg := app.Cfg
	log := app.Logger

	metrics, err := setupTelemetry(ctx, app)
	if err != nil {
		return err
	}

	var loaderOpts []sidecar.Option
	loaderOpts = append(loaderOpts, sidecar.WithLogger(log.WithComponent("sidecar")))
	if cfg.Storage.S3.Enabled {
		presigner, err := s3.NewPresigner(ctx, &cfg.Storage.S3)
		if err != nil {
			return err
		}
		loaderOpts = append(loaderOpts, sidecar.WithURLResolver(presigner))
	}
	loader, err := sidecar.NewLoader(cfg.Sidecar, loaderOpts...)
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(sidecar.NewComponent(loader, cfg.Sidecar)); err != nil {
		return err
	}

	cache := modelcache.New(loader,
		modelcache.WithObserver(metrics.RecordModelLoad),
		modelcache.WithLogger(log.WithComponent("modelcache")))
	aggregator := aggregate.New(
		aggregate.WithMaxMessageSize(cfg.Worker.MaxMessageSize),
		aggregate.WithLogger(log.WithComponent("aggregate")))
	handler := worker.New(cache, aggregator,
		worker.WithMetrics(metrics),
		worker.WithLogger(log.WithComponent("worker")))

	srv, err := server.New(cfg.Server, log)
	if err != nil {
		return err
	}
	engine := srv.Engine()
	engine.GET("/health", endpoint.Health(cfg.Name, cfg.Version, app.Components.HealthAll, cache.Current))

	switch cfg.Runtime.Mode {
	case runtime.ModeKafka:
		ingress, err := kafka.NewIngress(cfg.Kafka, handler, log)
		if err != nil {
			return err
		}
		if err := app.RegisterComponent(ingress); err != nil {
			return err
		}
	default:
		store, err := setupStore(app)
		if err != nil {
			return err
		}
		queue := runtime.NewQueue(handler, store, cfg.Runtime.QueueSize)
		if err := app.RegisterComponent(queue); err != nil {
			return err
		}

		jobs := engine.Group("/")
		if cfg.Auth.JWTSecret != "" {
			jobs.Use(middleware.JWT([]byte(cfg.Auth.JWTSecret)))
		}
		endpoint.NewJobs(queue, cfg.Runtime.SyncTimeout).Register(jobs)
	}

	app.OnReady(func(context.Context) error {
		log.Info("Accepting jobs", logger.Fields(
			"mode", cfg.Runtime.Mode,
			"addr", srv.Addr(),
			"sidecar", cfg.Sidecar.BaseURL,
		))
		return nil
	})

	// Registered last so it stops first and no request reaches a stopped queue.
	return app.RegisterComponent(srv)
}

// setupTelemetry installs the OTLP providers that are enabled and returns the
// job instruments. With metrics disabled the instruments record to the no-op
// global provider.
func setupTelemetry(ctx context.Context, app *bootstrap.App[*Config]) (*observability.JobMetrics, error) {
	cfg := app.Cfg
	res := observability.Resource{
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
	}

	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, cfg.Tracing, res)
		if err != nil {
			return nil, err
		}
		app.OnStop(tp.Shutdown)
	}
	if cfg.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, cfg.Metrics, res)
		if err != nil {
			return nil, err
		}
		app.OnStop(mp.Shutdown)
	}
	return observability.NewJobMetrics(observability.Meter())
}

func setupStore(app *bootstrap.App[*Config]) (runtime.Store, error) {
	cfg := app.Cfg
	if cfg.Runtime.Store != runtime.StoreRedis {
		return runtime.NewMemoryStore(cfg.Runtime.ResultTTL), nil
	}
	rc, err := redis.NewComponent(cfg.Redis, app.Logger)
	if err != nil {
		return nil, err
	}
	if err := app.RegisterComponent(rc); err != nil {
		return nil, err
	}
	return runtime.NewRedisStore(rc.Client(), cfg.Runtime.KeyPrefix, cfg.Runtime.ResultTTL), nil
}
