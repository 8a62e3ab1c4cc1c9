package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/contracts-tracker/internal/async"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/export"
	"github.com/joseph-ayodele/contracts-tracker/internal/extract"
	"github.com/joseph-ayodele/contracts-tracker/internal/ingest"
	"github.com/joseph-ayodele/contracts-tracker/internal/llm"
	"github.com/joseph-ayodele/contracts-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/contracts-tracker/internal/pipeline"
	repo "github.com/joseph-ayodele/contracts-tracker/internal/repository"
	"github.com/joseph-ayodele/contracts-tracker/internal/server"
	"github.com/joseph-ayodele/contracts-tracker/internal/storage"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	watchDir := flag.String("watch", "", "directory to watch for new contract PDFs")
	flag.Parse()

	cfg, err := common.LoadConfig(*envFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(os.Stdout, cfg.LogLevel, false)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *watchDir, logger); err != nil {
		logger.Error("contractsd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, watchDir string, logger *slog.Logger) error {
	db := cfg.Database
	drv, pool, err := repo.Open(ctx, repo.Config{
		Driver:           db.Driver,
		DSN:              db.DSN,
		MaxConns:         db.MaxConns,
		MinConns:         db.MinConns,
		MaxConnLifetime:  db.MaxConnLifetime,
		MaxConnIdleTime:  db.MaxConnIdleTime,
		DialTimeout:      db.DialTimeout,
		StatementTimeout: db.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "driver", db.Driver, "error", err)
		return err
	}
	defer repo.Close(drv, pool, logger)

	if err := repo.HealthCheck(ctx, drv, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		return err
	}
	if err := repo.Migrate(ctx, drv, logger); err != nil {
		return err
	}

	store, err := storage.NewLocal(cfg.Storage.UploadDir, cfg.Storage.MaxFileSize, logger)
	if err != nil {
		return err
	}
	contracts := repo.NewContractRepository(drv, logger)

	// Text extraction: pdftotext, then pdfcpu, then OCR when enabled.
	extractor := extract.NewPDFExtractor(extract.ConfigFrom(cfg.Extract), logger)

	// LLM field extraction behind a rate limiter and circuit breaker. Without
	// an API key every contract goes through the regex fallback.
	var fields llm.FieldExtractor
	if cfg.LLM.APIKey != "" {
		client := openai.NewClient(openai.ConfigFrom(cfg.LLM), logger)
		fields = llm.NewGuard(client, llm.GuardConfig{
			Name:           "openai",
			RequestsPerSec: cfg.LLM.RequestsPerSec,
			Burst:          cfg.LLM.Burst,
			MaxFailures:    cfg.LLM.BreakerFailures,
			OpenFor:        cfg.LLM.BreakerOpenFor,
		}, logger)
		logger.Info("llm configured", "model", client.Model(), "base_url", cfg.LLM.BaseURL)
	} else {
		logger.Warn("OPENAI_API_KEY not set; using regex fallback extraction only")
	}
	var parserOpts []llm.ParserOption
	if !cfg.LLM.FallbackOnFailed {
		parserOpts = append(parserOpts, llm.WithoutFallback())
	}
	parser := llm.NewParser(fields, logger, parserOpts...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := pipeline.NewMetrics(reg)

	processor := pipeline.NewProcessor(contracts, extractor, parser, logger,
		pipeline.WithValidator(extract.Validate),
		pipeline.WithMetrics(metrics),
	)

	queueOpts := []async.Option{
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.Timeout),
	}
	var queue async.Queue
	switch cfg.Queue.Backend {
	case "redis":
		rdb, err := async.NewRedisClient(ctx, cfg.Queue.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("redis close failed", "error", err)
			}
		}()
		queue = async.NewRedisQueue(rdb, cfg.Queue.RedisKey, processor, logger, queueOpts...)
	default:
		queue = async.NewProcessorQueue(processor, logger, queueOpts...)
	}
	logger.Info("queue started", "backend", cfg.Queue.Backend, "workers", cfg.Queue.Workers)

	ingestor := ingest.NewService(store, contracts, queue, logger)
	deps := server.Deps{
		Contracts: contracts,
		Ingestor:  ingestor,
		Exporter:  export.NewService(contracts, logger),
		Files:     store,
		Health: func(ctx context.Context) error {
			return repo.HealthCheck(ctx, drv, 2*time.Second, logger)
		},
		Metrics:        reg,
		MaxUploadBytes: cfg.Storage.MaxFileSize,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	}

	errCh := make(chan error, 2)

	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			return err
		}
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(server.UnaryInterceptor(logger)))
		server.RegisterContractService(grpcServer, server.NewContractService(deps))

		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(server.ContractServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

		logger.Info("gRPC listening", "addr", cfg.Server.GRPCAddr)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           server.NewHTTPHandler(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("HTTP listening", "addr", cfg.Server.HTTPAddr)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	if watchDir != "" {
		go func() {
			err := ingestor.Watch(ctx, ingest.WatchConfig{
				Roots:       []string{watchDir},
				InitialScan: true,
				Debounce:    500 * time.Millisecond,
				SkipHidden:  true,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watcher stopped", "dir", watchDir, "error", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", "error", err)
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	queue.Shutdown(shutdownCtx)
	return serveErr
}
