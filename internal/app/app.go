package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/seating/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/seating/internal/health"
	"github.com/vladislavdragonenkov/seating/internal/metrics"
	"github.com/vladislavdragonenkov/seating/internal/service/outbox"
	"github.com/vladislavdragonenkov/seating/internal/service/retention"
	"github.com/vladislavdragonenkov/seating/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/seating/internal/version"
)

const (
	shutdownTimeout     = 5 * time.Second
	readHeaderTimeout   = 5 * time.Second
	healthWatchInterval = 5 * time.Second
)

// Run поднимает REST API, сервер метрик, outbox worker и (опционально) gRPC health.
// Возвращает ctx.Err() после штатной остановки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close dependencies")
		}
	}()

	seatingMetrics := metrics.NewSeatingMetrics()
	svc, err := newBookingService(cfg, deps, seatingMetrics, logger)
	if err != nil {
		return err
	}

	publishers, err := initEventPublishers(cfg, logger)
	if err != nil {
		return err
	}
	defer publishers.closeFn()

	healthHandler := newHealthHandler(cfg, deps)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	workerDone := startOutboxWorker(workerCtx, cfg, deps, publishers, logger)
	defer shutdownOutboxWorker(cancelWorker, workerDone, logger)

	cleanupDone := startOutboxCleanup(workerCtx, cfg, deps, logger)
	defer shutdownOutboxWorker(cancelWorker, cleanupDone, logger)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	grpcServer, grpcErrCh, err := startGRPCHealthServer(ctx, cfg.GRPCHealthAddr, healthHandler, logger)
	if err != nil {
		return err
	}
	defer stopGRPC(grpcServer, logger)

	router := httpapi.NewRouter(svc,
		httpapi.WithLogger(logger.WithFields(log.Fields{"component": "http-api", "layer": "transport"})),
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
	)
	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	apiSrv := &http.Server{Handler: router, ReadHeaderTimeout: readHeaderTimeout}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("REST API слушает %s", lis.Addr())
		errCh <- apiSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем REST API")
		shutdownHTTP(apiSrv, logger)
		return ctx.Err()
	case err := <-grpcErrCh:
		shutdownHTTP(apiSrv, logger)
		return fmt.Errorf("grpc health server: %w", err)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newHealthHandler регистрирует проверки хранилища, Redis и отставания outbox.
func newHealthHandler(cfg Config, deps *runtimeDependencies) *healthcheck.Handler {
	h := healthcheck.NewHandler(version.GetVersion())
	h.RegisterChecker("storage", deps.storageChecker)
	if deps.redisChecker != nil {
		h.RegisterChecker("redis", deps.redisChecker)
	}
	h.RegisterChecker("outbox", healthcheck.NewOutboxChecker(deps.store.Outbox(), cfg.OutboxMaxAge))
	return h
}

// startOutboxWorker запускает polling outbox в отдельной горутине.
func startOutboxWorker(ctx context.Context, cfg Config, deps *runtimeDependencies, publishers *eventPublishers, logger *log.Entry) <-chan struct{} {
	options := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if publishers.dlq != nil {
		options = append(options, outbox.WithDLQPublisher(publishers.dlq))
	}
	worker := outbox.NewWorker(deps.store.Outbox(), publishers.main, options...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()
	return done
}

// startOutboxCleanup запускает удаление опубликованных событий, если outbox это поддерживает.
func startOutboxCleanup(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) <-chan struct{} {
	cleaner, ok := deps.store.Outbox().(domain.OutboxCleaner)
	if !ok {
		logger.Warn("outbox storage does not support cleanup, published events are kept")
		return nil
	}
	worker := retention.NewCleanupWorker(cleaner,
		retention.WithLogger(logger.WithField("component", "outbox-cleanup-worker")),
		retention.WithInterval(cfg.OutboxCleanupInterval),
		retention.WithRetention(cfg.OutboxRetention),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()
	return done
}

// shutdownOutboxWorker останавливает worker и ждёт завершения текущего цикла.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// startGRPCHealthServer поднимает grpc.health.v1 с метриками вызовов. Пустой addr отключает сервер.
func startGRPCHealthServer(ctx context.Context, addr string, healthHandler *healthcheck.Handler, logger *log.Entry) (*grpc.Server, <-chan error, error) {
	if addr == "" {
		return nil, nil, nil
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	grpcMetrics.InitializeMetrics(grpcServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen grpc %s: %w", addr, err)
	}

	syncServingStatus(ctx, healthServer, healthHandler)
	go watchHealth(ctx, healthServer, healthHandler, healthWatchInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC health слушает %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()
	return grpcServer, errCh, nil
}

// watchHealth переносит результат HTTP health-проверок в статус gRPC health.
func watchHealth(ctx context.Context, server *health.Server, h *healthcheck.Handler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			server.Shutdown()
			return
		case <-ticker.C:
			syncServingStatus(ctx, server, h)
		}
	}
}

func syncServingStatus(ctx context.Context, server *health.Server, h *healthcheck.Handler) {
	status := healthpb.HealthCheckResponse_SERVING
	if overall, _ := h.Evaluate(ctx); overall == healthcheck.StatusUnhealthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	server.SetServingStatus("", status)
}

// stopGRPC останавливает gRPC-сервер; если graceful stop завис, вызывает Stop.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	if server == nil {
		return
	}
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
