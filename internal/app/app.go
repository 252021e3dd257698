package app

import (
	"context"
	"time"

	config "github.com/DRSN-tech/marketplace/internal/cfg"
	v1Grpc "github.com/DRSN-tech/marketplace/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/marketplace/internal/delivery/v1/http"
	"github.com/DRSN-tech/marketplace/internal/delivery/v1/http/middleware"
	"github.com/DRSN-tech/marketplace/internal/infrastructure/kafka"
	"github.com/DRSN-tech/marketplace/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/marketplace/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/closer"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	shutdownTimeout    = 15 * time.Second
	forcedCloseTimeout = 2 * time.Second
	topicsTimeout      = 10 * time.Second
)

// App — сервис витрины: HTTP API, gRPC, outbox-воркер и их зависимости.
type App struct {
	cfg          *config.Config
	logger       logger.Logger
	closer       *closer.Closer
	ctx          context.Context
	cancel       context.CancelFunc
	httpSrv      *v1Http.Server
	grpcSrv      *v1Grpc.GRPCServer
	outboxWorker *kafka.OutboxWorker
}

// NewApp поднимает зависимости и собирает сервис. При ошибке уже созданные ресурсы закрываются.
func NewApp(cfg *config.Config, logger logger.Logger) (_ *App, err error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:    cfg,
		logger: logger,
		closer: closer.NewCloser(forcedCloseTimeout),
		ctx:    ctx,
		cancel: cancel,
	}
	defer func() {
		if err != nil {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer closeCancel()
			if cErr := a.closer.Close(closeCtx); cErr != nil {
				logger.Errorf(cErr, "failed to release resources")
			}
			cancel()
		}
	}()

	st, err := connectStores(ctx, cfg, logger, a.closer)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	producer := kafka.NewProducer(logger, cfg.Kafka)
	a.closer.Add("kafka producer", producer.Close)
	if err := producer.EnsureTopics(topicsTimeout); err != nil {
		// Топики мог создать администратор кластера, это не повод не стартовать
		logger.Warnf("failed to ensure kafka topics: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	a.outboxWorker = kafka.NewOutboxWorker(
		pgdb.NewOutboxEventRepo(st.db.Pool, pgdbConv.NewOutboxEventConverter()),
		logger,
		producer,
		st.db.Dsn,
	)
	a.closer.Add("outbox worker", a.outboxWorker.Stop)

	searchUC, err := newSearchUC(cfg, st, logger, a.closer)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if !searchUC.Enabled() {
		logger.Warnf("semantic search is disabled: QDRANT_HOST is not set")
	}

	catalogUC := usecase.NewCatalogUC(st.productRepo, st.cacheRepo, st.imagesInfra, logger)
	sessionUC := usecase.NewSessionUC(catalogUC, producer, logger, cfg.Session.TTL, cfg.Session.CleanupInterval)

	a.grpcSrv = v1Grpc.NewGRPCServer(cfg.Grpc, logger)
	a.grpcSrv.RegisterServices(catalogUC)
	a.closer.Add("grpc server", a.grpcSrv.Stop)

	rateLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimit)

	r := chi.NewRouter()
	v1Http.NewRouter(r, logger).Init(catalogUC, sessionUC, searchUC, rateLimiter)
	a.httpSrv = v1Http.NewServer(r, cfg.Http)
	a.closer.Add("rate limiter", rateLimiter.Shutdown)
	a.closer.Add("http server", a.httpSrv.Stop)

	// Закрывается первым: SSE-потоки завершаются, и HTTP-сервер может остановиться
	a.closer.Add("sessions", func(context.Context) error {
		sessionUC.CloseAll()
		return nil
	})

	return a, nil
}

// Run запускает серверы и outbox-воркер и блокируется до отмены ctx или падения сервера.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			errCh <- e.Wrap("grpc server", err)
		}
	}()

	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil {
			errCh <- e.Wrap("http server", err)
		}
	}()

	a.outboxWorker.Start(a.ctx)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "server fatal error")
	case <-ctx.Done():
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
		if appErr == nil {
			appErr = err
		}
	}
	a.cancel()

	a.logger.Infof("Application shutdown complete")
	return appErr
}
