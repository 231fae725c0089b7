package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	flaggrpc "github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/grpc"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/handler"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/middleware"
	storerepo "github.com/k1s0-platform/system-server-go-configdeploy/internal/adapter/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/service"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/cache"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/config"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/crypto"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/lock"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/messaging"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/persistence"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/telemetry"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/usecase"
)

// eventPublisher は監査イベントの配信先。
type eventPublisher interface {
	usecase.AuditEventPublisher
	handler.HealthChecker
	Close() error
}

// stores はリポジトリ一式。
type stores struct {
	configs     repository.ConfigRepository
	flags       repository.FeatureFlagRepository
	deployments repository.DeploymentRepository
	snapshots   repository.SnapshotRepository
	auditLogs   repository.AuditLogRepository
}

func main() {
	// --- Config ---
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Telemetry ---
	provider, err := telemetry.InitTracer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	metrics := telemetry.NewMetrics(cfg.App.Name)

	// --- Stores ---
	var (
		st        stores
		dbChecker handler.HealthChecker
	)
	if cfg.HasDatabase() {
		db, err := persistence.NewDB(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if cfg.Database.AutoMigrate {
			applied, err := db.Migrate(ctx)
			if err != nil {
				logger.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
			logger.Info("database migrated", "applied", applied)
		}
		st = stores{
			configs:     storerepo.NewConfigPostgresRepository(db),
			flags:       storerepo.NewFeatureFlagPostgresRepository(db),
			deployments: storerepo.NewDeploymentPostgresRepository(db),
			snapshots:   storerepo.NewSnapshotPostgresRepository(db),
			auditLogs:   storerepo.NewAuditLogPostgresRepository(db),
		}
		dbChecker = db
	} else {
		logger.Warn("database.host is empty, using in-memory stores")
		st = stores{
			configs:     storerepo.NewInMemoryConfigRepository(),
			flags:       storerepo.NewInMemoryFeatureFlagRepository(),
			deployments: storerepo.NewInMemoryDeploymentRepository(),
			snapshots:   storerepo.NewInMemorySnapshotRepository(),
			auditLogs:   storerepo.NewInMemoryAuditLogRepository(),
		}
	}

	// --- Redis: flag cache / key lock ---
	var (
		locker       usecase.KeyLocker = lock.NewInMemoryLocker()
		redisChecker handler.HealthChecker
	)
	if cfg.HasRedis() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		st.flags = cache.NewCachedFeatureFlagRepository(st.flags, rdb,
			cache.WithKeyPrefix(cfg.Cache.KeyPrefix),
			cache.WithTTL(cfg.Cache.FlagTTL),
			cache.WithLogger(logger),
		)
		locker = lock.NewRedisLocker(rdb,
			lock.WithKeyPrefix(cfg.Cache.KeyPrefix+"lock"),
			lock.WithTTL(cfg.Lock.TTL),
			lock.WithRetry(cfg.Lock.RetryInterval, cfg.Lock.WaitTimeout),
			lock.WithLogger(logger),
		)
		redisChecker = handler.HealthCheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	// --- Encryption ---
	var cipher usecase.ValueCipher
	if cfg.Encryption.MasterKey != "" {
		c, err := crypto.NewAESCipher(cfg.Encryption.MasterKey, cfg.Encryption.Salt)
		if err != nil {
			logger.Error("failed to init cipher", "error", err)
			os.Exit(1)
		}
		cipher = c
	}

	// --- Event bus ---
	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Error("failed to init event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	var busChecker handler.HealthChecker
	if cfg.Messaging.Backend != "none" {
		busChecker = publisher
	}

	// --- DI ---
	validator := service.NewConfigValidator(logger)
	audit := usecase.NewRecordAuditLogUseCase(st.auditLogs, publisher, logger)

	createConfigUC := usecase.NewCreateConfigUseCase(st.configs, validator, audit, cipher, locker, logger)
	getConfigUC := usecase.NewGetConfigUseCase(st.configs, cipher)
	listConfigsUC := usecase.NewListConfigsUseCase(st.configs, cipher)
	updateConfigUC := usecase.NewUpdateConfigUseCase(st.configs, validator, audit, cipher, locker, logger)
	deleteConfigUC := usecase.NewDeleteConfigUseCase(st.configs, audit, cipher, locker, logger)
	validateConfigsUC := usecase.NewValidateConfigsUseCase(validator)

	createFlagUC := usecase.NewCreateFeatureFlagUseCase(st.flags, audit, logger)
	getFlagUC := usecase.NewGetFeatureFlagUseCase(st.flags)
	listFlagsUC := usecase.NewListFeatureFlagsUseCase(st.flags)
	updateFlagUC := usecase.NewUpdateFeatureFlagUseCase(st.flags, audit, logger)
	deleteFlagUC := usecase.NewDeleteFeatureFlagUseCase(st.flags, audit, logger)
	evaluateFlagUC := usecase.NewEvaluateFeatureFlagUseCase(st.flags, service.NewFlagEvaluator(logger), metrics, logger)

	createDeploymentUC := usecase.NewCreateDeploymentUseCase(st.deployments, st.configs, cipher, audit, logger)
	executeDeploymentUC := usecase.NewExecuteDeploymentUseCase(
		st.deployments, getConfigUC, updateConfigUC, deleteConfigUC, cipher, audit, metrics, logger,
	)
	rollbackDeploymentUC := usecase.NewRollbackDeploymentUseCase(
		st.deployments, createConfigUC, updateConfigUC, cipher, audit, metrics, logger,
		usecase.WithFailedDeploymentRollback(cfg.Deployment.AllowFailedRollback),
	)
	cancelDeploymentUC := usecase.NewCancelDeploymentUseCase(st.deployments, audit, metrics, logger)
	getDeploymentUC := usecase.NewGetDeploymentUseCase(st.deployments)
	listDeploymentsUC := usecase.NewListDeploymentsUseCase(st.deployments)

	createSnapshotUC := usecase.NewCreateSnapshotUseCase(st.snapshots, st.configs, st.flags, audit, logger)
	getSnapshotUC := usecase.NewGetSnapshotUseCase(st.snapshots)
	restoreSnapshotUC := usecase.NewRestoreSnapshotUseCase(
		st.snapshots, st.configs, st.flags, updateConfigUC, updateFlagUC, cipher, audit, logger,
	)
	searchAuditLogsUC := usecase.NewSearchAuditLogsUseCase(st.auditLogs)

	// --- REST Router ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(telemetry.GinMiddleware(provider, metrics, logger))

	// ヘルスチェック
	r.GET("/healthz", handler.HealthzHandler())
	r.GET("/readyz", handler.ReadyzHandler(dbChecker, redisChecker, busChecker))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	handler.NewConfigHandler(
		createConfigUC, getConfigUC, listConfigsUC, updateConfigUC, deleteConfigUC, validateConfigsUC,
	).RegisterRoutes(v1)
	handler.NewFeatureFlagHandler(
		createFlagUC, getFlagUC, listFlagsUC, updateFlagUC, deleteFlagUC, evaluateFlagUC,
	).RegisterRoutes(v1)
	handler.NewDeploymentHandler(
		createDeploymentUC, executeDeploymentUC, rollbackDeploymentUC, cancelDeploymentUC,
		getDeploymentUC, listDeploymentsUC,
	).RegisterRoutes(v1)
	handler.NewSnapshotHandler(createSnapshotUC, getSnapshotUC, restoreSnapshotUC).RegisterRoutes(v1)
	handler.NewAuditHandler(searchAuditLogsUC).RegisterRoutes(v1)

	// --- gRPC Server ---
	var grpcServer *grpc.Server
	if cfg.GRPC.Port > 0 {
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(flaggrpc.MetricsInterceptor(metrics)))
		flaggrpc.RegisterFeatureFlagServiceServer(grpcServer, flaggrpc.NewFeatureFlagGRPCService(evaluateFlagUC))

		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Error("failed to listen for gRPC", "error", err)
			os.Exit(1)
		}
		go func() {
			logger.Info("gRPC server starting", "port", cfg.GRPC.Port)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server failed", "error", err)
				os.Exit(1)
			}
		}()
	}

	// --- REST Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("REST server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("REST server failed", "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down servers...")

	if grpcServer != nil {
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("REST server forced to shutdown", "error", err)
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown tracer provider", "error", err)
	}
	logger.Info("servers exited")
}

// newPublisher は messaging.backend に応じた監査イベントの配信先を作成する。
func newPublisher(cfg *config.Config, logger *slog.Logger) (eventPublisher, error) {
	switch cfg.Messaging.Backend {
	case "kafka":
		return messaging.NewKafkaPublisher(cfg.Kafka), nil
	case "nats":
		p, err := messaging.NewNATSPublisher(cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return messaging.NoopPublisher{}, nil
	}
}
