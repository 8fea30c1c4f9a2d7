package bootstrap

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
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

type closingPublisher interface {
	ports.EventPublisher
	Close() error
}

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping two-factor auth service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	tokenOpts, err := security.NewTokenOptions(cfg.TokenIssuer, cfg.TokenAudience, cfg.TokenSigningKey, cfg.TokenExpiryMinutes)
	if err != nil {
		return nil, fmt.Errorf("token options: %w", err)
	}
	tokens, err := security.NewJWTIssuer(tokenOpts, nil)
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}
	deviceStamps, err := security.NewDeviceStampSigner(cfg.TokenIssuer, cfg.DeviceStampKey, nil)
	if err != nil {
		return nil, fmt.Errorf("init device stamp signer: %w", err)
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	var publisher closingPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, nil)
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
	} else {
		logger.Warn("no kafka brokers configured; outbox events are logged only")
		publisher = eventadapter.NewLoggingPublisher(logger)
	}

	repos := postgres.NewRepositories(db)
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			PendingTwoFactorTTL:     cfg.PendingTwoFactorTTL,
			MaxSecondFactorAttempts: cfg.MaxSecondFactorAttempts,
			DeviceTrustTTL:          cfg.DeviceTrustTTL,
			AuthenticatorIssuer:     cfg.AuthenticatorIssuer,
			RecoveryCodeCount:       cfg.RecoveryCodeCount,
			FailedLoginThreshold:    cfg.FailedThreshold,
			LockoutDuration:         cfg.LockoutDuration,
			PasswordResetTTL:        cfg.PasswordResetTTL,
		},
		SecurityRecords:   repos.SecurityRecords,
		RecoveryCodes:     repos.RecoveryCodes,
		RememberedDevices: repos.RememberedDevices,
		PasswordResets:    repos.PasswordResets,
		Outbox:            repos.Outbox,
		Lockouts:          cacheadapter.NewRedisLockoutStore(redisClient),
		PendingSessions:   cacheadapter.NewRedisPendingTwoFactorStore(redisClient),
		Hasher:            security.NewBcryptHasher(cfg.BcryptCost),
		TOTP:              security.NewTOTPEngine(),
		Tokens:            tokens,
		DeviceStamps:      deviceStamps,
		Email:             eventadapter.NewOutboxEmailSender(repos.Outbox),
	})

	ready := func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
	limiter := httpadapter.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)
	router := httpadapter.NewRouter(httpadapter.NewHandler(svc, limiter, ready))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewTwoFactorServer(svc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = publisher.Close()
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	outbox := eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, eventadapter.OutboxWorkerConfig{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		ClaimTTL:   cfg.OutboxClaimTTL,
		MaxRetries: cfg.OutboxMaxRetries,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		cleanupFn: func(context.Context) {
			if err := publisher.Close(); err != nil {
				logger.Warn("close event publisher", "error", err)
			}
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

// RunWorker drains the outbox until the process is signalled; the listeners built by
// NewRuntime stay idle in this mode.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = r.grpcLis.Close()
	r.logger.Info("outbox worker started", "interval", r.cfg.OutboxPollInterval.String())
	err := r.outbox.Run(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
