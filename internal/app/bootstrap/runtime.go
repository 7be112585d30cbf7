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

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/dbfleet/internal/adapters/cache"
	directoryadapter "github.com/viralforge/dbfleet/internal/adapters/directory"
	grpcadapter "github.com/viralforge/dbfleet/internal/adapters/grpc"
	httpadapter "github.com/viralforge/dbfleet/internal/adapters/http"
	"github.com/viralforge/dbfleet/internal/adapters/maintenance"
	"github.com/viralforge/dbfleet/internal/adapters/postgres"
	"github.com/viralforge/dbfleet/internal/adapters/security"
	"github.com/viralforge/dbfleet/internal/application"
	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
	"github.com/viralforge/dbfleet/internal/telemetry"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	sweeper    *maintenance.SessionSweeper
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping dbfleet iam core", "service_id", cfg.ServiceID, "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	cleanup := func(context.Context) { _ = sqlDB.Close() }

	var directory ports.DirectoryService
	if cfg.DirectoryEnabled {
		var identityCache ports.IdentityCache
		if cfg.RedisURL != "" {
			redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
			if err != nil {
				_ = sqlDB.Close()
				return nil, fmt.Errorf("connect redis: %w", err)
			}
			identityCache = cacheadapter.NewRedisIdentityCache(redisClient)
			cleanup = func(context.Context) {
				_ = redisClient.Close()
				_ = sqlDB.Close()
			}
		}
		directory = directoryadapter.NewLDAPDirectory(directoryadapter.Config{
			Server:          cfg.DirectoryServer,
			Port:            cfg.DirectoryPort,
			UseTLS:          cfg.DirectoryUseTLS,
			BindDN:          cfg.DirectoryBindDN,
			BindPassword:    cfg.DirectoryBindPassword,
			BaseDN:          cfg.DirectoryBaseDN,
			UserFilter:      cfg.DirectoryUserFilter,
			GroupFilter:     cfg.DirectoryGroupFilter,
			UserSearchBase:  cfg.DirectoryUserSearchBase,
			GroupSearchBase: cfg.DirectoryGroupSearchBase,
			UsernameAttr:    cfg.DirectoryUsernameAttr,
			Timeout:         cfg.DirectoryTimeout,
			CacheTTL:        cfg.DirectoryCacheTTL,
		}, identityCache, logger)
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	groupRules := make([]application.GroupRoleRule, 0, len(cfg.DirectoryGroupRoles))
	for _, m := range cfg.DirectoryGroupRoles {
		groupRules = append(groupRules, application.GroupRoleRule{Group: m.Group, Role: domain.Role(m.Role)})
	}

	repos := postgres.NewRepositories(pool)
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			DefaultRole:          domain.Role(cfg.DefaultRole),
			DefaultDirectoryRole: domain.Role(cfg.DirectoryDefaultRole),
			FailedLoginThreshold: cfg.FailedThreshold,
			LockoutDuration:      cfg.LockoutDuration,
			SessionTTL:           cfg.SessionTTL,
			DirectoryEnabled:     cfg.DirectoryEnabled,
			GroupRoleRules:       groupRules,
			BootstrapUsername:    cfg.BootstrapUsername,
			BootstrapPassword:    cfg.BootstrapPassword,
		},
		Accounts:  repos.Accounts,
		Sessions:  repos.Sessions,
		Attempts:  repos.AuthAttempts,
		Events:    repos.SecurityEvents,
		Snapshots: repos.Snapshots,
		Scans:     repos.Scans,
		Directory: directory,
		Hasher:    security.NewPBKDF2Hasher(cfg.PBKDF2Iterations),
		Metrics:   metrics,
	})

	// A missing bootstrap admin degrades to directory-only or manual setup;
	// the API still serves.
	if err := svc.EnsureBootstrapAccount(ctx); err != nil {
		logger.Error("bootstrap admin provisioning failed",
			"module", "bootstrap",
			"layer", "app",
			"operation", "ensure_bootstrap_account",
			"outcome", "failure",
			"error", err,
		)
	}

	handler := httpadapter.NewHandler(svc, metrics, sqlDB.PingContext)
	router := httpadapter.NewRouter(handler, registry)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewSessionInternalServer(svc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		sweeper:    maintenance.NewSessionSweeper(logger, svc, cfg.SessionSweepInterval),
		cleanupFn:  cleanup,
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

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("session sweeper started", "interval", r.cfg.SessionSweepInterval.String())
	err := r.sweeper.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
