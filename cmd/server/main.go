package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	appservice "github.com/turtacn/quotagate/internal/application/service"
	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/internal/domain/repository"
	domainservice "github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/internal/infrastructure/audit"
	"github.com/turtacn/quotagate/internal/infrastructure/monitoring"
	"github.com/turtacn/quotagate/internal/infrastructure/secrets"
	"github.com/turtacn/quotagate/internal/infrastructure/store"
	"github.com/turtacn/quotagate/internal/interfaces/http/handlers"
	httprouter "github.com/turtacn/quotagate/internal/interfaces/http/router"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Load config
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	ctx := context.Background()

	// Initialize tracing
	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize tracer", err)
	}

	// Identity salt
	salt, err := loadSalt(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to load identity salt", err)
	}

	// Counter store
	counterStore, err := store.Open(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to open counter store", err)
	}

	// Policy registry, validated against every action the service gates
	registry, err := domainservice.NewPolicyRegistry(cfg.QuotaPolicies(), cfg.TestOverride())
	if err == nil {
		err = registry.Validate(constants.KnownActions...)
	}
	if err != nil {
		appLogger.Fatal(ctx, "Invalid quota policy table", err)
	}
	if cfg.Quota.TestMode.Enabled {
		appLogger.Warn(ctx, "Quota test override is active",
			logger.String("action", cfg.Quota.TestMode.Action),
			logger.Int64("limit", cfg.Quota.TestMode.Limit),
		)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	// Domain and application services
	engine := domainservice.NewAdmissionEngine(counterStore, registry, metrics, appLogger,
		domainservice.WithStoreTimeout(cfg.Store.Timeout),
		domainservice.WithTracer(tracing.Tracer()),
	)

	var publisher domainservice.DenialPublisher = domainservice.NewNoopDenialPublisher()
	var kafkaPublisher *audit.KafkaDenialPublisher
	if cfg.Audit.Enabled {
		kafkaPublisher = audit.NewKafkaDenialPublisher(cfg.Audit, metrics, appLogger)
		publisher = kafkaPublisher
	}

	app := appservice.NewAdmissionAppService(engine, registry, counterStore, publisher, appLogger,
		appservice.WithAuditFailureRecorder(metrics),
	)
	resolver := domainservice.NewKeyResolver(domainservice.KeyResolverConfig{
		Salt:             salt,
		TrustedProxyHops: cfg.Identity.TrustedProxyHops,
	})

	// HTTP
	router := httprouter.NewRouter(cfg, appLogger, reg, tracing, metrics,
		handlers.NewHealthHandler(map[string]repository.HealthChecker{"counter_store": counterStore}, appLogger),
		handlers.NewAdmissionHandler(app, resolver, appLogger),
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- router.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info(ctx, "Shutdown signal received", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(ctx, "HTTP server failed", err)
		}
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := router.Stop(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "Server forced to shutdown", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			appLogger.Error(shutdownCtx, "Failed to flush audit writer", err)
		}
	}
	if err := counterStore.Close(); err != nil {
		appLogger.Error(shutdownCtx, "Failed to close counter store", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		appLogger.Error(shutdownCtx, "Failed to shutdown tracer", err)
	}

	appLogger.Info(shutdownCtx, "Server stopped")
	if s, ok := appLogger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

func loadSalt(ctx context.Context, cfg *config.Config, log logger.Logger) (string, error) {
	var provider secrets.SaltProvider = secrets.StaticSaltProvider(cfg.Identity.Salt)
	if cfg.Identity.SaltSource == "vault" {
		vaultProvider, err := secrets.NewVaultSaltProvider(&cfg.Vault, log)
		if err != nil {
			return "", err
		}
		provider = vaultProvider
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return provider.Salt(ctx)
}

//Personal.AI order the ending
