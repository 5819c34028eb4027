package cli

import (
	"context"
	"time"

	appservice "github.com/turtacn/quotagate/internal/application/service"
	"github.com/turtacn/quotagate/internal/config"
	domainservice "github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/internal/infrastructure/monitoring"
	"github.com/turtacn/quotagate/internal/infrastructure/secrets"
	"github.com/turtacn/quotagate/internal/infrastructure/store"
	"github.com/turtacn/quotagate/pkg/constants"
)

// Runtime bundles what the admin commands operate on.
type Runtime struct {
	App       appservice.AdmissionAppService
	Resolver  domainservice.KeyResolver
	Retention time.Duration
	Now       func() time.Time
	Close     func() error
}

// RuntimeFactory builds a Runtime from a config file path.
type RuntimeFactory func(ctx context.Context, configPath string) (*Runtime, error)

// DefaultRuntime loads configuration and opens the configured counter store.
// Denial events are not published from the CLI.
func DefaultRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Log
	logCfg.Level = "warn"
	logCfg.Format = "console"
	log, err := monitoring.NewZapLogger(&logCfg)
	if err != nil {
		return nil, err
	}

	registry, err := domainservice.NewPolicyRegistry(cfg.QuotaPolicies(), cfg.TestOverride())
	if err != nil {
		return nil, err
	}
	if err := registry.Validate(constants.KnownActions...); err != nil {
		return nil, err
	}

	var saltProvider secrets.SaltProvider = secrets.StaticSaltProvider(cfg.Identity.Salt)
	if cfg.Identity.SaltSource == "vault" {
		if saltProvider, err = secrets.NewVaultSaltProvider(&cfg.Vault, log); err != nil {
			return nil, err
		}
	}
	salt, err := saltProvider.Salt(ctx)
	if err != nil {
		return nil, err
	}

	counterStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	engine := domainservice.NewAdmissionEngine(counterStore, registry, nil, log,
		domainservice.WithStoreTimeout(cfg.Store.Timeout),
	)
	return &Runtime{
		App: appservice.NewAdmissionAppService(engine, registry, counterStore, nil, log),
		Resolver: domainservice.NewKeyResolver(domainservice.KeyResolverConfig{
			Salt:             salt,
			TrustedProxyHops: cfg.Identity.TrustedProxyHops,
		}),
		Retention: cfg.Store.Retention,
		Now:       time.Now,
		Close:     counterStore.Close,
	}, nil
}

//Personal.AI order the ending
