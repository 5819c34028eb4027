// Package secrets loads the identity salt from HashiCorp Vault.
package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"
	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
)

// SaltProvider returns the secret used to key network identity digests.
type SaltProvider interface {
	Salt(ctx context.Context) (string, error)
}

// StaticSaltProvider returns a salt taken directly from configuration.
type StaticSaltProvider string

// Salt implements SaltProvider.
func (s StaticSaltProvider) Salt(context.Context) (string, error) {
	if s == "" {
		return "", errors.ErrInvalidConfig("identity salt is empty")
	}
	return string(s), nil
}

// VaultSaltProvider reads the salt from a KV v2 secret.
type VaultSaltProvider struct {
	client     *vault.Client
	log        logger.Logger
	mountPath  string
	secretPath string
	field      string
}

// NewVaultSaltProvider creates and configures a Vault-backed salt provider.
func NewVaultSaltProvider(cfg *config.VaultConfig, log logger.Logger) (*VaultSaltProvider, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, errors.ErrVaultUnavailable(err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	return NewVaultSaltProviderWithClient(client, cfg, log), nil
}

// NewVaultSaltProviderWithClient wraps an existing Vault client.
func NewVaultSaltProviderWithClient(client *vault.Client, cfg *config.VaultConfig, log logger.Logger) *VaultSaltProvider {
	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}
	field := cfg.SaltField
	if field == "" {
		field = "salt"
	}
	return &VaultSaltProvider{
		client:     client,
		log:        log.WithComponent("vault_salt_provider"),
		mountPath:  mount,
		secretPath: cfg.SecretPath,
		field:      field,
	}
}

// Salt reads the configured field of the secret. A missing secret or field is an error.
func (v *VaultSaltProvider) Salt(ctx context.Context) (string, error) {
	secret, err := v.client.KVv2(v.mountPath).Get(ctx, v.secretPath)
	if err != nil {
		v.log.Error(ctx, "failed to read identity salt from Vault", err,
			logger.String("mount", v.mountPath),
			logger.String("path", v.secretPath),
		)
		return "", errors.ErrVaultUnavailable(err)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.ErrNotFound(fmt.Sprintf("vault secret %s/%s", v.mountPath, v.secretPath))
	}

	salt, ok := secret.Data[v.field].(string)
	if !ok || salt == "" {
		return "", errors.ErrNotFound(fmt.Sprintf("field %q in vault secret %s/%s", v.field, v.mountPath, v.secretPath))
	}

	v.log.Info(ctx, "identity salt loaded from Vault", logger.String("path", v.secretPath))
	return salt, nil
}

//Personal.AI order the ending
