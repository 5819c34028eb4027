package secrets_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/internal/infrastructure/secrets"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/errors"
	"github.com/turtacn/quotagate/pkg/logger"
)

const kvResponse = `{
  "request_id": "1",
  "lease_id": "",
  "renewable": false,
  "lease_duration": 0,
  "data": {
    "data": {"salt": "from-vault", "other": "x"},
    "metadata": {"created_time": "2024-01-01T00:00:00Z", "deletion_time": "", "destroyed": false, "version": 3}
  }
}`

func newProvider(t *testing.T, handler http.HandlerFunc, field string) *secrets.VaultSaltProvider {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = ts.URL
	vaultConfig.MaxRetries = 0
	client, err := api.NewClient(vaultConfig)
	require.NoError(t, err)
	client.SetToken("test-token")

	return secrets.NewVaultSaltProviderWithClient(client, &config.VaultConfig{
		MountPath:  "secret",
		SecretPath: "quotagate/identity",
		SaltField:  field,
	}, logger.NewNullLogger())
}

func TestVaultSaltProvider_Salt(t *testing.T) {
	var gotPath string
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(kvResponse))
	}, "salt")

	salt, err := p.Salt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-vault", salt)
	assert.Equal(t, "/v1/secret/data/quotagate/identity", gotPath)
}

func TestVaultSaltProvider_MissingField(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(kvResponse))
	}, "pepper")

	_, err := p.Salt(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, constants.ErrCodeNotFound))
}

func TestVaultSaltProvider_ServerError(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, "salt")

	_, err := p.Salt(context.Background())
	assert.Error(t, err)
}

func TestStaticSaltProvider(t *testing.T) {
	salt, err := secrets.StaticSaltProvider("abc").Salt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", salt)

	_, err = secrets.StaticSaltProvider("").Salt(context.Background())
	assert.Error(t, err)
}
