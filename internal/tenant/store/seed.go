package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"certo/internal/tenant/models"
	apikeystore "certo/internal/tenant/store/apikey"
	tenantstore "certo/internal/tenant/store/tenant"
	id "certo/pkg/domain"
	"certo/pkg/secrets"
)

// SeedBootstrapTenant creates a default tenant with one API key for local
// development against the in-memory stores. Returns the tenant, the key, and
// the key's cleartext secret.
func SeedBootstrapTenant(ts *tenantstore.InMemory, ks *apikeystore.InMemory) (*models.Tenant, *models.APIKey, string) {
	now := time.Now()
	tenant := &models.Tenant{
		ID:        id.TenantID(uuid.New()),
		Name:      "default",
		Status:    models.TenantStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_ = ts.CreateIfNameAvailable(context.Background(), tenant)

	secret, err := secrets.Generate()
	if err != nil {
		return tenant, nil, ""
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return tenant, nil, ""
	}
	key := &models.APIKey{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		Name:       "bootstrap",
		KeyID:      "local-dev",
		SecretHash: hash,
		Status:     models.KeyStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_ = ks.Create(context.Background(), key)
	return tenant, key, secret
}
