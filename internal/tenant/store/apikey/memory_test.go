package apikey

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certo/internal/tenant/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

type APIKeyStoreSuite struct {
	suite.Suite
	store    *InMemory
	ctx      context.Context
	tenantID id.TenantID
}

func (s *APIKeyStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.tenantID = id.TenantID(uuid.New())
}

func TestAPIKeyStoreSuite(t *testing.T) {
	suite.Run(t, new(APIKeyStoreSuite))
}

func (s *APIKeyStoreSuite) newKey(name string) *models.APIKey {
	now := time.Now()
	return &models.APIKey{
		ID:         uuid.New(),
		TenantID:   s.tenantID,
		Name:       name,
		KeyID:      uuid.NewString(),
		SecretHash: "hash",
		Status:     models.KeyStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *APIKeyStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds key by key id", func() {
		key := s.newKey("CI pipeline")
		s.Require().NoError(s.store.Create(s.ctx, key))

		found, err := s.store.FindByKeyID(s.ctx, key.KeyID)
		s.Require().NoError(err)
		s.Equal(key.Name, found.Name)
		s.Equal(key.TenantID, found.TenantID)
	})

	s.Run("finds key scoped to tenant", func() {
		key := s.newKey("Scoped")
		s.Require().NoError(s.store.Create(s.ctx, key))

		found, err := s.store.FindByTenantAndID(s.ctx, s.tenantID, key.ID)
		s.Require().NoError(err)
		s.Equal(key.KeyID, found.KeyID)

		_, err = s.store.FindByTenantAndID(s.ctx, id.TenantID(uuid.New()), key.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound for unknown key id", func() {
		_, err := s.store.FindByKeyID(s.ctx, uuid.NewString())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate key id", func() {
		key1 := s.newKey("First")
		key2 := s.newKey("Second")
		key2.KeyID = key1.KeyID

		s.Require().NoError(s.store.Create(s.ctx, key1))
		s.Require().ErrorIs(s.store.Create(s.ctx, key2), sentinel.ErrConflict)
	})
}

func (s *APIKeyStoreSuite) TestUpdates() {
	s.Run("persists status changes", func() {
		key := s.newKey("Revocable")
		s.Require().NoError(s.store.Create(s.ctx, key))

		key.Status = models.KeyStatusRevoked
		s.Require().NoError(s.store.Update(s.ctx, key))

		found, err := s.store.FindByKeyID(s.ctx, key.KeyID)
		s.Require().NoError(err)
		s.Equal(models.KeyStatusRevoked, found.Status)
	})

	s.Run("returns ErrNotFound for non-existent key", func() {
		key := s.newKey("Ghost")
		s.Require().ErrorIs(s.store.Update(s.ctx, key), sentinel.ErrNotFound)
	})
}

func (s *APIKeyStoreSuite) TestListingAndCounts() {
	otherTenant := id.TenantID(uuid.New())
	first := s.newKey("First")
	second := s.newKey("Second")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	foreign := s.newKey("Foreign")
	foreign.TenantID = otherTenant

	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, foreign))

	keys, err := s.store.ListByTenant(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Require().Len(keys, 2)
	s.Equal("First", keys[0].Name)
	s.Equal("Second", keys[1].Name)

	count, err := s.store.CountByTenant(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Equal(2, count)
}
