package surveillancesweep

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certo/internal/certification/models"
	certstore "certo/internal/certification/store"
	"certo/internal/platform/metrics"
	id "certo/pkg/domain"
	"certo/pkg/platform/auditlog"
	trailmemory "certo/pkg/platform/auditlog/store/memory"
)

// Prometheus collectors register globally, so one instance serves every test.
var testMetrics = metrics.New()

type SweeperSuite struct {
	suite.Suite
	store   *certstore.InMemory
	trail   auditlog.Store
	sweeper *Sweeper
	ctx     context.Context
}

func (s *SweeperSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.store = certstore.NewInMemory()
	s.trail = trailmemory.NewInMemoryStore()
	s.sweeper = New(s.store, time.Minute,
		WithLogger(logger),
		WithTrailPublisher(auditlog.NewStorePublisher(s.trail, logger)),
		WithMetrics(testMetrics),
	)
	s.ctx = context.Background()
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) seedActiveCert(number string, issuedAgo time.Duration) *models.Certification {
	now := time.Now()
	cert := &models.Certification{
		ID:                id.CertificationID(uuid.New()),
		TenantID:          id.TenantID(uuid.New()),
		AuditID:           id.AuditID(uuid.New()),
		AuditNumber:       number,
		CertificateNumber: "CERT-" + number,
		ClientName:        "Meridian Foods Ltd",
		ISOStandard:       "ISO 22000:2018",
		Status:            models.CertStatusActive,
		IssueDate:         now.Add(-issuedAgo),
		ExpiryDate:        now.AddDate(3, 0, 0),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.Require().NoError(s.store.Create(s.ctx, cert))
	return cert
}

func (s *SweeperSuite) TestSweepFlagsOverdueOnce() {
	// First surveillance milestone (issue + 365d) is already in the past.
	overdue := s.seedActiveCert("A-001", 400*24*time.Hour)
	// Fresh certification, nothing due yet.
	s.seedActiveCert("A-002", 30*24*time.Hour)

	s.sweeper.sweep(s.ctx)
	s.sweeper.sweep(s.ctx)

	events, err := s.trail.ListRecent(s.ctx, 10)
	s.Require().NoError(err)

	var overdueEvents int
	for _, e := range events {
		if e.Action == string(auditlog.EventSurveillanceOverdue) {
			overdueEvents++
			s.Equal(overdue.ID.String(), e.Subject)
		}
	}
	s.Equal(1, overdueEvents, "repeat sweeps must not re-flag the same certification")
}

func (s *SweeperSuite) TestSweepIgnoresNonIssuedCertifications() {
	now := time.Now()
	pending := &models.Certification{
		ID:                id.CertificationID(uuid.New()),
		TenantID:          id.TenantID(uuid.New()),
		AuditID:           id.AuditID(uuid.New()),
		AuditNumber:       "A-003",
		CertificateNumber: "CERT-A-003",
		Status:            models.CertStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.Require().NoError(s.store.Create(s.ctx, pending))

	s.sweeper.sweep(s.ctx)

	events, err := s.trail.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *SweeperSuite) TestRunStopsOnContextCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.sweeper.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		s.Fail("sweeper did not stop after cancel")
	}
}
