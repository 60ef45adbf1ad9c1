package surveillance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certo/internal/certification/models"
	id "certo/pkg/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeMilestoneDates(t *testing.T) {
	issue := date(2025, 1, 1)
	expiry := date(2028, 1, 1)
	now := date(2026, 2, 1)

	sched := Compute(issue, expiry, now)

	assert.Equal(t, date(2026, 1, 1), sched.Year1.Date)
	assert.Equal(t, StatusOverdue, sched.Year1.Status)

	assert.Equal(t, date(2027, 1, 1), sched.Year2.Date)
	assert.Equal(t, StatusScheduled, sched.Year2.Status)

	assert.Equal(t, date(2027, 12, 2), sched.Recertification.Date)
	assert.Equal(t, StatusScheduled, sched.Recertification.Status)
}

func TestComputeMilestoneOnItsDateIsNotOverdue(t *testing.T) {
	issue := date(2025, 1, 1)
	sched := Compute(issue, issue.AddDate(3, 0, 0), date(2026, 1, 1))
	assert.Equal(t, StatusScheduled, sched.Year1.Status)

	sched = Compute(issue, issue.AddDate(3, 0, 0), date(2026, 1, 2))
	assert.Equal(t, StatusOverdue, sched.Year1.Status)
}

func TestAnyOverdue(t *testing.T) {
	issue := date(2025, 1, 1)
	expiry := date(2028, 1, 1)

	assert.False(t, Compute(issue, expiry, date(2025, 6, 1)).AnyOverdue())
	assert.True(t, Compute(issue, expiry, date(2026, 2, 1)).AnyOverdue())
	assert.True(t, Compute(issue, expiry, date(2030, 1, 1)).AnyOverdue())
}

func cert(t *testing.T, status models.CertStatus, issue, expiry time.Time) *models.Certification {
	t.Helper()
	c, err := models.NewCertification(
		id.TenantID(uuid.New()), id.AuditID(uuid.New()),
		"AUD-1", "CERT-AUD-1", "Client", "ISO 9001:2015", "scope", "", issue,
	)
	require.NoError(t, err)
	c.Status = status
	c.IssueDate = issue
	c.ExpiryDate = expiry
	return c
}

func TestAggregateBucketsAndPrecedence(t *testing.T) {
	now := date(2026, 2, 1)

	certs := []*models.Certification{
		// year-1 overdue: lands in the overdue bucket only.
		cert(t, models.CertStatusActive, date(2025, 1, 1), date(2028, 1, 1)),
		// nothing due yet: scheduled bucket.
		cert(t, models.CertStatusActive, date(2025, 12, 1), date(2028, 12, 1)),
		// pending and suspended never contribute surveillance entries.
		cert(t, models.CertStatusPending, date(2026, 1, 1), date(2029, 1, 1)),
		cert(t, models.CertStatusSuspended, date(2025, 1, 1), date(2028, 1, 1)),
		// active but past expiry reads as expired and drops out.
		cert(t, models.CertStatusActive, date(2022, 1, 1), date(2025, 1, 1)),
		cert(t, models.CertStatusRevoked, date(2025, 1, 1), date(2028, 1, 1)),
	}

	stats := Aggregate(certs, now)

	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Suspended)
	assert.Equal(t, 1, stats.Revoked)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 1, stats.OverdueSurveillance)
	assert.Equal(t, 1, stats.ScheduledSurveillance)
}

func TestAggregateCountsExpiringSoonAsActive(t *testing.T) {
	now := date(2026, 2, 1)
	c := cert(t, models.CertStatusActive, date(2023, 3, 1), date(2026, 3, 1))

	stats := Aggregate([]*models.Certification{c}, now)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.ExpiringSoon)
	// year-1 and year-2 milestones are long past.
	assert.Equal(t, 1, stats.OverdueSurveillance)
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, time.Now())
	assert.Zero(t, stats)
}
