// Package surveillance derives post-issuance milestone dates from a
// certificate's issue and expiry dates. Everything here is a pure function
// of its inputs; callers pass "now" explicitly and recompute on every read.
package surveillance

import (
	"time"

	"certo/internal/certification/models"
)

type MilestoneStatus string

const (
	StatusScheduled MilestoneStatus = "scheduled"
	StatusOverdue   MilestoneStatus = "overdue"
)

// Milestone is one dated checkpoint in a certificate's surveillance cycle.
type Milestone struct {
	Date   time.Time       `json:"date"`
	Status MilestoneStatus `json:"status"`
}

// Schedule holds the three milestones of a standard certification cycle.
type Schedule struct {
	Year1           Milestone `json:"year1"`
	Year2           Milestone `json:"year2"`
	Recertification Milestone `json:"recertification"`
}

// Compute derives the schedule. Year-1 surveillance falls 365 days after
// issue, year-2 falls 730 days after issue, and recertification is due 30
// days before expiry. A milestone is overdue once its date is strictly in
// the past.
func Compute(issueDate, expiryDate, now time.Time) Schedule {
	return Schedule{
		Year1:           milestone(issueDate.AddDate(0, 0, 365), now),
		Year2:           milestone(issueDate.AddDate(0, 0, 730), now),
		Recertification: milestone(expiryDate.AddDate(0, 0, -30), now),
	}
}

func milestone(date, now time.Time) Milestone {
	status := StatusScheduled
	if date.Before(now) {
		status = StatusOverdue
	}
	return Milestone{Date: date, Status: status}
}

// AnyOverdue reports whether at least one milestone has slipped.
func (s Schedule) AnyOverdue() bool {
	return s.Year1.Status == StatusOverdue ||
		s.Year2.Status == StatusOverdue ||
		s.Recertification.Status == StatusOverdue
}

// Stats aggregates surveillance posture across a tenant's certifications.
// Each certification lands in at most one of the surveillance buckets;
// overdue wins when its milestones are mixed.
type Stats struct {
	Total                 int `json:"total"`
	Active                int `json:"active"`
	Pending               int `json:"pending"`
	Suspended             int `json:"suspended"`
	Revoked               int `json:"revoked"`
	Expired               int `json:"expired"`
	ExpiringSoon          int `json:"expiring_soon"`
	ScheduledSurveillance int `json:"scheduled_surveillance"`
	OverdueSurveillance   int `json:"overdue_surveillance"`
}

// Aggregate computes Stats at the given instant. Only issued certificates
// that are still in force (active, including those expiring soon) contribute
// to the surveillance buckets.
func Aggregate(certs []*models.Certification, now time.Time) Stats {
	var stats Stats
	stats.Total = len(certs)
	for _, cert := range certs {
		inForce := false
		switch cert.EffectiveStatus(now) {
		case models.CertStatusActive:
			stats.Active++
			inForce = true
		case models.CertStatusExpiringSoon:
			stats.Active++
			stats.ExpiringSoon++
			inForce = true
		case models.CertStatusPending:
			stats.Pending++
		case models.CertStatusSuspended:
			stats.Suspended++
		case models.CertStatusRevoked:
			stats.Revoked++
		case models.CertStatusExpired:
			stats.Expired++
		}
		if !inForce {
			continue
		}
		if Compute(cert.IssueDate, cert.ExpiryDate, now).AnyOverdue() {
			stats.OverdueSurveillance++
		} else {
			stats.ScheduledSurveillance++
		}
	}
	return stats
}
