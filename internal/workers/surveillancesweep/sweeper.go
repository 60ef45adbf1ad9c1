package surveillancesweep

import (
	"context"
	"log/slog"
	"time"

	"certo/internal/certification/models"
	"certo/internal/certification/surveillance"
	"certo/internal/platform/metrics"
	id "certo/pkg/domain"
	"certo/pkg/platform/auditlog"
)

// CertificationSource lists certifications the sweep inspects.
type CertificationSource interface {
	ListIssued(ctx context.Context) ([]*models.Certification, error)
}

// Locker serializes sweeps across instances. Optional.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error)
}

const (
	lockKey = "surveillance:sweep"
	lockTTL = 5 * time.Minute
)

// Sweeper periodically recomputes surveillance milestone status for every
// issued certification, refreshes the overdue/scheduled gauges, and emits a
// trail event the first time a certification's schedule turns overdue.
type Sweeper struct {
	certs    CertificationSource
	interval time.Duration
	logger   *slog.Logger
	trail    auditlog.Publisher
	metrics  *metrics.Metrics
	lock     Locker

	// certifications already flagged overdue, so each one produces a
	// single trail event per process lifetime rather than one per sweep
	flagged map[id.CertificationID]bool
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithTrailPublisher(publisher auditlog.Publisher) Option {
	return func(s *Sweeper) { s.trail = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func WithLock(lock Locker) Option {
	return func(s *Sweeper) { s.lock = lock }
}

func New(certs CertificationSource, interval time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		certs:    certs,
		interval: interval,
		logger:   slog.Default(),
		flagged:  make(map[id.CertificationID]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks, sweeping once immediately and then on every tick until the
// context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if s.lock != nil {
		release, acquired, err := s.lock.Acquire(ctx, lockKey, lockTTL)
		if err != nil {
			s.logger.WarnContext(ctx, "sweep lock unavailable, sweeping anyway", "error", err)
		} else if !acquired {
			s.logger.DebugContext(ctx, "sweep already running elsewhere, skipping")
			return
		} else {
			defer release()
		}
	}

	certs, err := s.certs.ListIssued(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "surveillance sweep failed to list certifications", "error", err)
		return
	}

	now := time.Now()
	var overdue, scheduled int
	for _, cert := range certs {
		if cert.IsTerminal(now) {
			continue
		}
		schedule := surveillance.Compute(cert.IssueDate, cert.ExpiryDate, now)
		if schedule.AnyOverdue() {
			overdue++
			s.flagOverdue(ctx, cert, now)
		} else {
			scheduled++
			delete(s.flagged, cert.ID)
		}
	}

	if s.metrics != nil {
		s.metrics.OverdueSurveillance.Set(float64(overdue))
		s.metrics.ScheduledSurveillance.Set(float64(scheduled))
	}
	s.logger.InfoContext(ctx, "surveillance sweep complete",
		"certifications", len(certs),
		"overdue", overdue,
		"scheduled", scheduled,
	)
}

func (s *Sweeper) flagOverdue(ctx context.Context, cert *models.Certification, now time.Time) {
	if s.flagged[cert.ID] {
		return
	}
	s.flagged[cert.ID] = true

	s.logger.WarnContext(ctx, "surveillance milestone overdue",
		"certification_id", cert.ID,
		"certificate_number", cert.CertificateNumber,
		"tenant_id", cert.TenantID,
	)
	if s.trail == nil {
		return
	}
	event := auditlog.Event{
		Timestamp: now,
		TenantID:  cert.TenantID,
		Subject:   cert.ID.String(),
		Action:    string(auditlog.EventSurveillanceOverdue),
		Reason:    "surveillance milestone date has passed",
	}
	if err := s.trail.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "trail emit failed", "action", event.Action, "error", err)
	}
}
