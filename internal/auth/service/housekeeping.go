package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/store"
)

// Default retention for housekeeping.
const (
	DefaultHousekeepingInterval = time.Hour
	DefaultSessionRetention     = 90 * 24 * time.Hour
	DefaultAuditRetention       = 365 * 24 * time.Hour
)

// HousekeepingService periodically deletes sessions that expired long ago
// and audit events past their retention, so neither table grows without
// bound. Revoked but recent sessions are kept for investigation.
type HousekeepingService struct {
	Store            store.Store
	Logger           *slog.Logger
	Interval         time.Duration
	SessionRetention time.Duration
	AuditRetention   time.Duration
	Now              func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewHousekeepingService creates a housekeeping service. Zero durations
// fall back to the defaults.
func NewHousekeepingService(
	st store.Store,
	logger *slog.Logger,
	interval, sessionRetention, auditRetention time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if sessionRetention <= 0 {
		sessionRetention = DefaultSessionRetention
	}
	if auditRetention <= 0 {
		auditRetention = DefaultAuditRetention
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Store:            st,
		Logger:           logger,
		Interval:         interval,
		SessionRetention: sessionRetention,
		AuditRetention:   auditRetention,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then on every tick. Call Stop to
// shut the worker down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one pass. Each deletion is independent; a failure in
// one does not stop the other.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	s.Logger.Debug("starting housekeeping cleanup")

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	sessions, err := s.Store.Sessions().DeleteSessionsExpiredBefore(ctx, now.Add(-s.SessionRetention))
	if err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	}

	events, err := s.Store.AuditEvents().DeleteAuditEventsBefore(ctx, now.Add(-s.AuditRetention))
	if err != nil {
		s.Logger.Error("failed to delete old audit events", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed",
		"sessions_deleted", sessions,
		"audit_events_deleted", events,
	)
}
