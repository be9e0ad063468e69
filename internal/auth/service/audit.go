package service

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/store"
	"github.com/aussiebroadwan/autopay/pkg/idx"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
)

// AuditSink receives security events. Record must not block the caller and
// never reports an error.
type AuditSink interface {
	Record(ctx context.Context, e domain.AuditEvent)
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, domain.AuditEvent) {}

func sinkOrNop(s AuditSink) AuditSink {
	if s == nil {
		return nopAudit{}
	}
	return s
}

// maxUserAgent is the longest user agent kept on an audit row.
const maxUserAgent = 200

// event builds an audit event from the caller metadata, falling back to the
// request metadata stored in ctx by the HTTP middleware.
func event(ctx context.Context, typ domain.AuditEventType, accountID string, meta domain.ClientMeta, detail string) domain.AuditEvent {
	if meta.IPAddress == "" && meta.UserAgent == "" {
		rm := slogx.RequestMetaFrom(ctx)
		meta.IPAddress, meta.UserAgent = rm.IP, rm.UserAgent
	}
	return domain.AuditEvent{
		Type:      typ,
		AccountID: accountID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Detail:    detail,
	}
}

// CoarsenIP keeps the network part of an address: /24 for IPv4 and /48
// for IPv6. Unparsable input is dropped.
func CoarsenIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	addr = addr.Unmap()
	bits := 48
	if addr.Is4() {
		bits = 24
	}
	p, err := addr.Prefix(bits)
	if err != nil {
		return ""
	}
	return p.Addr().String()
}

func truncateUA(ua string) string {
	if len(ua) <= maxUserAgent {
		return ua
	}
	ua = ua[:maxUserAgent]
	for !utf8.ValidString(ua) {
		ua = ua[:len(ua)-1]
	}
	return ua
}

// AuditLog is an AuditSink that persists events from a background worker.
// When the buffer is full events are dropped and counted rather than
// slowing down authentication.
type AuditLog struct {
	Store   store.Store
	Logger  *slog.Logger
	Timeout time.Duration
	Now     func() time.Time

	events  chan domain.AuditEvent
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// NewAuditLog creates an audit log with the given buffer size (default 1024).
func NewAuditLog(st store.Store, logger *slog.Logger, buffer int) *AuditLog {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{
		Store:   st,
		Logger:  logger,
		Timeout: DefaultStorageTimeout,
		events:  make(chan domain.AuditEvent, buffer),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Record coarsens and enqueues e.
func (a *AuditLog) Record(_ context.Context, e domain.AuditEvent) {
	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now().UTC()
	}
	if e.ID == "" {
		e.ID = idx.NewAt(now).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.IPAddress = CoarsenIP(e.IPAddress)
	e.UserAgent = truncateUA(e.UserAgent)

	select {
	case a.events <- e:
	default:
		n := a.dropped.Add(1)
		a.Logger.Warn("audit buffer full, event dropped",
			slog.String("event_type", string(e.Type)),
			slog.Int64("dropped_total", n),
		)
	}
}

// Dropped reports how many events were discarded so far.
func (a *AuditLog) Dropped() int64 { return a.dropped.Load() }

// Start launches the worker.
func (a *AuditLog) Start() {
	go a.run()
	a.Logger.Info("audit log started", "buffer", cap(a.events))
}

// Stop drains what is already queued and waits for the worker to exit.
func (a *AuditLog) Stop() {
	a.once.Do(func() { close(a.stopCh) })
	<-a.doneCh
	a.Logger.Info("audit log stopped", "dropped_total", a.dropped.Load())
}

func (a *AuditLog) run() {
	defer close(a.doneCh)
	for {
		select {
		case e := <-a.events:
			a.write(e)
		case <-a.stopCh:
			for {
				select {
				case e := <-a.events:
					a.write(e)
				default:
					return
				}
			}
		}
	}
}

func (a *AuditLog) write(e domain.AuditEvent) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.Store.AuditEvents().CreateAuditEvent(ctx, e); err != nil {
		a.Logger.Error("failed to persist audit event",
			slog.String("event_type", string(e.Type)),
			slog.Any("error", err),
		)
	}
}
