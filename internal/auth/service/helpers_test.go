package service

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/store"
	"github.com/aussiebroadwan/autopay/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/autopay/pkg/cryptox"
	"github.com/aussiebroadwan/autopay/pkg/idx"
	"github.com/aussiebroadwan/autopay/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const testPassword = "Corr3ct#Horse"

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 15, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *recordingSink) Record(_ context.Context, e domain.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) Count(typ domain.AuditEventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (r *recordingSink) Types() []domain.AuditEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type captureNotifier struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
}

func (n *captureNotifier) SendVerificationEmail(_ context.Context, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verification[to] = token
	return nil
}

func (n *captureNotifier) SendPasswordResetEmail(_ context.Context, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[to] = token
	return nil
}

func (n *captureNotifier) verificationFor(to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verification[to]
}

func (n *captureNotifier) resetFor(to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reset[to]
}

type fixture struct {
	t        *testing.T
	store    store.Store
	clock    *fakeClock
	audit    *recordingSink
	notifier *captureNotifier
	issuer   *jwtx.Issuer
	cfg      Config
	svc      *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clock := newClock()
	issuer, err := jwtx.NewIssuer(jwtx.IssuerConfig{
		Key:      testKey,
		Issuer:   "cc-autopay-system",
		Audience: "cc-autopay-client",
		Now:      clock.Now,
	})
	require.NoError(t, err)

	f := &fixture{
		t:        t,
		store:    st,
		clock:    clock,
		audit:    &recordingSink{},
		notifier: &captureNotifier{verification: map[string]string{}, reset: map[string]string{}},
		issuer:   issuer,
		cfg: Config{
			MaxFailedAttempts: 5,
			LockoutDuration:   30 * time.Minute,
			Now:               clock.Now,
		},
	}
	f.svc = New(Deps{
		Store:    st,
		Tokens:   issuer,
		Audit:    f.audit,
		Notifier: f.notifier,
		Authorities: StaticAuthorities{
			Default:     []string{AuthorityUser},
			AdminEmails: []string{"admin@example.com"},
		},
	}, f.cfg)
	return f
}

// createAccount inserts a verified, active local account with testPassword.
func (f *fixture) createAccount(email string, mutate ...func(*domain.Account)) domain.Account {
	f.t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(f.t, err)
	id, err := idx.NewAccountID()
	require.NoError(f.t, err)

	now := f.clock.Now()
	a := domain.Account{
		ID:            id,
		Email:         email,
		PasswordHash:  hash,
		FirstName:     "Test",
		LastName:      "User",
		Status:        domain.AccountStatusActive,
		EmailVerified: true,
		Provider:      domain.ProviderLocal,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, m := range mutate {
		m(&a)
	}
	require.NoError(f.t, f.store.Accounts().CreateAccount(context.Background(), a))
	return f.reload(a.ID)
}

func (f *fixture) reload(id string) domain.Account {
	f.t.Helper()
	a, err := f.store.Accounts().GetAccountByID(context.Background(), id)
	require.NoError(f.t, err)
	return a
}

// code returns the current TOTP code for secret on the fixture clock.
func (f *fixture) code(secret string) string {
	f.t.Helper()
	c, err := totp.GenerateCodeCustom(secret, f.clock.Now(), totpOpts)
	require.NoError(f.t, err)
	return c
}

func withMFA(secret string) func(*domain.Account) {
	return func(a *domain.Account) {
		a.MFAEnabled = true
		a.MFASecret = secret
	}
}

func hasType(types []domain.AuditEventType, typ domain.AuditEventType) bool {
	return slices.Contains(types, typ)
}

var testMeta = domain.ClientMeta{IPAddress: "203.0.113.77", UserAgent: "test-agent", DeviceInfo: "unit"}

// testSecret is a fixed base32 TOTP secret.
const testSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

func errorsIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// wrongCode returns a six digit code that differs from code in every digit.
func wrongCode(code string) string {
	b := []byte(code)
	for i, c := range b {
		b[i] = '0' + (c-'0'+5)%10
	}
	return string(b)
}
