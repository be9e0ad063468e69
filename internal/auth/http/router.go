package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/service"
	"github.com/aussiebroadwan/autopay/pkg/httpx"
	"github.com/aussiebroadwan/autopay/pkg/jwtx"
	"github.com/aussiebroadwan/autopay/pkg/slogx"

	_ "github.com/aussiebroadwan/autopay/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	db           Pinger

	AuthService *service.AuthService

	// GatewayToken authenticates the OAuth2 gateway on identity logins.
	// Identity login is refused while it is empty.
	GatewayToken string
}

// NewRouter builds a router around svc. Forwarding headers are honoured for
// the client address only when trustProxy is set.
func NewRouter(
	svc *service.AuthService,
	db Pinger,
	buildVersion string,
	logger *slog.Logger,
	trustProxy bool,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     svc.Tokens,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		db:           db,
		AuthService:  svc,
	}

	clientIP := func(req *http.Request) string { return httpx.ClientIP(req, trustProxy) }

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, clientIP),
		httpx.Recover(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerPasswords()
	r.registerMFA()
	r.registerIdentity()
	r.registerSessions()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			CC AutoPay Authentication API
//	@version		0.1.0
//	@description	Account authentication and session trust for the CC AutoPay platform.
//	@description
//	@description				Access tokens are HS256 JWTs valid for one hour. Refresh tokens are opaque and single use.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/autopay
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Service: r.AuthService}

	// Registration and email verification - credential limit by IP
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.CredentialLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/verify-email",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyEmail),
			httpx.RateLimitByIP(httpx.CredentialLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/resend-verification",
		httpx.Chain(http.HandlerFunc(h.HandleResendVerification),
			httpx.RateLimitByIPAndJSONField(httpx.CredentialLimit, "email"),
		),
	)

	// Password and second factor - login limit by IP + email so one noisy
	// client cannot lock out everybody behind the same address
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.LoginLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/mfa",
		httpx.Chain(http.HandlerFunc(h.HandleMFA),
			httpx.RateLimitByIP(httpx.LoginLimit),
		),
	)

	// Session lifecycle
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.SessionLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.SessionLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(http.HandlerFunc(h.HandleLogoutAll),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.SessionLimit),
		),
	)
}

func (r *Router) registerPasswords() {
	h := &AuthHandler{Service: r.AuthService}

	r.Mux.Handle("POST /v1/auth/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimitByIPAndJSONField(httpx.CredentialLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIP(httpx.CredentialLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/change",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.CredentialLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{Service: r.AuthService}

	r.Mux.Handle("POST /v1/mfa/totp/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.CredentialLimit),
		),
	)

	// Confirm takes a TOTP code, so it shares the login limit
	r.Mux.Handle("POST /v1/mfa/totp/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.LoginLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/mfa/totp",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.CredentialLimit),
		),
	)
}

func (r *Router) registerIdentity() {
	h := &IdentityHandler{
		Auth:         &AuthHandler{Service: r.AuthService},
		GatewayToken: r.GatewayToken,
	}

	// All identity logins arrive from the gateway's address
	r.Mux.Handle("POST /v1/identity/{provider}/login",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{Service: r.AuthService}

	r.Mux.Handle("GET /v1/sessions/count",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.SessionLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AuditHandler{Service: r.AuthService}

	r.Mux.Handle("GET /v1/admin/audit-events",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyAuthority(service.AuthorityAdmin),
			httpx.RateLimitByAccount(httpx.SessionLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.db),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
