// Package router arma el árbol de rutas HTTP (chi) del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	healthctrl "github.com/dropDatabas3/hostelgate/internal/http/controllers/health"
	visitorctrl "github.com/dropDatabas3/hostelgate/internal/http/controllers/visitor"
	httperrors "github.com/dropDatabas3/hostelgate/internal/http/errors"
	mw "github.com/dropDatabas3/hostelgate/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/hostelgate/internal/jwt"
	"github.com/dropDatabas3/hostelgate/internal/metrics"
	"github.com/dropDatabas3/hostelgate/internal/rate"
)

// RouterDeps contiene todas las dependencias del router.
type RouterDeps struct {
	Issuer *jwtx.Issuer

	Visitor *visitorctrl.Controllers
	Health  *healthctrl.Controllers

	// Limiters opcionales (nil = sin límite).
	GlobalLimiter     rate.Limiter
	OTPRequestLimiter rate.Limiter
	OTPVerifyLimiter  rate.Limiter
	RateExemptIPs     []string

	// Proxies cuyo X-Forwarded-For se respeta (IP o CIDR).
	TrustedProxies []string

	CORSOrigins []string

	// Metrics es el handler de /metrics (nil = no se expone).
	Metrics http.Handler
}

// New construye el handler raíz.
//
//	/healthz, /readyz, /metrics      sin auth ni logging
//	/api/otp/...                     logging, rate limit, bearer auth, rol/permiso por ruta
func New(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})
	r.Use(mw.WithRecover(), mw.WithRequestID(), mw.WithClientIP(deps.TrustedProxies))

	if deps.Health != nil {
		RegisterHealthRoutes(r, deps.Health, deps.Metrics)
	}
	if deps.Visitor != nil {
		r.Route("/api/otp", func(api chi.Router) {
			RegisterVisitorRoutes(api, deps)
		})
	}
	return r
}

// RegisterHealthRoutes registra liveness, readiness y métricas. Sin logging (muy frecuentes).
func RegisterHealthRoutes(r chi.Router, c *healthctrl.Controllers, metricsHandler http.Handler) {
	r.Get("/healthz", c.Health.Healthz)
	r.Get("/readyz", c.Health.Readyz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
}

// RegisterVisitorRoutes registra /api/otp/... sobre un sub-router.
func RegisterVisitorRoutes(api chi.Router, deps RouterDeps) {
	c := deps.Visitor

	api.Use(
		metrics.WithMetrics,
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
		mw.WithNoStore(),
		mw.WithCORS(deps.CORSOrigins),
		mw.WithRateLimit(mw.RateLimitConfig{
			Limiter:   deps.GlobalLimiter,
			KeyFunc:   mw.IPOnlyRateKey,
			ExemptIPs: deps.RateExemptIPs,
		}),
		mw.RequireAuth(deps.Issuer),
	)

	perEndpoint := func(l rate.Limiter) mw.Middleware {
		return mw.WithRateLimit(mw.RateLimitConfig{
			Limiter:   l,
			KeyFunc:   mw.ActorPathRateKey,
			ExemptIPs: deps.RateExemptIPs,
		})
	}

	// ─── Guardia ───
	api.With(mw.RequireRole(jwtx.RoleGuard), mw.RequirePerm(jwtx.PermRequestOTP), perEndpoint(deps.OTPRequestLimiter)).
		Post("/request", c.OTP.Request)
	api.With(mw.RequireRole(jwtx.RoleGuard), mw.RequirePerm(jwtx.PermVerifyOTP), perEndpoint(deps.OTPVerifyLimiter)).
		Post("/verify", c.OTP.Verify)

	api.Route("/visits", func(v chi.Router) {
		v.Use(mw.RequireRole(jwtx.RoleGuard, jwtx.RoleWarden))
		v.Get("/active", c.Visits.ListActive)
		v.Get("/{visitId}", c.Visits.Get)
		v.With(mw.RequirePerm(jwtx.PermCheckout)).Post("/{visitId}/checkout", c.Visits.Checkout)
		v.With(mw.RequirePerm(jwtx.PermCheckout)).Post("/{visitId}/cancel", c.Visits.Cancel)
	})

	// ─── Override ───
	api.Route("/override", func(o chi.Router) {
		o.With(mw.RequireRole(jwtx.RoleGuard)).Post("/request", c.Override.Request)

		o.Group(func(wg chi.Router) {
			wg.Use(mw.RequireRole(jwtx.RoleWarden))
			wg.With(mw.RequirePerm(jwtx.PermOverride)).Post("/{requestId}/process", c.Override.Process)
			wg.Get("/pending", c.Override.Pending)
			wg.Get("/history", c.Override.History)
		})
	})

	api.With(mw.RequireRole(jwtx.RoleWarden)).Get("/audit", c.Audit.List)

	// ─── Residente ───
	api.Group(func(s chi.Router) {
		s.Use(mw.RequireRole(jwtx.RoleStudent))
		s.Post("/student/generate", c.OTP.StudentGenerate)
		s.Get("/student/visits", c.Visits.StudentVisits)
		s.Get("/whitelist", c.Whitelist.List)
		s.Post("/whitelist", c.Whitelist.Add)
		s.Delete("/whitelist/{phone}", c.Whitelist.Remove)
	})
}
