package middlewares

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hostelgate/internal/audit"
	"github.com/dropDatabas3/hostelgate/internal/cache"
	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	jwtx "github.com/dropDatabas3/hostelgate/internal/jwt"
	"github.com/dropDatabas3/hostelgate/internal/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	code, _ := body["code"].(string)
	return code
}

func TestChain_Order(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler(), mk("A"), nil, mk("B"), mk("C"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 32)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "gate-7")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "gate-7", seen)
}

func TestWithRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), WithRecover(), WithLogging())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/otp/verify", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "SERVER_ERROR", decodeCode(t, rec))
}

func TestRequireAuthAndRBAC(t *testing.T) {
	issuer := jwtx.NewIssuer("hostel", "0123456789abcdef0123456789abcdef", time.Hour)
	guardTok, _, err := issuer.Sign("g1", jwtx.RoleGuard, jwtx.DefaultPerms(jwtx.RoleGuard), "Gate 1")
	require.NoError(t, err)
	studentTok, _, err := issuer.Sign("s1", jwtx.RoleStudent, nil, "Asha")
	require.NoError(t, err)

	var actor string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = GetActorID(r.Context())
	}), RequireAuth(issuer), RequirePerm(jwtx.PermVerifyOTP))

	cases := []struct {
		name   string
		auth   string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"no perm", "Bearer " + studentTok, http.StatusForbidden, "PERMISSION_DENIED"},
		{"ok", "bearer " + guardTok, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/otp/verify", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, decodeCode(t, rec))
			}
		})
	}
	assert.Equal(t, "g1", actor)
}

func TestRequireRole(t *testing.T) {
	h := Chain(okHandler(), RequireRole(jwtx.RoleWarden))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for role, want := range map[string]int{
		jwtx.RoleGuard:  http.StatusForbidden,
		jwtx.RoleWarden: http.StatusOK,
		jwtx.RoleAdmin:  http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), &jwtx.Claims{Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestWithRateLimit(t *testing.T) {
	limiter := rate.NewFixedWindowLimiter(cache.NewMemory("t:"), "rl:", 2, time.Minute)
	h := Chain(okHandler(), WithRateLimit(RateLimitConfig{
		Limiter:   limiter,
		KeyFunc:   IPOnlyRateKey,
		Whitelist: []string{"/healthz"},
	}))

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("/api/otp/request").Code)
	rec := do("/api/otp/request")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do("/api/otp/request")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeCode(t, rec))

	assert.Equal(t, http.StatusOK, do("/healthz").Code)

	exempt := Chain(okHandler(), WithRateLimit(RateLimitConfig{
		Limiter:   limiter,
		KeyFunc:   IPOnlyRateKey,
		ExemptIPs: []string{"10.0.0.9"},
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/otp/request", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	rec = httptest.NewRecorder()
	exempt.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, assert.AnError
}

func TestWithRateLimit_FailOpen(t *testing.T) {
	h := Chain(okHandler(), WithRateLimit(RateLimitConfig{Limiter: failingLimiter{}}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func resolvedIP(t *testing.T, trusted []string, remote, xff string) string {
	t.Helper()
	var got string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = clientIP(r)
	}), WithClientIP(trusted))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.4:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	// sin WithClientIP el header se ignora
	assert.Equal(t, "192.168.1.4", clientIP(req))

	// peer no confiable: XFF ignorado
	assert.Equal(t, "192.168.1.4", resolvedIP(t, nil, "192.168.1.4:1234", "203.0.113.7"))
	assert.Equal(t, "192.168.1.4", resolvedIP(t, []string{"10.0.0.0/8"}, "192.168.1.4:1234", "203.0.113.7"))

	// proxy confiable: primer salto no confiable desde la derecha
	assert.Equal(t, "203.0.113.7", resolvedIP(t, []string{"10.0.0.0/8"}, "10.0.0.1:80", "203.0.113.7"))
	assert.Equal(t, "203.0.113.7", resolvedIP(t, []string{"10.0.0.0/8"}, "10.0.0.1:80", "1.2.3.4, 203.0.113.7, 10.0.0.2"))
	assert.Equal(t, "10.0.0.1", resolvedIP(t, []string{"10.0.0.1"}, "10.0.0.1:80", ""))
	assert.Equal(t, "10.0.0.1", resolvedIP(t, []string{"10.0.0.1"}, "10.0.0.1:80", "not-an-ip"))
}

type captureAudit struct {
	repository.AuditRepository
	last repository.AuditEntry
}

func (c *captureAudit) Append(_ context.Context, e *repository.AuditEntry) error {
	c.last = *e
	return nil
}

func TestWithLogging_AuditProvenanceIgnoresSpoofedXFF(t *testing.T) {
	repo := &captureAudit{}
	rec := audit.NewRecorder(repo)
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Record(r.Context(), repository.AuditEntry{Action: repository.ActionOTPVerified})
	}), WithClientIP([]string{"10.0.0.1"}), WithLogging())

	req := httptest.NewRequest(http.MethodPost, "/api/otp/verify", nil)
	req.RemoteAddr = "198.51.100.9:4000"
	req.Header.Set("X-Forwarded-For", "10.9.9.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "198.51.100.9", repo.last.IPAddress)

	req = httptest.NewRequest(http.MethodPost, "/api/otp/verify", nil)
	req.RemoteAddr = "10.0.0.1:80"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.7", repo.last.IPAddress)
}

func TestParseTrustedProxies(t *testing.T) {
	nets := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.4 ", "::1", "garbage", ""})
	require.Len(t, nets, 3)
	assert.True(t, isTrusted(nets, "10.20.30.40"))
	assert.True(t, isTrusted(nets, "192.168.1.4"))
	assert.False(t, isTrusted(nets, "192.168.1.5"))
	assert.True(t, isTrusted(nets, "::1"))
}

func TestWithRateLimit_ForwardedForCannotEvade(t *testing.T) {
	limiter := rate.NewFixedWindowLimiter(cache.NewMemory("t:"), "rl:", 2, time.Minute)
	h := Chain(okHandler(),
		WithClientIP([]string{"10.0.0.1"}),
		WithRateLimit(RateLimitConfig{
			Limiter:   limiter,
			KeyFunc:   IPOnlyRateKey,
			ExemptIPs: []string{"172.16.0.5"},
		}),
	)
	do := func(remote, xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/otp/verify", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// rotar XFF desde un peer directo no abre cupo nuevo
	assert.Equal(t, http.StatusOK, do("198.51.100.9:4000", "1.1.1.1"))
	assert.Equal(t, http.StatusOK, do("198.51.100.9:4000", "2.2.2.2"))
	assert.Equal(t, http.StatusTooManyRequests, do("198.51.100.9:4000", "3.3.3.3"))

	// falsificar la IP exenta tampoco exime
	assert.Equal(t, http.StatusTooManyRequests, do("198.51.100.9:4000", "172.16.0.5"))

	// detrás del proxy confiable la exención sí aplica
	assert.Equal(t, http.StatusOK, do("10.0.0.1:80", "172.16.0.5"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:80", "172.16.0.5"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:80", "172.16.0.5"))
}

func TestWithCORS(t *testing.T) {
	h := Chain(okHandler(), WithCORS([]string{"https://guard.hostel.example/"}))

	req := httptest.NewRequest(http.MethodOptions, "/api/otp/verify", nil)
	req.Header.Set("Origin", "https://guard.hostel.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://guard.hostel.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	h := Chain(okHandler(), WithSecurityHeaders(), WithNoStore())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}
