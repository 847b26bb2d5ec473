package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hostelgate/internal/config"
	jwtx "github.com/dropDatabas3/hostelgate/internal/jwt"
	"github.com/dropDatabas3/hostelgate/internal/notify"

	_ "github.com/dropDatabas3/hostelgate/internal/store/adapters/memory"
)

const seed = `
students:
  - id: s1
    name: Asha
    room_number: B-204
    whitelist: ["+919876543210"]
wardens:
  - id: w1
    name: Warden
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("STORAGE_DSN", path)
	t.Setenv("OTP_SECRET", "app-test-otp-secret-123")
	t.Setenv("JWT_SECRET", "app-test-jwt-secret-123")
	t.Setenv("HOSTEL_TIMEZONE", "UTC")
	t.Setenv("RATE_ENABLED", "true")

	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestBuild_MemoryStack(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, Options{Version: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Service-Version"))

	tok, _, err := a.Issuer.Sign("g1", jwtx.RoleGuard, jwtx.DefaultPerms(jwtx.RoleGuard), "Gate 1")
	require.NoError(t, err)

	body := `{"studentId":"s1","visitorName":"Dad","visitorPhone":"9876543210","purpose":"visit"}`
	req := httptest.NewRequest(http.MethodPost, "/api/otp/request", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "PRE_APPROVED", out["code"])
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
}

func TestBuildPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.OTP.Length = 8
	cfg.Hours.NightStart = 21
	cfg.Hours.NightEnd = 5

	p := buildPolicy(cfg)
	assert.Equal(t, 8, p.CodeLength)
	assert.Equal(t, 21, p.NightStart)
	assert.Equal(t, 5, p.NightEnd)
	assert.Equal(t, "UTC", p.Location.String())
	assert.Equal(t, "91", p.CountryCode)
}

func TestBuildNotifier(t *testing.T) {
	cfg := testConfig(t)
	_, ok := buildNotifier(cfg).(notify.LogNotifier)
	assert.True(t, ok, "disabled notify falls back to log notifier")

	cfg.Notify.Enabled = true
	cfg.Notify.SMS.URL = "http://sms.invalid/send"
	_, ok = buildNotifier(cfg).(*notify.Dispatcher)
	assert.True(t, ok)
}

func TestBuildPublisher_RedisRequiresRedisCache(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	cfg.Events.Kind = "redis"
	_, err = buildPublisher(cfg, a.Cache)
	assert.Error(t, err)
}
