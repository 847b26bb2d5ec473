// Package health contiene el service de readiness.
package health

import (
	"context"
	"time"

	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/health"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Deps contiene las dependencias inyectables para el health service.
type Deps struct {
	DBCheck    func(ctx context.Context) error // crítico: sin store no hay portería
	CacheCheck func(ctx context.Context) error // no crítico: rate limit y brute-force son best-effort
	Version    string
	Commit     string
	Timeout    time.Duration
}

// Services agrupa todos los services del dominio health.
type Services struct {
	Health HealthService
}

// NewServices crea el agregador de services health.
func NewServices(d Deps) Services {
	return Services{
		Health: NewHealthService(d),
	}
}

type healthService struct {
	deps Deps
}

// NewHealthService crea un nuevo service de health check.
func NewHealthService(deps Deps) HealthService {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	return &healthService{deps: deps}
}

func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("health"),
		logger.Op("Check"),
	)

	resp := dto.HealthResponse{
		Status:     "ready",
		Components: make(map[string]dto.HealthStatus, 2),
		Version:    s.deps.Version,
		Commit:     s.deps.Commit,
		Timestamp:  time.Now().UTC(),
	}

	st, ok := s.probe(ctx, s.deps.DBCheck)
	resp.Components["store"] = st
	if !ok {
		resp.Status = "unavailable"
		log.Error("store unavailable", logger.String("message", st.Message))
	}

	st, ok = s.probe(ctx, s.deps.CacheCheck)
	resp.Components["cache"] = st
	if !ok {
		if resp.Status == "ready" {
			resp.Status = "degraded"
		}
		log.Warn("cache unavailable", logger.String("message", st.Message))
	}

	return resp
}

// probe corre check con timeout. Un check nil se reporta "disabled".
func (s *healthService) probe(ctx context.Context, check func(context.Context) error) (dto.HealthStatus, bool) {
	if check == nil {
		return dto.HealthStatus{Status: "disabled"}, true
	}
	cctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()
	start := time.Now()
	if err := check(cctx); err != nil {
		return dto.HealthStatus{Status: "error", Message: err.Error()}, false
	}
	return dto.HealthStatus{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}, true
}
