// Package audit registra las acciones de seguridad de la portería.
//
// Record es síncrono (se llama inline, junto a la transición que describe) pero
// best-effort: un fallo del sink se loguea y se traga, nunca se propaga al caller.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// Actor types.
const (
	ActorGuard   = "guard"
	ActorWarden  = "warden"
	ActorStudent = "student"
	ActorSystem  = "system"
)

// Target types.
const (
	TargetOTP      = "otp"
	TargetVisit    = "visit"
	TargetOverride = "override"
	TargetStudent  = "student"
)

type requestInfoKey struct{}

type requestInfo struct {
	ip, userAgent string
}

// WithRequestInfo guarda la procedencia de red del request (lo usa el middleware).
func WithRequestInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, requestInfo{ip: ip, userAgent: userAgent})
}

// Recorder escribe entradas en el AuditRepository.
type Recorder struct {
	repo repository.AuditRepository
	now  func() time.Time
}

func NewRecorder(repo repository.AuditRepository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record persiste la entrada. Completa ID, timestamp, severidad y procedencia si faltan.
func (r *Recorder) Record(ctx context.Context, e repository.AuditEntry) {
	if r == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	if e.Severity == "" {
		e.Severity = repository.SeverityInfo
	}
	if info, ok := ctx.Value(requestInfoKey{}).(requestInfo); ok {
		if e.IPAddress == "" {
			e.IPAddress = info.ip
		}
		if e.UserAgent == "" {
			e.UserAgent = info.userAgent
		}
	}

	log := logger.From(ctx).With(logger.Component("audit"))
	log.Info("audit",
		zap.String("action", string(e.Action)),
		logger.ActorID(e.ActorID),
		zap.String("actor_type", e.ActorType),
		zap.String("target_id", e.TargetID),
		zap.String("severity", string(e.Severity)),
	)

	if r.repo == nil {
		return
	}
	// el request puede haberse cancelado: la entrada se escribe igual
	if err := r.repo.Append(context.WithoutCancel(ctx), &e); err != nil {
		log.Error("audit write failed", zap.String("action", string(e.Action)), logger.Err(err))
	}
}
