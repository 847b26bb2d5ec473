// Package visitor implementa los engines de la portería: emisión y verificación
// de OTP, pre-aprobación por whitelist, escalación a warden, cierre de visitas
// y consultas.
//
//	guardia ──► OTP.Request ──► whitelist? ──► Visit(preapproved)
//	                 │
//	                 ├─► fuera de horario ──► OUT_OF_HOURS ──► Override.Request ──► warden ──► Override.Process ──► Visit(override)
//	                 │
//	                 └─► OTPChallenge ──► notify (async) ──► OTP.Verify ──► ConsumeWithVisit (CAS + Visit, una unidad)
//
// Cada operación audita su transición inline (best-effort) y publica eventos
// para los dashboards. Las notificaciones corren en background y nunca afectan
// la respuesta.
package visitor

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/hostelgate/internal/audit"
	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	"github.com/dropDatabas3/hostelgate/internal/events"
	"github.com/dropDatabas3/hostelgate/internal/notify"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
	"github.com/dropDatabas3/hostelgate/internal/security/bruteforce"
	"github.com/dropDatabas3/hostelgate/internal/security/otpcode"
)

// Policy son los parámetros de negocio (vienen de config).
type Policy struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
	Retention   time.Duration
	Location    *time.Location
	// Ventana nocturna [NightStart, NightEnd) en horas locales; cruza medianoche si Start > End.
	NightStart  int
	NightEnd    int
	CountryCode string
}

// DefaultPolicy: 6 dígitos, 5 minutos, 3 intentos, 22–06.
func DefaultPolicy() Policy {
	return Policy{
		CodeLength:  6,
		TTL:         5 * time.Minute,
		MaxAttempts: 3,
		Retention:   time.Hour,
		Location:    time.UTC,
		NightStart:  22,
		NightEnd:    6,
		CountryCode: "91",
	}
}

// Deps contiene las dependencias de los engines.
type Deps struct {
	Students  repository.StudentRepository
	Wardens   repository.WardenRepository
	OTPs      repository.OTPRepository
	Visits    repository.VisitRepository
	Overrides repository.OverrideRepository
	AuditLog  repository.AuditRepository

	Hasher     *otpcode.Hasher
	BruteForce bruteforce.Guard // nil = Noop
	Notifier   notify.Notifier  // nil = LogNotifier
	Events     events.Publisher // nil = LogPublisher

	Policy Policy
	Now    func() time.Time // nil = time.Now
}

// Services agrupa los services del dominio visitor.
type Services struct {
	OTP         OTPService
	Override    OverrideService
	Visits      VisitService
	Whitelist   WhitelistService
	Audit       AuditService
	Maintenance MaintenanceService
}

// NewServices crea el agregador. Todos comparten el mismo engine.
func NewServices(d Deps) Services {
	e := newEngine(d)
	return Services{
		OTP:         otpService{e},
		Override:    overrideService{e},
		Visits:      visitService{e},
		Whitelist:   whitelistService{e},
		Audit:       auditService{e},
		Maintenance: e,
	}
}

type engine struct {
	d      Deps
	policy Policy
	audit  *audit.Recorder
	now    func() time.Time

	// notificaciones en vuelo
	inflight sync.WaitGroup
}

func newEngine(d Deps) *engine {
	if d.BruteForce == nil {
		d.BruteForce = bruteforce.Noop{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.LogNotifier{}
	}
	if d.Events == nil {
		d.Events = events.LogPublisher{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	p := d.Policy
	def := DefaultPolicy()
	if p.CodeLength <= 0 {
		p.CodeLength = def.CodeLength
	}
	if p.TTL <= 0 {
		p.TTL = def.TTL
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Retention <= 0 {
		p.Retention = def.Retention
	}
	if p.Location == nil {
		p.Location = def.Location
	}
	if p.CountryCode == "" {
		p.CountryCode = def.CountryCode
	}
	return &engine{
		d:      d,
		policy: p,
		audit:  audit.NewRecorder(d.AuditLog).WithClock(d.Now),
		now:    d.Now,
	}
}

// publish emite un evento; los fallos solo se loguean.
func (e *engine) publish(ctx context.Context, typ string, data any) {
	ev := events.Event{Type: typ, Data: data, At: e.now().UTC()}
	if err := e.d.Events.Publish(ctx, ev); err != nil {
		logger.From(ctx).Warn("event publish failed", logger.String("type", typ), logger.Err(err))
	}
}

// background corre fn fuera del request. El ctx conserva logger y procedencia
// pero no la cancelación del request.
func (e *engine) background(ctx context.Context, fn func(ctx context.Context)) {
	bg := context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.From(bg).Error("background task panic", logger.Any("panic", rec))
			}
		}()
		fn(bg)
	}()
}

func (e *engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// outOfHours indica si t cae en la ventana nocturna local.
func (e *engine) outOfHours(t time.Time) bool {
	start, end := e.policy.NightStart, e.policy.NightEnd
	if start == end {
		return false
	}
	h := t.In(e.policy.Location).Hour()
	if start > end {
		return h >= start || h < end
	}
	return h >= start && h < end
}

// nextMidnight es la próxima medianoche local posterior a t.
func (e *engine) nextMidnight(t time.Time) time.Time {
	y, m, d := t.In(e.policy.Location).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, e.policy.Location)
}

// loadStudent resuelve el residente activo.
func (e *engine) loadStudent(ctx context.Context, id string) (*repository.Student, error) {
	st, err := e.d.Students.GetByID(ctx, id)
	if repository.IsNotFound(err) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}
	if !st.Active {
		return nil, ErrStudentNotFound
	}
	return st, nil
}

func clampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
