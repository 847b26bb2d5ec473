// Package notify entrega las notificaciones de la portería: el código OTP al
// estudiante (push con fallback a SMS) y el aviso de override a los wardens
// (push + email). Todo canal está acotado por timeout y sus fallos se loguean,
// nunca se propagan al request que los originó.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

var (
	ErrNotConfigured = errors.New("notify: channel not configured")
	ErrNoDeviceToken = errors.New("notify: no device token")
	ErrNoPhone       = errors.New("notify: no phone")
)

// OTPResult resume qué canales entregaron el código.
type OTPResult struct {
	FCMSent bool `json:"fcmSent"`
	SMSSent bool `json:"smsSent"`
}

// Delivered indica si al menos un canal funcionó.
func (r OTPResult) Delivered() bool { return r.FCMSent || r.SMSSent }

// WardenResult resume el fan-out a wardens.
type WardenResult struct {
	Wardens    int `json:"wardens"`
	PushSent   int `json:"pushSent"`
	EmailsSent int `json:"emailsSent"`
}

// Notifier es lo que consumen los engines.
type Notifier interface {
	SendOTPNotification(ctx context.Context, student *repository.Student, code, visitorName, purpose string) OTPResult
	NotifyWardens(ctx context.Context, wardens []repository.Warden, req *repository.OverrideRequest, student *repository.Student) WardenResult
}

// MailSender es el canal de email (SMTPSender).
type MailSender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// Config arma un Dispatcher.
type Config struct {
	Push    Pusher
	SMS     SMSSender
	Mail    MailSender
	Timeout time.Duration
	// Paralelismo máximo del fan-out a wardens.
	MaxParallel int
}

// Dispatcher implementa Notifier sobre push, SMS y email.
type Dispatcher struct {
	push        Pusher
	sms         SMSSender
	mail        MailSender
	timeout     time.Duration
	maxParallel int
}

func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		push:        cfg.Push,
		sms:         cfg.SMS,
		mail:        cfg.Mail,
		timeout:     cfg.Timeout,
		maxParallel: cfg.MaxParallel,
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	if d.maxParallel <= 0 {
		d.maxParallel = 4
	}
	return d
}

// NewWebhookDispatcher arma el dispatcher estándar: gateways HTTP para push/SMS y SMTP opcional.
func NewWebhookDispatcher(pushURL, pushKey, smsURL, smsKey, smsSender string, mail MailSender, timeout time.Duration) *Dispatcher {
	hc := &http.Client{Timeout: timeout}
	cfg := Config{Timeout: timeout}
	if pushURL != "" {
		cfg.Push = &WebhookPusher{URL: pushURL, APIKey: pushKey, Client: hc}
	}
	if smsURL != "" {
		cfg.SMS = &WebhookSMS{URL: smsURL, APIKey: smsKey, Sender: smsSender, Client: hc}
	}
	if mail != nil {
		cfg.Mail = mail
	}
	return NewDispatcher(cfg)
}

// SendOTPNotification intenta push y, si falla, SMS al teléfono principal y luego al de respaldo.
func (d *Dispatcher) SendOTPNotification(ctx context.Context, student *repository.Student, code, visitorName, purpose string) OTPResult {
	var res OTPResult
	if student == nil {
		return res
	}
	log := logger.From(ctx).With(logger.Component("notify"), logger.StudentID(student.ID))

	if d.push != nil && student.DeviceToken != "" {
		err := d.withTimeout(ctx, func(c context.Context) error {
			return d.push.Push(c, PushMessage{
				Token: student.DeviceToken,
				Title: "Visitor verification",
				Body:  fmt.Sprintf("%s wants to visit you (%s). Share code %s with the guard.", visitorName, purpose, code),
				Data:  map[string]string{"type": "visitor_otp", "visitorName": visitorName},
			})
		})
		if err == nil {
			res.FCMSent = true
			return res
		}
		log.Warn("push failed, falling back to sms", logger.Err(err))
	}

	if d.sms == nil {
		return res
	}
	body := fmt.Sprintf("Visitor %s is at the hostel gate (%s). Your OTP is %s. Valid for 5 minutes.", visitorName, purpose, code)
	for _, phone := range []string{student.Phone, student.BackupPhone} {
		if phone == "" {
			continue
		}
		err := d.withTimeout(ctx, func(c context.Context) error {
			return d.sms.SendSMS(c, phone, body)
		})
		if err == nil {
			res.SMSSent = true
			return res
		}
		log.Warn("sms failed", logger.Phone(phone), logger.Err(err))
	}
	return res
}

// NotifyWardens avisa a cada warden activo por push y email. Los fallos por warden se tragan.
func (d *Dispatcher) NotifyWardens(ctx context.Context, wardens []repository.Warden, req *repository.OverrideRequest, student *repository.Student) WardenResult {
	res := WardenResult{Wardens: len(wardens)}
	if req == nil || len(wardens) == 0 {
		return res
	}
	log := logger.From(ctx).With(logger.Component("notify"), logger.OverrideID(req.ID))

	studentName, room := req.StudentID, ""
	if student != nil {
		studentName, room = student.Name, student.RoomNumber
	}
	title := fmt.Sprintf("Override request (%s urgency)", req.Urgency)
	text := fmt.Sprintf("Guard %s requests entry for %s to see %s (room %s).\nReason: %s\nPurpose: %s\nRequest: %s",
		req.GuardID, req.VisitorName, studentName, room, req.Reason, req.Purpose, req.ID)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(d.maxParallel)
	for _, w := range wardens {
		w := w
		g.Go(func() error {
			if d.push != nil && w.DeviceToken != "" {
				err := d.withTimeout(gctx, func(c context.Context) error {
					return d.push.Push(c, PushMessage{
						Token: w.DeviceToken,
						Title: title,
						Body:  fmt.Sprintf("%s at the gate for %s: %s", req.VisitorName, studentName, req.Reason),
						Data:  map[string]string{"type": "override_request", "requestId": req.ID},
					})
				})
				if err != nil {
					log.Warn("warden push failed", logger.WardenID(w.ID), logger.Err(err))
				} else {
					mu.Lock()
					res.PushSent++
					mu.Unlock()
				}
			}
			if d.mail != nil && w.Email != "" {
				err := d.withTimeout(gctx, func(context.Context) error {
					return d.mail.Send(w.Email, title, "", text)
				})
				if err != nil {
					log.Warn("warden email failed", logger.WardenID(w.ID), logger.Err(err))
				} else {
					mu.Lock()
					res.EmailsSent++
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// withTimeout corre fn acotada por d.timeout. Si fn ignora el ctx (SMTP) igual se libera al caller.
func (d *Dispatcher) withTimeout(parent context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Log-only ───

// LogNotifier no entrega nada; loguea (notify.enabled=false en dev).
type LogNotifier struct{}

func (LogNotifier) SendOTPNotification(ctx context.Context, student *repository.Student, _ string, visitorName, _ string) OTPResult {
	if student != nil {
		logger.From(ctx).Info("otp notification (disabled)",
			logger.Component("notify"), logger.StudentID(student.ID), zap.String("visitor", visitorName))
	}
	return OTPResult{}
}

func (LogNotifier) NotifyWardens(ctx context.Context, wardens []repository.Warden, req *repository.OverrideRequest, _ *repository.Student) WardenResult {
	if req != nil {
		logger.From(ctx).Info("override notification (disabled)",
			logger.Component("notify"), logger.OverrideID(req.ID), zap.Int("wardens", len(wardens)))
	}
	return WardenResult{Wardens: len(wardens)}
}

// ─── Memory ───

// SentOTP es una notificación capturada por Memory.
type SentOTP struct {
	StudentID   string
	Code        string
	VisitorName string
	Purpose     string
}

// Memory captura las notificaciones (tests). Result define lo que reporta SendOTPNotification.
type Memory struct {
	mu        sync.Mutex
	Result    OTPResult
	otps      []SentOTP
	overrides []string
}

func (m *Memory) SendOTPNotification(_ context.Context, student *repository.Student, code, visitorName, purpose string) OTPResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ""
	if student != nil {
		id = student.ID
	}
	m.otps = append(m.otps, SentOTP{StudentID: id, Code: code, VisitorName: visitorName, Purpose: purpose})
	return m.Result
}

func (m *Memory) NotifyWardens(_ context.Context, wardens []repository.Warden, req *repository.OverrideRequest, _ *repository.Student) WardenResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req != nil {
		m.overrides = append(m.overrides, req.ID)
	}
	return WardenResult{Wardens: len(wardens)}
}

func (m *Memory) OTPs() []SentOTP {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentOTP(nil), m.otps...)
}

func (m *Memory) Overrides() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.overrides...)
}
