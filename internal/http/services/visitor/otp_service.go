package visitor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hostelgate/internal/audit"
	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	"github.com/dropDatabas3/hostelgate/internal/events"
	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
	"github.com/dropDatabas3/hostelgate/internal/metrics"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
	"github.com/dropDatabas3/hostelgate/internal/security/otpcode"
	"github.com/dropDatabas3/hostelgate/internal/validation"
)

type otpService struct{ e *engine }

// Request emite un challenge para (guardia, residente, visitante).
func (s otpService) Request(ctx context.Context, in dto.OTPRequest) (*IssueResult, error) {
	e := s.e
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("visitor.otp"),
		logger.Op("Request"),
	)

	in.StudentID = strings.TrimSpace(in.StudentID)
	in.VisitorName = strings.TrimSpace(in.VisitorName)
	in.GuardID = strings.TrimSpace(in.GuardID)
	in.Purpose = strings.TrimSpace(in.Purpose)
	if in.StudentID == "" || in.VisitorName == "" || in.VisitorPhone == "" || in.GuardID == "" || in.Purpose == "" {
		return nil, ErrMissingFields
	}
	if in.GroupSize < 1 {
		in.GroupSize = 1
	}

	// Paso 1-2: teléfono canónico
	phone, ok := validation.Phone(in.VisitorPhone, e.policy.CountryCode)
	if !ok {
		return nil, ErrInvalidPhone
	}
	log = log.With(logger.StudentID(in.StudentID), logger.GuardID(in.GuardID), logger.Phone(phone))

	// Paso 3: residente activo
	student, err := e.loadStudent(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}

	now := e.now()

	// Paso 4: whitelist = autorización directa, sin OTP ni contadores
	listed, err := e.d.Students.IsWhitelisted(ctx, student.ID, phone)
	if err != nil {
		return nil, fmt.Errorf("whitelist lookup: %w", err)
	}
	if listed {
		v := &repository.Visit{
			ID:           uuid.NewString(),
			StudentID:    student.ID,
			GuardID:      in.GuardID,
			VisitorName:  in.VisitorName,
			VisitorPhone: phone,
			Purpose:      in.Purpose,
			Method:       repository.MethodPreapproved,
			EntryAt:      now,
			Status:       repository.VisitActive,
			StatusHistory: []repository.StatusChange{
				{Status: repository.VisitActive, GuardID: in.GuardID, At: now, Notes: "pre-approved visitor"},
			},
		}
		if err := e.d.Visits.Create(ctx, v); err != nil {
			return nil, fmt.Errorf("create preapproved visit: %w", err)
		}
		e.audit.Record(ctx, repository.AuditEntry{
			Action:     repository.ActionVisitCreated,
			ActorID:    in.GuardID,
			ActorType:  audit.ActorGuard,
			TargetID:   v.ID,
			TargetType: audit.TargetVisit,
			Meta:       map[string]any{"method": string(v.Method), "studentId": student.ID, "visitorPhone": phone},
		})
		e.publish(ctx, events.VisitCreated, dto.VisitFrom(v))
		metrics.VisitCreated(string(v.Method))
		log.Info("visitor pre-approved", logger.VisitID(v.ID))
		return &IssueResult{Visit: v, PreApproved: true}, nil
	}

	// Paso 5: horario nocturno
	if e.outOfHours(now) && !student.AllowLateVisitors {
		e.audit.Record(ctx, repository.AuditEntry{
			Action:     repository.ActionOTPRequested,
			ActorID:    in.GuardID,
			ActorType:  audit.ActorGuard,
			TargetID:   student.ID,
			TargetType: audit.TargetStudent,
			Severity:   repository.SeverityWarning,
			Meta:       map[string]any{"outcome": "out_of_hours", "visitorPhone": phone},
		})
		log.Info("otp refused out of hours")
		return nil, ErrOutOfHours
	}

	// Paso 6: challenge
	code, err := otpcode.Generate(e.policy.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	ch := &repository.OTPChallenge{
		ID:               uuid.NewString(),
		StudentID:        student.ID,
		VisitorName:      in.VisitorName,
		VisitorPhone:     phone,
		Purpose:          in.Purpose,
		GroupSize:        in.GroupSize,
		IsGroupOTP:       in.GroupSize > 1,
		OTPHash:          e.d.Hasher.Hash(code, phone),
		ExpiryType:       repository.ExpiryFixed,
		CreatedAt:        now,
		ExpiresAt:        now.Add(e.policy.TTL),
		CreatedByGuardID: in.GuardID,
	}
	if err := e.d.OTPs.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("create otp: %w", err)
	}

	e.audit.Record(ctx, repository.AuditEntry{
		Action:     repository.ActionOTPRequested,
		ActorID:    in.GuardID,
		ActorType:  audit.ActorGuard,
		TargetID:   ch.ID,
		TargetType: audit.TargetOTP,
		Meta: map[string]any{
			"studentId":    student.ID,
			"visitorPhone": phone,
			"groupSize":    ch.GroupSize,
			"expiresAt":    ch.ExpiresAt,
		},
	})
	metrics.OTPIssued(audit.ActorGuard)

	// Paso 7: notificación fire-and-forget, el resultado queda en el audit
	visitorName, purpose, otpID, guardID := in.VisitorName, in.Purpose, ch.ID, in.GuardID
	e.background(ctx, func(ctx context.Context) {
		res := e.d.Notifier.SendOTPNotification(ctx, student, code, visitorName, purpose)
		metrics.Notification("otp", res.Delivered())
		sev := repository.SeverityInfo
		if !res.Delivered() {
			sev = repository.SeverityWarning
		}
		e.audit.Record(ctx, repository.AuditEntry{
			Action:     repository.ActionOTPNotification,
			ActorID:    guardID,
			ActorType:  audit.ActorGuard,
			TargetID:   otpID,
			TargetType: audit.TargetOTP,
			Severity:   sev,
			Meta:       map[string]any{"fcmSent": res.FCMSent, "smsSent": res.SMSSent},
		})
	})

	log.Info("otp issued", logger.OTPID(ch.ID))
	return &IssueResult{Challenge: ch}, nil
}

// Verify valida el código contra el challenge activo más nuevo del teléfono.
func (s otpService) Verify(ctx context.Context, in dto.OTPVerifyRequest) (*VerifyResult, error) {
	e := s.e
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("visitor.otp"),
		logger.Op("Verify"),
	)

	in.ProvidedOTP = strings.TrimSpace(in.ProvidedOTP)
	in.GuardID = strings.TrimSpace(in.GuardID)
	if in.VisitorPhone == "" || in.ProvidedOTP == "" || in.GuardID == "" {
		return nil, ErrMissingFields
	}
	phone, ok := validation.Phone(in.VisitorPhone, e.policy.CountryCode)
	if !ok {
		return nil, ErrInvalidPhone
	}
	log = log.With(logger.GuardID(in.GuardID), logger.Phone(phone))

	// Contador por teléfono (best-effort, independiente del lockout del challenge)
	blocked, retry, err := e.d.BruteForce.Check(ctx, phone)
	if err != nil {
		log.Warn("brute force check failed", logger.Err(err))
	} else if blocked {
		metrics.OTPVerify("blocked")
		e.failed(ctx, in.GuardID, "", phone, "brute_force", repository.SeverityWarning, nil)
		return nil, &BlockedError{RetryAfter: retry}
	}

	ch, err := e.d.OTPs.FindLatestActive(ctx, phone)
	if repository.IsNotFound(err) {
		metrics.OTPVerify("not_found")
		e.failed(ctx, in.GuardID, "", phone, "not_found", repository.SeverityInfo, nil)
		return nil, ErrOTPNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find otp: %w", err)
	}
	log = log.With(logger.OTPID(ch.ID))

	now := e.now()

	// Expirado: no consume intento
	if ch.Expired(now) {
		metrics.OTPVerify("expired")
		e.failed(ctx, in.GuardID, ch.ID, phone, "expired", repository.SeverityInfo, nil)
		return nil, ErrOTPExpired
	}

	if !e.d.Hasher.Verify(in.ProvidedOTP, phone, ch.OTPHash) {
		fr, err := e.d.OTPs.RecordFailure(ctx, ch.ID, e.policy.MaxAttempts)
		if errors.Is(err, repository.ErrAlreadyUsed) || repository.IsNotFound(err) {
			// otra verificación lo consumió o bloqueó en paralelo
			metrics.OTPVerify("not_found")
			return nil, ErrOTPNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("record failure: %w", err)
		}
		if _, err := e.d.BruteForce.Record(ctx, phone); err != nil {
			log.Warn("brute force record failed", logger.Err(err))
		}
		remaining := e.policy.MaxAttempts - fr.Attempts
		if remaining < 0 {
			remaining = 0
		}
		sev := repository.SeverityWarning
		result := "invalid"
		if fr.Locked {
			sev = repository.SeverityCritical
			result = "locked"
		}
		metrics.OTPVerify(result)
		e.failed(ctx, in.GuardID, ch.ID, phone, result, sev, map[string]any{
			"attempts":          fr.Attempts,
			"attemptsRemaining": remaining,
			"locked":            fr.Locked,
		})
		log.Info("otp mismatch", zap.Int("attempts", fr.Attempts), zap.Bool("locked", fr.Locked))
		return nil, &InvalidOTPError{AttemptsRemaining: remaining, Locked: fr.Locked}
	}

	v := &repository.Visit{
		ID:           uuid.NewString(),
		StudentID:    ch.StudentID,
		GuardID:      in.GuardID,
		VisitorName:  ch.VisitorName,
		VisitorPhone: phone,
		Purpose:      ch.Purpose,
		Method:       repository.MethodOTP,
		OTPID:        ch.ID,
		EntryAt:      now,
		Status:       repository.VisitActive,
		StatusHistory: []repository.StatusChange{
			{Status: repository.VisitActive, GuardID: in.GuardID, At: now, Notes: "otp verified"},
		},
	}
	if ch.IsGroupOTP {
		v.IsGroupVisit = true
		for _, g := range in.GroupVisitors {
			gp := strings.TrimSpace(g.Phone)
			if gp != "" {
				if n, ok := validation.Phone(gp, e.policy.CountryCode); ok {
					gp = n
				}
			}
			v.GroupVisitors = append(v.GroupVisitors, repository.GroupVisitor{
				Name:       strings.TrimSpace(g.Name),
				Phone:      gp,
				IDVerified: g.IDVerified,
			})
		}
	}
	// Punto único de autorización: update-if-used=false y alta de la visita juntos
	if err := e.d.OTPs.ConsumeWithVisit(ctx, ch.ID, now, v); err != nil {
		if errors.Is(err, repository.ErrAlreadyUsed) || repository.IsNotFound(err) {
			metrics.OTPVerify("not_found")
			e.failed(ctx, in.GuardID, ch.ID, phone, "already_used", repository.SeverityWarning, nil)
			return nil, ErrOTPNotFound
		}
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	if err := e.d.BruteForce.Clear(ctx, phone); err != nil {
		log.Warn("brute force clear failed", logger.Err(err))
	}

	e.audit.Record(ctx, repository.AuditEntry{
		Action:     repository.ActionOTPVerified,
		ActorID:    in.GuardID,
		ActorType:  audit.ActorGuard,
		TargetID:   ch.ID,
		TargetType: audit.TargetOTP,
		Meta: map[string]any{
			"visitId":      v.ID,
			"studentId":    ch.StudentID,
			"visitorPhone": phone,
			"groupVisit":   v.IsGroupVisit,
		},
	})
	e.publish(ctx, events.VisitCreated, dto.VisitFrom(v))
	metrics.OTPVerify("ok")
	metrics.VisitCreated(string(v.Method))

	student, err := e.d.Students.GetByID(ctx, ch.StudentID)
	if err != nil {
		// la visita ya existe; el resumen del residente es opcional
		log.Warn("student summary unavailable", logger.Err(err))
		student = nil
	}

	log.Info("otp verified", logger.VisitID(v.ID))
	return &VerifyResult{Visit: v, Student: student}, nil
}

// failed audita un intento de verificación rechazado.
func (e *engine) failed(ctx context.Context, guardID, otpID, phone, reason string, sev repository.Severity, extra map[string]any) {
	meta := map[string]any{"reason": reason, "visitorPhone": phone}
	for k, v := range extra {
		meta[k] = v
	}
	entry := repository.AuditEntry{
		Action:    repository.ActionOTPFailed,
		ActorID:   guardID,
		ActorType: audit.ActorGuard,
		Severity:  sev,
		Meta:      meta,
	}
	if otpID != "" {
		entry.TargetID, entry.TargetType = otpID, audit.TargetOTP
	}
	e.audit.Record(ctx, entry)
}

// StudentGenerate crea un challenge del propio residente, válido hasta medianoche local.
func (s otpService) StudentGenerate(ctx context.Context, in dto.StudentGenerateRequest) (*GenerateResult, error) {
	e := s.e
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("visitor.otp"),
		logger.Op("StudentGenerate"),
	)

	in.StudentID = strings.TrimSpace(in.StudentID)
	in.VisitorName = strings.TrimSpace(in.VisitorName)
	in.Purpose = strings.TrimSpace(in.Purpose)
	if in.StudentID == "" || in.VisitorName == "" || in.VisitorPhone == "" || in.Purpose == "" {
		return nil, ErrMissingFields
	}
	if in.GroupSize < 1 {
		in.GroupSize = 1
	}
	phone, ok := validation.Phone(in.VisitorPhone, e.policy.CountryCode)
	if !ok {
		return nil, ErrInvalidPhone
	}
	student, err := e.loadStudent(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}

	code, err := otpcode.Generate(e.policy.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	now := e.now()
	ch := &repository.OTPChallenge{
		ID:                 uuid.NewString(),
		StudentID:          student.ID,
		VisitorName:        in.VisitorName,
		VisitorPhone:       phone,
		Purpose:            in.Purpose,
		GroupSize:          in.GroupSize,
		IsGroupOTP:         in.GroupSize > 1,
		OTPHash:            e.d.Hasher.Hash(code, phone),
		ExpiryType:         repository.ExpiryMidnight,
		CreatedAt:          now,
		ExpiresAt:          e.nextMidnight(now),
		CreatedByStudentID: student.ID,
		IsStudentGenerated: true,
	}
	if err := e.d.OTPs.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("create otp: %w", err)
	}

	e.audit.Record(ctx, repository.AuditEntry{
		Action:     repository.ActionOTPRequested,
		ActorID:    student.ID,
		ActorType:  audit.ActorStudent,
		TargetID:   ch.ID,
		TargetType: audit.TargetOTP,
		Meta: map[string]any{
			"visitorPhone": phone,
			"groupSize":    ch.GroupSize,
			"expiryType":   string(ch.ExpiryType),
			"expiresAt":    ch.ExpiresAt,
		},
	})
	metrics.OTPIssued(audit.ActorStudent)
	log.Info("student otp generated", logger.StudentID(student.ID), logger.OTPID(ch.ID), logger.Phone(phone))

	return &GenerateResult{Challenge: ch, Code: code}, nil
}
