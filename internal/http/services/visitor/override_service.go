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
	"github.com/dropDatabas3/hostelgate/internal/validation"
)

type overrideService struct{ e *engine }

// Request crea una escalación pendiente. Un solo pending por (teléfono, residente).
func (s overrideService) Request(ctx context.Context, in dto.OverrideRequest) (*repository.OverrideRequest, error) {
	e := s.e
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("visitor.override"),
		logger.Op("Request"),
	)

	in.GuardID = strings.TrimSpace(in.GuardID)
	in.VisitorName = strings.TrimSpace(in.VisitorName)
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.Reason = strings.TrimSpace(in.Reason)
	in.Purpose = strings.TrimSpace(in.Purpose)
	if in.GuardID == "" || in.VisitorName == "" || in.VisitorPhone == "" ||
		in.StudentID == "" || in.Reason == "" || in.Purpose == "" {
		return nil, ErrMissingFields
	}
	urgency, ok := parseUrgency(in.Urgency)
	if !ok {
		return nil, ErrInvalidParameter
	}
	phone, ok := validation.Phone(in.VisitorPhone, e.policy.CountryCode)
	if !ok {
		return nil, ErrInvalidPhone
	}
	log = log.With(logger.GuardID(in.GuardID), logger.StudentID(in.StudentID), logger.Phone(phone))

	student, err := e.loadStudent(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}

	// Pre-check; el índice único parcial cubre la carrera restante
	if existing, err := e.d.Overrides.FindPending(ctx, phone, student.ID); err == nil {
		return nil, &OverrideExistsError{RequestID: existing.ID}
	} else if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("find pending override: %w", err)
	}

	now := e.now()
	req := &repository.OverrideRequest{
		ID:           uuid.NewString(),
		GuardID:      in.GuardID,
		StudentID:    student.ID,
		VisitorName:  in.VisitorName,
		VisitorPhone: phone,
		Reason:       in.Reason,
		Purpose:      in.Purpose,
		Urgency:      urgency,
		Status:       repository.OverridePending,
		IsOutOfHours: e.outOfHours(now),
		CreatedAt:    now,
	}
	if err := e.d.Overrides.Create(ctx, req); err != nil {
		if repository.IsConflict(err) {
			id := ""
			if existing, ferr := e.d.Overrides.FindPending(ctx, phone, student.ID); ferr == nil {
				id = existing.ID
			}
			return nil, &OverrideExistsError{RequestID: id}
		}
		return nil, fmt.Errorf("create override: %w", err)
	}

	sev := repository.SeverityInfo
	if urgency == repository.UrgencyHigh {
		sev = repository.SeverityWarning
	}
	e.audit.Record(ctx, repository.AuditEntry{
		Action:     repository.ActionOverrideRequested,
		ActorID:    in.GuardID,
		ActorType:  audit.ActorGuard,
		TargetID:   req.ID,
		TargetType: audit.TargetOverride,
		Severity:   sev,
		Meta: map[string]any{
			"studentId":    student.ID,
			"visitorPhone": phone,
			"urgency":      string(urgency),
			"isOutOfHours": req.IsOutOfHours,
		},
	})
	e.publish(ctx, events.OverrideRequested, dto.OverrideFrom(req))
	metrics.Override("requested")

	// Fan-out a wardens en background
	snapshot := *req
	e.background(ctx, func(ctx context.Context) {
		wardens, err := e.d.Wardens.ListActive(ctx)
		if err != nil {
			logger.From(ctx).Error("list wardens failed", logger.OverrideID(snapshot.ID), logger.Err(err))
			return
		}
		res := e.d.Notifier.NotifyWardens(ctx, wardens, &snapshot, student)
		metrics.Notification("warden_push", res.PushSent > 0)
		e.audit.Record(ctx, repository.AuditEntry{
			Action:     repository.ActionOverrideNotification,
			ActorID:    snapshot.GuardID,
			ActorType:  audit.ActorGuard,
			TargetID:   snapshot.ID,
			TargetType: audit.TargetOverride,
			Meta: map[string]any{
				"wardens":    res.Wardens,
				"pushSent":   res.PushSent,
				"emailsSent": res.EmailsSent,
			},
		})
	})

	log.Info("override requested", logger.OverrideID(req.ID), zap.String("urgency", string(urgency)))
	return req, nil
}

// Process resuelve pending -> approved|denied. Si aprueba crea exactamente una visita.
func (s overrideService) Process(ctx context.Context, in dto.ProcessOverrideRequest) (*ProcessResult, error) {
	e := s.e
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("visitor.override"),
		logger.Op("Process"),
	)

	in.RequestID = strings.TrimSpace(in.RequestID)
	in.WardenID = strings.TrimSpace(in.WardenID)
	if in.RequestID == "" || in.WardenID == "" || strings.TrimSpace(in.Action) == "" {
		return nil, ErrMissingFields
	}
	status, ok := parseDecision(in.Action)
	if !ok {
		return nil, ErrInvalidParameter
	}
	log = log.With(logger.OverrideID(in.RequestID), logger.WardenID(in.WardenID))

	cur, err := e.d.Overrides.GetByID(ctx, in.RequestID)
	switch {
	case repository.IsNotFound(err):
		return nil, ErrOverrideNotFound
	case err != nil:
		return nil, fmt.Errorf("get override: %w", err)
	case cur.Status != repository.OverridePending:
		return nil, ErrAlreadyProcessed
	}

	now := e.now()
	var v *repository.Visit
	if status == repository.OverrideApproved {
		v = &repository.Visit{
			ID:                uuid.NewString(),
			StudentID:         cur.StudentID,
			GuardID:           cur.GuardID,
			VisitorName:       cur.VisitorName,
			VisitorPhone:      cur.VisitorPhone,
			Purpose:           cur.Purpose,
			Method:            repository.MethodOverride,
			OverrideRequestID: cur.ID,
			EntryAt:           now,
			Status:            repository.VisitActive,
			StatusHistory: []repository.StatusChange{
				{Status: repository.VisitActive, GuardID: cur.GuardID, At: now, Notes: "approved by warden " + in.WardenID},
			},
		}
	}

	// Update condicional: solo uno de dos wardens en carrera gana. La visita
	// entra en la misma unidad; si falla la solicitud sigue pending.
	req, err := e.d.Overrides.ResolveWithVisit(ctx, in.RequestID, repository.OverrideResolution{
		Status:      status,
		WardenID:    in.WardenID,
		WardenNotes: strings.TrimSpace(in.WardenNotes),
		At:          now,
	}, v)
	switch {
	case repository.IsNotFound(err):
		return nil, ErrOverrideNotFound
	case errors.Is(err, repository.ErrNotPending):
		return nil, ErrAlreadyProcessed
	case err != nil:
		log.Error("resolve override failed", logger.Err(err))
		return nil, fmt.Errorf("resolve override: %w", err)
	}

	out := &ProcessResult{Request: req}
	if v != nil {
		out.Visit = v
		metrics.VisitCreated(string(v.Method))
	}

	action := repository.ActionOverrideDenied
	if status == repository.OverrideApproved {
		action = repository.ActionOverrideApproved
	}
	meta := map[string]any{"studentId": req.StudentID, "visitorPhone": req.VisitorPhone}
	if out.Visit != nil {
		meta["visitId"] = out.Visit.ID
	}
	if req.WardenNotes != "" {
		meta["wardenNotes"] = req.WardenNotes
	}
	e.audit.Record(ctx, repository.AuditEntry{
		Action:     action,
		ActorID:    in.WardenID,
		ActorType:  audit.ActorWarden,
		TargetID:   req.ID,
		TargetType: audit.TargetOverride,
		Meta:       meta,
	})
	e.publish(ctx, events.OverrideProcessed, dto.OverrideFrom(req))
	if out.Visit != nil {
		e.publish(ctx, events.VisitCreated, dto.VisitFrom(out.Visit))
	}
	metrics.Override(string(status))

	log.Info("override processed", zap.String("status", string(status)))
	return out, nil
}

func (s overrideService) ListPending(ctx context.Context) ([]repository.OverrideRequest, error) {
	return s.e.d.Overrides.ListPending(ctx)
}

func (s overrideService) ListHistory(ctx context.Context, q dto.HistoryQuery) ([]repository.OverrideRequest, error) {
	f := repository.OverrideFilter{Limit: clampLimit(q.Limit, 50, 200)}
	if st := strings.ToLower(strings.TrimSpace(q.Status)); st != "" {
		switch repository.OverrideStatus(st) {
		case repository.OverridePending, repository.OverrideApproved, repository.OverrideDenied:
			f.Status = repository.OverrideStatus(st)
		case "rejected":
			f.Status = repository.OverrideDenied
		default:
			return nil, ErrInvalidParameter
		}
	}
	return s.e.d.Overrides.ListHistory(ctx, f)
}

func parseUrgency(s string) (repository.Urgency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return repository.UrgencyMedium, true
	case "low":
		return repository.UrgencyLow, true
	case "medium":
		return repository.UrgencyMedium, true
	case "high":
		return repository.UrgencyHigh, true
	}
	return "", false
}

// parseDecision acepta "rejected" como alias de denied (clientes viejos).
func parseDecision(s string) (repository.OverrideStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve":
		return repository.OverrideApproved, true
	case "denied", "deny", "rejected", "reject":
		return repository.OverrideDenied, true
	}
	return "", false
}
