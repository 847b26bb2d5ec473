package visitor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/hostelgate/internal/audit"
	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	"github.com/dropDatabas3/hostelgate/internal/events"
	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
	"github.com/dropDatabas3/hostelgate/internal/metrics"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

type visitService struct{ e *engine }

// Checkout cierra una visita activa: active -> completed.
func (s visitService) Checkout(ctx context.Context, in dto.CheckoutRequest) (*repository.Visit, error) {
	in.VisitID = strings.TrimSpace(in.VisitID)
	in.GuardID = strings.TrimSpace(in.GuardID)
	if in.VisitID == "" || in.GuardID == "" {
		return nil, ErrMissingFields
	}
	return s.close(ctx, in.VisitID, repository.VisitClose{
		Status:  repository.VisitCompleted,
		GuardID: in.GuardID,
		Notes:   strings.TrimSpace(in.Notes),
	})
}

// Cancel cierra una visita activa con motivo: active -> cancelled.
func (s visitService) Cancel(ctx context.Context, in dto.CancelRequest) (*repository.Visit, error) {
	in.VisitID = strings.TrimSpace(in.VisitID)
	in.GuardID = strings.TrimSpace(in.GuardID)
	in.Reason = strings.TrimSpace(in.Reason)
	if in.VisitID == "" || in.GuardID == "" || in.Reason == "" {
		return nil, ErrMissingFields
	}
	return s.close(ctx, in.VisitID, repository.VisitClose{
		Status:          repository.VisitCancelled,
		GuardID:         in.GuardID,
		Notes:           in.Reason,
		CancelledReason: in.Reason,
	})
}

func (s visitService) close(ctx context.Context, id string, c repository.VisitClose) (*repository.Visit, error) {
	e := s.e
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("visitor.visit"),
		logger.Op("Close"),
		logger.VisitID(id),
		logger.GuardID(c.GuardID),
	)

	c.At = e.now()
	v, err := e.d.Visits.Close(ctx, id, c)
	switch {
	case repository.IsNotFound(err):
		return nil, ErrVisitNotFound
	case errors.Is(err, repository.ErrAlreadyClosed):
		return nil, ErrAlreadyCheckedOut
	case err != nil:
		return nil, fmt.Errorf("close visit: %w", err)
	}

	action, evType := repository.ActionVisitCheckout, events.VisitCheckout
	if c.Status == repository.VisitCancelled {
		action, evType = repository.ActionVisitCancelled, events.VisitCancelled
	}
	meta := map[string]any{"studentId": v.StudentID, "method": string(v.Method)}
	if c.Notes != "" {
		meta["notes"] = c.Notes
	}
	e.audit.Record(ctx, repository.AuditEntry{
		Action:     action,
		ActorID:    c.GuardID,
		ActorType:  audit.ActorGuard,
		TargetID:   v.ID,
		TargetType: audit.TargetVisit,
		Meta:       meta,
	})
	e.publish(ctx, evType, dto.VisitFrom(v))
	metrics.VisitClosed(string(v.Status))

	log.Info("visit closed", logger.String("status", string(v.Status)))
	return v, nil
}

func (s visitService) Get(ctx context.Context, id string) (*repository.Visit, error) {
	v, err := s.e.d.Visits.GetByID(ctx, strings.TrimSpace(id))
	if repository.IsNotFound(err) {
		return nil, ErrVisitNotFound
	}
	return v, err
}

func (s visitService) ListActive(ctx context.Context, guardID string) ([]repository.Visit, error) {
	return s.e.d.Visits.ListActive(ctx, strings.TrimSpace(guardID))
}

func (s visitService) ListByStudent(ctx context.Context, studentID string, limit int) ([]repository.Visit, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, ErrMissingFields
	}
	return s.e.d.Visits.ListByStudent(ctx, studentID, clampLimit(limit, 20, 100))
}
