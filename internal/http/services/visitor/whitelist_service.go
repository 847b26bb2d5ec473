package visitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/hostelgate/internal/audit"
	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
	"github.com/dropDatabas3/hostelgate/internal/validation"
)

type whitelistService struct{ e *engine }

func (s whitelistService) List(ctx context.Context, studentID string) ([]repository.WhitelistEntry, error) {
	if _, err := s.e.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return s.e.d.Students.ListWhitelist(ctx, studentID)
}

// Add es idempotente: re-agregar un teléfono solo actualiza el label.
func (s whitelistService) Add(ctx context.Context, in dto.WhitelistAddRequest) error {
	e := s.e
	if strings.TrimSpace(in.StudentID) == "" || strings.TrimSpace(in.Phone) == "" {
		return ErrMissingFields
	}
	phone, ok := validation.Phone(in.Phone, e.policy.CountryCode)
	if !ok {
		return ErrInvalidPhone
	}
	student, err := e.loadStudent(ctx, in.StudentID)
	if err != nil {
		return err
	}
	if err := e.d.Students.AddWhitelist(ctx, repository.WhitelistEntry{
		StudentID: student.ID,
		Phone:     phone,
		Label:     strings.TrimSpace(in.Label),
		AddedAt:   e.now(),
	}); err != nil {
		return fmt.Errorf("add whitelist: %w", err)
	}
	e.audit.Record(ctx, repository.AuditEntry{
		Action:     repository.ActionWhitelistAdded,
		ActorID:    student.ID,
		ActorType:  audit.ActorStudent,
		TargetID:   student.ID,
		TargetType: audit.TargetStudent,
		Meta:       map[string]any{"phone": phone},
	})
	return nil
}

func (s whitelistService) Remove(ctx context.Context, studentID, raw string) error {
	e := s.e
	if strings.TrimSpace(studentID) == "" || strings.TrimSpace(raw) == "" {
		return ErrMissingFields
	}
	phone, ok := validation.Phone(raw, e.policy.CountryCode)
	if !ok {
		return ErrInvalidPhone
	}
	err := e.d.Students.RemoveWhitelist(ctx, studentID, phone)
	if repository.IsNotFound(err) {
		return ErrWhitelistEntryNotFound
	}
	if err != nil {
		return fmt.Errorf("remove whitelist: %w", err)
	}
	e.audit.Record(ctx, repository.AuditEntry{
		Action:     repository.ActionWhitelistRemoved,
		ActorID:    studentID,
		ActorType:  audit.ActorStudent,
		TargetID:   studentID,
		TargetType: audit.TargetStudent,
		Meta:       map[string]any{"phone": phone},
	})
	return nil
}
