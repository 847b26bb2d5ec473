package visitor

import (
	"context"
	"time"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
)

// IssueResult es el resultado de pedir un OTP: un challenge o, si el teléfono
// está en la whitelist, una visita pre-aprobada.
type IssueResult struct {
	Challenge   *repository.OTPChallenge
	Visit       *repository.Visit
	PreApproved bool
}

type VerifyResult struct {
	Visit   *repository.Visit
	Student *repository.Student
}

// GenerateResult lleva el código en claro: es lo único que el residente comparte.
type GenerateResult struct {
	Challenge *repository.OTPChallenge
	Code      string
}

type ProcessResult struct {
	Request *repository.OverrideRequest
	Visit   *repository.Visit
}

// OTPService emite y verifica challenges.
type OTPService interface {
	Request(ctx context.Context, in dto.OTPRequest) (*IssueResult, error)
	Verify(ctx context.Context, in dto.OTPVerifyRequest) (*VerifyResult, error)
	StudentGenerate(ctx context.Context, in dto.StudentGenerateRequest) (*GenerateResult, error)
}

// OverrideService maneja la escalación al warden.
type OverrideService interface {
	Request(ctx context.Context, in dto.OverrideRequest) (*repository.OverrideRequest, error)
	Process(ctx context.Context, in dto.ProcessOverrideRequest) (*ProcessResult, error)
	ListPending(ctx context.Context) ([]repository.OverrideRequest, error)
	ListHistory(ctx context.Context, q dto.HistoryQuery) ([]repository.OverrideRequest, error)
}

// VisitService cierra y consulta visitas.
type VisitService interface {
	Checkout(ctx context.Context, in dto.CheckoutRequest) (*repository.Visit, error)
	Cancel(ctx context.Context, in dto.CancelRequest) (*repository.Visit, error)
	Get(ctx context.Context, id string) (*repository.Visit, error)
	ListActive(ctx context.Context, guardID string) ([]repository.Visit, error)
	ListByStudent(ctx context.Context, studentID string, limit int) ([]repository.Visit, error)
}

// WhitelistService es la whitelist del propio residente.
type WhitelistService interface {
	List(ctx context.Context, studentID string) ([]repository.WhitelistEntry, error)
	Add(ctx context.Context, in dto.WhitelistAddRequest) error
	Remove(ctx context.Context, studentID, phone string) error
}

// AuditService expone el log para replay forense.
type AuditService interface {
	List(ctx context.Context, q dto.AuditQuery) ([]repository.AuditEntry, error)
}

// MaintenanceService agrupa tareas de fondo.
type MaintenanceService interface {
	// PurgeExpired borra challenges más viejos que la retención.
	PurgeExpired(ctx context.Context) (int, error)
	// RunJanitor corre PurgeExpired cada interval hasta que ctx termine.
	RunJanitor(ctx context.Context, interval time.Duration)
	// Drain espera las notificaciones en vuelo (shutdown).
	Drain(ctx context.Context) error
}
