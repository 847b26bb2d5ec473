package repository

import (
	"context"
	"time"
)

// AuditAction es el enum cerrado de acciones auditables.
type AuditAction string

const (
	ActionOTPRequested         AuditAction = "otp_requested"
	ActionOTPVerified          AuditAction = "otp_verified"
	ActionOTPFailed            AuditAction = "otp_failed"
	ActionOTPNotification      AuditAction = "otp_notification"
	ActionVisitCreated         AuditAction = "visit_created"
	ActionVisitCheckout        AuditAction = "visit_checkout"
	ActionVisitCancelled       AuditAction = "visit_cancelled"
	ActionOverrideRequested    AuditAction = "override_requested"
	ActionOverrideApproved     AuditAction = "override_approved"
	ActionOverrideDenied       AuditAction = "override_denied"
	ActionOverrideNotification AuditAction = "override_notification"
	ActionWhitelistAdded       AuditAction = "whitelist_added"
	ActionWhitelistRemoved     AuditAction = "whitelist_removed"
)

// Severity de la entrada.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// AuditEntry es append-only.
type AuditEntry struct {
	ID         string
	Action     AuditAction
	ActorID    string
	ActorType  string // guard | warden | student | system
	TargetID   string
	TargetType string // otp | visit | override | student
	Meta       map[string]any
	Severity   Severity
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// AuditFilter filtra consultas forenses. Campos vacíos no filtran.
type AuditFilter struct {
	TargetID string
	ActorID  string
	Action   AuditAction
	Limit    int
}

// AuditRepository es el sink append-only.
type AuditRepository interface {
	Append(ctx context.Context, e *AuditEntry) error

	// List retorna entradas en orden cronológico (más viejas primero).
	List(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}
