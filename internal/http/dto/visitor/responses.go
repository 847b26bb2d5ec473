package visitor

import (
	"time"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type StatusChange struct {
	Status    string    `json:"status"`
	GuardID   string    `json:"guardId"`
	Timestamp time.Time `json:"timestamp"`
	Notes     string    `json:"notes,omitempty"`
}

type VisitResponse struct {
	ID                string         `json:"id"`
	StudentID         string         `json:"studentId"`
	GuardID           string         `json:"guardId"`
	CheckoutGuardID   string         `json:"checkoutGuardId,omitempty"`
	VisitorName       string         `json:"visitorName"`
	VisitorPhone      string         `json:"visitorPhone"`
	Purpose           string         `json:"purpose,omitempty"`
	IsGroupVisit      bool           `json:"isGroupVisit"`
	GroupVisitors     []GroupVisitor `json:"groupVisitors,omitempty"`
	Method            string         `json:"method"`
	OTPID             string         `json:"otpId,omitempty"`
	OverrideRequestID string         `json:"overrideRequestId,omitempty"`
	EntryAt           time.Time      `json:"entryAt"`
	ExitAt            *time.Time     `json:"exitAt"`
	Status            string         `json:"status"`
	CancelledReason   string         `json:"cancelledReason,omitempty"`
	StatusHistory     []StatusChange `json:"statusHistory"`
}

// StudentSummary es lo que ve el guardia tras verificar: sin contactos.
type StudentSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RoomNumber string `json:"roomNumber"`
}

type OverrideResponse struct {
	ID           string     `json:"id"`
	GuardID      string     `json:"guardId"`
	StudentID    string     `json:"studentId"`
	VisitorName  string     `json:"visitorName"`
	VisitorPhone string     `json:"visitorPhone"`
	Reason       string     `json:"reason"`
	Purpose      string     `json:"purpose"`
	Urgency      string     `json:"urgency"`
	Status       string     `json:"status"`
	IsOutOfHours bool       `json:"isOutOfHours"`
	CreatedAt    time.Time  `json:"createdAt"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
	WardenID     string     `json:"wardenId,omitempty"`
	WardenNotes  string     `json:"wardenNotes,omitempty"`
	VisitID      string     `json:"visitId,omitempty"`
}

type WhitelistEntry struct {
	Phone   string    `json:"phone"`
	Label   string    `json:"label,omitempty"`
	AddedAt time.Time `json:"addedAt"`
}

type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	ActorID    string         `json:"actorId"`
	ActorType  string         `json:"actorType"`
	TargetID   string         `json:"targetId,omitempty"`
	TargetType string         `json:"targetType,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	Severity   string         `json:"severity"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ─── Envelopes ───

type OTPRequestResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Code      string         `json:"code,omitempty"`
	OTPID     string         `json:"otpId,omitempty"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Visit     *VisitResponse `json:"visit,omitempty"`
}

type OTPVerifyResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Visit   VisitResponse   `json:"visit"`
	Student *StudentSummary `json:"student,omitempty"`
}

type StudentGenerateResponse struct {
	Success   bool      `json:"success"`
	OTPID     string    `json:"otpId"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VisitEnvelope struct {
	Success bool          `json:"success"`
	Visit   VisitResponse `json:"visit"`
}

type VisitsEnvelope struct {
	Success bool            `json:"success"`
	Visits  []VisitResponse `json:"visits"`
}

type OverrideEnvelope struct {
	Success         bool             `json:"success"`
	Message         string           `json:"message,omitempty"`
	OverrideRequest OverrideResponse `json:"overrideRequest"`
	Visit           *VisitResponse   `json:"visit,omitempty"`
}

type OverridesEnvelope struct {
	Success  bool               `json:"success"`
	Requests []OverrideResponse `json:"requests"`
}

type WhitelistEnvelope struct {
	Success bool             `json:"success"`
	Entries []WhitelistEntry `json:"entries"`
}

type AuditEnvelope struct {
	Success bool         `json:"success"`
	Entries []AuditEntry `json:"entries"`
}

// ─── Conversión desde el dominio ───

func VisitFrom(v *repository.Visit) VisitResponse {
	out := VisitResponse{
		ID:                v.ID,
		StudentID:         v.StudentID,
		GuardID:           v.GuardID,
		CheckoutGuardID:   v.CheckoutGuardID,
		VisitorName:       v.VisitorName,
		VisitorPhone:      v.VisitorPhone,
		Purpose:           v.Purpose,
		IsGroupVisit:      v.IsGroupVisit,
		Method:            string(v.Method),
		OTPID:             v.OTPID,
		OverrideRequestID: v.OverrideRequestID,
		EntryAt:           v.EntryAt,
		ExitAt:            v.ExitAt,
		Status:            string(v.Status),
		CancelledReason:   v.CancelledReason,
		StatusHistory:     make([]StatusChange, 0, len(v.StatusHistory)),
	}
	for _, g := range v.GroupVisitors {
		out.GroupVisitors = append(out.GroupVisitors, GroupVisitor{Name: g.Name, Phone: g.Phone, IDVerified: g.IDVerified})
	}
	for _, h := range v.StatusHistory {
		out.StatusHistory = append(out.StatusHistory, StatusChange{
			Status:    string(h.Status),
			GuardID:   h.GuardID,
			Timestamp: h.At,
			Notes:     h.Notes,
		})
	}
	return out
}

func VisitsFrom(vs []repository.Visit) []VisitResponse {
	out := make([]VisitResponse, 0, len(vs))
	for i := range vs {
		out = append(out, VisitFrom(&vs[i]))
	}
	return out
}

func StudentSummaryFrom(s *repository.Student) *StudentSummary {
	if s == nil {
		return nil
	}
	return &StudentSummary{ID: s.ID, Name: s.Name, RoomNumber: s.RoomNumber}
}

func OverrideFrom(r *repository.OverrideRequest) OverrideResponse {
	return OverrideResponse{
		ID:           r.ID,
		GuardID:      r.GuardID,
		StudentID:    r.StudentID,
		VisitorName:  r.VisitorName,
		VisitorPhone: r.VisitorPhone,
		Reason:       r.Reason,
		Purpose:      r.Purpose,
		Urgency:      string(r.Urgency),
		Status:       string(r.Status),
		IsOutOfHours: r.IsOutOfHours,
		CreatedAt:    r.CreatedAt,
		ResolvedAt:   r.ResolvedAt,
		WardenID:     r.WardenID,
		WardenNotes:  r.WardenNotes,
		VisitID:      r.VisitID,
	}
}

func OverridesFrom(rs []repository.OverrideRequest) []OverrideResponse {
	out := make([]OverrideResponse, 0, len(rs))
	for i := range rs {
		out = append(out, OverrideFrom(&rs[i]))
	}
	return out
}

func WhitelistFrom(es []repository.WhitelistEntry) []WhitelistEntry {
	out := make([]WhitelistEntry, 0, len(es))
	for _, e := range es {
		out = append(out, WhitelistEntry{Phone: e.Phone, Label: e.Label, AddedAt: e.AddedAt})
	}
	return out
}

func AuditFrom(es []repository.AuditEntry) []AuditEntry {
	out := make([]AuditEntry, 0, len(es))
	for _, e := range es {
		out = append(out, AuditEntry{
			ID:         e.ID,
			Action:     string(e.Action),
			ActorID:    e.ActorID,
			ActorType:  e.ActorType,
			TargetID:   e.TargetID,
			TargetType: e.TargetType,
			Meta:       e.Meta,
			Severity:   string(e.Severity),
			IPAddress:  e.IPAddress,
			UserAgent:  e.UserAgent,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
