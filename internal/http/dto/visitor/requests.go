// Package visitor contiene los DTOs de la API de portería (/api/otp/...).
package visitor

// OTPRequest es el body de POST /api/otp/request.
type OTPRequest struct {
	StudentID    string `json:"studentId" validate:"required"`
	VisitorName  string `json:"visitorName" validate:"required"`
	VisitorPhone string `json:"visitorPhone" validate:"required"`
	GuardID      string `json:"guardId" validate:"required"`
	Purpose      string `json:"purpose" validate:"required"`
	GroupSize    int    `json:"groupSize,omitempty" validate:"omitempty,min=1,max=50"`
}

// GroupVisitor es un acompañante declarado al verificar un OTP grupal.
type GroupVisitor struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone,omitempty"`
	IDVerified bool   `json:"idVerified"`
}

// OTPVerifyRequest es el body de POST /api/otp/verify.
type OTPVerifyRequest struct {
	VisitorPhone  string         `json:"visitorPhone" validate:"required"`
	ProvidedOTP   string         `json:"providedOtp" validate:"required"`
	GuardID       string         `json:"guardId" validate:"required"`
	GroupVisitors []GroupVisitor `json:"groupVisitors,omitempty" validate:"omitempty,max=50,dive"`
}

// StudentGenerateRequest es el body de POST /api/otp/student/generate.
// El studentId sale del token.
type StudentGenerateRequest struct {
	StudentID    string `json:"-"`
	VisitorName  string `json:"visitorName" validate:"required"`
	VisitorPhone string `json:"visitorPhone" validate:"required"`
	Purpose      string `json:"purpose" validate:"required"`
	GroupSize    int    `json:"groupSize,omitempty" validate:"omitempty,min=1,max=50"`
}

// CheckoutRequest es el body de POST /api/otp/visits/{visitId}/checkout.
type CheckoutRequest struct {
	VisitID string `json:"-"`
	GuardID string `json:"guardId" validate:"required"`
	Notes   string `json:"notes,omitempty" validate:"max=500"`
}

// CancelRequest es el body de POST /api/otp/visits/{visitId}/cancel.
type CancelRequest struct {
	VisitID string `json:"-"`
	GuardID string `json:"guardId" validate:"required"`
	Reason  string `json:"reason" validate:"required,max=500"`
}

// OverrideRequest es el body de POST /api/otp/override/request.
type OverrideRequest struct {
	GuardID      string `json:"guardId" validate:"required"`
	VisitorName  string `json:"visitorName" validate:"required"`
	VisitorPhone string `json:"visitorPhone" validate:"required"`
	StudentID    string `json:"studentId" validate:"required"`
	Reason       string `json:"reason" validate:"required,max=500"`
	Purpose      string `json:"purpose" validate:"required"`
	// low | medium | high (default medium)
	Urgency string `json:"urgency,omitempty" validate:"omitempty,oneof=low medium high"`
}

// ProcessOverrideRequest es el body de POST /api/otp/override/{requestId}/process.
type ProcessOverrideRequest struct {
	RequestID   string `json:"-"`
	WardenID    string `json:"wardenId" validate:"required"`
	Action      string `json:"action" validate:"required"`
	WardenNotes string `json:"wardenNotes,omitempty" validate:"max=1000"`
}

// WhitelistAddRequest es el body de POST /api/otp/whitelist.
type WhitelistAddRequest struct {
	StudentID string `json:"-"`
	Phone     string `json:"phone" validate:"required"`
	Label     string `json:"label,omitempty" validate:"max=80"`
}

// HistoryQuery son los filtros de GET /api/otp/override/history.
type HistoryQuery struct {
	Status string
	Limit  int
}

// AuditQuery son los filtros de GET /api/otp/audit.
type AuditQuery struct {
	TargetID string
	ActorID  string
	Action   string
	Limit    int
}
