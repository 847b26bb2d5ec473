package visitor

import (
	"net/http"

	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
	httperrors "github.com/dropDatabas3/hostelgate/internal/http/errors"
	svc "github.com/dropDatabas3/hostelgate/internal/http/services/visitor"
	jwtx "github.com/dropDatabas3/hostelgate/internal/jwt"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// OTPController maneja /api/otp/request, /api/otp/verify y /api/otp/student/generate.
type OTPController struct {
	service svc.OTPService
}

func NewOTPController(service svc.OTPService) *OTPController {
	return &OTPController{service: service}
}

// Request maneja POST /api/otp/request
func (c *OTPController) Request(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("OTPController.Request"),
	)

	var req dto.OTPRequest
	if appErr := readJSON(w, r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	guardID, appErr := actorID(r, req.GuardID, jwtx.RoleGuard)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	req.GuardID = guardID
	if appErr := validate(req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	res, err := c.service.Request(ctx, req)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}

	if res.PreApproved {
		v := dto.VisitFrom(res.Visit)
		writeJSON(w, http.StatusOK, dto.OTPRequestResponse{
			Success: true,
			Message: "Visitor is pre-approved. Entry granted.",
			Code:    "PRE_APPROVED",
			Visit:   &v,
		})
		return
	}

	exp := res.Challenge.ExpiresAt
	writeJSON(w, http.StatusOK, dto.OTPRequestResponse{
		Success:   true,
		Message:   "OTP sent to the student.",
		OTPID:     res.Challenge.ID,
		ExpiresAt: &exp,
	})
}

// Verify maneja POST /api/otp/verify
func (c *OTPController) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("OTPController.Verify"),
	)

	var req dto.OTPVerifyRequest
	if appErr := readJSON(w, r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	guardID, appErr := actorID(r, req.GuardID, jwtx.RoleGuard)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	req.GuardID = guardID
	if appErr := validate(req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	res, err := c.service.Verify(ctx, req)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}

	writeJSON(w, http.StatusOK, dto.OTPVerifyResponse{
		Success: true,
		Message: "OTP verified. Entry granted.",
		Visit:   dto.VisitFrom(res.Visit),
		Student: dto.StudentSummaryFrom(res.Student),
	})
}

// StudentGenerate maneja POST /api/otp/student/generate. El código vuelve en claro
// al residente, que lo comparte con su visitante.
func (c *OTPController) StudentGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("OTPController.StudentGenerate"),
	)

	sid, appErr := studentID(r)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	var req dto.StudentGenerateRequest
	if appErr := readJSON(w, r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	req.StudentID = sid
	if appErr := validate(req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	res, err := c.service.StudentGenerate(ctx, req)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, dto.StudentGenerateResponse{
		Success:   true,
		OTPID:     res.Challenge.ID,
		Code:      res.Code,
		ExpiresAt: res.Challenge.ExpiresAt,
	})
}
