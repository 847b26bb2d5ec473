package visitor

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
	httperrors "github.com/dropDatabas3/hostelgate/internal/http/errors"
	svc "github.com/dropDatabas3/hostelgate/internal/http/services/visitor"
	jwtx "github.com/dropDatabas3/hostelgate/internal/jwt"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// VisitController maneja /api/otp/visits/... y /api/otp/student/visits.
type VisitController struct {
	service svc.VisitService
}

func NewVisitController(service svc.VisitService) *VisitController {
	return &VisitController{service: service}
}

// ListActive maneja GET /api/otp/visits/active?guardId=
func (c *VisitController) ListActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("VisitController.ListActive"))

	visits, err := c.service.ListActive(ctx, r.URL.Query().Get("guardId"))
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, dto.VisitsEnvelope{Success: true, Visits: dto.VisitsFrom(visits)})
}

// Get maneja GET /api/otp/visits/{visitId}
func (c *VisitController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "visitId")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("VisitController.Get"), logger.VisitID(id))

	v, err := c.service.Get(ctx, id)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, dto.VisitEnvelope{Success: true, Visit: dto.VisitFrom(v)})
}

// Checkout maneja POST /api/otp/visits/{visitId}/checkout
func (c *VisitController) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "visitId")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("VisitController.Checkout"), logger.VisitID(id))

	var req dto.CheckoutRequest
	if appErr := readJSON(w, r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	guardID, appErr := actorID(r, req.GuardID, jwtx.RoleGuard)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	req.GuardID, req.VisitID = guardID, id
	if appErr := validate(req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	v, err := c.service.Checkout(ctx, req)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, dto.VisitEnvelope{Success: true, Visit: dto.VisitFrom(v)})
}

// Cancel maneja POST /api/otp/visits/{visitId}/cancel
func (c *VisitController) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "visitId")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("VisitController.Cancel"), logger.VisitID(id))

	var req dto.CancelRequest
	if appErr := readJSON(w, r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	guardID, appErr := actorID(r, req.GuardID, jwtx.RoleGuard)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	req.GuardID, req.VisitID = guardID, id
	req.Reason = strings.TrimSpace(req.Reason)
	if appErr := validate(req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	v, err := c.service.Cancel(ctx, req)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, dto.VisitEnvelope{Success: true, Visit: dto.VisitFrom(v)})
}

// StudentVisits maneja GET /api/otp/student/visits?limit=
func (c *VisitController) StudentVisits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("VisitController.StudentVisits"))

	sid, appErr := studentID(r)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	limit, appErr := queryLimit(r)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	visits, err := c.service.ListByStudent(ctx, sid, limit)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, dto.VisitsEnvelope{Success: true, Visits: dto.VisitsFrom(visits)})
}
