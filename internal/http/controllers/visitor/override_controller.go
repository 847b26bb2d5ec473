package visitor

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
	httperrors "github.com/dropDatabas3/hostelgate/internal/http/errors"
	svc "github.com/dropDatabas3/hostelgate/internal/http/services/visitor"
	jwtx "github.com/dropDatabas3/hostelgate/internal/jwt"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// OverrideController maneja /api/otp/override/...
type OverrideController struct {
	service svc.OverrideService
}

func NewOverrideController(service svc.OverrideService) *OverrideController {
	return &OverrideController{service: service}
}

// Request maneja POST /api/otp/override/request
func (c *OverrideController) Request(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("OverrideController.Request"))

	var req dto.OverrideRequest
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

	out, err := c.service.Request(ctx, req)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusCreated, dto.OverrideEnvelope{
		Success:         true,
		Message:         "Override request sent to wardens.",
		OverrideRequest: dto.OverrideFrom(out),
	})
}

// Process maneja POST /api/otp/override/{requestId}/process (warden)
func (c *OverrideController) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "requestId")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("OverrideController.Process"), logger.OverrideID(id))

	var req dto.ProcessOverrideRequest
	if appErr := readJSON(w, r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	wardenID, appErr := actorID(r, req.WardenID, jwtx.RoleWarden)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	req.WardenID, req.RequestID = wardenID, id
	if appErr := validate(req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	res, err := c.service.Process(ctx, req)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}

	env := dto.OverrideEnvelope{
		Success:         true,
		Message:         "Override request " + string(res.Request.Status) + ".",
		OverrideRequest: dto.OverrideFrom(res.Request),
	}
	if res.Visit != nil {
		v := dto.VisitFrom(res.Visit)
		env.Visit = &v
	}
	writeJSON(w, http.StatusOK, env)
}

// Pending maneja GET /api/otp/override/pending
func (c *OverrideController) Pending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("OverrideController.Pending"))

	reqs, err := c.service.ListPending(ctx)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, dto.OverridesEnvelope{Success: true, Requests: dto.OverridesFrom(reqs)})
}

// History maneja GET /api/otp/override/history?status=&limit=
func (c *OverrideController) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("OverrideController.History"))

	limit, appErr := queryLimit(r)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	reqs, err := c.service.ListHistory(ctx, dto.HistoryQuery{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
	})
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, dto.OverridesEnvelope{Success: true, Requests: dto.OverridesFrom(reqs)})
}
