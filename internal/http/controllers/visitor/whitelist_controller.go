package visitor

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
	httperrors "github.com/dropDatabas3/hostelgate/internal/http/errors"
	svc "github.com/dropDatabas3/hostelgate/internal/http/services/visitor"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// WhitelistController maneja /api/otp/whitelist del residente autenticado.
type WhitelistController struct {
	service svc.WhitelistService
}

func NewWhitelistController(service svc.WhitelistService) *WhitelistController {
	return &WhitelistController{service: service}
}

// List maneja GET /api/otp/whitelist
func (c *WhitelistController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("WhitelistController.List"))

	sid, appErr := studentID(r)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	entries, err := c.service.List(ctx, sid)
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, dto.WhitelistEnvelope{Success: true, Entries: dto.WhitelistFrom(entries)})
}

// Add maneja POST /api/otp/whitelist
func (c *WhitelistController) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("WhitelistController.Add"))

	sid, appErr := studentID(r)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	var req dto.WhitelistAddRequest
	if appErr := readJSON(w, r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	req.StudentID = sid
	if appErr := validate(req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	if err := c.service.Add(ctx, req); err != nil {
		handleServiceError(w, err, log)
		return
	}
	c.List(w, r)
}

// Remove maneja DELETE /api/otp/whitelist/{phone}
func (c *WhitelistController) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("WhitelistController.Remove"))

	sid, appErr := studentID(r)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	// "+91..." llega escapado como %2B91...
	phone, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidPhone)
		return
	}

	if err := c.service.Remove(ctx, sid, phone); err != nil {
		handleServiceError(w, err, log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
