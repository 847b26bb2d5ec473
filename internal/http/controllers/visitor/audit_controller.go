package visitor

import (
	"net/http"

	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
	httperrors "github.com/dropDatabas3/hostelgate/internal/http/errors"
	svc "github.com/dropDatabas3/hostelgate/internal/http/services/visitor"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// AuditController expone el audit log (warden/admin).
type AuditController struct {
	service svc.AuditService
}

func NewAuditController(service svc.AuditService) *AuditController {
	return &AuditController{service: service}
}

// List maneja GET /api/otp/audit?targetId=&actorId=&action=&limit=
func (c *AuditController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuditController.List"))

	limit, appErr := queryLimit(r)
	if appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}
	q := r.URL.Query()
	entries, err := c.service.List(ctx, dto.AuditQuery{
		TargetID: q.Get("targetId"),
		ActorID:  q.Get("actorId"),
		Action:   q.Get("action"),
		Limit:    limit,
	})
	if err != nil {
		handleServiceError(w, err, log)
		return
	}
	writeJSON(w, http.StatusOK, dto.AuditEnvelope{Success: true, Entries: dto.AuditFrom(entries)})
}
