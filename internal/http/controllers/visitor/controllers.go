// Package visitor contiene los controllers HTTP de la portería.
package visitor

import svc "github.com/dropDatabas3/hostelgate/internal/http/services/visitor"

// Controllers agrupa todos los controllers del dominio visitor.
type Controllers struct {
	OTP       *OTPController
	Visits    *VisitController
	Override  *OverrideController
	Whitelist *WhitelistController
	Audit     *AuditController
}

// NewControllers crea el agregador de controllers visitor.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{
		OTP:       NewOTPController(s.OTP),
		Visits:    NewVisitController(s.Visits),
		Override:  NewOverrideController(s.Override),
		Whitelist: NewWhitelistController(s.Whitelist),
		Audit:     NewAuditController(s.Audit),
	}
}
