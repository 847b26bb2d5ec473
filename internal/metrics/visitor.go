package metrics

import "github.com/prometheus/client_golang/prometheus"

// Contadores de la portería. Se registran en Register; usarlos antes es inocuo.
var (
	otpIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostelgate_otp_issued_total",
		Help: "Challenges OTP emitidos por origen",
	}, []string{"source"}) // guard|student

	otpVerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostelgate_otp_verify_total",
		Help: "Verificaciones OTP por resultado",
	}, []string{"result"}) // ok|invalid|expired|not_found|locked|blocked

	visitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostelgate_visits_created_total",
		Help: "Visitas creadas por método",
	}, []string{"method"})

	visitsClosedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostelgate_visits_closed_total",
		Help: "Visitas cerradas por estado final",
	}, []string{"status"})

	overridesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostelgate_overrides_total",
		Help: "Solicitudes de override por evento",
	}, []string{"event"}) // requested|approved|denied

	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hostelgate_notifications_total",
		Help: "Notificaciones por canal y resultado",
	}, []string{"channel", "result"})

	otpPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hostelgate_otp_purged_total",
		Help: "Challenges OTP eliminados por retención",
	})
)

func OTPIssued(source string) { otpIssuedTotal.WithLabelValues(source).Inc() }
func OTPVerify(result string) { otpVerifyTotal.WithLabelValues(result).Inc() }
func VisitCreated(method string) { visitsTotal.WithLabelValues(method).Inc() }
func VisitClosed(status string) { visitsClosedTotal.WithLabelValues(status).Inc() }
func Override(event string) { overridesTotal.WithLabelValues(event).Inc() }
func OTPPurged(n int) { otpPurgedTotal.Add(float64(n)) }

// Notification registra el resultado de un canal (push|sms|email).
func Notification(channel string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	notificationsTotal.WithLabelValues(channel, result).Inc()
}
