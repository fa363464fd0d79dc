package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts what the guard does with the session. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	validations   *prometheus.CounterVec
	logouts       *prometheus.CounterVec
	csrfRefreshes *prometheus.CounterVec
}

// NewMetrics creates the guard's counters and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Subsystem: "session",
			Name:      "validations_total",
			Help:      "Session validation probes, by outcome.",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Subsystem: "session",
			Name:      "forced_logouts_total",
			Help:      "Sessions terminated by the guard, by reason.",
		}, []string{"reason"}),
		csrfRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Subsystem: "session",
			Name:      "csrf_refreshes_total",
			Help:      "Silent CSRF token refresh attempts, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.validations, m.logouts, m.csrfRefreshes)
	return m
}

func (m *Metrics) validation(valid bool) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(outcome(valid)).Inc()
}

func (m *Metrics) logout(reason string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(reason).Inc()
}

func (m *Metrics) csrfRefresh(ok bool) {
	if m == nil {
		return
	}
	m.csrfRefreshes.WithLabelValues(outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
