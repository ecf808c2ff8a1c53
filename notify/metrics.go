package notify

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var PublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "projectindex",
	Subsystem: "notify",
	Name:      "publish_failures_total",
	Help:      "Change events that could not be published, by event type.",
}, []string{"type"})

// RegisterMetrics registers the notify collectors with reg. Collectors that
// are already registered are ignored.
func RegisterMetrics(reg prometheus.Registerer) error {
	if err := reg.Register(PublishFailures); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
	}

	return nil
}
