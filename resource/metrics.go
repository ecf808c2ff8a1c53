package resource

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var LockConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "projectindex",
	Subsystem: "resource",
	Name:      "lock_conflicts_total",
	Help:      "Writes rejected because another user holds the resource lock.",
}, []string{"op"})

var VersionConflicts = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "projectindex",
	Subsystem: "resource",
	Name:      "version_conflicts_total",
	Help:      "New versions rejected because a concurrent writer stored the same index first.",
})

// RegisterMetrics registers the resource collectors with reg. Collectors that
// are already registered are skipped.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{LockConflicts, VersionConflicts} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}

			return err
		}
	}

	return nil
}
