package index

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var FanOutWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "projectindex",
	Subsystem: "index",
	Name:      "fanout_writes_total",
	Help:      "Partition batches submitted by the index writer.",
}, []string{"entity", "op", "result"})

var PartialFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "projectindex",
	Subsystem: "index",
	Name:      "partial_failures_total",
	Help:      "Fan-out writes that left some indexes written and others not.",
}, []string{"entity"})

var Retries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "projectindex",
	Subsystem: "index",
	Name:      "retries_total",
	Help:      "Partition batches retried after a transient store error.",
}, []string{"entity"})

// RegisterMetrics registers the index collectors with reg. Collectors that
// are already registered are skipped.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{FanOutWrites, PartialFailures, Retries} {
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
