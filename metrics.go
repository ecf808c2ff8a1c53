package projectindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slackmgr/projectindex/index"
	"github.com/slackmgr/projectindex/notify"
	"github.com/slackmgr/projectindex/resource"
)

// RegisterMetrics registers every collector of the index, resource and
// notify packages with reg. Registering twice is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, register := range []func(prometheus.Registerer) error{
		index.RegisterMetrics,
		resource.RegisterMetrics,
		notify.RegisterMetrics,
	} {
		if err := register(reg); err != nil {
			return err
		}
	}

	return nil
}
