package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quickbite",
		Subsystem: "settlement",
		Name:      "payments_recorded_total",
		Help:      "Payments recorded, by method.",
	}, []string{"method"})

	paymentsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickbite",
		Subsystem: "settlement",
		Name:      "payments_deleted_total",
		Help:      "Payments removed, single deletes and bulk clears combined.",
	})

	reversalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickbite",
		Subsystem: "settlement",
		Name:      "charge_reversals_total",
		Help:      "Pending instant-transfer charges reversed with the network.",
	})

	coordinatorReloads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickbite",
		Subsystem: "settlement",
		Name:      "coordinator_reloads_total",
		Help:      "Full payment-list reloads triggered by change-feed events.",
	})
)
