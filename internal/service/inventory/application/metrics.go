package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var stockAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "storefront",
	Subsystem: "inventory",
	Name:      "stock_adjustments_total",
	Help:      "Stock ledger adjustments by direction and outcome.",
}, []string{"direction", "outcome"})

var availabilityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "storefront",
	Subsystem: "inventory",
	Name:      "availability_checks_total",
	Help:      "Availability checks by result.",
}, []string{"result"})
