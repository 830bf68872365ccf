package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pda_directory_build_info",
		Help: "Build information of the PDA directory server",
	},
		[]string{"version", "commit", "date"},
	)

	QueryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pda_directory_query_requests_total",
		Help: "Total number of successful query requests",
	},
		[]string{"intent", "mode"},
	)

	QueryRequestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pda_directory_query_request_errors_total",
		Help: "Total number of query request errors",
	},
		[]string{"reason"},
	)
)
