package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transpool"

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "match_searches_total", Help: "Candidate searches by outcome"},
		[]string{"outcome"},
	)
	CandidatesReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "match_candidates",
		Help:      "Number of candidate routes returned per successful search",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
	})
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "match_latency_seconds", Help: "Candidate search latency seconds"})
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "bookings_total", Help: "Accept attempts by outcome"},
		[]string{"outcome"},
	)
	OffersCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "offers_created_total", Help: "Trip offers accepted into the schedule"})
	RequestsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "requests_created_total", Help: "Trip requests filed"})
	EventFailures   = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "match_event_failures_total", Help: "Failed deliveries of committed matches to collaborators"},
		[]string{"sink"},
	)
	DriversConnected = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "drivers_connected", Help: "Drivers with an open websocket"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
