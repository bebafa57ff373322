package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"status"},
	)

	QuoteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapengine_quote_duration_seconds",
		Help:    "Quote request duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	CandidatesEvaluated = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapengine_quote_candidates",
		Help:    "Number of route candidates evaluated per quote request",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
	})

	ApproximateQuotes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapengine_approximate_quotes_total",
		Help: "Quotes that fell back to mid-price approximation on at least one hop",
	})

	PriceImpact = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapengine_price_impact_bps",
			Help:    "Price impact in basis points",
			Buckets: []float64{0, 10, 50, 100, 300, 500, 1000, 5000, 10000},
		},
		[]string{"severity"},
	)

	// Plan builder metrics
	SwapRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_swap_requests_total",
			Help: "Total number of execution-plan build requests",
		},
		[]string{"status"},
	)

	SwapDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapengine_swap_duration_seconds",
		Help:    "Execution-plan build duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	PlanHops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapengine_plan_hops",
		Help:    "Number of swap hops per built plan",
		Buckets: []float64{1, 2, 3, 4},
	})

	// Chain read metrics
	MulticallBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapengine_multicall_batches_total",
		Help: "Total number of multicall batches dispatched",
	})

	MulticallFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapengine_multicall_failures_total",
		Help: "Total number of multicall batches that failed outright",
	})

	GasPriceGwei = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapengine_gas_price_gwei",
		Help: "Last observed gas price in gwei",
	})

	// Token metadata metrics
	TokenFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_token_fetches_total",
			Help: "Total number of token metadata chain fetches",
		},
		[]string{"status"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapengine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapengine_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
