package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	liquidityOrderCounter *prometheus.CounterVec
	payoutDispatchCounter *prometheus.CounterVec
	payoutOrderCounter    *prometheus.CounterVec
	utxoActionCounter     *prometheus.CounterVec
	chainRetryCounter     *prometheus.CounterVec
	notificationCounter   *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
	rateLimitedCounter    *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "caller", "status"})

		liquidityOrderCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liquidity_orders_total",
			Help: "Liquidity order outcomes by order type",
		}, []string{"type", "result"})

		payoutDispatchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_group_dispatch_total",
			Help: "Payout group dispatch outcomes",
		}, []string{"result"})

		payoutOrderCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_order_transitions_total",
			Help: "Payout order status transitions",
		}, []string{"status"})

		utxoActionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "utxo_housekeeping_actions_total",
			Help: "UTXO housekeeping decisions",
		}, []string{"action"})

		chainRetryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chain_read_retries_total",
			Help: "Retried chain read calls",
		}, []string{"method"})

		notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "error_notifications_total",
			Help: "Error notifications by delivery result",
		}, []string{"result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		rateLimitedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		}, []string{"scope", "caller"})

		prometheus.MustRegister(
			httpDurationHistogram,
			liquidityOrderCounter,
			payoutDispatchCounter,
			payoutOrderCounter,
			utxoActionCounter,
			chainRetryCounter,
			notificationCounter,
			workerRunCounter,
			rateLimitedCounter,
		)
	})
}

func ObserveHTTP(method, route, caller string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, route, caller, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementRateLimited(scope, caller string) {
	if rateLimitedCounter == nil {
		return
	}
	rateLimitedCounter.WithLabelValues(scope, caller).Inc()
}

func IncrementLiquidityOrder(orderType, result string) {
	if liquidityOrderCounter == nil {
		return
	}
	liquidityOrderCounter.WithLabelValues(orderType, result).Inc()
}

func IncrementPayoutDispatch(result string) {
	if payoutDispatchCounter == nil {
		return
	}
	payoutDispatchCounter.WithLabelValues(result).Inc()
}

func AddPayoutTransitions(status string, n int) {
	if payoutOrderCounter == nil || n <= 0 {
		return
	}
	payoutOrderCounter.WithLabelValues(status).Add(float64(n))
}

func IncrementUTXOAction(action string) {
	if utxoActionCounter == nil {
		return
	}
	utxoActionCounter.WithLabelValues(action).Inc()
}

func IncrementChainRetry(method string) {
	if chainRetryCounter == nil {
		return
	}
	chainRetryCounter.WithLabelValues(method).Inc()
}

func IncrementNotification(result string) {
	if notificationCounter == nil {
		return
	}
	notificationCounter.WithLabelValues(result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
