package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	transferLegCounter     *prometheus.CounterVec
	peerTransferCounter    *prometheus.CounterVec
	rollbackFailureCounter prometheus.Counter
	ledgerImbalanceCounter prometheus.Counter
	systemBalanceGauge     prometheus.Gauge
	workerRunCounter       *prometheus.CounterVec
	economyResultCounter   *prometheus.CounterVec
	inFlightGauge          prometheus.Gauge
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		transferLegCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treasury_transfer_legs_total",
			Help: "Ledger transfer legs issued, by kind and result",
		}, []string{"leg", "result"})

		peerTransferCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treasury_peer_transfers_total",
			Help: "Peer transfers by terminal state",
		}, []string{"state"})

		rollbackFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treasury_rollback_failures_total",
			Help: "Compensating transfers that failed and stranded funds in the system account",
		})

		ledgerImbalanceCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Number of times the ledger net balance diverged from zero",
		})

		systemBalanceGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_system_account_balance",
			Help: "Last observed balance of the system intermediary account",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		economyResultCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treasury_economy_results_total",
			Help: "Economy operations by route and bus result",
		}, []string{"path", "result"})

		inFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served",
		})

		prometheus.MustRegister(
			httpDurationHistogram,
			transferLegCounter,
			peerTransferCounter,
			rollbackFailureCounter,
			ledgerImbalanceCounter,
			systemBalanceGauge,
			workerRunCounter,
			economyResultCounter,
			inFlightGauge,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementTransferLeg(leg, result string) {
	if transferLegCounter == nil {
		return
	}
	transferLegCounter.WithLabelValues(leg, result).Inc()
}

func IncrementPeerTransfer(state string) {
	if peerTransferCounter == nil {
		return
	}
	peerTransferCounter.WithLabelValues(state).Inc()
}

func IncrementRollbackFailure() {
	if rollbackFailureCounter == nil {
		return
	}
	rollbackFailureCounter.Inc()
}

func IncrementLedgerImbalance() {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.Inc()
}

func SetSystemBalance(balance float64) {
	if systemBalanceGauge == nil {
		return
	}
	systemBalanceGauge.Set(balance)
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func IncrementEconomyResult(path, result string) {
	if economyResultCounter == nil {
		return
	}
	economyResultCounter.WithLabelValues(path, result).Inc()
}

// TrackInFlight counts a request as in flight until the returned func runs.
func TrackInFlight() func() {
	if inFlightGauge == nil {
		return func() {}
	}
	inFlightGauge.Inc()
	return inFlightGauge.Dec
}
