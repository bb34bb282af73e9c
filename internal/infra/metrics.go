// Prometheus metrics for observability.
//
// Primary series updated by the engine during operation:
//   - oracle_signals_total{pair,outcome} – velocity signals by pipeline outcome
//     (triggered|debounced|trend_blocked|risk_blocked|advisor_veto|rejected|opened)
//   - oracle_trades_total{result}        – closed trades by result (win|loss)
//   - oracle_open_positions              – current open position count (gauge)
//   - oracle_virtual_balance_usd         – paper balance snapshot (gauge)
//   - oracle_feed_connected              – 1 while the price feed is up (gauge)
//   - oracle_webhook_failures_total      – best-effort deliveries that failed
//
// Registered in init() and served at /metrics by the ops server.
package infra

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_signals_total",
			Help: "Velocity signals by pipeline outcome",
		},
		[]string{"pair", "outcome"},
	)

	mtxTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_trades_total",
			Help: "Closed trades by result",
		},
		[]string{"result"},
	)

	mtxOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_open_positions",
			Help: "Currently open positions",
		},
	)

	mtxBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_virtual_balance_usd",
			Help: "Virtual account balance in USD (paper mode)",
		},
	)

	mtxFeedConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_feed_connected",
			Help: "1 while the price feed websocket is connected",
		},
	)

	mtxWebhookFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_webhook_failures_total",
			Help: "Outbound webhook deliveries that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxSignals, mtxTrades, mtxOpenPositions, mtxBalance, mtxFeedConnected, mtxWebhookFailures)
}

// ObserveSignal counts a pipeline outcome for a pair.
func ObserveSignal(pair, outcome string) { mtxSignals.WithLabelValues(pair, outcome).Inc() }

// ObserveTrade counts a closed trade by result.
func ObserveTrade(result string) { mtxTrades.WithLabelValues(result).Inc() }

// SetOpenPositions updates the open-position gauge.
func SetOpenPositions(n int) { mtxOpenPositions.Set(float64(n)) }

// SetBalance updates the virtual balance gauge.
func SetBalance(usd float64) { mtxBalance.Set(usd) }

// SetFeedConnected flips the feed connectivity gauge.
func SetFeedConnected(up bool) {
	if up {
		mtxFeedConnected.Set(1)
	} else {
		mtxFeedConnected.Set(0)
	}
}

// ObserveWebhookFailure counts a failed best-effort delivery.
func ObserveWebhookFailure() { mtxWebhookFailures.Inc() }
