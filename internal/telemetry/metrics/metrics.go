// Package metrics exposes the engine's ambient Prometheus registry. It
// is the observability counterpart of the telemetry sink: the sink
// carries structured events to subscribers, this package carries
// aggregate counters/gauges to a scrape target. Both are ambient
// infrastructure, wired even though metrics exposition itself is out of
// core scope.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Registry = prometheus.NewRegistry()

	mu sync.RWMutex

	// ============================================
	// Bot lifecycle metrics
	// ============================================

	BotRunning = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tradeforge",
			Subsystem: "bot",
			Name:      "running",
			Help:      "Whether the bot is running (1) or not (0)",
		},
		[]string{"bot_id"},
	)

	BotDailyPnL = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tradeforge",
			Subsystem: "bot",
			Name:      "daily_pnl",
			Help:      "Bot's realized PnL for the current trading day",
		},
		[]string{"bot_id"},
	)

	BotTradesToday = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tradeforge",
			Subsystem: "bot",
			Name:      "trades_today",
			Help:      "Number of trades the bot has made today",
		},
		[]string{"bot_id"},
	)

	BotErrorsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradeforge",
			Subsystem: "bot",
			Name:      "errors_total",
			Help:      "Total consecutive-cycle errors observed by the bot",
		},
		[]string{"bot_id"},
	)

	BotCycleDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tradeforge",
			Subsystem: "bot",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one bot worker cycle",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"bot_id"},
	)

	// ============================================
	// Order pipeline metrics
	// ============================================

	OrdersSubmittedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradeforge",
			Subsystem: "orders",
			Name:      "submitted_total",
			Help:      "Total orders submitted to a broker",
		},
		[]string{"bot_id", "symbol", "side"},
	)

	OrdersRejectedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradeforge",
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Total orders rejected before broker dispatch",
		},
		[]string{"bot_id", "reason"},
	)

	OrdersFilledTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradeforge",
			Subsystem: "orders",
			Name:      "filled_total",
			Help:      "Total orders that reached a filled status",
		},
		[]string{"bot_id", "symbol"},
	)

	// ============================================
	// Compliance metrics
	// ============================================

	ComplianceViolationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradeforge",
			Subsystem: "compliance",
			Name:      "violations_total",
			Help:      "Total compliance violations by kind and action",
		},
		[]string{"kind", "action"},
	)

	// ============================================
	// Optimizer metrics
	// ============================================

	OptimizerAdjustmentsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradeforge",
			Subsystem: "optimizer",
			Name:      "adjustments_total",
			Help:      "Total parameter adjustments applied",
		},
		[]string{"bot_id", "parameter"},
	)

	OptimizerWinRate = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tradeforge",
			Subsystem: "optimizer",
			Name:      "win_rate",
			Help:      "Most recently evaluated win rate for the bot",
		},
		[]string{"bot_id"},
	)

	// ============================================
	// System metrics
	// ============================================

	ActiveBotsCount = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tradeforge",
			Subsystem: "system",
			Name:      "active_bots_count",
			Help:      "Number of bots currently in the Running state",
		},
	)
)

func SetBotRunning(botID string, running bool) {
	val := 0.0
	if running {
		val = 1.0
	}
	BotRunning.WithLabelValues(botID).Set(val)
}

func UpdateBotStats(botID string, dailyPnL float64, tradesToday int) {
	mu.Lock()
	defer mu.Unlock()
	BotDailyPnL.WithLabelValues(botID).Set(dailyPnL)
	BotTradesToday.WithLabelValues(botID).Set(float64(tradesToday))
}

func RecordCycleDuration(botID string, seconds float64) {
	BotCycleDuration.WithLabelValues(botID).Observe(seconds)
}

func RecordOrderSubmitted(botID, symbol, side string) {
	OrdersSubmittedTotal.WithLabelValues(botID, symbol, side).Inc()
}

func RecordOrderRejected(botID, reason string) {
	OrdersRejectedTotal.WithLabelValues(botID, reason).Inc()
}

func RecordOrderFilled(botID, symbol string) {
	OrdersFilledTotal.WithLabelValues(botID, symbol).Inc()
}

func RecordComplianceViolation(kind, action string) {
	ComplianceViolationsTotal.WithLabelValues(kind, action).Inc()
}

func RecordAdjustment(botID, parameter string) {
	OptimizerAdjustmentsTotal.WithLabelValues(botID, parameter).Inc()
}

func SetOptimizerWinRate(botID string, rate float64) {
	OptimizerWinRate.WithLabelValues(botID).Set(rate)
}

// Init registers the standard process/go collectors alongside the
// engine-specific ones above.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}
