package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xfactor-labs/tradeforge/internal/domain"
)

func TestTradeResultsRingIsBoundedAtCapacity(t *testing.T) {
	o := NewBotOptimizer("bot-1", domain.ModeAggressive, nil)
	for i := 0; i < tradeResultsCap+50; i++ {
		o.RecordTrade(domain.TradeResult{Symbol: "AAPL", PnL: 1, Win: true, Timestamp: time.Now()})
	}
	require.Len(t, o.tradeResults.items, tradeResultsCap)
	require.Len(t, o.pnlHistory.items, tradeResultsCap+50,
		"pnl_history cap (1000) exceeds trade_results cap (500), so after 550 pushes it has not yet hit its own ceiling")
}

func TestPnlHistoryRingIsBoundedAtCapacity(t *testing.T) {
	o := NewBotOptimizer("bot-1", domain.ModeAggressive, nil)
	for i := 0; i < pnlHistoryCap+100; i++ {
		o.RecordTrade(domain.TradeResult{PnL: 1, Win: true})
	}
	require.Len(t, o.pnlHistory.items, pnlHistoryCap)
	// trade_results caps out far earlier, at its own lower ceiling.
	require.Len(t, o.tradeResults.items, tradeResultsCap)
}

// lowWinRate produces 7 losses of -5 then 3 wins of +5: win_rate 0.3,
// total_pnl -20, max_drawdown 35, profit_factor ~0.43.
func lowWinRate() []domain.TradeResult {
	results := make([]domain.TradeResult, 0, 10)
	for i := 0; i < 7; i++ {
		results = append(results, domain.TradeResult{PnL: -5, Win: false})
	}
	for i := 0; i < 3; i++ {
		results = append(results, domain.TradeResult{PnL: 5, Win: true})
	}
	return results
}

// excessDrawdown produces 5 wins of +10 then 5 losses of -40: win_rate
// 0.5 (above the win-rate floor), but a 200-unit peak-to-trough swing.
func excessDrawdown() []domain.TradeResult {
	results := make([]domain.TradeResult, 0, 10)
	for i := 0; i < 5; i++ {
		results = append(results, domain.TradeResult{PnL: 10, Win: true})
	}
	for i := 0; i < 5; i++ {
		results = append(results, domain.TradeResult{PnL: -40, Win: false})
	}
	return results
}

func TestEvaluateRaisesConfidenceThresholdsOnLowWinRate(t *testing.T) {
	o := NewBotOptimizer("bot-1", domain.ModeAggressive, nil)
	for _, r := range lowWinRate() {
		o.RecordTrade(r)
	}

	cfg := domain.BotConfig{
		MinConfidence: 0.5, SignalStrengthThreshold: 0.5,
		TakeProfitPct: 0.05, PositionSizePct: 0.1, StopLossPct: 0.02,
	}
	adjusted, applied := o.Evaluate(cfg)
	require.True(t, applied, "expected an adjustment on a low win-rate trade sequence")
	require.Greater(t, adjusted.MinConfidence, cfg.MinConfidence, "expected min_confidence to rise")
	require.Greater(t, adjusted.SignalStrengthThreshold, cfg.SignalStrengthThreshold, "expected signal_strength_threshold to rise")
	require.Equal(t, cfg.TakeProfitPct, adjusted.TakeProfitPct, "expected the per-cycle cap to block a third rule from also firing")
}

func TestEvaluateCutsPositionSizeAndTightensStopOnExcessDrawdown(t *testing.T) {
	o := NewBotOptimizer("bot-1", domain.ModeAggressive, nil)
	for _, r := range excessDrawdown() {
		o.RecordTrade(r)
	}

	cfg := domain.BotConfig{PositionSizePct: 0.1, StopLossPct: 0.02, TakeProfitPct: 0.05}
	adjusted, applied := o.Evaluate(cfg)
	require.True(t, applied, "expected an adjustment once max_drawdown exceeds the configured limit")
	require.Less(t, adjusted.PositionSizePct, cfg.PositionSizePct, "expected position size to shrink")
	require.Less(t, adjusted.StopLossPct, cfg.StopLossPct, "expected stop loss to tighten")
	require.Equal(t, cfg.TakeProfitPct, adjusted.TakeProfitPct, "expected the per-cycle cap to block a third rule from also firing")
}

func TestEvaluateScalesPositionSizeOnImprovingTrendAboveTargetWinRate(t *testing.T) {
	o := NewBotOptimizer("bot-1", domain.ModeAggressive, nil)
	o.metricsHistory.push(domain.PerformanceMetrics{TotalPnL: 10})
	o.metricsHistory.push(domain.PerformanceMetrics{TotalPnL: 20})
	for i := 0; i < 10; i++ {
		o.RecordTrade(domain.TradeResult{PnL: 5, Win: true})
	}

	cfg := domain.BotConfig{PositionSizePct: 0.1}
	adjusted, applied := o.Evaluate(cfg)
	require.True(t, applied, "expected an adjustment on an improving trend with win rate above target")
	require.Greater(t, adjusted.PositionSizePct, cfg.PositionSizePct, "expected position size to scale up")
}

func TestEvaluateRevertsToBestParamsOnDecline(t *testing.T) {
	o := NewBotOptimizer("bot-1", domain.ModeAggressive, nil)
	best := domain.BotConfig{PositionSizePct: 0.12, StopLossPct: 0.03}
	o.bestParams = &best
	o.bestPerformance = domain.PerformanceMetrics{TotalPnL: 120}
	o.metricsHistory.push(domain.PerformanceMetrics{TotalPnL: 120})
	o.metricsHistory.push(domain.PerformanceMetrics{TotalPnL: 80})

	// Alternating +10/-6 ten times: win_rate 0.5, profit_factor ~1.67,
	// max_drawdown 6 — none of the performance-driven rules should fire,
	// leaving the decline-triggered revert as the only active branch.
	for i := 0; i < 5; i++ {
		o.RecordTrade(domain.TradeResult{PnL: 10, Win: true})
		o.RecordTrade(domain.TradeResult{PnL: -6, Win: false})
	}

	cfg := domain.BotConfig{PositionSizePct: 0.08, StopLossPct: 0.05}
	adjusted, applied := o.Evaluate(cfg)
	require.True(t, applied, "expected the revert-to-best branch to apply on a declining trend")
	require.Equal(t, best.PositionSizePct, adjusted.PositionSizePct)
	require.Equal(t, best.StopLossPct, adjusted.StopLossPct)
}

func TestEvaluateEnforcesDailyAdjustmentLimit(t *testing.T) {
	o := NewBotOptimizer("bot-1", domain.ModeAggressive, nil) // daily limit 10
	for _, r := range lowWinRate() {
		o.RecordTrade(r)
	}

	cfg := domain.BotConfig{MinConfidence: 0.5, SignalStrengthThreshold: 0.5}
	for i := 0; i < 10; i++ {
		o.lastAdjustment = time.Time{}
		_, applied := o.Evaluate(cfg)
		require.Truef(t, applied, "expected adjustment %d/10 to apply", i+1)
	}

	o.lastAdjustment = time.Time{}
	_, applied := o.Evaluate(cfg)
	require.False(t, applied, "expected the 11th evaluation to be blocked by the daily adjustment limit")
}

func TestEvaluateSkipsBelowMinTradesToEvaluate(t *testing.T) {
	o := NewBotOptimizer("bot-1", domain.ModeConservative, nil) // min trades 20
	for _, r := range lowWinRate() {
		o.RecordTrade(r)
	}

	_, applied := o.Evaluate(domain.BotConfig{PositionSizePct: 0.10})
	require.False(t, applied, "expected no adjustment below the preset's min-trades-to-evaluate threshold")
}

func TestEvaluateRespectsCooldown(t *testing.T) {
	o := NewBotOptimizer("bot-1", domain.ModeAggressive, nil)
	for _, r := range lowWinRate() {
		o.RecordTrade(r)
	}

	cfg := domain.BotConfig{MinConfidence: 0.5, SignalStrengthThreshold: 0.5}
	_, applied := o.Evaluate(cfg)
	require.True(t, applied, "expected first evaluation to apply an adjustment")

	_, appliedAgain := o.Evaluate(cfg)
	require.False(t, appliedAgain, "expected the immediately following evaluation to be suppressed by the cooldown")
}

func TestManagerForReturnsSameOptimizerForRepeatedBotID(t *testing.T) {
	m := NewManager(nil)
	a := m.For("bot-1", domain.ModeModerate)
	b := m.For("bot-1", domain.ModeModerate)
	require.Same(t, a, b, "expected For to return the same optimizer instance for the same bot id")

	m.Remove("bot-1")
	c := m.For("bot-1", domain.ModeModerate)
	require.NotSame(t, a, c, "expected a fresh optimizer instance after Remove")
}
