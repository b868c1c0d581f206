// Package optimizer implements Component I: a per-bot auto-optimizer
// that watches rolling trade/pnl history and nudges a bot's tunable
// parameters within bounded steps. Three mode presets (conservative,
// moderate, aggressive) govern how often, how much, and how many times
// per day it is allowed to move a parameter.
package optimizer

import (
	"math"
	"sync"
	"time"

	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/telemetry"
	"github.com/xfactor-labs/tradeforge/internal/telemetry/metrics"
)

const (
	tradeResultsCap   = 500
	pnlHistoryCap     = 1000
	metricsHistoryCap = 1000

	// maxAdjustmentsPerCycle bounds how many of the non-reset rules may
	// fire in a single Evaluate call; it is what keeps a single bad
	// evaluation from rewriting half a bot's config at once.
	maxAdjustmentsPerCycle = 2
	// maxResetsPerCycle is the separate, wider allowance for the
	// revert-to-best-known-parameters branch.
	maxResetsPerCycle = 3
)

// Preset is one mode's cooldown/limit/aggressiveness table.
type Preset struct {
	EvaluationCooldown  time.Duration
	MaxAdjustmentPct    float64 // max fractional change per evaluation
	MinTradesToEvaluate int
	DailyLimit          int
}

func presetFor(mode domain.OptimizerMode) Preset {
	switch mode {
	case domain.ModeAggressive:
		return Preset{EvaluationCooldown: 15 * time.Minute, MaxAdjustmentPct: 0.35, MinTradesToEvaluate: 5, DailyLimit: 10}
	case domain.ModeConservative:
		return Preset{EvaluationCooldown: 60 * time.Minute, MaxAdjustmentPct: 0.10, MinTradesToEvaluate: 20, DailyLimit: 3}
	default:
		return Preset{EvaluationCooldown: 30 * time.Minute, MaxAdjustmentPct: 0.20, MinTradesToEvaluate: 10, DailyLimit: 5}
	}
}

// Config holds the evaluation thresholds the five adjustment rules key
// on. Unlike Preset (which is mode-selected and immutable), this is the
// same across modes — modes differ in how often and how far they move a
// parameter, not in what triggers a move.
type Config struct {
	MinWinRate               float64
	MaxDrawdownPct           float64
	MinProfitFactor          float64
	TargetWinRate            float64
	RevertOnWorsePerformance bool
	AnalysisWindowHours      float64
}

func DefaultConfig() Config {
	return Config{
		MinWinRate:               0.45,
		MaxDrawdownPct:           100,
		MinProfitFactor:          1.2,
		TargetWinRate:            0.60,
		RevertOnWorsePerformance: true,
		AnalysisWindowHours:      24,
	}
}

// paramBounds is the closed set of adjustable parameters' {min, max}.
var paramBounds = map[string]struct{ min, max float64 }{
	"stop_loss_pct":             {0.005, 0.20},
	"take_profit_pct":           {0.01, 0.50},
	"position_size_pct":         {0.01, 0.50},
	"rsi_oversold":              {10, 40},
	"rsi_overbought":            {60, 90},
	"ma_fast_period":            {3, 50},
	"ma_slow_period":            {10, 200},
	"momentum_threshold":        {0.001, 0.10},
	"volume_threshold":          {0.5, 5.0},
	"min_confidence":            {0.1, 0.95},
	"signal_strength_threshold": {0.1, 0.95},
}

func clamp(name string, v float64) float64 {
	b, ok := paramBounds[name]
	if !ok {
		return v
	}
	if v < b.min {
		return b.min
	}
	if v > b.max {
		return b.max
	}
	return v
}

// ringBuffer is a fixed-capacity FIFO. Capacity enforcement lives here
// once rather than being re-derived at each call site.
type ringBuffer[T any] struct {
	items []T
	cap   int
}

func newRing[T any](cap int) ringBuffer[T] { return ringBuffer[T]{cap: cap} }

func (r *ringBuffer[T]) push(v T) {
	r.items = append(r.items, v)
	if len(r.items) > r.cap {
		r.items = r.items[len(r.items)-r.cap:]
	}
}

// BotOptimizer is one bot's optimizer state. Guarded by its own mutex
// so the supervisor can evaluate many bots concurrently.
type BotOptimizer struct {
	botID string
	mode  domain.OptimizerMode
	cfg   Config
	sink  *telemetry.Sink

	mu             sync.Mutex
	tradeResults   ringBuffer[domain.TradeResult]
	pnlHistory     ringBuffer[float64]
	metricsHistory ringBuffer[domain.PerformanceMetrics]
	adjustments    []domain.ParameterAdjustment

	baselineParams  *domain.BotConfig
	bestParams      *domain.BotConfig
	bestPerformance domain.PerformanceMetrics

	lastAdjustment   time.Time
	adjustmentsToday int
	lastResetDate    time.Time
}

func NewBotOptimizer(botID string, mode domain.OptimizerMode, sink *telemetry.Sink) *BotOptimizer {
	return &BotOptimizer{
		botID: botID, mode: mode, cfg: DefaultConfig(), sink: sink,
		tradeResults:   newRing[domain.TradeResult](tradeResultsCap),
		pnlHistory:     newRing[float64](pnlHistoryCap),
		metricsHistory: newRing[domain.PerformanceMetrics](metricsHistoryCap),
	}
}

// RecordTrade appends a fill result to the rolling buffers. Called by
// the order pipeline's fill handler.
func (o *BotOptimizer) RecordTrade(result domain.TradeResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tradeResults.push(result)
	o.pnlHistory.push(result.PnL)
}

// windowed returns the results within the analysis window, falling back
// to the full buffer when the window excludes everything (also covers
// test/back-filled data carrying zero-value timestamps).
func windowed(results []domain.TradeResult, hours float64) []domain.TradeResult {
	if hours <= 0 {
		return results
	}
	cutoff := time.Now().Add(-time.Duration(hours * float64(time.Hour)))
	var filtered []domain.TradeResult
	for _, r := range results {
		if r.Timestamp.After(cutoff) {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return results
	}
	return filtered
}

func computeMetrics(results []domain.TradeResult) domain.PerformanceMetrics {
	m := domain.PerformanceMetrics{ComputedAt: time.Now()}
	var grossWin, grossLoss float64
	for _, r := range results {
		m.TotalTrades++
		m.TotalPnL += r.PnL
		if r.Win {
			m.WinningTrades++
			grossWin += r.PnL
		} else {
			m.LosingTrades++
			grossLoss += -r.PnL
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	}
	if m.WinningTrades > 0 {
		m.AvgWin = grossWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = grossLoss / float64(m.LosingTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		m.ProfitFactor = grossWin
	}
	m.MaxDrawdown = maxDrawdown(results)
	return m
}

// maxDrawdown walks the window's cumulative PnL path and returns the
// largest peak-to-trough dollar retracement.
func maxDrawdown(results []domain.TradeResult) float64 {
	var cum, peak, maxDD float64
	for _, r := range results {
		cum += r.PnL
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpeRatio annualizes the pnl_history ring's mean/stdev at a daily
// sampling assumption (sqrt(252) trading days).
func sharpeRatio(pnls []float64) float64 {
	n := len(pnls)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, v := range pnls {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range pnls {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(n-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}

// trendFromHistory classifies the trend as monotone movement of
// total_pnl over the last three metrics snapshots (the two most recent
// prior snapshots plus the one just computed); fewer than three points
// is Neutral.
func trendFromHistory(history []domain.PerformanceMetrics, current domain.PerformanceMetrics) domain.Trend {
	n := len(history)
	var pts []domain.PerformanceMetrics
	if n >= 2 {
		pts = append(pts, history[n-2:]...)
	} else {
		pts = append(pts, history...)
	}
	pts = append(pts, current)
	if len(pts) < 3 {
		return domain.TrendNeutral
	}
	if pts[0].TotalPnL < pts[1].TotalPnL && pts[1].TotalPnL < pts[2].TotalPnL {
		return domain.TrendImproving
	}
	if pts[0].TotalPnL > pts[1].TotalPnL && pts[1].TotalPnL > pts[2].TotalPnL {
		return domain.TrendDeclining
	}
	return domain.TrendNeutral
}

// Evaluate runs the §4.9 evaluation loop: daily reset, daily-limit and
// cooldown checks, metric computation, rule-ordered adjustment
// selection (each capped per cycle), and a revert-to-best branch on a
// declining trend. Returns the updated config and whether anything
// changed.
func (o *BotOptimizer) Evaluate(cfg domain.BotConfig) (domain.BotConfig, bool) {
	preset := presetFor(o.mode)

	o.mu.Lock()
	defer o.mu.Unlock()

	today := dateOnly(time.Now())
	if !o.lastResetDate.Equal(today) {
		o.adjustmentsToday = 0
		o.lastResetDate = today
	}
	if o.adjustmentsToday >= preset.DailyLimit {
		return cfg, false
	}
	if time.Since(o.lastAdjustment) < preset.EvaluationCooldown {
		return cfg, false
	}
	if len(o.tradeResults.items) < preset.MinTradesToEvaluate {
		return cfg, false
	}

	perf := computeMetrics(windowed(o.tradeResults.items, o.cfg.AnalysisWindowHours))
	perf.SharpeRatio = sharpeRatio(o.pnlHistory.items)
	perf.Trend = trendFromHistory(o.metricsHistory.items, perf)
	o.metricsHistory.push(perf)

	if o.baselineParams == nil {
		base := cfg.Clone()
		o.baselineParams = &base
	}
	if o.bestParams == nil || perf.TotalPnL > o.bestPerformance.TotalPnL {
		best := cfg.Clone()
		o.bestParams = &best
		o.bestPerformance = perf
	}

	adjusted := cfg.Clone()
	applied := 0

	adjust := func(name string, oldVal float64, newVal func(float64) float64, kind domain.AdjustmentType, reason string) float64 {
		nv := clamp(name, newVal(oldVal))
		if nv == oldVal {
			return oldVal
		}
		before := perf.WinRate
		o.adjustments = append(o.adjustments, domain.ParameterAdjustment{
			ParameterName: name, OldValue: oldVal, NewValue: nv,
			AdjustmentType: kind, Reason: reason, Timestamp: time.Now(),
			PerformanceBefore: &before,
		})
		metrics.RecordAdjustment(o.botID, name)
		applied++
		return nv
	}

	bound := preset.MaxAdjustmentPct

	if applied < maxAdjustmentsPerCycle && perf.WinRate < o.cfg.MinWinRate {
		adjusted.MinConfidence = adjust("min_confidence", adjusted.MinConfidence,
			func(v float64) float64 { return v * (1 + bound) }, domain.AdjustIncrease, "win rate below target")
		if applied < maxAdjustmentsPerCycle {
			adjusted.SignalStrengthThreshold = adjust("signal_strength_threshold", adjusted.SignalStrengthThreshold,
				func(v float64) float64 { return v * 1.10 }, domain.AdjustIncrease, "win rate below target")
		}
	}
	if applied < maxAdjustmentsPerCycle && perf.MaxDrawdown > o.cfg.MaxDrawdownPct {
		adjusted.PositionSizePct = adjust("position_size_pct", adjusted.PositionSizePct,
			func(v float64) float64 { return v * (1 - bound) }, domain.AdjustDecrease, "drawdown exceeds limit")
		if applied < maxAdjustmentsPerCycle {
			adjusted.StopLossPct = adjust("stop_loss_pct", adjusted.StopLossPct,
				func(v float64) float64 { return v * 0.85 }, domain.AdjustDecrease, "tightening stop on excess drawdown")
		}
	}
	if applied < maxAdjustmentsPerCycle && perf.ProfitFactor > 0 && perf.ProfitFactor < o.cfg.MinProfitFactor {
		adjusted.TakeProfitPct = adjust("take_profit_pct", adjusted.TakeProfitPct,
			func(v float64) float64 { return v * 1.15 }, domain.AdjustIncrease, "profit factor below target")
	}

	resets := 0
	if o.cfg.RevertOnWorsePerformance && perf.Trend == domain.TrendDeclining && o.bestParams != nil &&
		perf.TotalPnL < 0.9*o.bestPerformance.TotalPnL {
		resets = o.revertToBest(&adjusted, *o.bestParams)
	}

	if applied < maxAdjustmentsPerCycle && perf.Trend == domain.TrendImproving && perf.WinRate > o.cfg.TargetWinRate {
		adjusted.PositionSizePct = adjust("position_size_pct", adjusted.PositionSizePct,
			func(v float64) float64 { return v * 1.05 }, domain.AdjustIncrease, "win rate exceeds target on improving trend")
	}

	if applied == 0 && resets == 0 {
		return cfg, false
	}

	o.lastAdjustment = time.Now()
	o.adjustmentsToday++

	if o.sink != nil {
		o.sink.Publish(telemetry.EventParameterAdjustment, map[string]any{
			"bot_id": o.botID, "trend": perf.Trend, "win_rate": perf.WinRate,
		})
	}
	metrics.SetOptimizerWinRate(o.botID, perf.WinRate)

	return adjusted, true
}

// revertToBest resets every adjustable parameter that differs from the
// best-known snapshot, up to maxResetsPerCycle, logging each reset.
func (o *BotOptimizer) revertToBest(adjusted *domain.BotConfig, best domain.BotConfig) int {
	type field struct {
		name     string
		cur, ref *float64
	}
	fields := []field{
		{"stop_loss_pct", &adjusted.StopLossPct, &best.StopLossPct},
		{"take_profit_pct", &adjusted.TakeProfitPct, &best.TakeProfitPct},
		{"position_size_pct", &adjusted.PositionSizePct, &best.PositionSizePct},
		{"rsi_oversold", &adjusted.RSIOversold, &best.RSIOversold},
		{"rsi_overbought", &adjusted.RSIOverbought, &best.RSIOverbought},
		{"ma_fast_period", &adjusted.MAFastPeriod, &best.MAFastPeriod},
		{"ma_slow_period", &adjusted.MASlowPeriod, &best.MASlowPeriod},
		{"momentum_threshold", &adjusted.MomentumThreshold, &best.MomentumThreshold},
		{"volume_threshold", &adjusted.VolumeThreshold, &best.VolumeThreshold},
		{"min_confidence", &adjusted.MinConfidence, &best.MinConfidence},
		{"signal_strength_threshold", &adjusted.SignalStrengthThreshold, &best.SignalStrengthThreshold},
	}
	n := 0
	for _, f := range fields {
		if n >= maxResetsPerCycle {
			break
		}
		if *f.cur == *f.ref {
			continue
		}
		old := *f.cur
		*f.cur = *f.ref
		o.adjustments = append(o.adjustments, domain.ParameterAdjustment{
			ParameterName: f.name, OldValue: old, NewValue: *f.ref,
			AdjustmentType: domain.AdjustReset, Reason: "reverting to best known parameters on declining trend",
			Timestamp: time.Now(),
		})
		metrics.RecordAdjustment(o.botID, f.name)
		n++
	}
	if n < maxResetsPerCycle && adjusted.MaxPositions != best.MaxPositions {
		old := adjusted.MaxPositions
		adjusted.MaxPositions = best.MaxPositions
		o.adjustments = append(o.adjustments, domain.ParameterAdjustment{
			ParameterName: "max_positions", OldValue: float64(old), NewValue: float64(best.MaxPositions),
			AdjustmentType: domain.AdjustReset, Reason: "reverting to best known parameters on declining trend",
			Timestamp: time.Now(),
		})
		metrics.RecordAdjustment(o.botID, "max_positions")
		n++
	}
	return n
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Reset reverts the optimizer's tracked config to its first-observed
// baseline and clears the adjustment/best-performance state. It does
// not touch the rolling trade/pnl/metrics rings.
func (o *BotOptimizer) Reset() domain.BotConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out domain.BotConfig
	if o.baselineParams != nil {
		out = o.baselineParams.Clone()
	}
	o.bestParams = nil
	o.bestPerformance = domain.PerformanceMetrics{}
	o.adjustments = nil
	o.adjustmentsToday = 0
	o.lastAdjustment = time.Time{}
	return out
}

func (o *BotOptimizer) Adjustments() []domain.ParameterAdjustment {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.ParameterAdjustment(nil), o.adjustments...)
}

func (o *BotOptimizer) LatestMetrics() (domain.PerformanceMetrics, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.metricsHistory.items)
	if n == 0 {
		return domain.PerformanceMetrics{}, false
	}
	return o.metricsHistory.items[n-1], true
}

// Manager owns one BotOptimizer per bot.
type Manager struct {
	sink *telemetry.Sink

	mu         sync.RWMutex
	optimizers map[string]*BotOptimizer
}

func NewManager(sink *telemetry.Sink) *Manager {
	return &Manager{sink: sink, optimizers: make(map[string]*BotOptimizer)}
}

func (m *Manager) For(botID string, mode domain.OptimizerMode) *BotOptimizer {
	m.mu.RLock()
	o, ok := m.optimizers[botID]
	m.mu.RUnlock()
	if ok {
		return o
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.optimizers[botID]; ok {
		return o
	}
	o = NewBotOptimizer(botID, mode, m.sink)
	m.optimizers[botID] = o
	return o
}

// RecordTrade appends a fill result to botID's optimizer, lazily
// creating one in Moderate mode if the bot hasn't been registered yet
// (a defensive fallback; in the running engine CreateBot always
// registers the bot's real mode first).
func (m *Manager) RecordTrade(botID string, result domain.TradeResult) {
	m.For(botID, domain.ModeModerate).RecordTrade(result)
}

func (m *Manager) Remove(botID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.optimizers, botID)
}
