// Package risk implements the portfolio-scoped Risk Manager: a single
// instance per process, stateless per-call aside from the configured
// caps and the kill switch / pause flags it owns.
package risk

import (
	"sync"

	"github.com/xfactor-labs/tradeforge/internal/domain"
)

// DecisionKind is the outcome of a risk check.
type DecisionKind string

const (
	DecisionApproved DecisionKind = "approved"
	DecisionReduced  DecisionKind = "reduced"
	DecisionRejected DecisionKind = "rejected"
)

type Decision struct {
	Kind        DecisionKind
	Quantity    float64 // possibly reduced
	Reason      string
}

// Config holds the process-wide caps the manager enforces.
type Config struct {
	MaxPositionSize     float64
	MaxPortfolioPct     float64 // 0..100
	DailyLossLimitPct   float64
	WeeklyLossLimitPct  float64
	MaxDrawdownPct      float64
	VIXPauseThreshold   float64 // default 35
	VIXExtremeThreshold float64 // default 50
}

func DefaultConfig() Config {
	return Config{
		MaxPositionSize:     100000,
		MaxPortfolioPct:     10,
		DailyLossLimitPct:   3,
		WeeklyLossLimitPct:  8,
		MaxDrawdownPct:      10,
		VIXPauseThreshold:   35,
		VIXExtremeThreshold: 50,
	}
}

// Manager is the single process-scoped risk gate.
type Manager struct {
	cfg Config

	mu            sync.Mutex
	portfolioValue float64
	dailyPnL       float64
	weeklyPnL      float64
	maxDrawdown    float64
	vix            float64
	paused         bool
	killed         bool
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

func (m *Manager) SetPortfolioValue(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolioValue = v
}

func (m *Manager) SetVIX(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vix = v
}

// CheckOrder implements §4.5's ordered gate.
func (m *Manager) CheckOrder(symbol string, qty, price float64, side domain.OrderSide) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.killed {
		return Decision{Kind: DecisionRejected, Reason: "kill switch"}
	}
	if m.paused {
		return Decision{Kind: DecisionRejected, Reason: "trading paused"}
	}
	if m.vix >= m.cfg.VIXExtremeThreshold {
		return Decision{Kind: DecisionRejected, Reason: "VIX extreme"}
	}

	reduced := false
	if m.vix >= m.cfg.VIXPauseThreshold {
		qty = qty / 2
		reduced = true
	}

	notional := qty * price
	cap := m.cfg.MaxPositionSize
	pctCap := m.cfg.MaxPortfolioPct / 100 * m.portfolioValue
	if pctCap < cap {
		cap = pctCap
	}
	if notional > cap && price > 0 {
		qty = cap / price
		reduced = true
	}

	if reduced {
		return Decision{Kind: DecisionReduced, Quantity: qty, Reason: "position size capped"}
	}
	return Decision{Kind: DecisionApproved, Quantity: qty}
}

// UpdatePnL applies the §4.5 pause/kill-switch triggers. The kill switch
// is sticky: once set, only Reset can clear it.
func (m *Manager) UpdatePnL(daily, weekly, drawdown float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL = daily
	m.weeklyPnL = weekly
	m.maxDrawdown = drawdown

	if absf(daily) >= m.cfg.DailyLossLimitPct/100*m.portfolioValue {
		m.paused = true
	}
	if drawdown >= m.cfg.MaxDrawdownPct {
		m.killed = true
	}
}

// ResumeTrading clears the pause flag only. It never clears the kill
// switch — kill-switch stickiness is an invariant the engine tests.
func (m *Manager) ResumeTrading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.killed {
		return false
	}
	m.paused = false
	return true
}

// Reset is the only operation that clears the kill switch, modeling an
// explicit operator action rather than an automatic one.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killed = false
	m.paused = false
}

func (m *Manager) Killed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.killed
}

func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
