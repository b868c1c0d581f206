package risk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xfactor-labs/tradeforge/internal/domain"
)

func TestKillSwitchIsSticky(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.SetPortfolioValue(100000)

	m.UpdatePnL(0, 0, 15) // exceeds MaxDrawdownPct (10)
	require.True(t, m.Killed(), "expected kill switch to trip on drawdown breach")

	ok := m.ResumeTrading()
	require.False(t, ok, "ResumeTrading must not clear a tripped kill switch")
	require.True(t, m.Killed(), "kill switch must remain set after ResumeTrading")

	decision := m.CheckOrder("AAPL", 10, 100, domain.SideBuy)
	require.Equal(t, DecisionRejected, decision.Kind, "expected rejection while killed")

	m.Reset()
	require.False(t, m.Killed(), "Reset must clear the kill switch")
}

func TestResumeTradingClearsPauseOnly(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.SetPortfolioValue(100000)
	m.UpdatePnL(4000, 0, 0) // 4% daily loss, exceeds 3% DailyLossLimitPct

	require.True(t, m.Paused(), "expected pause on daily loss breach")
	require.False(t, m.Killed(), "daily loss breach should pause, not kill")

	ok := m.ResumeTrading()
	require.True(t, ok, "ResumeTrading should succeed when not killed")
	require.False(t, m.Paused(), "expected pause cleared after ResumeTrading")
}

func TestPositionSizeCapReducesQuantity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPositionSize = 1000
	m := NewManager(cfg)
	m.SetPortfolioValue(1000000)

	decision := m.CheckOrder("AAPL", 100, 100, domain.SideBuy) // notional 10000 > cap 1000
	require.Equal(t, DecisionReduced, decision.Kind)
	require.LessOrEqualf(t, decision.Quantity*100, cfg.MaxPositionSize+1e-9,
		"reduced notional %v exceeds cap %v", decision.Quantity*100, cfg.MaxPositionSize)
}

func TestVIXExtremeRejectsOutright(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.SetPortfolioValue(100000)
	m.SetVIX(55)

	decision := m.CheckOrder("AAPL", 10, 100, domain.SideBuy)
	require.Equal(t, DecisionRejected, decision.Kind, "expected rejection at extreme VIX")
}
