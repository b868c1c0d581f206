package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xfactor-labs/tradeforge/internal/clock"
	"github.com/xfactor-labs/tradeforge/internal/domain"
)

func testClock() *clock.Service {
	// 2024-06-12 is a Wednesday, a plain business day.
	at := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	return clock.NewService(clock.FixedClock{At: at}, clock.USEquityCalendar{})
}

func TestPDTStopsTradingOnFourthDayTrade(t *testing.T) {
	c := testClock()
	m := NewManager(c)
	scope := domain.AccountScope{Broker: "paper", AccountID: "acct-1", AccountType: domain.AccountMargin}
	m.UpdateAccount(scope, 10000, 20000, 40000, false)

	now := c.Now()
	for i := 0; i < 4; i++ {
		_, err := m.RecordTrade(scope, "AAPL", domain.SideBuy, 10, 100, now)
		require.NoErrorf(t, err, "buy %d", i)
		_, err = m.RecordTrade(scope, "AAPL", domain.SideSell, 10, 101, now)
		require.NoErrorf(t, err, "sell %d", i)
	}

	result, err := m.CheckOrder(scope, "AAPL", domain.SideBuy, 10, 100, false)
	require.NoError(t, err)
	require.False(t, result.Allowed, "expected trading to be blocked after 4 day trades flip tradingStopped")
	require.Equal(t, domain.ActionBlock, result.Action)
}

func TestGoodFaithConfirmOnUnsettledSell(t *testing.T) {
	c := testClock()
	m := NewManager(c)
	scope := domain.AccountScope{Broker: "paper", AccountID: "acct-2", AccountType: domain.AccountCash}
	m.UpdateAccount(scope, 5000, 5000, 0, false)

	now := c.Now()
	_, err := m.RecordTrade(scope, "MSFT", domain.SideBuy, 10, 100, now)
	require.NoError(t, err)

	result, err := m.CheckOrder(scope, "MSFT", domain.SideSell, 10, 105, false)
	require.NoError(t, err)
	require.Equal(t, domain.ActionConfirm, result.Action, "expected confirm action for good-faith risk")
	require.True(t, result.RequiresConfirmation)
}

func TestPaperAccountsBypassCompliance(t *testing.T) {
	c := testClock()
	m := NewManager(c)
	scope := domain.AccountScope{Broker: "paper", AccountID: "acct-3", AccountType: domain.AccountPaper}

	result, err := m.CheckOrder(scope, "AAPL", domain.SideBuy, 1000000, 100, false)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Equal(t, domain.ActionAllow, result.Action, "paper accounts must bypass compliance gating entirely")
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := testClock()
	m := NewManager(c)
	scope := domain.AccountScope{Broker: "paper", AccountID: "acct-4", AccountType: domain.AccountMargin}
	m.UpdateAccount(scope, 12345, 6789, 1111, true)

	now := c.Now()
	_, err := m.RecordTrade(scope, "TSLA", domain.SideBuy, 5, 200, now)
	require.NoError(t, err)

	snap := m.Snapshot(scope)
	require.Equal(t, 12345.0, snap.Equity)
	require.Equal(t, 6789.0, snap.BuyingPower)

	m2 := NewManager(c)
	require.NoError(t, m2.Restore(snap))

	snap2 := m2.Snapshot(scope)
	require.Equal(t, snap.Equity, snap2.Equity)
	require.Equal(t, snap.IsPatternDayTrader, snap2.IsPatternDayTrader)
	require.Equal(t, len(snap.TradeHistory["TSLA"]), len(snap2.TradeHistory["TSLA"]))
}
