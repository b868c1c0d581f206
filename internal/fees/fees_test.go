package fees

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleComputePrecedencePerShareThenPercentageThenFlat(t *testing.T) {
	perShare := Schedule{PerShare: 0.01, PerShareMin: 1}
	require.Equal(t, 1.0, perShare.compute(10, 100), "expected per-share floor to apply")
	require.Equal(t, 10.0, perShare.compute(1000, 100), "expected per-share rate to apply")

	pct := Schedule{Percentage: 0.001}
	require.Equal(t, 1.0, pct.compute(10, 100), "expected percentage fee of 1")

	flat := Schedule{FlatPerOrder: 5}
	require.Equal(t, 5.0, flat.compute(10, 100))
}

func TestScheduleComputeAddsExchangeFeePassthrough(t *testing.T) {
	sched := Schedule{FlatPerOrder: 1, ExchangeFee: 0.003}
	got := sched.compute(100, 50)
	require.Equal(t, 1+100*0.003, got)
}

func TestTrackerRecordAndTotalForBot(t *testing.T) {
	tr := NewTracker(map[string]Schedule{"binance": {Percentage: 0.001}})
	now := time.Now()

	fee1 := tr.Record("bot-1", "binance", "BTCUSDT", 1, 50000, now)
	fee2 := tr.Record("bot-2", "binance", "BTCUSDT", 1, 50000, now)
	require.Equal(t, 50.0, fee1)

	total := tr.TotalForBot("bot-1", now.Add(-time.Hour), now.Add(time.Hour))
	require.Equal(t, fee1, total, "expected bot-1 total to exclude bot-2's fee")

	all := tr.TotalAll(now.Add(-time.Hour), now.Add(time.Hour))
	require.Equal(t, fee1+fee2, all)
}

func TestTrackerTotalExcludesEntriesOutsideWindow(t *testing.T) {
	tr := NewTracker(DefaultSchedules())
	past := time.Now().Add(-48 * time.Hour)
	tr.Record("bot-1", "alpaca", "AAPL", 10, 100, past)

	total := tr.TotalForBot("bot-1", time.Now().Add(-time.Hour), time.Now())
	require.Zero(t, total, "expected 0 for a window excluding the entry")
}

func TestUnknownBrokerFallsBackToDefaultPercentage(t *testing.T) {
	tr := NewTracker(map[string]Schedule{})
	fee := tr.EstimateFee("unknown-broker", 10, 1000)
	require.Equal(t, 10*1000*0.0010, fee)
}
