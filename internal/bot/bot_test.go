package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/seasonal"
)

type fixedStrategy struct {
	name string
	sig  domain.Signal
	err  error
}

func (f fixedStrategy) Name() string { return f.name }
func (f fixedStrategy) Analyze(ctx context.Context, symbol string, bars []domain.Bar, season seasonal.Context) (domain.Signal, error) {
	return f.sig, f.err
}

func newTestBotWithStrategies(strats map[string]Strategy) *Bot {
	scope := domain.AccountScope{Broker: "paper", AccountID: "acct", AccountType: domain.AccountPaper}
	return New("bot-1", scope, domain.BotConfig{
		Symbols:         []string{"AAPL"},
		Strategies:      []string{"a", "b"},
		StrategyWeights: map[string]float64{"a": 2, "b": 1},
	}, nil, nil, nil, nil, strats)
}

func TestCombinedSignalWeightsStrongerStrategyHigher(t *testing.T) {
	strats := map[string]Strategy{
		"a": fixedStrategy{name: "a", sig: domain.Signal{Kind: domain.StrongBuy, Strength: 1, Confidence: 1, StrategyName: "a"}},
		"b": fixedStrategy{name: "b", sig: domain.Signal{Kind: domain.Sell, Strength: 1, Confidence: 1, StrategyName: "b"}},
	}
	b := newTestBotWithStrategies(strats)
	cfg := domain.BotConfig{Strategies: []string{"a", "b"}, StrategyWeights: map[string]float64{"a": 2, "b": 1}}

	sig, ok := b.combinedSignal(context.Background(), cfg, "AAPL", []domain.Bar{{Symbol: "AAPL", Close: 100}}, seasonal.Context{})
	require.True(t, ok, "expected a combined signal")
	// weighted score: (2*1*1*2 + -1*1*1*1) / (2+1) = 1.0 -> buy, not strong_buy or sell
	require.Equal(t, domain.Buy, sig.Kind, "expected weighted vote to favor the higher-weighted strategy's direction")
}

func TestCombinedSignalSkipsErroringStrategy(t *testing.T) {
	strats := map[string]Strategy{
		"a": fixedStrategy{name: "a", err: errors.New("boom")},
		"b": fixedStrategy{name: "b", sig: domain.Signal{Kind: domain.Buy, Strength: 1, Confidence: 1, StrategyName: "b"}},
	}
	b := newTestBotWithStrategies(strats)
	cfg := domain.BotConfig{Strategies: []string{"a", "b"}, StrategyWeights: map[string]float64{"a": 2, "b": 1}}

	sig, ok := b.combinedSignal(context.Background(), cfg, "AAPL", []domain.Bar{{Symbol: "AAPL", Close: 100}}, seasonal.Context{})
	require.True(t, ok, "expected the surviving strategy's signal to combine even though the other errored")
	require.Equal(t, domain.Buy, sig.Kind)
}

func TestCombinedSignalReturnsFalseWhenEveryStrategyFails(t *testing.T) {
	strats := map[string]Strategy{
		"a": fixedStrategy{name: "a", err: errors.New("boom")},
	}
	b := newTestBotWithStrategies(strats)
	cfg := domain.BotConfig{Strategies: []string{"a"}, StrategyWeights: map[string]float64{"a": 1}}

	_, ok := b.combinedSignal(context.Background(), cfg, "AAPL", []domain.Bar{{Symbol: "AAPL", Close: 100}}, seasonal.Context{})
	require.False(t, ok, "expected no signal when every strategy errors")
}

func TestCycleEscalatesToErrorStateAfterThreeConsecutiveFailures(t *testing.T) {
	scope := domain.AccountScope{Broker: "paper", AccountID: "acct", AccountType: domain.AccountPaper}
	failingGetBars := func(ctx context.Context, symbol, timeframe, source string) ([]domain.Bar, error) {
		return nil, errors.New("data source down")
	}
	b := New("bot-1", scope, domain.BotConfig{Symbols: []string{"AAPL"}}, nil, nil, nil, failingGetBars, nil)

	for i := 0; i < maxConsecutiveErrors; i++ {
		b.cycle(context.Background())
	}

	status := b.GetStatus()
	require.Equal(t, domain.StatusError, status.State, "expected StatusError after %d consecutive failures", maxConsecutiveErrors)
	require.GreaterOrEqual(t, status.ErrorCount, maxConsecutiveErrors)
}

func TestCycleResetsErrorCountOnSuccess(t *testing.T) {
	scope := domain.AccountScope{Broker: "paper", AccountID: "acct", AccountType: domain.AccountPaper}
	okGetBars := func(ctx context.Context, symbol, timeframe, source string) ([]domain.Bar, error) {
		return nil, nil // empty bars short-circuits the rest of cycleOnce without error
	}
	b := New("bot-1", scope, domain.BotConfig{Symbols: []string{"AAPL"}}, nil, nil, nil, okGetBars, nil)
	b.errCount = 2

	b.cycle(context.Background())

	status := b.GetStatus()
	require.Zero(t, status.ErrorCount, "expected error count reset to 0 after a successful cycle")
	require.NotEqual(t, domain.StatusError, status.State, "a successful cycle must not leave the bot in StatusError")
}
