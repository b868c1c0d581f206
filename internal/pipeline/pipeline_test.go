package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xfactor-labs/tradeforge/internal/broker"
	"github.com/xfactor-labs/tradeforge/internal/clock"
	"github.com/xfactor-labs/tradeforge/internal/compliance"
	"github.com/xfactor-labs/tradeforge/internal/datasource"
	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/optimizer"
	"github.com/xfactor-labs/tradeforge/internal/risk"
	"github.com/xfactor-labs/tradeforge/internal/telemetry"
)

type fakeBroker struct {
	name      string
	failQuote bool
	lastOrder broker.OrderRequest
	fillCh    chan broker.Fill
}

func newFakeBroker(name string) *fakeBroker { return &fakeBroker{name: name, fillCh: make(chan broker.Fill, 4)} }

func (b *fakeBroker) Name() string                                            { return b.name }
func (b *fakeBroker) Connect(ctx context.Context) error                       { return nil }
func (b *fakeBroker) Disconnect(ctx context.Context) error                    { return nil }
func (b *fakeBroker) HealthCheck(ctx context.Context) error                   { return nil }
func (b *fakeBroker) GetAccounts(ctx context.Context) ([]broker.Account, error) { return nil, nil }
func (b *fakeBroker) GetPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	return nil, nil
}
func (b *fakeBroker) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (b *fakeBroker) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return domain.Order{}, nil
}
func (b *fakeBroker) GetOpenOrders(ctx context.Context, accountID string) ([]domain.Order, error) {
	return nil, nil
}
func (b *fakeBroker) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	return nil, broker.ErrUnsupported
}
func (b *fakeBroker) FillStream() <-chan broker.Fill { return b.fillCh }

func (b *fakeBroker) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if b.failQuote {
		return domain.Quote{}, errors.New("no quote")
	}
	return domain.Quote{Symbol: symbol, Last: 100}, nil
}

func (b *fakeBroker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (domain.Order, error) {
	b.lastOrder = req
	return domain.Order{
		OrderID: "order-1", ClientOrderID: req.ClientOrderID, Symbol: req.Symbol,
		Side: req.Side, OrderType: req.OrderType, Quantity: req.Quantity,
		Status: domain.OrderSubmitted, BrokerName: b.name, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}, nil
}

type fakeSource struct{ name string }

func (f *fakeSource) Name() string                         { return f.name }
func (f *fakeSource) Connect(ctx context.Context) error     { return nil }
func (f *fakeSource) Disconnect(ctx context.Context) error  { return nil }
func (f *fakeSource) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeSource) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	return domain.Quote{Symbol: symbol, Last: 100}, nil
}
func (f *fakeSource) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	return nil, nil
}

func testHarness(t *testing.T) (*Pipeline, *fakeBroker, domain.AccountScope) {
	t.Helper()
	return testHarnessWithLimits(t, 100)
}

func testHarnessWithLimits(t *testing.T, maxOrdersPerDay int) (*Pipeline, *fakeBroker, domain.AccountScope) {
	t.Helper()
	brokers := broker.NewRegistry()
	fb := newFakeBroker("paper")
	brokers.Register("paper", func(config map[string]any) (broker.Broker, error) { return fb, nil })
	require.NoError(t, brokers.Connect(context.Background(), "paper", nil))

	sources := datasource.NewRegistry()
	fs := &fakeSource{name: "alpaca"}
	sources.Register("alpaca", func(config map[string]any) (datasource.DataSource, error) { return fs, nil })
	require.NoError(t, sources.Connect(context.Background(), "alpaca", nil))

	clockSvc := clock.NewService(clock.FixedClock{At: time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)}, clock.USEquityCalendar{})
	comp := compliance.NewManager(clockSvc)
	scope := domain.AccountScope{Broker: "paper", AccountID: "acct-1", AccountType: domain.AccountPaper}

	riskMgr := risk.NewManager(risk.DefaultConfig())
	riskMgr.SetPortfolioValue(1000000)

	sink := telemetry.NewSink()
	optMgr := optimizer.NewManager(sink)
	p := New(brokers, sources, comp, riskMgr, nil, optMgr, clockSvc, maxOrdersPerDay, sink)
	return p, fb, scope
}

func TestSubmitHappyPathDispatchesToBroker(t *testing.T) {
	p, fb, scope := testHarness(t)
	req := Request{BotID: "bot-1", Scope: scope, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, OrderType: domain.OrderMarket}

	out, err := p.Submit(context.Background(), req)
	require.NoError(t, err)
	require.False(t, out.Rejected, "expected order to be accepted, got rejection reason %q", out.Reason)
	require.Equal(t, "AAPL", fb.lastOrder.Symbol, "expected broker to receive the order")
}

func TestSubmitThrottlesOnceDailyOrderLimitExceeded(t *testing.T) {
	p, _, scope := testHarnessWithLimits(t, 1)
	req := Request{BotID: "bot-1", Scope: scope, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, OrderType: domain.OrderMarket}

	_, err := p.Submit(context.Background(), req)
	require.NoError(t, err)

	out, err := p.Submit(context.Background(), req)
	require.NoError(t, err)
	require.True(t, out.Rejected)
	require.Equal(t, "throttle", out.Reason)
}

func TestThrottleCounterResetsOnBusinessDayRollover(t *testing.T) {
	p, _, _ := testHarnessWithLimits(t, 1)
	require.False(t, p.throttled(), "first order of the day should pass")
	require.True(t, p.throttled(), "second order of the same day should be throttled")

	p.Clock = clock.NewService(clock.FixedClock{At: time.Date(2024, 6, 13, 15, 0, 0, 0, time.UTC)}, clock.USEquityCalendar{})
	require.False(t, p.throttled(), "first order of the next business day should pass again")
}

func TestRecordFillFeedsOptimizerOnClosingSell(t *testing.T) {
	p, fb, scope := testHarness(t)
	optMgr := optimizer.NewManager(nil)
	p.Optimizer = optMgr

	buy := Request{BotID: "bot-1", Scope: scope, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, OrderType: domain.OrderMarket}
	out, err := p.Submit(context.Background(), buy)
	require.NoError(t, err)
	require.False(t, out.Rejected)

	p.OnFill(scope, "bot-1", broker.Fill{OrderID: out.Order.OrderID, Status: domain.OrderFilled, FilledQty: 10, AvgPrice: 100, Timestamp: time.Now()})

	sellReq := Request{BotID: "bot-1", Scope: scope, Symbol: "AAPL", Side: domain.SideSell, Quantity: 10, OrderType: domain.OrderMarket, IsClosing: true}
	outSell, err := p.Submit(context.Background(), sellReq)
	require.NoError(t, err)
	require.False(t, outSell.Rejected)

	fb.lastOrder = broker.OrderRequest{}
	p.OnFill(scope, "bot-1", broker.Fill{OrderID: outSell.Order.OrderID, Status: domain.OrderFilled, FilledQty: 10, AvgPrice: 120, Timestamp: time.Now()})

	opt := optMgr.For("bot-1", domain.ModeModerate)
	_, applied := opt.Evaluate(domain.BotConfig{})
	require.False(t, applied, "a single trade result is far below min_trades_to_evaluate, but the fill must have been recorded without panicking")
}

func TestSubmitRejectsRatherThanFabricatingPriceOnQuoteFailure(t *testing.T) {
	p, fb, scope := testHarness(t)
	fb.failQuote = true
	p.DataSources = datasource.NewRegistry() // no sources registered, forces quote failure path

	req := Request{BotID: "bot-1", Scope: scope, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, OrderType: domain.OrderMarket}
	out, err := p.Submit(context.Background(), req)
	require.NoError(t, err)
	require.True(t, out.Rejected)
	require.Equal(t, "quote_unavailable", out.Reason)
	require.Empty(t, fb.lastOrder.Symbol, "broker must never receive an order when no price could be resolved")
}

func TestOnFillDropsRegressiveTransition(t *testing.T) {
	p, _, scope := testHarness(t)
	req := Request{BotID: "bot-1", Scope: scope, Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, OrderType: domain.OrderMarket}
	out, err := p.Submit(context.Background(), req)
	require.NoError(t, err)

	p.OnFill(scope, "bot-1", broker.Fill{OrderID: out.Order.OrderID, Status: domain.OrderFilled, FilledQty: 10, AvgPrice: 100, Timestamp: time.Now()})
	filled, ok := p.Order(out.Order.OrderID)
	require.True(t, ok)
	require.Equal(t, domain.OrderFilled, filled.Status)

	// A late, out-of-order "submitted" status must not regress the terminal fill.
	p.OnFill(scope, "bot-1", broker.Fill{OrderID: out.Order.OrderID, Status: domain.OrderSubmitted, Timestamp: time.Now()})
	after, _ := p.Order(out.Order.OrderID)
	require.Equal(t, domain.OrderFilled, after.Status, "expected regressive fill to be dropped")
}
