// Package bybit adapts github.com/bybit-exchange/bybit.go.api to the
// engine's Broker capability set. Kept intentionally thin per the
// engine's Non-goal on broker SDK internals.
package bybit

import (
	"context"
	"fmt"
	"time"

	bybitapi "github.com/bybit-exchange/bybit.go.api"

	"github.com/xfactor-labs/tradeforge/internal/broker"
	"github.com/xfactor-labs/tradeforge/internal/domain"
)

type Broker struct {
	client *bybitapi.Client
	fillCh chan broker.Fill
}

func New(config map[string]any) (broker.Broker, error) {
	apiKey, _ := config["api_key"].(string)
	apiSecret, _ := config["api_secret"].(string)
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("bybit adapter: api_key/api_secret required")
	}
	client := bybitapi.NewBybitHttpClient(apiKey, apiSecret, func(c *bybitapi.Client) {
		c.BaseURL = bybitapi.MAINNET
	})
	return &Broker{client: client, fillCh: make(chan broker.Fill, 64)}, nil
}

func (b *Broker) Name() string { return "bybit" }

func (b *Broker) Connect(ctx context.Context) error { return nil }

func (b *Broker) Disconnect(ctx context.Context) error { return nil }

func (b *Broker) HealthCheck(ctx context.Context) error {
	_, err := b.client.NewUtaBybitServiceWithParams(map[string]interface{}{}).GetServerTime(ctx)
	return err
}

func (b *Broker) GetAccounts(ctx context.Context) ([]broker.Account, error) {
	return nil, broker.ErrUnsupported
}

func (b *Broker) GetPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	return nil, broker.ErrUnsupported
}

func (b *Broker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (domain.Order, error) {
	params := map[string]interface{}{
		"category":    "spot",
		"symbol":      req.Symbol,
		"side":        string(req.Side),
		"orderType":   string(req.OrderType),
		"qty":         fmt.Sprintf("%v", req.Quantity),
		"orderLinkId": req.ClientOrderID,
	}
	_, err := b.client.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	return domain.Order{
		ClientOrderID: req.ClientOrderID, Symbol: req.Symbol, Side: req.Side,
		OrderType: req.OrderType, Quantity: req.Quantity, Status: domain.OrderSubmitted,
		BrokerName: b.Name(), CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}, nil
}

func (b *Broker) CancelOrder(ctx context.Context, orderID string) error {
	return broker.ErrUnsupported
}

func (b *Broker) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return domain.Order{}, broker.ErrUnsupported
}

func (b *Broker) GetOpenOrders(ctx context.Context, accountID string) ([]domain.Order, error) {
	return nil, broker.ErrUnsupported
}

func (b *Broker) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	return domain.Quote{}, broker.ErrUnsupported
}

func (b *Broker) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	return nil, broker.ErrUnsupported
}

func (b *Broker) FillStream() <-chan broker.Fill { return b.fillCh }
