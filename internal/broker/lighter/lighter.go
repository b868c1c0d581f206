// Package lighter adapts github.com/elliottech/lighter-go (the Lighter
// zk-rollup perpetuals exchange client) to the engine's Broker capability
// set. The upstream client authenticates with an Ethereum private key;
// construction below mirrors that. No capability method forwards to the
// client: each returns broker.ErrUnsupported or a nil result.
package lighter

import (
	"context"
	"fmt"

	lighterclient "github.com/elliottech/lighter-go/client"

	"github.com/xfactor-labs/tradeforge/internal/broker"
	"github.com/xfactor-labs/tradeforge/internal/domain"
)

type Broker struct {
	client *lighterclient.TxClient
	fillCh chan broker.Fill
}

func New(config map[string]any) (broker.Broker, error) {
	privateKey, _ := config["private_key"].(string)
	if privateKey == "" {
		return nil, fmt.Errorf("lighter adapter: private_key required")
	}
	apiURL, _ := config["api_url"].(string)
	if apiURL == "" {
		apiURL = "https://mainnet.zklighter.elliot.ai"
	}
	client, err := lighterclient.NewTxClient(apiURL, privateKey, 0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("lighter adapter: %w", err)
	}
	return &Broker{client: client, fillCh: make(chan broker.Fill, 64)}, nil
}

func (b *Broker) Name() string { return "lighter" }

func (b *Broker) Connect(ctx context.Context) error { return nil }

func (b *Broker) Disconnect(ctx context.Context) error { return nil }

func (b *Broker) HealthCheck(ctx context.Context) error { return nil }

func (b *Broker) GetAccounts(ctx context.Context) ([]broker.Account, error) {
	return nil, broker.ErrUnsupported
}

func (b *Broker) GetPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	return nil, broker.ErrUnsupported
}

func (b *Broker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (domain.Order, error) {
	return domain.Order{}, broker.ErrUnsupported
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
