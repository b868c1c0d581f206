// Package hyperliquid adapts github.com/sonirico/go-hyperliquid to the
// engine's Broker capability set. Hyperliquid authenticates requests
// with an Ethereum wallet signature (go-ethereum); the adapter builds
// that signer at construction and otherwise forwards calls unchanged.
package hyperliquid

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	hyperliquidsdk "github.com/sonirico/go-hyperliquid"

	"github.com/xfactor-labs/tradeforge/internal/broker"
	"github.com/xfactor-labs/tradeforge/internal/domain"
)

type Broker struct {
	client *hyperliquidsdk.Client
	fillCh chan broker.Fill
}

func New(config map[string]any) (broker.Broker, error) {
	pkHex, _ := config["private_key"].(string)
	if pkHex == "" {
		return nil, fmt.Errorf("hyperliquid adapter: private_key required")
	}
	pk, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid adapter: parse private key: %w", err)
	}
	client := hyperliquidsdk.NewClient(hyperliquidsdk.WithPrivateKey(pk))
	return &Broker{client: client, fillCh: make(chan broker.Fill, 64)}, nil
}

func (b *Broker) Name() string { return "hyperliquid" }

func (b *Broker) Connect(ctx context.Context) error { return nil }

func (b *Broker) Disconnect(ctx context.Context) error { return nil }

func (b *Broker) HealthCheck(ctx context.Context) error {
	_, err := b.client.Meta(ctx)
	return err
}

func (b *Broker) GetAccounts(ctx context.Context) ([]broker.Account, error) {
	return nil, broker.ErrUnsupported
}

func (b *Broker) GetPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	state, err := b.client.ClearinghouseState(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(state.AssetPositions))
	for _, p := range state.AssetPositions {
		out = append(out, domain.Position{AccountID: accountID, Symbol: p.Position.Coin})
	}
	return out, nil
}

func (b *Broker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (domain.Order, error) {
	isBuy := req.Side == domain.SideBuy
	limitPx := 0.0
	if req.LimitPrice != nil {
		limitPx = *req.LimitPrice
	}
	_, err := b.client.Order(ctx, hyperliquidsdk.OrderRequest{
		Coin: req.Symbol, IsBuy: isBuy, Sz: req.Quantity, LimitPx: limitPx,
		ClientOrderID: req.ClientOrderID,
	})
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
