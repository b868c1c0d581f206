// Package broker defines the broker capability set (§4.2) and a registry
// of named, connected broker handles with a priority-ordered default
// list. Concrete adapters (paper, binance, bybit, lighter, hyperliquid)
// live in subpackages and are kept deliberately thin: construction and
// method forwarding over each SDK's client, never core trading logic.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/enginerr"
)

// Fill is a single execution pushed asynchronously by a broker adapter.
type Fill struct {
	OrderID       string
	ClientOrderID string
	FilledQty     float64
	AvgPrice      float64
	Status        domain.OrderStatus
	Timestamp     time.Time
}

// Broker is the capability set every adapter implements. Brokers that
// cannot provide quotes/bars return ErrUnsupported; callers must not
// assume availability.
type Broker interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	GetAccounts(ctx context.Context) ([]Account, error)
	GetPositions(ctx context.Context, accountID string) ([]domain.Position, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetOpenOrders(ctx context.Context, accountID string) ([]domain.Order, error)
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error)
	// FillStream exposes the push channel fills arrive on, per §6.2.
	FillStream() <-chan Fill
}

// ErrUnsupported is returned by adapters that cannot serve a given
// capability (e.g. a broker with no market-data endpoint).
var ErrUnsupported = enginerr.New(enginerr.KindExternal, "capability not supported by this broker")

type Account struct {
	AccountID   string
	AccountType domain.AccountType
	Equity      float64
	BuyingPower float64
}

type OrderRequest struct {
	Symbol        string
	Side          domain.OrderSide
	Quantity      float64
	OrderType     domain.OrderType
	LimitPrice    *float64
	StopPrice     *float64
	ClientOrderID string
	StrategyName  string
}

// Constructor builds a Broker from an opaque config blob (unmarshalled
// JSON from §6.5's broker_configs map).
type Constructor func(config map[string]any) (Broker, error)

// Registry stores constructors keyed by name, live connected handles
// keyed likewise, and a priority-ordered list, matching §4.2.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	handles      map[string]Broker
	priority     []string
	defaultName  string
}

func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		handles:      make(map[string]Broker),
	}
}

// Register adds (or replaces) the constructor for a broker name. Any name
// is accepted here; Connect rejects a name with no registered constructor.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// Connect instantiates the named broker, connects it, and inserts it on
// success, becoming the default if none is set yet.
func (r *Registry) Connect(ctx context.Context, name string, config map[string]any) error {
	r.mu.Lock()
	ctor, ok := r.constructors[name]
	_, connected := r.handles[name]
	r.mu.Unlock()

	if !ok {
		return enginerr.Client("unknown broker %q", name)
	}
	if connected {
		return enginerr.Constraint("broker %q already connected", name)
	}

	b, err := ctor(config)
	if err != nil {
		return enginerr.External(err, "constructing broker %q", name)
	}
	if err := b.Connect(ctx); err != nil {
		return enginerr.External(err, "connecting broker %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[name] = b
	r.priority = append(r.priority, name)
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

func (r *Registry) Get(name string) (Broker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.handles[name]
	if !ok {
		return nil, enginerr.Client("broker %q not connected", name)
	}
	return b, nil
}

func (r *Registry) Default() (Broker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultName == "" {
		return nil, enginerr.Client("no default broker set")
	}
	return r.handles[r.defaultName], nil
}

// DisconnectAll iterates in reverse priority order, best-effort,
// collecting errors rather than stopping at the first failure.
func (r *Registry) DisconnectAll(ctx context.Context) error {
	r.mu.Lock()
	order := append([]string(nil), r.priority...)
	r.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		r.mu.RLock()
		b := r.handles[name]
		r.mu.RUnlock()
		if b == nil {
			continue
		}
		if err := b.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return enginerr.External(errs[0], "disconnecting %d broker(s)", len(errs))
	}
	return nil
}
