// Package paper implements a simulated broker adapter used for paper
// trading and tests. It is the one adapter in this repository whose
// FillStream is backed by a real gorilla/websocket connection — a local
// loopback server that echoes each accepted order back as an
// immediate fill — modeling the "fills arrive via a push channel" broker
// contract (§6.2) end to end instead of a channel fed by a direct
// function call.
package paper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xfactor-labs/tradeforge/internal/broker"
	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/logging"
)

// Broker is the simulated paper-trading adapter.
type Broker struct {
	name string

	mu      sync.Mutex
	orders  map[string]domain.Order
	balance float64

	fillCh   chan broker.Fill
	upgrader websocket.Upgrader
	listener net.Listener
	server   *http.Server
	conn     *websocket.Conn
}

func New(config map[string]any) (broker.Broker, error) {
	name := "paper"
	if v, ok := config["name"].(string); ok && v != "" {
		name = v
	}
	balance := 100000.0
	if v, ok := config["starting_balance"].(float64); ok {
		balance = v
	}
	return &Broker{
		name:    name,
		orders:  make(map[string]domain.Order),
		balance: balance,
		fillCh:  make(chan broker.Fill, 256),
	}, nil
}

func (b *Broker) Name() string { return b.name }

// Connect stands up a loopback websocket server that the fill-pump
// goroutine dials into, mirroring the push-channel shape a live broker
// adapter would expose without needing external network access.
func (b *Broker) Connect(ctx context.Context) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("paper broker: listen: %w", err)
	}
	b.listener = ln
	b.upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}

	mux := http.NewServeMux()
	mux.HandleFunc("/fills", b.handleFillSocket)
	b.server = &http.Server{Handler: mux}
	go func() {
		if err := b.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Warnf("paper broker: fill server stopped: %v", err)
		}
	}()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/fills", nil)
	if err != nil {
		return fmt.Errorf("paper broker: dial fill socket: %w", err)
	}
	b.conn = conn
	go b.readPump()
	return nil
}

func (b *Broker) handleFillSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	// Server side echoes every message back to the dialing client, so
	// each fill simulateFill writes returns through readPump into fillCh.
	go func() {
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}()
}

func (b *Broker) readPump() {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			close(b.fillCh)
			return
		}
		fill := decodeFill(data)
		b.fillCh <- fill
	}
}

func (b *Broker) Disconnect(ctx context.Context) error {
	if b.conn != nil {
		b.conn.Close()
	}
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Broker) HealthCheck(ctx context.Context) error { return nil }

func (b *Broker) GetAccounts(ctx context.Context) ([]broker.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return []broker.Account{{AccountID: "paper-1", AccountType: domain.AccountPaper, Equity: b.balance, BuyingPower: b.balance}}, nil
}

func (b *Broker) GetPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	return nil, nil
}

func (b *Broker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (domain.Order, error) {
	id := uuid.NewString()
	order := domain.Order{
		OrderID: id, ClientOrderID: req.ClientOrderID, Symbol: req.Symbol,
		Side: req.Side, OrderType: req.OrderType, Quantity: req.Quantity,
		LimitPrice: req.LimitPrice, StopPrice: req.StopPrice,
		Status: domain.OrderSubmitted, StrategyName: req.StrategyName,
		BrokerName: b.name, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	b.mu.Lock()
	b.orders[id] = order
	b.mu.Unlock()

	fillPrice := req.Quantity
	_ = fillPrice
	price := 0.0
	if req.LimitPrice != nil {
		price = *req.LimitPrice
	}
	go b.simulateFill(id, req.ClientOrderID, req.Quantity, price)
	return order, nil
}

func (b *Broker) simulateFill(orderID, clientOrderID string, qty, price float64) {
	time.Sleep(5 * time.Millisecond)
	if b.conn == nil {
		return
	}
	payload := encodeFill(orderID, clientOrderID, qty, price)
	_ = b.conn.WriteMessage(websocket.TextMessage, payload)
}

func (b *Broker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("paper broker: unknown order %s", orderID)
	}
	if o.Status.Terminal() {
		return nil // idempotent double-cancel
	}
	o.Status = domain.OrderCancelled
	b.orders[orderID] = o
	return nil
}

func (b *Broker) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("paper broker: unknown order %s", orderID)
	}
	return o, nil
}

func (b *Broker) GetOpenOrders(ctx context.Context, accountID string) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Order
	for _, o := range b.orders {
		if !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (b *Broker) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	return domain.Quote{}, broker.ErrUnsupported
}

func (b *Broker) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	return nil, broker.ErrUnsupported
}

func (b *Broker) FillStream() <-chan broker.Fill { return b.fillCh }

// Apply records a fill against the broker's own order table, keeping
// the paper adapter's notion of order status consistent with what it
// pushed out over the socket.
func (b *Broker) Apply(f broker.Fill) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[f.OrderID]
	if !ok || domain.Regresses(o.Status, f.Status) {
		return
	}
	o.FilledQuantity = f.FilledQty
	o.AvgFillPrice = f.AvgPrice
	o.Status = f.Status
	o.UpdatedAt = f.Timestamp
	b.orders[f.OrderID] = o
}

// encodeFill/decodeFill use a tiny fixed pipe-delimited wire format —
// sufficient for a loopback simulation channel, not a public protocol.
func encodeFill(orderID, clientOrderID string, qty, price float64) []byte {
	return []byte(fmt.Sprintf("%s|%s|%f|%f|filled|%d", orderID, clientOrderID, qty, price, time.Now().UTC().UnixNano()))
}

func decodeFill(data []byte) broker.Fill {
	parts := strings.Split(string(data), "|")
	if len(parts) != 6 {
		return broker.Fill{}
	}
	qty, _ := strconv.ParseFloat(parts[2], 64)
	price, _ := strconv.ParseFloat(parts[3], 64)
	ts, _ := strconv.ParseInt(parts[5], 10, 64)
	return broker.Fill{
		OrderID: parts[0], ClientOrderID: parts[1], FilledQty: qty, AvgPrice: price,
		Status: domain.OrderFilled, Timestamp: time.Unix(0, ts).UTC(),
	}
}
