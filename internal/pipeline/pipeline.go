// Package pipeline implements the Order Pipeline: the single path every
// order takes from a bot's intent to a broker dispatch and back. The
// gate order is fixed — throttle, resolve price, compliance, risk,
// dispatch, record, telemetry — and every rejection short-circuits the
// remaining gates rather than partially applying them.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xfactor-labs/tradeforge/internal/broker"
	"github.com/xfactor-labs/tradeforge/internal/clock"
	"github.com/xfactor-labs/tradeforge/internal/compliance"
	"github.com/xfactor-labs/tradeforge/internal/datasource"
	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/enginerr"
	"github.com/xfactor-labs/tradeforge/internal/fees"
	"github.com/xfactor-labs/tradeforge/internal/logging"
	"github.com/xfactor-labs/tradeforge/internal/optimizer"
	"github.com/xfactor-labs/tradeforge/internal/risk"
	"github.com/xfactor-labs/tradeforge/internal/telemetry"
	"github.com/xfactor-labs/tradeforge/internal/telemetry/metrics"
)

// Request is a bot's order intent, before any gate has run.
type Request struct {
	BotID          string
	Scope          domain.AccountScope
	Symbol         string
	Side           domain.OrderSide
	Quantity       float64
	OrderType      domain.OrderType
	LimitPrice     *float64
	StrategyName   string
	BrokerName     string
	DataSourceName string
	ConfirmPolicy  domain.ConfirmPolicy
	IsClosing      bool
}

// Outcome is the terminal result of one Submit call, win or lose.
type Outcome struct {
	Order    domain.Order
	Rejected bool
	Reason   string
}

// dailyThrottle is a process-wide order counter, reset on business-day
// rollover per the connected calendar.
type dailyThrottle struct {
	mu    sync.Mutex
	day   time.Time
	count int
}

// botPosition is a per-bot-per-symbol weighted-average-cost tracker,
// kept only so closing fills can derive a realized PnL for the
// optimizer without fabricating data.
type botPosition struct {
	quantity float64
	avgCost  float64
}

// Pipeline wires the gates together. It holds no domain state of its
// own beyond the throttle counter, the cost-basis map and the index of
// submitted orders — everything else is delegated to the component it
// gates against.
type Pipeline struct {
	Brokers         *broker.Registry
	DataSources     *datasource.Registry
	Compliance      *compliance.Manager
	Risk            *risk.Manager
	Fees            *fees.Tracker
	Optimizer       *optimizer.Manager
	Clock           *clock.Service
	Telemetry       *telemetry.Sink
	MaxOrdersPerDay int

	throttle dailyThrottle

	posMu     sync.Mutex
	positions map[string]botPosition

	mu     sync.RWMutex
	orders map[string]domain.Order
}

func New(brokers *broker.Registry, sources *datasource.Registry, comp *compliance.Manager, riskMgr *risk.Manager, feeTracker *fees.Tracker, optMgr *optimizer.Manager, clk *clock.Service, maxOrdersPerDay int, sink *telemetry.Sink) *Pipeline {
	return &Pipeline{
		Brokers:         brokers,
		DataSources:     sources,
		Compliance:      comp,
		Risk:            riskMgr,
		Fees:            feeTracker,
		Optimizer:       optMgr,
		Clock:           clk,
		Telemetry:       sink,
		MaxOrdersPerDay: maxOrdersPerDay,
		positions:       make(map[string]botPosition),
		orders:          make(map[string]domain.Order),
	}
}

// throttled increments the process-wide daily order counter, resetting
// it on business-day rollover, and reports whether the configured limit
// was just exceeded. A non-positive MaxOrdersPerDay disables the gate.
func (p *Pipeline) throttled() bool {
	p.throttle.mu.Lock()
	defer p.throttle.mu.Unlock()
	today := p.Clock.Today()
	if !p.throttle.day.Equal(today) {
		p.throttle.day = today
		p.throttle.count = 0
	}
	p.throttle.count++
	return p.MaxOrdersPerDay > 0 && p.throttle.count > p.MaxOrdersPerDay
}

func (p *Pipeline) reject(req Request, reason string) Outcome {
	metrics.RecordOrderRejected(req.BotID, reason)
	p.Telemetry.Publish(telemetry.EventOrderRejected, map[string]any{
		"bot_id": req.BotID, "symbol": req.Symbol, "reason": reason,
	})
	return Outcome{Rejected: true, Reason: reason}
}

// Submit runs the full §4.6 gate sequence. It never fabricates a price:
// a quote failure rejects the order rather than substituting a
// placeholder.
func (p *Pipeline) Submit(ctx context.Context, req Request) (Outcome, error) {
	if p.throttled() {
		return p.reject(req, "throttle"), nil
	}

	var refPrice float64
	if req.LimitPrice != nil {
		refPrice = *req.LimitPrice
	} else {
		q, err := p.DataSources.GetQuote(ctx, req.Symbol, req.DataSourceName)
		if err != nil {
			logging.Warnf("pipeline: quote unavailable for %s, rejecting order: %v", req.Symbol, err)
			return p.reject(req, "quote_unavailable"), nil
		}
		refPrice = q.Last
	}
	if refPrice <= 0 {
		return p.reject(req, "quote_unavailable"), nil
	}

	checkResult, err := p.Compliance.CheckOrder(req.Scope, req.Symbol, req.Side, req.Quantity, refPrice, req.IsClosing)
	if err != nil {
		return Outcome{}, enginerr.Internal(err, "compliance check")
	}
	if checkResult.RequiresConfirmation {
		switch req.ConfirmPolicy {
		case domain.ConfirmAuto:
			// proceed
		default:
			for _, v := range checkResult.Violations {
				metrics.RecordComplianceViolation(string(v.Kind), string(v.Action))
			}
			for _, v := range checkResult.Warnings {
				metrics.RecordComplianceViolation(string(v.Kind), string(v.Action))
			}
			return p.reject(req, "compliance_confirmation_required"), nil
		}
	}
	if !checkResult.Allowed {
		for _, v := range checkResult.Violations {
			metrics.RecordComplianceViolation(string(v.Kind), string(v.Action))
			p.Telemetry.Publish(telemetry.EventComplianceViolation, v)
		}
		reason := "compliance_block"
		if checkResult.StopTrading {
			reason = "compliance_stop_day"
		}
		return p.reject(req, reason), nil
	}

	decision := p.Risk.CheckOrder(req.Symbol, req.Quantity, refPrice, req.Side)
	switch decision.Kind {
	case risk.DecisionRejected:
		return p.reject(req, "risk_"+decision.Reason), nil
	case risk.DecisionReduced:
		req.Quantity = decision.Quantity
		logging.Infof("pipeline: risk manager reduced %s qty to %v (%s)", req.Symbol, req.Quantity, decision.Reason)
	}
	if req.Quantity <= 0 {
		return p.reject(req, "zero_quantity_after_risk_adjustment"), nil
	}

	brokerName := req.BrokerName
	var b broker.Broker
	if brokerName != "" {
		b, err = p.Brokers.Get(brokerName)
	} else {
		b, err = p.Brokers.Default()
	}
	if err != nil {
		return Outcome{}, enginerr.External(err, "resolving broker")
	}

	clientOrderID := uuid.NewString()
	order, err := b.SubmitOrder(ctx, broker.OrderRequest{
		Symbol: req.Symbol, Side: req.Side, Quantity: req.Quantity,
		OrderType: req.OrderType, LimitPrice: req.LimitPrice,
		ClientOrderID: clientOrderID, StrategyName: req.StrategyName,
	})
	if err != nil {
		return p.reject(req, "broker_rejected"), enginerr.External(err, "submitting order to %s", b.Name())
	}
	order.BotID = req.BotID
	order.StrategyName = req.StrategyName

	p.mu.Lock()
	p.orders[order.OrderID] = order
	p.mu.Unlock()

	metrics.RecordOrderSubmitted(req.BotID, req.Symbol, string(req.Side))
	p.Telemetry.Publish(telemetry.EventOrderSubmitted, order)

	if order.Status == domain.OrderFilled {
		p.recordFill(req.Scope, req.BotID, order)
	}

	return Outcome{Order: order}, nil
}

// Cancel forwards to the owning broker and marks the order cancelled
// locally if the broker confirms.
func (p *Pipeline) Cancel(ctx context.Context, orderID, brokerName string) error {
	b, err := p.Brokers.Get(brokerName)
	if err != nil {
		return err
	}
	if err := b.CancelOrder(ctx, orderID); err != nil {
		return enginerr.External(err, "cancelling order %s", orderID)
	}
	p.mu.Lock()
	if o, ok := p.orders[orderID]; ok && !o.Status.Terminal() {
		o.Status = domain.OrderCancelled
		o.UpdatedAt = time.Now()
		p.orders[orderID] = o
	}
	p.mu.Unlock()
	return nil
}

// OnFill is the broker fill-callback handler: it enforces order status
// monotonicity, records the trade with compliance, and publishes
// telemetry. Regressions are logged and dropped rather than applied.
func (p *Pipeline) OnFill(scope domain.AccountScope, botID string, fill broker.Fill) {
	p.mu.Lock()
	order, ok := p.orders[fill.OrderID]
	if !ok {
		p.mu.Unlock()
		logging.Warnf("pipeline: fill for unknown order %s", fill.OrderID)
		return
	}
	if domain.Regresses(order.Status, fill.Status) {
		p.mu.Unlock()
		logging.Warnf("pipeline: dropping regressive fill for order %s (%s -> %s)", fill.OrderID, order.Status, fill.Status)
		return
	}
	order.Status = fill.Status
	order.FilledQuantity = fill.FilledQty
	order.AvgFillPrice = fill.AvgPrice
	order.UpdatedAt = fill.Timestamp
	p.orders[fill.OrderID] = order
	p.mu.Unlock()

	if fill.Status == domain.OrderFilled || fill.Status == domain.OrderPartiallyFilled {
		p.recordFill(scope, botID, order)
	}
	if fill.Status == domain.OrderFilled {
		metrics.RecordOrderFilled(botID, order.Symbol)
		p.Telemetry.Publish(telemetry.EventOrderFilled, order)
	}
}

func (p *Pipeline) recordFill(scope domain.AccountScope, botID string, order domain.Order) {
	var fee float64
	if p.Fees != nil {
		fee = p.Fees.Record(botID, order.BrokerName, order.Symbol, order.FilledQuantity, order.AvgFillPrice, order.UpdatedAt)
	}
	violations, err := p.Compliance.RecordTrade(scope, order.Symbol, order.Side, order.FilledQuantity, order.AvgFillPrice, order.UpdatedAt)
	if err != nil {
		logging.Errorf("pipeline: compliance record_trade failed for order %s: %v", order.OrderID, err)
		return
	}
	for _, v := range violations {
		metrics.RecordComplianceViolation(string(v.Kind), string(v.Action))
		p.Telemetry.Publish(telemetry.EventComplianceViolation, v)
	}
	if p.Optimizer != nil {
		p.recordTradeResult(botID, order, fee)
	}
}

// recordTradeResult maintains a per-bot-per-symbol weighted-average
// cost basis and, on a closing sell, derives a realized PnL to feed the
// bot's optimizer. Opening fills only update the cost basis.
func (p *Pipeline) recordTradeResult(botID string, order domain.Order, fee float64) {
	key := botID + "|" + order.Symbol

	p.posMu.Lock()
	pos := p.positions[key]
	var result *domain.TradeResult
	switch order.Side {
	case domain.SideBuy:
		total := pos.quantity + order.FilledQuantity
		if total > 0 {
			pos.avgCost = (pos.avgCost*pos.quantity + order.AvgFillPrice*order.FilledQuantity) / total
		}
		pos.quantity = total
	case domain.SideSell:
		closeQty := order.FilledQuantity
		if closeQty > pos.quantity {
			closeQty = pos.quantity
		}
		if closeQty > 0 {
			pnl := (order.AvgFillPrice-pos.avgCost)*closeQty - fee
			result = &domain.TradeResult{Symbol: order.Symbol, PnL: pnl, Win: pnl > 0, Timestamp: order.UpdatedAt}
			pos.quantity -= closeQty
		}
	}
	p.positions[key] = pos
	p.posMu.Unlock()

	if result != nil {
		p.Optimizer.RecordTrade(botID, *result)
	}
}

func (p *Pipeline) Order(orderID string) (domain.Order, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	o, ok := p.orders[orderID]
	return o, ok
}
