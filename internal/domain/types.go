// Package domain holds the shared value types that flow between the
// engine's components: signals, orders, positions, compliance records and
// performance metrics. None of these types own behavior beyond small
// pure helpers — the components in sibling packages own the state
// machines and business rules that operate on them.
package domain

import "time"

// SignalKind is the directional call a strategy makes for a symbol.
type SignalKind string

const (
	StrongBuy  SignalKind = "strong_buy"
	Buy        SignalKind = "buy"
	Hold       SignalKind = "hold"
	Sell       SignalKind = "sell"
	StrongSell SignalKind = "strong_sell"
)

// Signal is produced by a strategy inside one bot cycle, consumed
// immediately, and never persisted.
type Signal struct {
	Symbol       string
	Kind         SignalKind
	StrategyName string
	Strength     float64 // [0,1]
	Confidence   float64 // [0,1]
	EntryPrice   *float64
	StopLoss     *float64
	TakeProfit   *float64
	Metadata     map[string]any
}

// Actionable reports whether the signal should drive order generation.
func (s Signal) Actionable() bool {
	return s.Kind != Hold && s.Strength*s.Confidence > 0
}

// Bullish reports whether the signal's kind points long.
func (s Signal) Bullish() bool {
	return s.Kind == Buy || s.Kind == StrongBuy
}

// Bearish reports whether the signal's kind points short.
func (s Signal) Bearish() bool {
	return s.Kind == Sell || s.Kind == StrongSell
}

// InstrumentType scopes which instrument-specific config block a bot uses.
type InstrumentType string

const (
	InstrumentStock     InstrumentType = "stock"
	InstrumentOptions   InstrumentType = "options"
	InstrumentFutures   InstrumentType = "futures"
	InstrumentCrypto    InstrumentType = "crypto"
	InstrumentCommodity InstrumentType = "commodity"
)

// ConfirmPolicy resolves what happens when a compliance check returns
// Confirm for an automated caller (§9 open question: auto-confirm policy).
type ConfirmPolicy string

const (
	ConfirmReject ConfirmPolicy = "reject" // safer default for bots
	ConfirmAuto   ConfirmPolicy = "auto_confirm"
	ConfirmSurface ConfirmPolicy = "surface" // used by the human UI path
)

// BotConfig is the immutable-from-the-outside view of a bot's behavior.
// Every mutation through Bot.UpdateConfig replaces the whole struct, never
// a field in place, so concurrent readers always see a fully consistent
// value.
type BotConfig struct {
	Name                string
	InstrumentType      InstrumentType
	Symbols             []string
	Strategies          []string
	StrategyWeights     map[string]float64
	MaxPositionSize      float64
	MaxPositions         int
	MaxDailyLossPct      float64
	TradeFrequencySeconds int
	ConfirmPolicy        ConfirmPolicy
	DefaultBroker        string
	DefaultDataSource    string
	// Auto-optimizer adjustable parameters, see optimizer.Params.
	StopLossPct              float64
	TakeProfitPct            float64
	PositionSizePct          float64
	RSIOversold              float64
	RSIOverbought            float64
	MAFastPeriod             float64
	MASlowPeriod             float64
	MomentumThreshold        float64
	VolumeThreshold          float64
	MinConfidence            float64
	SignalStrengthThreshold  float64
}

// Clone returns a deep-enough copy safe to hand to a reader while the
// original is mutated elsewhere.
func (c BotConfig) Clone() BotConfig {
	out := c
	out.Symbols = append([]string(nil), c.Symbols...)
	out.Strategies = append([]string(nil), c.Strategies...)
	out.StrategyWeights = make(map[string]float64, len(c.StrategyWeights))
	for k, v := range c.StrategyWeights {
		out.StrategyWeights[k] = v
	}
	return out
}

// BotStatus is the bot lifecycle state machine.
type BotStatus string

const (
	StatusCreated  BotStatus = "created"
	StatusStarting BotStatus = "starting"
	StatusRunning  BotStatus = "running"
	StatusPaused   BotStatus = "paused"
	StatusStopping BotStatus = "stopping"
	StatusStopped  BotStatus = "stopped"
	StatusError    BotStatus = "error"
)

// OrderSide, OrderType, OrderStatus form the Order state machine.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderMarket    OrderType = "market"
	OrderLimit     OrderType = "limit"
	OrderStop      OrderType = "stop"
	OrderStopLimit OrderType = "stop_limit"
)

type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderSubmitted       OrderStatus = "submitted"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCancelled       OrderStatus = "cancelled"
	OrderRejected        OrderStatus = "rejected"
	OrderExpired         OrderStatus = "expired"
)

// Terminal reports whether the status is a terminal state the order
// pipeline's monotonicity invariant holds against.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected, OrderExpired:
		return true
	default:
		return false
	}
}

// statusRank orders statuses along the path toward a terminal state, used
// to reject regressions in fill callbacks.
var statusRank = map[OrderStatus]int{
	OrderPending:         0,
	OrderSubmitted:       1,
	OrderPartiallyFilled: 2,
	OrderFilled:          3,
	OrderCancelled:       3,
	OrderRejected:        3,
	OrderExpired:         3,
}

// Regresses reports whether moving from 'from' to 'to' would violate
// status monotonicity.
func Regresses(from, to OrderStatus) bool {
	if from.Terminal() {
		return true
	}
	return statusRank[to] < statusRank[from]
}

// Order is the core order record. FilledQuantity must never exceed
// Quantity; Status=Filled implies FilledQuantity==Quantity.
type Order struct {
	OrderID       string
	ClientOrderID string
	BotID         string
	Symbol        string
	Side          OrderSide
	OrderType     OrderType
	Quantity      float64
	LimitPrice    *float64
	StopPrice     *float64
	Status        OrderStatus
	FilledQuantity float64
	AvgFillPrice  float64
	StrategyName  string
	BrokerName    string
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Position is materialized on read from the broker; the core never holds
// it authoritatively.
type Position struct {
	AccountID        string
	Symbol           string
	Quantity         float64
	AvgCost          float64
	CurrentPrice     float64
}

func (p Position) MarketValue() float64 { return p.Quantity * p.CurrentPrice }
func (p Position) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.AvgCost) * p.Quantity
}
func (p Position) UnrealizedPnLPct() float64 {
	if p.AvgCost == 0 {
		return 0
	}
	return (p.CurrentPrice - p.AvgCost) / p.AvgCost * 100
}

// Quote is the return shape of a data source's get_quote.
type Quote struct {
	Symbol   string
	Bid      float64
	Ask      float64
	Last     float64
	BidSize  float64
	AskSize  float64
	Volume   float64
	Timestamp time.Time
	Source   string
}

// Bar is one OHLCV candle. Sequences returned by data sources are
// oldest-first, timestamp-monotone and non-overlapping.
type Bar struct {
	Symbol    string
	Timeframe string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}
