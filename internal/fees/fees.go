// Package fees computes per-trade commission/fee cost and aggregates it
// over a period. Schedules are table-driven per broker so adding a new
// broker's cost model never touches the computation logic.
package fees

import (
	"sync"
	"time"

	"github.com/xfactor-labs/tradeforge/internal/money"
)

// Schedule describes one broker's commission model. Only one pricing
// mode is populated per schedule; compute picks whichever is nonzero in
// the following precedence: PerShare, then Percentage, then FlatPerOrder.
type Schedule struct {
	Broker         string
	PerShare       float64 // e.g. $0.0005/share
	PerShareMin    float64 // floor per order when PerShare is used
	Percentage     float64 // e.g. 0.0010 = 10 bps of notional
	FlatPerOrder   float64
	ExchangeFee    float64 // passthrough fee per share, added regardless
}

func (s Schedule) compute(quantity, price float64) float64 {
	notional := money.Notional(quantity, price)
	qty := money.FromFloat(quantity)

	var base money.D
	switch {
	case s.PerShare > 0:
		base = qty.Mul(money.FromFloat(s.PerShare))
		if min := money.FromFloat(s.PerShareMin); base.LessThan(min) {
			base = min
		}
	case s.Percentage > 0:
		base = notional.Mul(money.FromFloat(s.Percentage))
	default:
		base = money.FromFloat(s.FlatPerOrder)
	}

	total := base.Add(qty.Mul(money.FromFloat(s.ExchangeFee)))
	return money.Round2(money.ToFloat(total))
}

// DefaultSchedules ships a concrete cost model per broker this engine
// wires, rather than leaving fee computation unconfigured.
func DefaultSchedules() map[string]Schedule {
	return map[string]Schedule{
		"paper":       {Broker: "paper", FlatPerOrder: 0},
		"binance":     {Broker: "binance", Percentage: 0.0010},
		"bybit":       {Broker: "bybit", Percentage: 0.0010},
		"lighter":     {Broker: "lighter", Percentage: 0.0002},
		"hyperliquid": {Broker: "hyperliquid", Percentage: 0.00035},
		"alpaca":      {Broker: "alpaca", FlatPerOrder: 0},
	}
}

// Entry records one trade's fee charge for period aggregation.
type Entry struct {
	BotID     string
	Broker    string
	Symbol    string
	Quantity  float64
	Price     float64
	Fee       float64
	Timestamp time.Time
}

// Tracker accumulates fee entries and answers period-aggregate queries.
// Mirrors the compliance manager's mutex-guarded-map shape: one
// in-memory ledger, queried by bot and by time window.
type Tracker struct {
	mu        sync.RWMutex
	schedules map[string]Schedule
	entries   []Entry
}

func NewTracker(schedules map[string]Schedule) *Tracker {
	if schedules == nil {
		schedules = DefaultSchedules()
	}
	return &Tracker{schedules: schedules}
}

// Record computes the fee for a fill under broker's schedule and stores
// the entry, returning the computed fee so the caller can apply it to
// realized PnL immediately.
func (t *Tracker) Record(botID, broker, symbol string, quantity, price float64, ts time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	sched, ok := t.schedules[broker]
	if !ok {
		sched = Schedule{Broker: broker, Percentage: 0.0010}
	}
	fee := sched.compute(quantity, price)
	t.entries = append(t.entries, Entry{
		BotID: botID, Broker: broker, Symbol: symbol,
		Quantity: quantity, Price: price, Fee: fee, Timestamp: ts,
	})
	return fee
}

// TotalForBot sums fees for botID within [start, end].
func (t *Tracker) TotalForBot(botID string, start, end time.Time) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, e := range t.entries {
		if e.BotID != botID {
			continue
		}
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		total += e.Fee
	}
	return total
}

// TotalAll sums every recorded fee within [start, end].
func (t *Tracker) TotalAll(start, end time.Time) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, e := range t.entries {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		total += e.Fee
	}
	return total
}

// EstimateFee reports the fee a hypothetical trade would incur, without
// recording it.
func (t *Tracker) EstimateFee(broker string, quantity, price float64) float64 {
	t.mu.RLock()
	sched, ok := t.schedules[broker]
	t.mu.RUnlock()
	if !ok {
		sched = Schedule{Broker: broker, Percentage: 0.0010}
	}
	return sched.compute(quantity, price)
}
