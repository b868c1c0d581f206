// Package compliance implements the pre-trade gate and post-trade
// recorder described in the engine spec's Compliance Manager: one
// instance's state per (broker, account_id, account_type) scope, never a
// process-global singleton. Business-day and settlement arithmetic goes
// through internal/clock; the fixed calendar-day windows (day-trade and
// trade-history retention, wash-sale lookback) use the time package
// directly.
package compliance

import (
	"sort"
	"sync"
	"time"

	"github.com/xfactor-labs/tradeforge/internal/clock"
	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/enginerr"
	"github.com/xfactor-labs/tradeforge/internal/logging"
	"github.com/xfactor-labs/tradeforge/internal/money"
)

const (
	pdtEquityThreshold  = 25000.0
	washSaleWindowDays  = 30
	dayTradeRetainDays  = 7
	tradeHistoryRetain  = 60 * 24 * time.Hour
)

// accountState is everything one compliance-manager scope owns. All
// access goes through the embedded mutex — compliance state discipline
// in the spec's concurrency table is "mutex, one per account".
type accountState struct {
	mu sync.Mutex

	equity                float64
	buyingPower           float64
	dayTradingBuyingPower float64
	isPatternDayTrader    bool

	dayTrades         []domain.DayTrade
	intradayPositions map[string]domain.IntradayPosition
	unsettledPositions []domain.UnsettledPosition
	tradeHistory      map[string][]domain.TradeHistoryEntry
	violations        []domain.ComplianceViolation

	restrictedUntil *time.Time
	restrictionType domain.RestrictionType

	tradingStopped bool
	stopReason     string
}

func newAccountState() *accountState {
	return &accountState{
		intradayPositions: make(map[string]domain.IntradayPosition),
		tradeHistory:      make(map[string][]domain.TradeHistoryEntry),
	}
}

// Manager owns one accountState per AccountScope. Scopes are created
// lazily on first use; there is no separate registration step.
type Manager struct {
	clock *clock.Service

	mu       sync.RWMutex
	accounts map[domain.AccountScope]*accountState
}

func NewManager(c *clock.Service) *Manager {
	return &Manager{
		clock:    c,
		accounts: make(map[domain.AccountScope]*accountState),
	}
}

func (m *Manager) state(scope domain.AccountScope) *accountState {
	m.mu.RLock()
	s, ok := m.accounts[scope]
	m.mu.RUnlock()
	if ok {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.accounts[scope]; ok {
		return s
	}
	s = newAccountState()
	m.accounts[scope] = s
	return s
}

// UpdateAccount refreshes the account snapshot the checks below read.
func (m *Manager) UpdateAccount(scope domain.AccountScope, equity, buyingPower, dtbp float64, isPDT bool) {
	st := m.state(scope)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.equity = equity
	st.buyingPower = buyingPower
	st.dayTradingBuyingPower = dtbp
	st.isPatternDayTrader = isPDT
}

// SetRestriction places (or clears, with a zero time) a trading hold on
// the account.
func (m *Manager) SetRestriction(scope domain.AccountScope, until time.Time, kind domain.RestrictionType) {
	st := m.state(scope)
	st.mu.Lock()
	defer st.mu.Unlock()
	if until.IsZero() {
		st.restrictedUntil = nil
		return
	}
	u := until
	st.restrictedUntil = &u
	st.restrictionType = kind
}

func (m *Manager) violation(kind domain.ViolationKind, sev domain.Severity, action domain.CheckAction, title, desc, reg string, details map[string]any, ts time.Time) domain.ComplianceViolation {
	return domain.ComplianceViolation{
		Kind: kind, Severity: sev, Action: action,
		Title: title, Description: desc, Regulation: reg,
		Details: details, Timestamp: ts,
	}
}

// CheckOrder runs the §4.4.1 pre-trade algorithm, short-circuiting on
// the first Block/StopDay.
func (m *Manager) CheckOrder(scope domain.AccountScope, symbol string, side domain.OrderSide, qty, estPrice float64, isClosing bool) (domain.CheckResult, error) {
	if scope.AccountType == domain.AccountPaper {
		return domain.CheckResult{Allowed: true, Action: domain.ActionAllow}, nil
	}

	st := m.state(scope)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := m.clock.Now()
	today := m.clock.Today()

	result := domain.CheckResult{Allowed: true, Action: domain.ActionAllow}

	record := func(v domain.ComplianceViolation) {
		switch v.Action {
		case domain.ActionWarn, domain.ActionConfirm:
			result.Warnings = append(result.Warnings, v)
		default:
			result.Violations = append(result.Violations, v)
		}
		st.violations = append(st.violations, v)
		result.Action = domain.StrongerAction(result.Action, v.Action)
	}

	finalize := func() domain.CheckResult {
		result.RequiresConfirmation = result.Action == domain.ActionConfirm
		result.StopTrading = result.Action == domain.ActionStopDay
		result.Allowed = result.Action != domain.ActionBlock && result.Action != domain.ActionStopDay
		return result
	}

	if st.tradingStopped {
		record(m.violation(domain.ViolationStopped, domain.SeverityCritical, domain.ActionBlock,
			"Trading stopped", st.stopReason, "", nil, now))
		return finalize(), nil
	}
	if st.restrictedUntil != nil && today.Before(*st.restrictedUntil) {
		record(m.violation(domain.ViolationRestriction, domain.SeverityCritical, domain.ActionBlock,
			"Account restricted", string(st.restrictionType), "", nil, now))
		return finalize(), nil
	}

	wouldBeDayTrade := func() bool {
		if side == domain.SideSell {
			pos, ok := st.intradayPositions[symbol]
			return ok && pos.Quantity > 0 && sameDay(pos.OpenTime, today)
		}
		return isClosing
	}()

	// PDT check: margin accounts, equity < $25,000 only.
	if scope.AccountType == domain.AccountMargin && money.LessThan(st.equity, pdtEquityThreshold) && wouldBeDayTrade {
		windowStart := m.clock.LastNBusinessDays(today, 5)[0]
		count := countDayTradesSince(st.dayTrades, windowStart)
		switch {
		case count >= 4:
			record(m.violation(domain.ViolationPDT, domain.SeverityCritical, domain.ActionBlock,
				"Pattern Day Trader limit", "Would violate FINRA 4210 Pattern Day Trader rule",
				"FINRA 4210", map[string]any{"day_trade_count": count}, now))
			return finalize(), nil
		case count == 3:
			record(m.violation(domain.ViolationPDT, domain.SeverityWarning, domain.ActionConfirm,
				"Pattern Day Trader flag imminent", "This trade would flag the account as a Pattern Day Trader",
				"FINRA 4210", map[string]any{"day_trade_count": count}, now))
		case count >= 2:
			record(m.violation(domain.ViolationPDT, domain.SeverityWarning, domain.ActionWarn,
				"Day trades remaining", "Approaching the day trade limit",
				"FINRA 4210", map[string]any{"day_trade_count": count, "remaining": 3 - count}, now))
		}
	}

	// Good-faith: cash account sell against unsettled shares.
	if scope.AccountType == domain.AccountCash && side == domain.SideSell {
		if unsettledQty(st.unsettledPositions, symbol) >= qty {
			record(m.violation(domain.ViolationGoodFaith, domain.SeverityWarning, domain.ActionConfirm,
				"Good faith violation risk", "Selling shares bought with unsettled funds",
				"Reg T", nil, now))
		}
	}

	// Freeriding: cash account buy funded by unsettled proceeds.
	if scope.AccountType == domain.AccountCash && side == domain.SideBuy {
		orderValue := money.ToFloat(money.Notional(qty, estPrice))
		settledBP := st.buyingPower - unsettledCostBasis(st.unsettledPositions)
		if money.GreaterThan(orderValue, settledBP) && !money.GreaterThan(orderValue, st.buyingPower) {
			record(m.violation(domain.ViolationFreeriding, domain.SeverityWarning, domain.ActionConfirm,
				"Freeriding risk", "Order would be funded by unsettled proceeds",
				"Reg T", nil, now))
		}
	}

	// DTBP: margin + PDT buy.
	if scope.AccountType == domain.AccountMargin && st.isPatternDayTrader && side == domain.SideBuy {
		used := usedDTBPToday(st.dayTrades, today)
		orderValue := money.ToFloat(money.Notional(qty, estPrice))
		if money.GreaterThan(orderValue, st.dayTradingBuyingPower-used) {
			record(m.violation(domain.ViolationDTBP, domain.SeverityCritical, domain.ActionBlock,
				"Day Trading Buying Power exceeded", "Order exceeds remaining DTBP for today",
				"FINRA 4210", map[string]any{"used_dtbp": used}, now))
			return finalize(), nil
		}
	}

	// Wash-sale warning on buy.
	if side == domain.SideBuy {
		if hasSellWithinDays(st.tradeHistory[symbol], today, washSaleWindowDays) {
			record(m.violation(domain.ViolationWashSale, domain.SeverityWarning, domain.ActionWarn,
				"Wash sale window", "A sell for this symbol occurred within the last 30 days",
				"IRS wash sale rule", nil, now))
		}
	}

	return finalize(), nil
}

// RecordTrade runs the §4.4.2 post-trade recording algorithm.
func (m *Manager) RecordTrade(scope domain.AccountScope, symbol string, side domain.OrderSide, qty, price float64, ts time.Time) ([]domain.ComplianceViolation, error) {
	st := m.state(scope)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.tradeHistory[symbol] = append(st.tradeHistory[symbol], domain.TradeHistoryEntry{
		Side: side, Quantity: qty, Price: price, Timestamp: ts,
	})

	var emitted []domain.ComplianceViolation
	today := m.clock.Today()

	switch side {
	case domain.SideBuy:
		pos := st.intradayPositions[symbol]
		totalQty := pos.Quantity + qty
		if totalQty > 0 {
			pos.AvgPrice = (pos.AvgPrice*pos.Quantity + price*qty) / totalQty
		}
		pos.Quantity = totalQty
		pos.Symbol = symbol
		if pos.OpenTime.IsZero() {
			pos.OpenTime = ts
		}
		st.intradayPositions[symbol] = pos

		if scope.AccountType == domain.AccountCash {
			st.unsettledPositions = append(st.unsettledPositions, domain.UnsettledPosition{
				Symbol: symbol, Quantity: qty, PurchaseDate: today,
				SettlementDate: m.clock.SettlementDate(today), CostBasis: qty * price,
			})
		}

	case domain.SideSell:
		pos, ok := st.intradayPositions[symbol]
		if ok && pos.Quantity > 0 && sameDay(pos.OpenTime, today) {
			closeQty := qty
			if closeQty > pos.Quantity {
				closeQty = pos.Quantity
			}
			st.dayTrades = append(st.dayTrades, domain.DayTrade{
				Symbol: symbol, TradeDate: today, BuyTime: pos.OpenTime, SellTime: ts,
				Quantity: closeQty, BuyPrice: pos.AvgPrice, SellPrice: price,
			})
			pos.Quantity -= closeQty
			if pos.Quantity <= 0 {
				delete(st.intradayPositions, symbol)
			} else {
				st.intradayPositions[symbol] = pos
			}

			windowStart := m.clock.LastNBusinessDays(today, 5)[0]
			if countDayTradesSince(st.dayTrades, windowStart) >= 4 {
				st.tradingStopped = true
				st.stopReason = "Pattern Day Trader limit reached"
				v := m.violation(domain.ViolationPDT, domain.SeverityCritical, domain.ActionStopDay,
					"Trading stopped: PDT limit", st.stopReason, "FINRA 4210", nil, ts)
				st.violations = append(st.violations, v)
				emitted = append(emitted, v)
				logging.Warnf("compliance: trading stopped for %s/%s: %s", scope.Broker, scope.AccountID, st.stopReason)
			}

			if avgBuy, ok := avgBuyPriceWithinDays(st.tradeHistory[symbol], today, washSaleWindowDays); ok && price < avgBuy {
				v := m.violation(domain.ViolationWashSale, domain.SeverityInfo, domain.ActionWarn,
					"Wash sale realized", "Sell price below recent average buy price", "IRS wash sale rule",
					map[string]any{"avg_buy_price": avgBuy, "sell_price": price}, ts)
				st.violations = append(st.violations, v)
				emitted = append(emitted, v)
			}
		}
	}

	return emitted, nil
}

// ResetDaily clears per-day state at market open / session rollover.
func (m *Manager) ResetDaily(scope domain.AccountScope) error {
	st := m.state(scope)
	st.mu.Lock()
	defer st.mu.Unlock()

	today := m.clock.Today()
	st.tradingStopped = false
	st.stopReason = ""
	st.intradayPositions = make(map[string]domain.IntradayPosition)

	kept := st.unsettledPositions[:0]
	for _, u := range st.unsettledPositions {
		if today.Before(u.SettlementDate) {
			kept = append(kept, u)
		}
	}
	st.unsettledPositions = kept

	dtCutoff := today.AddDate(0, 0, -dayTradeRetainDays)
	keptTrades := st.dayTrades[:0]
	for _, d := range st.dayTrades {
		if d.TradeDate.After(dtCutoff) {
			keptTrades = append(keptTrades, d)
		}
	}
	st.dayTrades = keptTrades

	for sym, hist := range st.tradeHistory {
		cutoff := today.Add(-tradeHistoryRetain)
		kept := hist[:0]
		for _, h := range hist {
			if h.Timestamp.After(cutoff) {
				kept = append(kept, h)
			}
		}
		st.tradeHistory[sym] = kept
	}
	return nil
}

// Snapshot is the serializable per-account compliance state used for
// persistence (§6.4): it must round-trip through (de)serialization.
type Snapshot struct {
	Version               int                         `json:"version"`
	Scope                 domain.AccountScope         `json:"scope"`
	Equity                float64                     `json:"equity"`
	BuyingPower           float64                     `json:"buying_power"`
	DayTradingBuyingPower float64                     `json:"day_trading_buying_power"`
	IsPatternDayTrader    bool                        `json:"is_pattern_day_trader"`
	DayTrades             []domain.DayTrade           `json:"day_trades"`
	IntradayPositions     []domain.IntradayPosition   `json:"intraday_positions"`
	UnsettledPositions    []domain.UnsettledPosition  `json:"unsettled_positions"`
	TradeHistory          map[string][]domain.TradeHistoryEntry `json:"trade_history"`
	Violations            []domain.ComplianceViolation `json:"violations"`
	RestrictedUntil        *time.Time                  `json:"restricted_until,omitempty"`
	RestrictionType         domain.RestrictionType      `json:"restriction_type,omitempty"`
	TradingStopped          bool                        `json:"trading_stopped"`
	StopReason              string                      `json:"stop_reason,omitempty"`
}

const snapshotVersion = 1

func (m *Manager) Snapshot(scope domain.AccountScope) Snapshot {
	st := m.state(scope)
	st.mu.Lock()
	defer st.mu.Unlock()

	positions := make([]domain.IntradayPosition, 0, len(st.intradayPositions))
	for _, p := range st.intradayPositions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	history := make(map[string][]domain.TradeHistoryEntry, len(st.tradeHistory))
	for k, v := range st.tradeHistory {
		history[k] = append([]domain.TradeHistoryEntry(nil), v...)
	}

	return Snapshot{
		Version:               snapshotVersion,
		Scope:                 scope,
		Equity:                st.equity,
		BuyingPower:           st.buyingPower,
		DayTradingBuyingPower: st.dayTradingBuyingPower,
		IsPatternDayTrader:    st.isPatternDayTrader,
		DayTrades:             append([]domain.DayTrade(nil), st.dayTrades...),
		IntradayPositions:     positions,
		UnsettledPositions:    append([]domain.UnsettledPosition(nil), st.unsettledPositions...),
		TradeHistory:          history,
		Violations:            append([]domain.ComplianceViolation(nil), st.violations...),
		RestrictedUntil:        st.restrictedUntil,
		RestrictionType:         st.restrictionType,
		TradingStopped:          st.tradingStopped,
		StopReason:              st.stopReason,
	}
}

func (m *Manager) Restore(snap Snapshot) error {
	if snap.Version == 0 {
		return enginerr.Client("compliance snapshot missing version")
	}
	st := newAccountState()
	st.equity = snap.Equity
	st.buyingPower = snap.BuyingPower
	st.dayTradingBuyingPower = snap.DayTradingBuyingPower
	st.isPatternDayTrader = snap.IsPatternDayTrader
	st.dayTrades = append([]domain.DayTrade(nil), snap.DayTrades...)
	for _, p := range snap.IntradayPositions {
		st.intradayPositions[p.Symbol] = p
	}
	st.unsettledPositions = append([]domain.UnsettledPosition(nil), snap.UnsettledPositions...)
	st.tradeHistory = make(map[string][]domain.TradeHistoryEntry, len(snap.TradeHistory))
	for k, v := range snap.TradeHistory {
		st.tradeHistory[k] = append([]domain.TradeHistoryEntry(nil), v...)
	}
	st.violations = append([]domain.ComplianceViolation(nil), snap.Violations...)
	st.restrictedUntil = snap.RestrictedUntil
	st.restrictionType = snap.RestrictionType
	st.tradingStopped = snap.TradingStopped
	st.stopReason = snap.StopReason

	m.mu.Lock()
	m.accounts[snap.Scope] = st
	m.mu.Unlock()
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func countDayTradesSince(trades []domain.DayTrade, since time.Time) int {
	n := 0
	for _, t := range trades {
		if !t.TradeDate.Before(since) {
			n++
		}
	}
	return n
}

func usedDTBPToday(trades []domain.DayTrade, today time.Time) float64 {
	var used float64
	for _, t := range trades {
		if sameDay(t.TradeDate, today) {
			used += t.BuyPrice * t.Quantity
		}
	}
	return used
}

func unsettledQty(positions []domain.UnsettledPosition, symbol string) float64 {
	var total float64
	for _, p := range positions {
		if p.Symbol == symbol {
			total += p.Quantity
		}
	}
	return total
}

func unsettledCostBasis(positions []domain.UnsettledPosition) float64 {
	var total float64
	for _, p := range positions {
		total += p.CostBasis
	}
	return total
}

func hasSellWithinDays(history []domain.TradeHistoryEntry, today time.Time, days int) bool {
	cutoff := today.AddDate(0, 0, -days)
	for _, h := range history {
		if h.Side == domain.SideSell && h.Timestamp.After(cutoff) {
			return true
		}
	}
	return false
}

func avgBuyPriceWithinDays(history []domain.TradeHistoryEntry, today time.Time, days int) (float64, bool) {
	cutoff := today.AddDate(0, 0, -days)
	var sum, qty float64
	found := false
	for _, h := range history {
		if h.Side == domain.SideBuy && h.Timestamp.After(cutoff) {
			sum += h.Price * h.Quantity
			qty += h.Quantity
			found = true
		}
	}
	if !found || qty == 0 {
		return 0, false
	}
	return sum / qty, true
}
