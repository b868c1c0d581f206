package domain

import "time"

// AccountType scopes which compliance rules apply to an account.
type AccountType string

const (
	AccountCash   AccountType = "cash"
	AccountMargin AccountType = "margin"
	AccountIRA    AccountType = "ira"
	AccountPaper  AccountType = "paper"
)

// AccountScope identifies one compliance-manager instance: a single
// broker account. Rules are per-account, never process-global.
type AccountScope struct {
	Broker      string
	AccountID   string
	AccountType AccountType
}

// CheckAction is the strongest outcome of a pre-trade compliance check.
// Ordered StopDay > Block > Confirm > Warn > Allow; actionRank gives that
// order as an integer for aggregation.
type CheckAction string

const (
	ActionAllow   CheckAction = "allow"
	ActionWarn    CheckAction = "warn"
	ActionConfirm CheckAction = "confirm"
	ActionBlock   CheckAction = "block"
	ActionStopDay CheckAction = "stop_day"
)

var actionRank = map[CheckAction]int{
	ActionAllow:   0,
	ActionWarn:    1,
	ActionConfirm: 2,
	ActionBlock:   3,
	ActionStopDay: 4,
}

// StrongerAction returns the stronger of two actions under the
// aggregation rule in §4.4.1.
func StrongerAction(a, b CheckAction) CheckAction {
	if actionRank[b] > actionRank[a] {
		return b
	}
	return a
}

type ViolationKind string

const (
	ViolationPDT        ViolationKind = "pdt_violation"
	ViolationGoodFaith   ViolationKind = "good_faith"
	ViolationFreeriding  ViolationKind = "freeriding"
	ViolationDTBP        ViolationKind = "dtbp"
	ViolationWashSale    ViolationKind = "wash_sale"
	ViolationRestriction ViolationKind = "restriction"
	ViolationStopped     ViolationKind = "trading_stopped"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ComplianceViolation records one rule outcome, whether informational or
// blocking.
type ComplianceViolation struct {
	Kind          ViolationKind
	Severity      Severity
	Action        CheckAction
	Title         string
	Description   string
	Regulation    string
	Details       map[string]any
	Timestamp     time.Time
}

// RestrictionType enumerates why an account might be under a compliance
// hold, supplementing the distilled spec's opaque "restriction_type".
type RestrictionType string

const (
	RestrictionPDTFlag        RestrictionType = "pdt_flag"
	RestrictionManualHold     RestrictionType = "manual_hold"
	RestrictionMarginCall     RestrictionType = "margin_call"
	RestrictionRegulatoryHold RestrictionType = "regulatory_hold"
)

// CheckResult is the return value of a pre-trade compliance check.
type CheckResult struct {
	Allowed              bool
	Action               CheckAction
	Violations           []ComplianceViolation
	Warnings             []ComplianceViolation
	RequiresConfirmation bool
	StopTrading          bool
}

// DayTrade is created when a sell closes a same-day buy position.
type DayTrade struct {
	Symbol    string
	TradeDate time.Time
	BuyTime   time.Time
	SellTime  time.Time
	Quantity  float64
	BuyPrice  float64
	SellPrice float64
}

func (d DayTrade) PnL() float64 {
	return (d.SellPrice - d.BuyPrice) * d.Quantity
}

// UnsettledPosition is created on a cash-account buy and removed once
// today >= SettlementDate.
type UnsettledPosition struct {
	Symbol         string
	Quantity       float64
	PurchaseDate   time.Time
	SettlementDate time.Time
	CostBasis      float64
}

// TradeHistoryEntry is a per-symbol ring entry retained 60 days, used
// only for wash-sale detection.
type TradeHistoryEntry struct {
	Side      OrderSide
	Quantity  float64
	Price     float64
	Timestamp time.Time
}

// IntradayPosition tracks same-day-opened exposure per symbol, cleared at
// daily reset.
type IntradayPosition struct {
	Symbol   string
	Quantity float64
	AvgPrice float64
	OpenTime time.Time
}
