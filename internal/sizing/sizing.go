// Package sizing turns a signal and account state into an order
// quantity. Grounded in the margin-adequacy check the reference trader
// runs before opening a position: never size past available buying
// power, and never submit a quantity that rounds down to zero.
package sizing

import (
	"math"

	"github.com/xfactor-labs/tradeforge/internal/enginerr"
)

// Method selects the sizing strategy a bot config requests.
type Method string

const (
	FixedFractional Method = "fixed_fractional" // risk a fixed % of equity per trade
	FixedDollar     Method = "fixed_dollar"     // spend a fixed dollar amount per trade
	VolatilityAdjusted Method = "volatility_adjusted" // scale fixed fraction by inverse ATR
	KellyFraction   Method = "kelly_fraction"   // scale by a fractional Kelly estimate
)

// Input bundles everything a sizing decision needs. ATR and WinRate/
// AvgWinLossRatio are optional (zero value means "unused"); callers
// leave them blank when the chosen Method doesn't need them.
type Input struct {
	Method          Method
	Equity          float64
	BuyingPower     float64
	Price           float64
	RiskFraction    float64 // e.g. 0.01 = risk 1% of equity
	FixedDollarAmt  float64
	ATR             float64
	AvgTrueRangePct float64 // ATR as a fraction of price, used when ATR itself is unknown
	WinRate         float64
	AvgWinLossRatio float64
	MaxPositionPct  float64 // hard cap as a fraction of equity, default 0.25
}

// Result reports the computed quantity plus the notional and whether it
// was clamped by buying power or the max-position cap.
type Result struct {
	Quantity      float64
	Notional      float64
	ClampedBy     string // "", "buying_power", "max_position"
}

// Size computes an order quantity for the given input. Returns an error
// when the inputs make any nonzero size impossible (non-positive price,
// non-positive equity) or when the method is unknown.
func Size(in Input) (Result, error) {
	if in.Price <= 0 {
		return Result{}, enginerr.Client("sizing: price must be positive, got %v", in.Price)
	}
	if in.Equity <= 0 {
		return Result{}, enginerr.Client("sizing: equity must be positive, got %v", in.Equity)
	}

	maxPct := in.MaxPositionPct
	if maxPct <= 0 {
		maxPct = 0.25
	}

	var dollarSize float64
	switch in.Method {
	case FixedDollar:
		dollarSize = in.FixedDollarAmt
	case VolatilityAdjusted:
		riskFrac := in.RiskFraction
		if riskFrac <= 0 {
			riskFrac = 0.01
		}
		atrPct := in.AvgTrueRangePct
		if in.ATR > 0 {
			atrPct = in.ATR / in.Price
		}
		if atrPct <= 0 {
			atrPct = 0.02
		}
		// Inverse-volatility scaling: a wider ATR shrinks the position
		// so expected risk in dollars stays close to riskFrac*equity.
		dollarSize = (riskFrac * in.Equity) / atrPct
	case KellyFraction:
		kelly := kellyFraction(in.WinRate, in.AvgWinLossRatio)
		dollarSize = kelly * in.Equity
	case FixedFractional, "":
		riskFrac := in.RiskFraction
		if riskFrac <= 0 {
			riskFrac = 0.02
		}
		dollarSize = riskFrac * in.Equity
	default:
		return Result{}, enginerr.Client("sizing: unknown method %q", in.Method)
	}

	clampedBy := ""
	maxDollar := in.Equity * maxPct
	if dollarSize > maxDollar {
		dollarSize = maxDollar
		clampedBy = "max_position"
	}
	if in.BuyingPower > 0 && dollarSize > in.BuyingPower {
		dollarSize = in.BuyingPower
		clampedBy = "buying_power"
	}
	if dollarSize <= 0 {
		return Result{}, nil
	}

	qty := math.Floor((dollarSize/in.Price)*1e6) / 1e6
	return Result{
		Quantity:  qty,
		Notional:  qty * in.Price,
		ClampedBy: clampedBy,
	}, nil
}

// kellyFraction applies a half-Kelly haircut, matching the conservative
// convention of sizing strategies that use a win-rate/payoff estimate:
// full Kelly is too aggressive against estimation error in win rate.
func kellyFraction(winRate, winLossRatio float64) float64 {
	if winRate <= 0 || winRate >= 1 || winLossRatio <= 0 {
		return 0
	}
	f := winRate - (1-winRate)/winLossRatio
	if f < 0 {
		f = 0
	}
	f *= 0.5
	if f > 0.25 {
		f = 0.25
	}
	return f
}
