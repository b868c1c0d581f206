// Package money centralizes exact decimal arithmetic for anything
// compared against a regulatory dollar threshold (buying power, day
// trading buying power, PnL limits) or used in fee computation. Plain
// float64 is fine for signal strength and confidence; it is not fine for
// numbers a PDT or DTBP check hinges on.
package money

import "github.com/shopspring/decimal"

type D = decimal.Decimal

func FromFloat(f float64) D { return decimal.NewFromFloat(f) }

func Zero() D { return decimal.Zero }

// Notional returns qty*price as an exact decimal.
func Notional(qty, price float64) D {
	return FromFloat(qty).Mul(FromFloat(price))
}

// GreaterThan reports whether a > b, comparing as decimals to avoid
// float64 rounding artifacts near threshold boundaries.
func GreaterThan(a, b float64) bool {
	return FromFloat(a).GreaterThan(FromFloat(b))
}

func GreaterOrEqual(a, b float64) bool {
	return FromFloat(a).GreaterThanOrEqual(FromFloat(b))
}

// LessThan reports whether a < b, comparing as decimals.
func LessThan(a, b float64) bool {
	return FromFloat(a).LessThan(FromFloat(b))
}

// ToFloat converts a decimal back to float64 for callers that only need
// exactness through the comparison/computation, not in the return type.
func ToFloat(d D) float64 {
	f, _ := d.Float64()
	return f
}

// Pct returns value * pct/100 as a float64, computed through decimal to
// keep percentage-of-equity comparisons exact.
func Pct(value, pct float64) float64 {
	r := FromFloat(value).Mul(FromFloat(pct)).Div(decimal.NewFromInt(100))
	f, _ := r.Float64()
	return f
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	f, _ := FromFloat(v).Round(2).Float64()
	return f
}
