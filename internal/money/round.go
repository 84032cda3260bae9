// Package money holds the one place this engine needs exact (non-float)
// arithmetic: truncating a requested quantity down to a configured step.
package money

import "github.com/shopspring/decimal"

// Truncate rounds qty down (never up, never to nearest) to the nearest
// multiple of step. Both qty and step are treated as exact decimals so that
// truncation is bit-for-bit reproducible regardless of float64 rounding
// noise in qty itself.
func Truncate(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	q := decimal.NewFromFloat(qty)
	s := decimal.NewFromFloat(step)
	if q.Sign() <= 0 {
		return 0
	}
	units := q.Div(s).Truncate(0)
	result := units.Mul(s)
	f, _ := result.Float64()
	if f < 0 {
		return 0
	}
	return f
}
