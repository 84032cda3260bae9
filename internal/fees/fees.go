// Package fees implements the Fee Calculator: a pure, stateless function
// object computing trading, borrow and funding fees from configured rates.
package fees

import "github.com/amaraeze/btengine/internal/config"

// Calculator computes trade, borrow and funding fees from a FeeStructure and
// two flat rates. It holds no mutable state.
type Calculator struct {
	structure    config.FeeStructure
	borrowRateHr float64
	fundingRate  float64
}

// New builds a Calculator from the engine configuration.
func New(cfg config.Config) Calculator {
	return Calculator{
		structure:    cfg.FeeStructure,
		borrowRateHr: cfg.BorrowInterestHourly,
		fundingRate:  cfg.FundingFeeEvery8h,
	}
}

// TradeFee returns notional * fee_struct[mode][subtype].
func (c Calculator) TradeFee(mode, subtype string, notional float64) float64 {
	return notional * c.structure.Rate(mode, subtype)
}

// BorrowFee returns borrowAmount * borrowRateHourly * hours. hours may be
// fractional.
func (c Calculator) BorrowFee(borrowAmount, hours float64) float64 {
	return borrowAmount * c.borrowRateHr * hours
}

// FundingFee returns notional * fundingRatePerPeriod * nEvents.
func (c Calculator) FundingFee(notional float64, nEvents int) float64 {
	return notional * c.fundingRate * float64(nEvents)
}
