package account

// Binance-style fixed maintenance-amount-ratio rates for isolated margin.
const (
	marginLongRate  = 0.05
	marginShortRate = 0.0476190501
)

// marginLiquidationPrice computes the isolated-margin liquidation price.
// marginBalance is the posted margin (equal to initialBalance at open).
func marginLiquidationPrice(side sideKind, entry, marginBalance, qty float64, leverage int) (float64, error) {
	notional := entry * qty
	initialBalance := notional / float64(leverage)
	if marginBalance < initialBalance {
		return 0, ErrInsufficientCash
	}
	if marginBalance >= notional {
		return 0, ErrNoLiquidationRisk
	}
	switch side {
	case sideLong:
		drop := marginLongRate * (notional - marginBalance) / qty
		return entry - (marginBalance/qty - drop), nil
	case sideShort:
		drop := marginShortRate * (notional + marginBalance) / qty
		return entry + (marginBalance/qty - drop), nil
	default:
		return 0, ErrInvalidPositionType
	}
}

// futuresLiquidationPrice computes the tiered linear-perpetual liquidation
// price. Long positions whose margin already covers the full notional
// cannot be liquidated and report 0.0.
func futuresLiquidationPrice(side sideKind, entry, marginBalance, qty float64, leverage int) (float64, error) {
	notional := entry * qty
	initialBalance := notional / float64(leverage)
	if marginBalance < initialBalance {
		return 0, ErrInsufficientCash
	}
	tier, err := lookupFuturesTier(notional)
	if err != nil {
		return 0, err
	}
	if leverage > tier.MaxLeverage {
		return 0, ErrInvalidLeverage
	}
	ma := tier.MaintenanceAmount
	mmr := tier.MMR

	switch side {
	case sideLong:
		if marginBalance >= notional {
			return 0.0, nil
		}
		return (marginBalance + ma - qty*entry) / (qty*mmr - qty), nil
	case sideShort:
		return (marginBalance + ma + qty*entry) / (qty*mmr + qty), nil
	default:
		return 0, ErrInvalidPositionType
	}
}

type sideKind int

const (
	sideLong sideKind = iota
	sideShort
)
