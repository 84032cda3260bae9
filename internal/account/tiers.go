package account

import "fmt"

// FuturesTier is one row of the notional-bracket maintenance-margin ladder
// used to size maintenance requirements for linear perpetual futures.
type FuturesTier struct {
	Min               float64
	Max               float64
	MaxLeverage       int
	MMR               float64
	MaintenanceAmount float64
}

// futuresTiers is the full 12-row ladder, in ascending, non-overlapping,
// half-open bracket order.
var futuresTiers = []FuturesTier{
	{Min: 0, Max: 300_000, MaxLeverage: 125, MMR: 0.0040, MaintenanceAmount: 0},
	{Min: 300_000, Max: 800_000, MaxLeverage: 100, MMR: 0.0050, MaintenanceAmount: 300},
	{Min: 800_000, Max: 3_000_000, MaxLeverage: 75, MMR: 0.0065, MaintenanceAmount: 1_500},
	{Min: 3_000_000, Max: 12_000_000, MaxLeverage: 50, MMR: 0.0100, MaintenanceAmount: 12_000},
	{Min: 12_000_000, Max: 70_000_000, MaxLeverage: 25, MMR: 0.0200, MaintenanceAmount: 132_000},
	{Min: 70_000_000, Max: 100_000_000, MaxLeverage: 20, MMR: 0.0250, MaintenanceAmount: 482_000},
	{Min: 100_000_000, Max: 230_000_000, MaxLeverage: 10, MMR: 0.0500, MaintenanceAmount: 2_982_000},
	{Min: 230_000_000, Max: 480_000_000, MaxLeverage: 5, MMR: 0.1000, MaintenanceAmount: 14_482_000},
	{Min: 480_000_000, Max: 600_000_000, MaxLeverage: 4, MMR: 0.1250, MaintenanceAmount: 26_482_000},
	{Min: 600_000_000, Max: 800_000_000, MaxLeverage: 3, MMR: 0.1500, MaintenanceAmount: 41_482_000},
	{Min: 800_000_000, Max: 1_200_000_000, MaxLeverage: 2, MMR: 0.2500, MaintenanceAmount: 121_482_000},
	{Min: 1_200_000_000, Max: 1_800_000_000, MaxLeverage: 1, MMR: 0.5000, MaintenanceAmount: 421_482_000},
}

// lookupFuturesTier finds the bracket containing notional, [min, max).
func lookupFuturesTier(notional float64) (FuturesTier, error) {
	for _, t := range futuresTiers {
		if notional >= t.Min && notional < t.Max {
			return t, nil
		}
	}
	return FuturesTier{}, fmt.Errorf("%w: notional %.2f", ErrNotionalOutOfRange, notional)
}
