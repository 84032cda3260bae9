package account

import "errors"

// Sentinel errors for the "reject locally" taxonomy. These are carried as
// Result.Reason, not necessarily returned as the function's error value —
// see Result's doc comment.
var (
	ErrInsufficientCash     = errors.New("account: insufficient cash")
	ErrInsufficientHoldings = errors.New("account: insufficient holdings")
	ErrInvalidLeverage      = errors.New("account: invalid leverage")
	ErrInvalidQuantity      = errors.New("account: invalid quantity")
	ErrInvalidPositionType  = errors.New("account: invalid position type")
	ErrNoLiquidationRisk    = errors.New("account: no liquidation risk, margin exceeds notional")
	ErrNotionalOutOfRange   = errors.New("account: notional value out of supported range")
	ErrUnsupportedMode      = errors.New("account: unsupported account mode for this operation")

	// ErrOrderNotFound is a structural NotFound: margin and futures Close
	// surface it to the caller as a real error rather than folding it into
	// Result.Reason. Spot Close, which has nothing to close, reports it as
	// Result.Reason with a nil error.
	ErrOrderNotFound = errors.New("account: order not found")
)
