package account

import (
	"log"
	"time"

	"github.com/amaraeze/btengine/internal/config"
	"github.com/amaraeze/btengine/internal/fees"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/amaraeze/btengine/internal/tape"
)

// SpotAccount is the unleveraged, instant-fill account mode.
// Every accepted order is booked directly into History; SpotAccount never
// carries open-position state, so the bulk-close helpers and liquidation
// detector are no-ops for it.
type SpotAccount struct {
	*Base
	cfg config.Config
}

// NewSpotAccount constructs a SpotAccount with the given starting cash.
func NewSpotAccount(name string, cash float64, cfg config.Config, idGen order.IDGenerator, logger *log.Logger, verbose bool) *SpotAccount {
	return &SpotAccount{
		Base: newBase(name, order.Spot, "regular", cash, cfg, idGen, logger, verbose),
		cfg:  cfg,
	}
}

func (a *SpotAccount) Mode() order.Mode { return order.Spot }

// Open fills o immediately at the slipped current price, crediting/debiting
// cash and holdings, and records it straight into History.
func (a *SpotAccount) Open(o *order.Order, ts time.Time, tp *tape.Tape, calc fees.Calculator) (Result, error) {
	if o.Mode != order.Spot {
		return rejected(ErrUnsupportedMode), nil
	}
	if o.Closed {
		return rejected(ErrInvalidQuantity), nil
	}

	price, err := tp.Price(o.Asset, ts)
	if err != nil {
		return Result{}, err
	}
	px := applySlippage(price, o.Side, a.cfg.Slippage.Rate("spot"))

	if o.Qty <= 0 {
		return rejected(ErrInvalidQuantity), nil
	}

	o.Qty = a.roundQty(o.Qty)
	if o.Qty <= 0 {
		a.logf("order %s has non-positive quantity after rounding", o.ID)
		return rejected(ErrInvalidQuantity), nil
	}

	cost := o.Qty * px
	fee := calc.TradeFee("spot", a.Subtype, cost)

	if o.Side.IsLong() {
		required := cost + fee
		if a.Cash < required {
			a.logf("order %s: insufficient cash, required %.8f available %.8f", o.ID, required, a.Cash)
			return rejected(ErrInsufficientCash), nil
		}
		a.Cash -= required
		a.Holdings[o.Asset] += o.Qty
		o.OpenUser = required
		o.OpenNotional = cost
	} else {
		if a.Holdings[o.Asset] < o.Qty {
			a.logf("order %s: insufficient holdings, required %.8f available %.8f", o.ID, o.Qty, a.Holdings[o.Asset])
			return rejected(ErrInsufficientHoldings), nil
		}
		a.Holdings[o.Asset] -= o.Qty
		a.Cash += cost - fee
		o.OpenUser = cost - fee
		o.OpenNotional = cost
	}
	o.OpenMargin = o.OpenNotional
	o.EntryPrice = px
	o.TradeFeeSpot = fee
	o.OpenTs = ts
	o.Closed = true
	a.History = append(a.History, o)
	a.logf("spot order %s opened at %.8f on %s", o.ID, px, ts)
	return accepted(o), nil
}

// ResolveQty resolves the ALL_CASH/ALL_HOLDINGS sentinels against the
// account's current state, returning the concrete quantity o.Qty should
// carry before Open is called. rawPrice is the unslipped tape price.
func (a *SpotAccount) ResolveQty(q order.Qty, asset string, side order.Side, rawPrice float64) float64 {
	switch {
	case q.IsAllCash():
		slipped := applySlippage(rawPrice, side, a.cfg.Slippage.Rate("spot"))
		return a.MaxOpenQty(slipped, 1, side, true)
	case q.IsAllHoldings():
		return a.maxSellQty(asset)
	default:
		return q.Value()
	}
}

func (a *SpotAccount) maxSellQty(asset string) float64 {
	h := a.Holdings[asset]
	if h <= 0 {
		return 0
	}
	return h
}

// Close is a no-op: spot fills instantly, so there is nothing to close. It
// returns a rejected Result with ErrOrderNotFound as its Reason and a nil
// error.
func (a *SpotAccount) Close(orderID string, ts time.Time, tp *tape.Tape, calc fees.Calculator) (Result, error) {
	return rejected(ErrOrderNotFound), nil
}

// CloseAllOpenOrders is a documented no-op; spot has no open-position state.
func (a *SpotAccount) CloseAllOpenOrders(ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result {
	return nil
}

func (a *SpotAccount) CloseAllOpenOrdersByAsset(asset string, ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result {
	return nil
}

func (a *SpotAccount) CloseAllOpenOrdersByAssetAndSide(asset string, side order.Side, ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result {
	return nil
}

// UpdatePortfolioValue marks equity as cash plus the conservative value of
// holdings as if immediately liquidated: each holding's
// value is discounted by the spot sell-side trade fee.
func (a *SpotAccount) UpdatePortfolioValue(prices map[string]float64, ts time.Time, calc fees.Calculator) error {
	total := a.Cash
	for asset, qty := range a.Holdings {
		price := prices[asset]
		notional := qty * price
		total += notional - calc.TradeFee("spot", a.Subtype, notional)
	}
	a.PortfolioValue = total
	return nil
}

// MaxOpenQty returns the maximum quantity purchasable with available cash at
// px (leverage is ignored; spot never leverages). priceIsSlipped indicates px
// already includes slippage.
func (a *SpotAccount) MaxOpenQty(price float64, leverage int, side order.Side, priceIsSlipped bool) float64 {
	if price <= 0 {
		return 0
	}
	px := price
	if !priceIsSlipped {
		px = applySlippage(price, side, a.cfg.Slippage.Rate("spot"))
	}
	if px <= 0 {
		return 0
	}
	if !side.IsLong() {
		return 0
	}
	feeRate := a.cfg.FeeStructure.Rate("spot", a.Subtype)
	maxQty := a.Cash / (px * (1 + feeRate))
	return a.roundQty(maxQty)
}

// LongShortCountsByAsset always returns zero counts: spot never carries open
// positions.
func (a *SpotAccount) LongShortCountsByAsset(asset string) (longs, shorts int) { return 0, 0 }

func (a *SpotAccount) OpenOrders() []*order.Order { return a.Base.OpenOrders }

func (a *SpotAccount) Value() float64 { return a.PortfolioValue }

func (a *SpotAccount) Details() Details { return a.Base.details() }
