package account

import (
	"log"
	"time"

	"github.com/amaraeze/btengine/internal/config"
	"github.com/amaraeze/btengine/internal/fees"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/amaraeze/btengine/internal/tape"
)

// MarginAccount is the isolated-margin mode: each order is an
// independently liquidatable position with its own leverage and maintenance
// requirement.
type MarginAccount struct {
	*Base
	cfg config.Config
}

// NewMarginAccount constructs a MarginAccount with the given starting cash.
func NewMarginAccount(name string, cash float64, cfg config.Config, idGen order.IDGenerator, logger *log.Logger, verbose bool) *MarginAccount {
	return &MarginAccount{
		Base: newBase(name, order.Margin, "regular", cash, cfg, idGen, logger, verbose),
		cfg:  cfg,
	}
}

func (a *MarginAccount) Mode() order.Mode { return order.Margin }

// ResolveQty resolves the ALL_CASH sentinel against the account's current
// cash. Margin has no ALL_HOLDINGS equivalent since it never holds a spot
// balance. rawPrice is the unslipped tape price.
func (a *MarginAccount) ResolveQty(q order.Qty, side order.Side, rawPrice float64, leverage int) float64 {
	if q.IsAllCash() {
		slipped := applySlippage(rawPrice, side, a.cfg.Slippage.Rate("margin"))
		return a.MaxOpenQty(slipped, leverage, side, true)
	}
	return q.Value()
}

// Open books a new leveraged position.
func (a *MarginAccount) Open(o *order.Order, ts time.Time, tp *tape.Tape, calc fees.Calculator) (Result, error) {
	if o.Mode != order.Margin {
		return rejected(ErrUnsupportedMode), nil
	}
	if o.Leverage > a.cfg.MarginMaxLeverage {
		a.logf("order %s: leverage %d exceeds margin max %d", o.ID, o.Leverage, a.cfg.MarginMaxLeverage)
		return rejected(ErrInvalidLeverage), nil
	}

	price, err := tp.Price(o.Asset, ts)
	if err != nil {
		return Result{}, err
	}
	px := applySlippage(price, o.Side, a.cfg.Slippage.Rate("margin"))

	o.Qty = a.roundQty(o.Qty)
	if o.Qty <= 0 {
		a.logf("order %s has non-positive quantity after rounding", o.ID)
		return rejected(ErrInvalidQuantity), nil
	}

	notional := o.Qty * px
	margin := notional / float64(o.Leverage)
	fee := calc.TradeFee("margin", a.Subtype, notional)
	if a.Cash < margin+fee {
		a.logf("order %s: insufficient cash, required %.8f available %.8f", o.ID, margin+fee, a.Cash)
		return rejected(ErrInsufficientCash), nil
	}

	side := sideLong
	if !o.Side.IsLong() {
		side = sideShort
	}
	liqPrice, err := marginLiquidationPrice(side, px, margin, o.Qty, o.Leverage)
	if err != nil {
		a.logf("order %s: cannot open, liquidation price error: %v", o.ID, err)
		return rejected(err), nil
	}

	if o.Side.IsLong() {
		a.Holdings[o.Asset] += o.Qty
	} else {
		a.Holdings[o.Asset] -= o.Qty
	}

	a.Cash -= margin + fee
	o.EntryPrice = px
	o.TradeFeeOpen = fee
	o.OpenTs = ts
	o.OpenNotional = notional
	o.OpenMargin = margin
	o.OpenUser = margin + fee
	o.LiquidationPrice = liqPrice
	a.Base.OpenOrders = append(a.Base.OpenOrders, o)
	a.logf("margin order %s opened at %.8f on %s, liquidation price %.8f", o.ID, px, ts, liqPrice)
	return accepted(o), nil
}

// closeValues computes the final cash value of closing o at px on ts.
func (a *MarginAccount) closeValues(px float64, o *order.Order, ts time.Time, calc fees.Calculator) (closedUser, pnl, fee, borrow, refund float64) {
	hours := ts.Sub(o.OpenTs).Hours()
	pnl = (px - o.EntryPrice) * o.Qty
	if !o.Side.IsLong() {
		pnl = -pnl
	}
	exitNotional := o.Qty * px
	fee = calc.TradeFee("margin", a.Subtype, exitNotional)
	borrowAmount := o.OpenNotional - o.OpenMargin
	borrow = calc.BorrowFee(borrowAmount, hours)
	refund = o.Qty * o.EntryPrice / float64(o.Leverage)
	closedUser = pnl + refund - fee - borrow
	return
}

// Close closes an open margin position.
func (a *MarginAccount) Close(orderID string, ts time.Time, tp *tape.Tape, calc fees.Calculator) (Result, error) {
	o := a.findOpen(orderID)
	if o == nil {
		if closed := a.findClosed(orderID); closed != nil {
			a.logf("order %s already closed", orderID)
			return accepted(closed), nil
		}
		return Result{}, ErrOrderNotFound
	}

	price, err := tp.Price(o.Asset, ts)
	if err != nil {
		return Result{}, err
	}
	px := applySlippage(price, o.Side.Opposite(), a.cfg.Slippage.Rate("margin"))

	closedNotional := o.Qty * px
	closedUser, pnl, fee, borrow, refund := a.closeValues(px, o, ts, calc)

	a.Cash += pnl + refund - fee - borrow

	if o.OpenMargin != 0 {
		o.ROIPct = pnl / o.OpenMargin * 100
	}
	if o.OpenUser != 0 {
		o.RealizedROIPct = (closedUser - o.OpenUser) / o.OpenUser * 100
	}

	if o.Side.IsLong() {
		a.Holdings[o.Asset] -= o.Qty
	} else {
		a.Holdings[o.Asset] += o.Qty
	}

	if o.EntryPrice != 0 {
		o.PriceChangePct = (px - o.EntryPrice) / o.EntryPrice * 100
	}
	o.BorrowFeeMargin = borrow
	o.TradeFeeClose = fee
	o.ClosedNotional = closedNotional
	o.ClosedAmount = pnl + refund
	o.ClosedUser = closedUser
	o.UnrealizedPnL = pnl
	o.RealizedPnL = closedUser - o.OpenUser

	a.recordClose(o, px, ts, false)
	a.logf("margin order %s closed at %.8f on %s", o.ID, px, ts)
	return accepted(o), nil
}

// UpdatePortfolioValue values open margin positions at their unrealized
// closing cash value, summed with cash.
func (a *MarginAccount) UpdatePortfolioValue(prices map[string]float64, ts time.Time, calc fees.Calculator) error {
	total := a.Cash
	for _, o := range a.OpenOrders() {
		price, ok := prices[o.Asset]
		if !ok {
			continue
		}
		closedUser, _, _, _, _ := a.closeValues(price, o, ts, calc)
		total += closedUser
	}
	a.PortfolioValue = total
	return nil
}

// MaxOpenQty returns the maximum leveraged quantity purchasable with
// available cash at price, for leverage.
func (a *MarginAccount) MaxOpenQty(price float64, leverage int, side order.Side, priceIsSlipped bool) float64 {
	if price <= 0 {
		return 0
	}
	px := price
	if !priceIsSlipped {
		px = applySlippage(price, side, a.cfg.Slippage.Rate("margin"))
	}
	if px <= 0 {
		return 0
	}
	feeRate := a.cfg.FeeStructure.Rate("margin", a.Subtype)
	maxQty := a.Cash / (px * (1/float64(leverage) + feeRate))
	return a.roundQty(maxQty)
}

// CloseAllOpenOrders closes every open order at ts.
func (a *MarginAccount) CloseAllOpenOrders(ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result {
	var results []Result
	for _, o := range append([]*order.Order(nil), a.OpenOrders()...) {
		r, err := a.Close(o.ID, ts, tp, calc)
		if err != nil {
			a.logf("error closing order %s: %v", o.ID, err)
			continue
		}
		results = append(results, r)
	}
	return results
}

// CloseAllOpenOrdersByAsset closes every open order for asset at ts.
func (a *MarginAccount) CloseAllOpenOrdersByAsset(asset string, ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result {
	var results []Result
	for _, o := range append([]*order.Order(nil), a.OpenOrders()...) {
		if o.Asset != asset {
			continue
		}
		r, err := a.Close(o.ID, ts, tp, calc)
		if err != nil {
			a.logf("error closing order %s: %v", o.ID, err)
			continue
		}
		results = append(results, r)
	}
	return results
}

// CloseAllOpenOrdersByAssetAndSide closes every open order for asset and side
// at ts.
func (a *MarginAccount) CloseAllOpenOrdersByAssetAndSide(asset string, side order.Side, ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result {
	var results []Result
	for _, o := range append([]*order.Order(nil), a.OpenOrders()...) {
		if o.Asset != asset || o.Side != side {
			continue
		}
		r, err := a.Close(o.ID, ts, tp, calc)
		if err != nil {
			a.logf("error closing order %s: %v", o.ID, err)
			continue
		}
		results = append(results, r)
	}
	return results
}

// LongShortCountsByAsset counts open long and short orders for asset.
func (a *MarginAccount) LongShortCountsByAsset(asset string) (longs, shorts int) {
	for _, o := range a.OpenOrders() {
		if o.Asset != asset {
			continue
		}
		if o.Side.IsLong() {
			longs++
		} else {
			shorts++
		}
	}
	return
}

func (a *MarginAccount) OpenOrders() []*order.Order { return a.Base.OpenOrders }

func (a *MarginAccount) Value() float64 { return a.PortfolioValue }

func (a *MarginAccount) Details() Details { return a.Base.details() }
