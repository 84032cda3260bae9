package account

import (
	"log"
	"time"

	"github.com/amaraeze/btengine/internal/config"
	"github.com/amaraeze/btengine/internal/fees"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/amaraeze/btengine/internal/tape"
)

const fundingPeriod = 8 * time.Hour

// fundingEventsBetween counts the 8h funding boundaries strictly between
// open and close. Boundaries fall on exact multiples of
// fundingPeriod since the Unix epoch.
func fundingEventsBetween(open, closeTs time.Time) int {
	if !closeTs.After(open) {
		return 0
	}
	period := int64(fundingPeriod.Seconds())
	openUnix := open.Unix()
	closeUnix := closeTs.Unix()
	kMin := openUnix/period + 1
	kMax := (closeUnix - 1) / period
	if kMax < kMin {
		return 0
	}
	return int(kMax - kMin + 1)
}

// FuturesAccount is the isolated linear-perpetual mode:
// structurally identical to Margin for open/close/PnL/fees, with borrow
// replaced by periodic funding and a tiered maintenance-margin ladder in
// place of the fixed MAMR rates.
type FuturesAccount struct {
	*Base
	cfg config.Config
}

// NewFuturesAccount constructs a FuturesAccount with the given starting cash.
func NewFuturesAccount(name string, cash float64, cfg config.Config, idGen order.IDGenerator, logger *log.Logger, verbose bool) *FuturesAccount {
	return &FuturesAccount{
		Base: newBase(name, order.Futures, "regular", cash, cfg, idGen, logger, verbose),
		cfg:  cfg,
	}
}

func (a *FuturesAccount) Mode() order.Mode { return order.Futures }

// ResolveQty resolves the ALL_CASH sentinel against the account's current
// cash. rawPrice is the unslipped tape price.
func (a *FuturesAccount) ResolveQty(q order.Qty, side order.Side, rawPrice float64, leverage int) float64 {
	if q.IsAllCash() {
		slipped := applySlippage(rawPrice, side, a.cfg.Slippage.Rate("futures"))
		return a.MaxOpenQty(slipped, leverage, side, true)
	}
	return q.Value()
}

// Open books a new futures position. liquidation_price is
// always populated on a successful open.
func (a *FuturesAccount) Open(o *order.Order, ts time.Time, tp *tape.Tape, calc fees.Calculator) (Result, error) {
	if o.Mode != order.Futures {
		return rejected(ErrUnsupportedMode), nil
	}

	price, err := tp.Price(o.Asset, ts)
	if err != nil {
		return Result{}, err
	}
	px := applySlippage(price, o.Side, a.cfg.Slippage.Rate("futures"))

	o.Qty = a.roundQty(o.Qty)
	if o.Qty <= 0 {
		a.logf("order %s has non-positive quantity after rounding", o.ID)
		return rejected(ErrInvalidQuantity), nil
	}

	notional := o.Qty * px
	tier, err := lookupFuturesTier(notional)
	if err != nil {
		a.logf("order %s: %v", o.ID, err)
		return rejected(err), nil
	}
	if o.Leverage > tier.MaxLeverage {
		a.logf("order %s: leverage %d exceeds tier max %d for notional %.2f", o.ID, o.Leverage, tier.MaxLeverage, notional)
		return rejected(ErrInvalidLeverage), nil
	}

	margin := notional / float64(o.Leverage)
	fee := calc.TradeFee("futures", a.Subtype, notional)
	if a.Cash < margin+fee {
		a.logf("order %s: insufficient cash, required %.8f available %.8f", o.ID, margin+fee, a.Cash)
		return rejected(ErrInsufficientCash), nil
	}

	side := sideLong
	if !o.Side.IsLong() {
		side = sideShort
	}
	liqPrice, err := futuresLiquidationPrice(side, px, margin, o.Qty, o.Leverage)
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
	a.logf("futures order %s opened at %.8f on %s, liquidation price %.8f", o.ID, px, ts, liqPrice)
	return accepted(o), nil
}

// closeValues computes the final cash value of closing o at px on ts,
// accruing funding instead of borrow interest.
func (a *FuturesAccount) closeValues(px float64, o *order.Order, ts time.Time, calc fees.Calculator) (closedUser, pnl, fee, funding, refund float64) {
	pnl = (px - o.EntryPrice) * o.Qty
	if !o.Side.IsLong() {
		pnl = -pnl
	}
	exitNotional := o.Qty * px
	fee = calc.TradeFee("futures", a.Subtype, exitNotional)
	nEvents := fundingEventsBetween(o.OpenTs, ts)
	funding = calc.FundingFee(o.OpenNotional, nEvents)
	refund = o.Qty * o.EntryPrice / float64(o.Leverage)
	closedUser = pnl + refund - fee - funding
	return
}

// Close closes an open futures position, accruing the
// funding fee owed for the position's lifetime.
func (a *FuturesAccount) Close(orderID string, ts time.Time, tp *tape.Tape, calc fees.Calculator) (Result, error) {
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
	px := applySlippage(price, o.Side.Opposite(), a.cfg.Slippage.Rate("futures"))

	closedNotional := o.Qty * px
	closedUser, pnl, fee, funding, refund := a.closeValues(px, o, ts, calc)

	a.Cash += pnl + refund - fee - funding

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
	o.FundingFeeFutures = funding
	o.TradeFeeClose = fee
	o.ClosedNotional = closedNotional
	o.ClosedAmount = pnl + refund
	o.ClosedUser = closedUser
	o.UnrealizedPnL = pnl
	o.RealizedPnL = closedUser - o.OpenUser

	a.recordClose(o, px, ts, false)
	a.logf("futures order %s closed at %.8f on %s", o.ID, px, ts)
	return accepted(o), nil
}

// UpdatePortfolioValue values open futures positions at their unrealized
// closing cash value, summed with cash.
func (a *FuturesAccount) UpdatePortfolioValue(prices map[string]float64, ts time.Time, calc fees.Calculator) error {
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
// available cash at price, for leverage (same formula as Margin).
func (a *FuturesAccount) MaxOpenQty(price float64, leverage int, side order.Side, priceIsSlipped bool) float64 {
	if price <= 0 {
		return 0
	}
	px := price
	if !priceIsSlipped {
		px = applySlippage(price, side, a.cfg.Slippage.Rate("futures"))
	}
	if px <= 0 {
		return 0
	}
	feeRate := a.cfg.FeeStructure.Rate("futures", a.Subtype)
	maxQty := a.Cash / (px * (1/float64(leverage) + feeRate))
	return a.roundQty(maxQty)
}

// CloseAllOpenOrders closes every open order at ts.
func (a *FuturesAccount) CloseAllOpenOrders(ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result {
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
func (a *FuturesAccount) CloseAllOpenOrdersByAsset(asset string, ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result {
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
func (a *FuturesAccount) CloseAllOpenOrdersByAssetAndSide(asset string, side order.Side, ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result {
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
func (a *FuturesAccount) LongShortCountsByAsset(asset string) (longs, shorts int) {
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

func (a *FuturesAccount) OpenOrders() []*order.Order { return a.Base.OpenOrders }

func (a *FuturesAccount) Value() float64 { return a.PortfolioValue }

func (a *FuturesAccount) Details() Details { return a.Base.details() }
