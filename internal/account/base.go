// Package account implements the abstract Account and its three concrete
// realizations: Spot, Margin, and Futures.
package account

import (
	"log"
	"time"

	"github.com/amaraeze/btengine/internal/config"
	"github.com/amaraeze/btengine/internal/fees"
	"github.com/amaraeze/btengine/internal/money"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/amaraeze/btengine/internal/tape"
)

// Result is the outcome of a locally-rejectable mutation (open/close).
// InsufficientCash/InsufficientHoldings/InvalidLeverage/
// InvalidQuantity/InvalidPositionType/NoLiquidationRisk/NotionalOutOfRange
// are all "recovered locally": the account's state is left unchanged and a
// diagnostic is logged, but the caller is not handed a Go error for what is
// an expected, frequent outcome (an order that simply doesn't fit). Only
// structural faults (ErrOrderNotFound from margin/futures Close, a failed
// tape lookup) are returned as errors from Open/Close.
type Result struct {
	Accepted bool
	Reason   error
	Order    *order.Order
}

func rejected(reason error) Result { return Result{Accepted: false, Reason: reason} }
func accepted(o *order.Order) Result {
	return Result{Accepted: true, Order: o}
}

// Base holds the state and shared behavior common to every account mode.
// Spot/Margin/Futures embed *Base and add their own
// Open/Close/UpdatePortfolioValue/MaxOpenQty.
type Base struct {
	Name           string
	ModeName       order.Mode
	Subtype        string
	InitialCash    float64
	Cash           float64
	PortfolioValue float64
	Holdings       map[string]float64
	OpenOrders     []*order.Order
	History        []*order.Order

	qtyStep float64
	idGen   order.IDGenerator
	logger  *log.Logger
	verbose bool
}

// newBase constructs the shared account state. cfg supplies the quantity
// step; idGen defaults to order.UUIDGenerator{} when nil.
func newBase(name string, mode order.Mode, subtype string, cash float64, cfg config.Config, idGen order.IDGenerator, logger *log.Logger, verbose bool) *Base {
	if idGen == nil {
		idGen = order.UUIDGenerator{}
	}
	return &Base{
		Name:           name,
		ModeName:       mode,
		Subtype:        subtype,
		InitialCash:    cash,
		Cash:           cash,
		PortfolioValue: cash,
		Holdings:       make(map[string]float64),
		qtyStep:        cfg.MinimumQtyStep,
		idGen:          idGen,
		logger:         logger,
		verbose:        verbose,
	}
}

// applySlippage degrades price by the configured rate: up for buy/long, down
// for sell/short.
func applySlippage(price float64, side order.Side, rate float64) float64 {
	if side.IsLong() {
		return price * (1 + rate)
	}
	return price * (1 - rate)
}

// roundQty truncates qty down to the account's configured step, using exact decimal arithmetic (internal/money).
func (b *Base) roundQty(qty float64) float64 {
	return money.Truncate(qty, b.qtyStep)
}

func (b *Base) logf(format string, args ...interface{}) {
	if b.verbose && b.logger != nil {
		b.logger.Printf(format, args...)
	}
}

// recordClose transfers order o from OpenOrders to History, marking it
// closed (and liquidated, if applicable).
func (b *Base) recordClose(o *order.Order, price float64, closeTs time.Time, liquidated bool) {
	o.ExitPrice = price
	o.CloseTs = closeTs
	o.Closed = true
	if liquidated {
		o.Liquidated = true
	}
	b.History = append(b.History, o)
	for i, open := range b.OpenOrders {
		if open == o {
			b.OpenOrders = append(b.OpenOrders[:i], b.OpenOrders[i+1:]...)
			break
		}
	}
}

// findOpen locates an order by id among OpenOrders.
func (b *Base) findOpen(id string) *order.Order {
	for _, o := range b.OpenOrders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// findClosed locates an order by id among History.
func (b *Base) findClosed(id string) *order.Order {
	for _, o := range b.History {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// Liquidate forfeits order o's posted margin at the current price: cash is
// NOT credited, realized PnL is booked as -OpenMargin, and RealizedROIPct is
// -100.
func (b *Base) Liquidate(o *order.Order, price float64, ts time.Time) {
	if o.Closed {
		return
	}
	if o.Side.IsLong() {
		b.Holdings[o.Asset] -= o.Qty
	} else {
		b.Holdings[o.Asset] += o.Qty
	}
	if o.EntryPrice != 0 {
		o.PriceChangePct = (price - o.EntryPrice) / o.EntryPrice * 100
	}
	o.UnrealizedPnL = -o.OpenMargin
	o.RealizedPnL = -o.OpenMargin
	o.ROIPct = -100.0
	o.RealizedROIPct = -100.0
	b.recordClose(o, price, ts, true)
	b.logf("order %s liquidated at %.8f on %s", o.ID, price, ts)
}

// Details is the JSON-serializable account snapshot used for export.
type Details struct {
	Name           string             `json:"name"`
	Type           string             `json:"type"`
	InitialCash    float64            `json:"initial_cash"`
	Cash           float64            `json:"cash"`
	PortfolioValue float64            `json:"portfolio_value"`
	Holdings       map[string]float64 `json:"holdings"`
	OpenOrders     []*order.Order     `json:"open_orders"`
	History        []*order.Order     `json:"history"`
}

func (b *Base) details() Details {
	return Details{
		Name:           b.Name,
		Type:           string(b.ModeName),
		InitialCash:    b.InitialCash,
		Cash:           b.Cash,
		PortfolioValue: b.PortfolioValue,
		Holdings:       b.Holdings,
		OpenOrders:     b.OpenOrders,
		History:        b.History,
	}
}

// Account is the capability set every concrete mode realizes. The Engine
// dispatches against this interface rather than concrete types. Tape and the
// Fee Calculator are passed in on every call rather than captured at
// construction, since the Engine uniquely owns both and advances them
// independently of any one account.
type Account interface {
	Mode() order.Mode
	Open(o *order.Order, ts time.Time, tp *tape.Tape, calc fees.Calculator) (Result, error)
	Close(orderID string, ts time.Time, tp *tape.Tape, calc fees.Calculator) (Result, error)
	CloseAllOpenOrders(ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result
	CloseAllOpenOrdersByAsset(asset string, ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result
	CloseAllOpenOrdersByAssetAndSide(asset string, side order.Side, ts time.Time, tp *tape.Tape, calc fees.Calculator) []Result
	UpdatePortfolioValue(prices map[string]float64, ts time.Time, calc fees.Calculator) error
	MaxOpenQty(price float64, leverage int, side order.Side, priceIsSlipped bool) float64
	LongShortCountsByAsset(asset string) (longs, shorts int)
	OpenOrders() []*order.Order
	Value() float64
	Details() Details
}
