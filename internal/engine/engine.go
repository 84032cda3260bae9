// Package engine orchestrates the Market Tape, Fee Calculator, and User
// registry into the single-threaded, synchronous simulation loop: liquidation
// sweep, user-submitted orders, mark-to-market, clock advance.
package engine

import (
	"errors"
	"log"
	"time"

	"github.com/amaraeze/btengine/internal/account"
	"github.com/amaraeze/btengine/internal/config"
	"github.com/amaraeze/btengine/internal/fees"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/amaraeze/btengine/internal/tape"
	"github.com/amaraeze/btengine/internal/user"
)

// Engine owns the Tape, Fee Calculator, and User registry for one
// simulation run. It is not safe for concurrent use; callers that need
// parallelism must run disjoint Engines or supply their own mutual
// exclusion.
type Engine struct {
	tape    *tape.Tape
	feeCalc fees.Calculator
	accCfg  config.Config
	idGen   order.IDGenerator
	logger  *log.Logger
	verbose bool

	users map[string]*user.User

	assets        []string
	currentTs     time.Time
	updateDaywise bool
}

// New constructs an Engine over tp, using accCfg for fee/slippage/leverage
// constants. assets[0] is the pace-driving asset: current_ts advances along
// its timeline, and New fails if any other loaded asset lacks a bar at one of
// its timestamps. updateDaywise enables per-tick portfolio snapshotting.
func New(tp *tape.Tape, accCfg config.Config, assets []string, updateDaywise bool, idGen order.IDGenerator, logger *log.Logger, verbose bool) (*Engine, error) {
	if len(assets) == 0 {
		assets = tp.Assets()
	}
	if len(assets) == 0 {
		return nil, errors.New("engine: no assets available on tape")
	}
	if idGen == nil {
		idGen = order.UUIDGenerator{}
	}
	first, err := tp.FirstTs(assets[0])
	if err != nil {
		return nil, err
	}
	if err := tp.ValidatePaceAlignment(assets[0]); err != nil {
		return nil, err
	}
	return &Engine{
		tape:          tp,
		feeCalc:       fees.New(accCfg),
		accCfg:        accCfg,
		idGen:         idGen,
		logger:        logger,
		verbose:       verbose,
		users:         make(map[string]*user.User),
		assets:        assets,
		currentTs:     first,
		updateDaywise: updateDaywise,
	}, nil
}

// Reset clears the user registry and rewinds current_ts to the tape's first
// timestamp, so a freshly loaded tape can be replayed across multiple runs.
func (e *Engine) Reset() error {
	first, err := e.tape.FirstTs(e.assets[0])
	if err != nil {
		return err
	}
	e.users = make(map[string]*user.User)
	e.currentTs = first
	return nil
}

// RegisterUser creates a new User with the requested account set and cash,
// keyed by userID.
func (e *Engine) RegisterUser(userID string, cfg user.Config) error {
	if _, exists := e.users[userID]; exists {
		return ErrUserAlreadyRegistered
	}
	e.users[userID] = user.New(userID, cfg, e.accCfg, e.idGen, e.logger, e.verbose)
	return nil
}

// GetUser retrieves a registered user by id.
func (e *Engine) GetUser(userID string) (*user.User, error) {
	u, ok := e.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// CurrentTimestamp returns the simulation's current bar timestamp.
func (e *Engine) CurrentTimestamp() time.Time { return e.currentTs }

// PriceAt returns asset's close price at ts from the underlying tape,
// for callers (e.g. order-scripting front ends) that need to resolve an
// ALL_CASH/ALL_HOLDINGS quantity sentinel before submitting an order.
func (e *Engine) PriceAt(asset string, ts time.Time) (float64, error) {
	return e.tape.Price(asset, ts)
}

// Assets returns the asset list the engine was constructed with.
func (e *Engine) Assets() []string {
	out := make([]string, len(e.assets))
	copy(out, e.assets)
	return out
}

func (e *Engine) checkTs(ts time.Time) error {
	if !ts.Equal(e.currentTs) {
		return ErrTimestampMismatch
	}
	return nil
}

func (e *Engine) account(userID string, mode order.Mode) (account.Account, error) {
	u, err := e.GetUser(userID)
	if err != nil {
		return nil, err
	}
	return u.Account(mode)
}

// PlaceOrder opens o against userID's account for o.Mode, provided ts
// matches the engine's current timestamp.
func (e *Engine) PlaceOrder(userID string, o *order.Order, ts time.Time) (account.Result, error) {
	if err := e.checkTs(ts); err != nil {
		return account.Result{}, err
	}
	acc, err := e.account(userID, o.Mode)
	if err != nil {
		return account.Result{}, err
	}
	if o.ID == "" {
		o.ID = e.idGen.NewID()
	}
	res, err := acc.Open(o, ts, e.tape, e.feeCalc)
	if err != nil {
		return res, err
	}
	observeOpen(o.Mode, o.Side, res)
	return res, nil
}

// CloseOrder closes orderID in userID's mode account at ts.
func (e *Engine) CloseOrder(userID string, mode order.Mode, orderID string, ts time.Time) (account.Result, error) {
	if err := e.checkTs(ts); err != nil {
		return account.Result{}, err
	}
	acc, err := e.account(userID, mode)
	if err != nil {
		return account.Result{}, err
	}
	res, err := acc.Close(orderID, ts, e.tape, e.feeCalc)
	if err != nil {
		return res, err
	}
	if res.Accepted {
		mtxOrdersClosed.WithLabelValues(string(mode)).Inc()
	}
	return res, nil
}

// CloseAllOrders closes every open order in userID's mode account at ts.
func (e *Engine) CloseAllOrders(userID string, mode order.Mode, ts time.Time) ([]account.Result, error) {
	if err := e.checkTs(ts); err != nil {
		return nil, err
	}
	acc, err := e.account(userID, mode)
	if err != nil {
		return nil, err
	}
	results := acc.CloseAllOpenOrders(ts, e.tape, e.feeCalc)
	observeCloseAll(mode, results)
	return results, nil
}

// CloseAllOrdersByModeAsset closes every open order for asset in userID's
// mode account at ts.
func (e *Engine) CloseAllOrdersByModeAsset(userID string, mode order.Mode, asset string, ts time.Time) ([]account.Result, error) {
	if err := e.checkTs(ts); err != nil {
		return nil, err
	}
	acc, err := e.account(userID, mode)
	if err != nil {
		return nil, err
	}
	results := acc.CloseAllOpenOrdersByAsset(asset, ts, e.tape, e.feeCalc)
	observeCloseAll(mode, results)
	return results, nil
}

// CloseAllOrdersByModeAssetSide closes every open order for asset and side
// in userID's mode account at ts.
func (e *Engine) CloseAllOrdersByModeAssetSide(userID string, mode order.Mode, asset string, side order.Side, ts time.Time) ([]account.Result, error) {
	if err := e.checkTs(ts); err != nil {
		return nil, err
	}
	acc, err := e.account(userID, mode)
	if err != nil {
		return nil, err
	}
	results := acc.CloseAllOpenOrdersByAssetAndSide(asset, side, ts, e.tape, e.feeCalc)
	observeCloseAll(mode, results)
	return results, nil
}

// StepSimulation runs the liquidation detector at the engine's current
// timestamp. Callers interleave this before submitting any orders for the
// bar.
func (e *Engine) StepSimulation() {
	e.CheckLiquidations()
}

// CheckLiquidations scans every user's margin/futures open orders, force
// closing any whose liquidation price has been breached by the current bar.
func (e *Engine) CheckLiquidations() {
	for _, u := range e.users {
		for _, mode := range []order.Mode{order.Margin, order.Futures} {
			acc, err := u.Account(mode)
			if err != nil {
				continue
			}
			e.checkLiquidationsForAccount(acc, mode)
		}
	}
}

func (e *Engine) checkLiquidationsForAccount(acc account.Account, mode order.Mode) {
	for _, o := range append([]*order.Order(nil), acc.OpenOrders()...) {
		if o.Closed {
			continue
		}
		price, err := e.tape.Price(o.Asset, e.currentTs)
		if err != nil {
			e.logf("liquidation check error for order %s: %v", o.ID, err)
			continue
		}
		breached := (o.Side.IsLong() && price <= o.LiquidationPrice) ||
			(!o.Side.IsLong() && price >= o.LiquidationPrice)
		if !breached {
			continue
		}
		if liq, ok := acc.(liquidator); ok {
			liq.Liquidate(o, price, e.currentTs)
			mtxLiquidations.WithLabelValues(string(mode)).Inc()
		}
	}
}

// liquidator is satisfied by the concrete margin/futures account types,
// which expose Liquidate in addition to the shared Account interface.
type liquidator interface {
	Liquidate(o *order.Order, price float64, ts time.Time)
}

// UpdatePortfolioValues marks every user's accounts to market at the
// engine's current timestamp.
func (e *Engine) UpdatePortfolioValues() {
	prices := make(map[string]float64, len(e.assets))
	for _, asset := range e.assets {
		if price, err := e.tape.Price(asset, e.currentTs); err == nil {
			prices[asset] = price
		}
	}

	for userID, u := range e.users {
		for _, acc := range u.Accounts() {
			if err := acc.UpdatePortfolioValue(prices, e.currentTs, e.feeCalc); err != nil {
				e.logf("mark-to-market error for user %s: %v", userID, err)
			}
		}
		for mode, v := range u.PortfolioValueByMode() {
			mtxUserEquity.WithLabelValues(userID, string(mode)).Set(v)
		}
	}
}

// UpdateCurrentTimestamp marks every account to market, optionally records a
// daywise snapshot, then advances current_ts to the next bar on the pace
// asset. It returns true once the end of the tape is reached, in which case
// current_ts is left unchanged.
func (e *Engine) UpdateCurrentTimestamp() (bool, error) {
	e.UpdatePortfolioValues()

	if e.updateDaywise {
		for _, u := range e.users {
			u.RecordDaywise(e.currentTs)
		}
	}

	end, next, err := e.tape.NextTs(e.assets[0], e.currentTs)
	if err != nil {
		return false, err
	}
	if !end {
		e.currentTs = next
	}
	return end, nil
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.verbose && e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

func observeOpen(mode order.Mode, side order.Side, res account.Result) {
	if res.Accepted {
		mtxOrdersPlaced.WithLabelValues(string(mode), string(side)).Inc()
		return
	}
	mtxOrdersRejected.WithLabelValues(string(mode), rejectionLabel(res.Reason)).Inc()
}

func observeCloseAll(mode order.Mode, results []account.Result) {
	for _, r := range results {
		if r.Accepted {
			mtxOrdersClosed.WithLabelValues(string(mode)).Inc()
		}
	}
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, account.ErrInsufficientCash):
		return "insufficient_cash"
	case errors.Is(err, account.ErrInsufficientHoldings):
		return "insufficient_holdings"
	case errors.Is(err, account.ErrInvalidLeverage):
		return "invalid_leverage"
	case errors.Is(err, account.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, account.ErrInvalidPositionType):
		return "invalid_position_type"
	case errors.Is(err, account.ErrNoLiquidationRisk):
		return "no_liquidation_risk"
	case errors.Is(err, account.ErrNotionalOutOfRange):
		return "notional_out_of_range"
	case errors.Is(err, account.ErrUnsupportedMode):
		return "unsupported_mode"
	default:
		return "other"
	}
}
