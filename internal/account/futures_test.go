package account

import (
	"testing"
	"time"

	"github.com/amaraeze/btengine/internal/fees"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuturesTierLookupHalfOpenBrackets(t *testing.T) {
	tier, err := lookupFuturesTier(299_999)
	require.NoError(t, err)
	assert.Equal(t, 125, tier.MaxLeverage)

	tier, err = lookupFuturesTier(300_000)
	require.NoError(t, err)
	assert.Equal(t, 100, tier.MaxLeverage)

	_, err = lookupFuturesTier(1_800_000_000)
	assert.Error(t, err)
}

func TestFuturesShortLiquidationPriceFormula(t *testing.T) {
	// Scaled-down version of the spec's tier-1 short scenario: entry 10,000,
	// qty 10, leverage 10 => notional 100,000, margin_balance 10,000.
	liq, err := futuresLiquidationPrice(sideShort, 10_000, 10_000, 10, 10)
	require.NoError(t, err)
	assert.InDelta(t, 10_956.175, liq, 1e-3)
}

func TestFuturesLongFullMarginCannotBeLiquidated(t *testing.T) {
	liq, err := futuresLiquidationPrice(sideLong, 100, 1_000, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, liq)
}

func TestFuturesOpenAlwaysPopulatesLiquidationPrice(t *testing.T) {
	cfg := testCfg()
	calc := fees.New(cfg)
	ts := time.Unix(1_700_000_000, 0).UTC()
	tp := oneBarTape(t, "BTCUSDT", ts, 10_000)

	a := NewFuturesAccount("u1-futures", 100_000, cfg, nil, nil, false)
	o := &order.Order{ID: "f1", Asset: "BTCUSDT", Side: order.Short, Mode: order.Futures, Leverage: 10, Qty: 10}
	res, err := a.Open(o, ts, tp, calc)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Greater(t, o.LiquidationPrice, 0.0)
}

func TestFuturesOpenRejectsLeverageAboveTierMax(t *testing.T) {
	cfg := testCfg()
	calc := fees.New(cfg)
	ts := time.Unix(1_700_000_000, 0).UTC()
	// Notional well into the [300k,800k) bracket (max leverage 100x).
	tp := oneBarTape(t, "BTCUSDT", ts, 500_000)

	a := NewFuturesAccount("u1-futures", 10_000_000, cfg, nil, nil, false)
	o := &order.Order{ID: "f1", Asset: "BTCUSDT", Side: order.Long, Mode: order.Futures, Leverage: 125, Qty: 1}
	res, err := a.Open(o, ts, tp, calc)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.ErrorIs(t, res.Reason, ErrInvalidLeverage)
}

func TestFuturesCloseAccruesFundingAcrossBoundaries(t *testing.T) {
	cfg := testCfg()
	calc := fees.New(cfg)
	openTs := time.Unix(0, 0).UTC()
	// Two 8h boundaries (8h, 16h) strictly between open and close at 20h.
	closeTs := openTs.Add(20 * time.Hour)
	openTape := oneBarTape(t, "ETHUSDT", openTs, 2_000)
	closeTape := oneBarTape(t, "ETHUSDT", closeTs, 2_000)

	a := NewFuturesAccount("u1-futures", 100_000, cfg, nil, nil, false)
	o := &order.Order{ID: "f1", Asset: "ETHUSDT", Side: order.Long, Mode: order.Futures, Leverage: 5, Qty: 1}
	_, err := a.Open(o, openTs, openTape, calc)
	require.NoError(t, err)

	_, err = a.Close(o.ID, closeTs, closeTape, calc)
	require.NoError(t, err)
	assert.Greater(t, o.FundingFeeFutures, 0.0)
	assert.InDelta(t, calc.FundingFee(o.OpenNotional, 2), o.FundingFeeFutures, 1e-9)
}

func TestFundingEventsBetweenCountsStrictBoundaries(t *testing.T) {
	open := time.Unix(0, 0).UTC()
	assert.Equal(t, 0, fundingEventsBetween(open, open.Add(8*time.Hour)))
	assert.Equal(t, 1, fundingEventsBetween(open, open.Add(9*time.Hour)))
	assert.Equal(t, 2, fundingEventsBetween(open, open.Add(20*time.Hour)))
}

func TestFuturesLiquidateForfeitsMargin(t *testing.T) {
	cfg := testCfg()
	a := NewFuturesAccount("u1-futures", 100_000, cfg, nil, nil, false)
	o := &order.Order{
		ID: "f1", Asset: "BTCUSDT", Side: order.Short, Mode: order.Futures,
		Leverage: 10, EntryPrice: 100_000, Qty: 10, OpenMargin: 100_000,
	}
	a.Holdings["BTCUSDT"] = -10
	a.Base.OpenOrders = append(a.Base.OpenOrders, o)
	cashBefore := a.Cash

	a.Liquidate(o, 109_561.75, time.Unix(1000, 0))

	assert.True(t, o.Liquidated)
	assert.Equal(t, -100.0, o.RealizedROIPct)
	assert.Equal(t, cashBefore, a.Cash)
	assert.Equal(t, 0.0, a.Holdings["BTCUSDT"])
}
