package account

import (
	"testing"
	"time"

	"github.com/amaraeze/btengine/internal/fees"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarginLongHoldThenClose(t *testing.T) {
	cfg := testCfg()
	calc := fees.New(cfg)
	openTs := time.Unix(1_700_000_000, 0).UTC()
	closeTs := openTs.Add(10 * time.Hour)

	openTape := oneBarTape(t, "BTCUSDT", openTs, 100)
	closeTape := oneBarTape(t, "BTCUSDT", closeTs, 102)

	a := NewMarginAccount("u1-margin", 10_000, cfg, nil, nil, false)
	o := &order.Order{ID: "m1", Asset: "BTCUSDT", Side: order.Long, Mode: order.Margin, Leverage: 5, Qty: 1}

	res, err := a.Open(o, openTs, openTape, calc)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.InDelta(t, 20.014, o.OpenMargin, 1e-6)
	assert.InDelta(t, 0.10007, o.TradeFeeOpen, 1e-6)
	assert.InDelta(t, 84.0588, o.LiquidationPrice, 1e-3)

	res, err = a.Close(o.ID, closeTs, closeTape, calc)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.InDelta(t, 1.8586, o.UnrealizedPnL, 1e-4)
	assert.InDelta(t, 0.1019286, o.TradeFeeClose, 1e-5)
	assert.InDelta(t, 0.0052788, o.BorrowFeeMargin, 1e-5)
	assert.InDelta(t, 21.76539, o.ClosedUser, 1e-3)
	assert.InDelta(t, 1.65132, o.RealizedPnL, 1e-3)
	assert.True(t, o.Closed)
	assert.Len(t, a.History, 1)
	assert.Empty(t, a.Base.OpenOrders)
}

func TestMarginOpenRejectsLeverageAboveMax(t *testing.T) {
	cfg := testCfg()
	calc := fees.New(cfg)
	ts := time.Unix(1_700_000_000, 0).UTC()
	tp := oneBarTape(t, "BTCUSDT", ts, 100)

	a := NewMarginAccount("u1-margin", 10_000, cfg, nil, nil, false)
	o := &order.Order{ID: "m1", Asset: "BTCUSDT", Side: order.Long, Mode: order.Margin, Leverage: cfg.MarginMaxLeverage + 1, Qty: 1}
	res, err := a.Open(o, ts, tp, calc)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.ErrorIs(t, res.Reason, ErrInvalidLeverage)
}

func TestMarginOpenRejectsQtyBelowStepAfterRounding(t *testing.T) {
	cfg := testCfg()
	calc := fees.New(cfg)
	ts := time.Unix(1_700_000_000, 0).UTC()
	tp := oneBarTape(t, "BTCUSDT", ts, 100)

	a := NewMarginAccount("u1-margin", 10_000, cfg, nil, nil, false)
	o := &order.Order{ID: "m1", Asset: "BTCUSDT", Side: order.Long, Mode: order.Margin, Leverage: 5, Qty: 1e-6}
	res, err := a.Open(o, ts, tp, calc)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.ErrorIs(t, res.Reason, ErrInvalidQuantity)
}

func TestMarginCloseAlreadyClosedIsNoOp(t *testing.T) {
	cfg := testCfg()
	calc := fees.New(cfg)
	openTs := time.Unix(1_700_000_000, 0).UTC()
	closeTs := openTs.Add(time.Hour)
	tp := oneBarTape(t, "BTCUSDT", openTs, 100)
	tp2 := oneBarTape(t, "BTCUSDT", closeTs, 100)

	a := NewMarginAccount("u1-margin", 10_000, cfg, nil, nil, false)
	o := &order.Order{ID: "m1", Asset: "BTCUSDT", Side: order.Long, Mode: order.Margin, Leverage: 5, Qty: 1}
	_, err := a.Open(o, openTs, tp, calc)
	require.NoError(t, err)
	_, err = a.Close(o.ID, closeTs, tp2, calc)
	require.NoError(t, err)

	res, err := a.Close(o.ID, closeTs, tp2, calc)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestMarginCloseUnknownOrderReturnsNotFound(t *testing.T) {
	cfg := testCfg()
	calc := fees.New(cfg)
	ts := time.Unix(1_700_000_000, 0).UTC()
	tp := oneBarTape(t, "BTCUSDT", ts, 100)

	a := NewMarginAccount("u1-margin", 10_000, cfg, nil, nil, false)
	_, err := a.Close("does-not-exist", ts, tp, calc)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMarginLongAllCashZeroCashResolvesZeroQty(t *testing.T) {
	cfg := testCfg()

	a := NewMarginAccount("u1-margin", 0, cfg, nil, nil, false)
	qty := a.ResolveQty(order.AllCash(), order.Long, 100, 5)
	assert.Equal(t, 0.0, qty)
}
