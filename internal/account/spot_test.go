package account

import (
	"testing"
	"time"

	"github.com/amaraeze/btengine/internal/fees"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/amaraeze/btengine/internal/tape"
	"github.com/stretchr/testify/require"
)

func oneBarTape(t *testing.T, asset string, ts time.Time, price float64) *tape.Tape {
	t.Helper()
	tp, err := tape.New(map[string][]tape.Bar{
		asset: {{Timestamp: ts, Open: price, High: price, Low: price, Close: price, Volume: 1}},
	})
	require.NoError(t, err)
	return tp
}

func TestSpotBuyAllCashThenSellRoundTrip(t *testing.T) {
	cfg := testCfg()
	calc := fees.New(cfg)
	ts := time.Unix(1_700_000_000, 0).UTC()
	tp := oneBarTape(t, "BTCUSDT", ts, 100)

	a := NewSpotAccount("u1-spot", 1000, cfg, nil, nil, false)

	price, err := tp.Price("BTCUSDT", ts)
	require.NoError(t, err)
	qty := a.ResolveQty(order.AllCash(), "BTCUSDT", order.Buy, price)
	require.Greater(t, qty, 0.0)

	buyOrder := &order.Order{ID: "b1", Asset: "BTCUSDT", Side: order.Buy, Mode: order.Spot, Qty: qty}
	res, err := a.Open(buyOrder, ts, tp, calc)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Less(t, a.Cash, 1000.0)
	require.Greater(t, a.Holdings["BTCUSDT"], 0.0)

	sellQty := a.ResolveQty(order.AllHoldings(), "BTCUSDT", order.Sell, price)
	sellOrder := &order.Order{ID: "s1", Asset: "BTCUSDT", Side: order.Sell, Mode: order.Spot, Qty: sellQty}
	res, err = a.Open(sellOrder, ts, tp, calc)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, 0.0, a.Holdings["BTCUSDT"])
	require.Less(t, a.Cash, 1000.0, "round trip loses money to fees")
	require.Len(t, a.History, 2)
}

func TestSpotOpenRejectsInsufficientCash(t *testing.T) {
	cfg := testCfg()
	calc := fees.New(cfg)
	ts := time.Unix(1_700_000_000, 0).UTC()
	tp := oneBarTape(t, "BTCUSDT", ts, 100)

	a := NewSpotAccount("u1-spot", 10, cfg, nil, nil, false)
	o := &order.Order{ID: "b1", Asset: "BTCUSDT", Side: order.Buy, Mode: order.Spot, Qty: 1}
	res, err := a.Open(o, ts, tp, calc)
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.ErrorIs(t, res.Reason, ErrInsufficientCash)
}

func TestSpotCloseAllIsNoOp(t *testing.T) {
	a := NewSpotAccount("u1-spot", 1000, testCfg(), nil, nil, false)
	res := a.CloseAllOpenOrders(time.Now(), nil, fees.Calculator{})
	require.Nil(t, res)
}

func TestSpotMaxOpenQtyZeroForNonPositivePrice(t *testing.T) {
	a := NewSpotAccount("u1-spot", 1000, testCfg(), nil, nil, false)
	require.Equal(t, 0.0, a.MaxOpenQty(0, 1, order.Buy, false))
}
