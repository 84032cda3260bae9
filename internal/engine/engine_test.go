package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaraeze/btengine/internal/config"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/amaraeze/btengine/internal/tape"
	"github.com/amaraeze/btengine/internal/user"
)

func threeBarTape(t *testing.T) (*tape.Tape, []time.Time) {
	t.Helper()
	ts := []time.Time{
		time.Unix(1000, 0).UTC(),
		time.Unix(2000, 0).UTC(),
		time.Unix(3000, 0).UTC(),
	}
	bars := []tape.Bar{
		{Timestamp: ts[0], Open: 100, High: 100, Low: 100, Close: 100, Volume: 1},
		{Timestamp: ts[1], Open: 110, High: 110, Low: 110, Close: 110, Volume: 1},
		{Timestamp: ts[2], Open: 120, High: 120, Low: 120, Close: 120, Volume: 1},
	}
	tp, err := tape.New(map[string][]tape.Bar{"BTCUSDT": bars})
	require.NoError(t, err)
	return tp, ts
}

func testEngine(t *testing.T) (*Engine, []time.Time) {
	t.Helper()
	tp, ts := threeBarTape(t)
	eng, err := New(tp, config.Default(), []string{"BTCUSDT"}, true, nil, nil, false)
	require.NoError(t, err)
	return eng, ts
}

func TestNewStartsAtFirstTapeTimestamp(t *testing.T) {
	eng, ts := testEngine(t)
	assert.Equal(t, ts[0], eng.CurrentTimestamp())
}

func TestPlaceOrderRejectsTimestampMismatch(t *testing.T) {
	eng, ts := testEngine(t)
	require.NoError(t, eng.RegisterUser("alice", user.Config{Spot: true, SpotCash: 1000}))

	o := &order.Order{Asset: "BTCUSDT", Side: order.Buy, Mode: order.Spot, Qty: 1}
	_, err := eng.PlaceOrder("alice", o, ts[1])
	assert.ErrorIs(t, err, ErrTimestampMismatch)
}

func TestPlaceOrderUnknownUser(t *testing.T) {
	eng, ts := testEngine(t)
	o := &order.Order{Asset: "BTCUSDT", Side: order.Buy, Mode: order.Spot, Qty: 1}
	_, err := eng.PlaceOrder("nobody", o, ts[0])
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMultiUserOrdersAtSameTickBothAccepted(t *testing.T) {
	eng, ts := testEngine(t)
	require.NoError(t, eng.RegisterUser("alice", user.Config{Spot: true, SpotCash: 1000}))
	require.NoError(t, eng.RegisterUser("bob", user.Config{Spot: true, SpotCash: 1000}))

	oa := &order.Order{Asset: "BTCUSDT", Side: order.Buy, Mode: order.Spot, Qty: 1}
	res, err := eng.PlaceOrder("alice", oa, ts[0])
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	ob := &order.Order{Asset: "BTCUSDT", Side: order.Buy, Mode: order.Spot, Qty: 2}
	res, err = eng.PlaceOrder("bob", ob, ts[0])
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	assert.NotEqual(t, oa.ID, ob.ID)
}

func TestUpdateCurrentTimestampAdvancesAndMarksEnd(t *testing.T) {
	eng, ts := testEngine(t)

	end, err := eng.UpdateCurrentTimestamp()
	require.NoError(t, err)
	assert.False(t, end)
	assert.Equal(t, ts[1], eng.CurrentTimestamp())

	end, err = eng.UpdateCurrentTimestamp()
	require.NoError(t, err)
	assert.False(t, end)
	assert.Equal(t, ts[2], eng.CurrentTimestamp())

	end, err = eng.UpdateCurrentTimestamp()
	require.NoError(t, err)
	assert.True(t, end)
	assert.Equal(t, ts[2], eng.CurrentTimestamp(), "current_ts must not move past the last bar")
}

func TestSpotMarkToMarketTracksHoldingsValue(t *testing.T) {
	eng, ts := testEngine(t)
	require.NoError(t, eng.RegisterUser("alice", user.Config{Spot: true, SpotCash: 1000}))

	o := &order.Order{Asset: "BTCUSDT", Side: order.Buy, Mode: order.Spot, Qty: 1}
	res, err := eng.PlaceOrder("alice", o, ts[0])
	require.NoError(t, err)
	require.True(t, res.Accepted)

	u, err := eng.GetUser("alice")
	require.NoError(t, err)
	acc, err := u.Account(order.Spot)
	require.NoError(t, err)

	_, err = eng.UpdateCurrentTimestamp()
	require.NoError(t, err)

	// entry at slipped ~100.05 with a 0.001 fee, marked at the current bar's
	// close of 100 (before the clock advances) minus the conservative
	// sell-side fee discount.
	assert.InDelta(t, 999.75, acc.Value(), 0.5)

	daywise := u.DaywiseByMode(order.Spot)
	require.Len(t, daywise, 1)
	assert.Equal(t, ts[0], daywise[0].Timestamp)
}

func TestCheckLiquidationsForcesClosedMarginOrder(t *testing.T) {
	eng, ts := testEngine(t)
	require.NoError(t, eng.RegisterUser("alice", user.Config{Margin: true, MarginCash: 1000}))

	o := &order.Order{Asset: "BTCUSDT", Side: order.Long, Mode: order.Margin, Qty: 1, Leverage: 5}
	res, err := eng.PlaceOrder("alice", o, ts[0])
	require.NoError(t, err)
	require.True(t, res.Accepted)

	// force a liquidation price above the next bar's close so the
	// detector is guaranteed to trip at the next tick.
	o.LiquidationPrice = 200

	_, err = eng.UpdateCurrentTimestamp()
	require.NoError(t, err)
	eng.StepSimulation()

	assert.True(t, o.Closed)
	assert.True(t, o.Liquidated)
}
