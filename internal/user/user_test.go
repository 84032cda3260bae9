package user

import (
	"testing"
	"time"

	"github.com/amaraeze/btengine/internal/config"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnlySelectedAccounts(t *testing.T) {
	cfg := config.Default()
	u := New("alice", Config{Spot: true, Futures: true, SpotCash: 1000, FuturesCash: 2000}, cfg, nil, nil, false)

	_, err := u.Account(order.Spot)
	require.NoError(t, err)
	_, err = u.Account(order.Futures)
	require.NoError(t, err)
	_, err = u.Account(order.Margin)
	require.ErrorIs(t, err, ErrUnknownMode)

	assert.ElementsMatch(t, []order.Mode{order.Spot, order.Futures}, u.Modes())
}

func TestTotalPortfolioValueSumsAllAccounts(t *testing.T) {
	cfg := config.Default()
	u := New("bob", Config{Spot: true, Margin: true, SpotCash: 500, MarginCash: 1500}, cfg, nil, nil, false)

	assert.Equal(t, 2000.0, u.TotalPortfolioValue())

	pv := u.PortfolioValueByMode()
	assert.Equal(t, 500.0, pv[order.Spot])
	assert.Equal(t, 1500.0, pv[order.Margin])
}

func TestRecordDaywiseAppendsToEveryModeAndTotal(t *testing.T) {
	cfg := config.Default()
	u := New("carol", Config{Spot: true, Margin: true, SpotCash: 1000, MarginCash: 1000}, cfg, nil, nil, false)

	ts1 := time.Unix(1_700_000_000, 0).UTC()
	ts2 := ts1.Add(time.Hour)
	u.RecordDaywise(ts1)
	u.RecordDaywise(ts2)

	require.Len(t, u.DaywiseByMode(order.Spot), 2)
	require.Len(t, u.DaywiseByMode(order.Margin), 2)
	require.Len(t, u.DaywiseTotal(), 2)

	assert.Equal(t, ts1, u.DaywiseTotal()[0].Timestamp)
	assert.Equal(t, 2000.0, u.DaywiseTotal()[0].PortfolioValue)
	assert.Nil(t, u.DaywiseByMode(order.Futures), "unregistered mode has no series")
}

func TestDetailsIncludesEveryRegisteredAccount(t *testing.T) {
	cfg := config.Default()
	u := New("dave", Config{Spot: true, SpotCash: 100}, cfg, nil, nil, false)

	d := u.Details()
	assert.Equal(t, "dave", d.UserID)
	require.Contains(t, d.Accounts, order.Spot)
	assert.Equal(t, 100.0, d.PortfolioValue[order.Spot])
}

func TestDaywiseExportIncludesTotalKey(t *testing.T) {
	cfg := config.Default()
	u := New("erin", Config{Margin: true, MarginCash: 100}, cfg, nil, nil, false)
	u.RecordDaywise(time.Unix(1_700_000_000, 0).UTC())

	exp := u.DaywiseExport()
	require.Contains(t, exp, "total")
	require.Contains(t, exp, string(order.Margin))
}
