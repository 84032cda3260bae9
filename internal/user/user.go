// Package user implements User: the registry entry that owns a trader's
// partial set of Spot/Margin/Futures accounts and tracks portfolio value
// over time.
package user

import (
	"errors"
	"log"
	"time"

	"github.com/amaraeze/btengine/internal/account"
	"github.com/amaraeze/btengine/internal/config"
	"github.com/amaraeze/btengine/internal/order"
)

// ErrUnknownMode is returned by Account when the user has no account
// registered for the requested mode.
var ErrUnknownMode = errors.New("user: account mode not registered")

// Snapshot is one daywise portfolio-value observation.
type Snapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	PortfolioValue float64   `json:"portfolio_value"`
}

// Details is the JSON-serializable snapshot of a user and its accounts.
type Details struct {
	UserID         string                    `json:"user_id"`
	Accounts       map[order.Mode]account.Details `json:"accounts"`
	PortfolioValue map[order.Mode]float64   `json:"portfolio_value"`
}

// Config selects which accounts a user is registered with and their
// starting cash.
type Config struct {
	Spot    bool
	Margin  bool
	Futures bool

	SpotCash    float64
	MarginCash  float64
	FuturesCash float64
}

// User owns 0-3 accounts keyed by mode and the daywise portfolio-value
// history for each, plus a "total" aggregate series.
type User struct {
	ID       string
	accounts map[order.Mode]account.Account

	daywise map[order.Mode][]Snapshot
	total   []Snapshot
}

// New constructs a User, instantiating one concrete account per mode
// selected in cfg.
func New(id string, cfg Config, accCfg config.Config, idGen order.IDGenerator, logger *log.Logger, verbose bool) *User {
	u := &User{
		ID:       id,
		accounts: make(map[order.Mode]account.Account),
		daywise:  make(map[order.Mode][]Snapshot),
	}
	if cfg.Spot {
		u.accounts[order.Spot] = account.NewSpotAccount(string(order.Spot), cfg.SpotCash, accCfg, idGen, logger, verbose)
		u.daywise[order.Spot] = nil
	}
	if cfg.Margin {
		u.accounts[order.Margin] = account.NewMarginAccount(string(order.Margin), cfg.MarginCash, accCfg, idGen, logger, verbose)
		u.daywise[order.Margin] = nil
	}
	if cfg.Futures {
		u.accounts[order.Futures] = account.NewFuturesAccount(string(order.Futures), cfg.FuturesCash, accCfg, idGen, logger, verbose)
		u.daywise[order.Futures] = nil
	}
	return u
}

// Accounts returns every account the user holds, in no particular order.
func (u *User) Accounts() []account.Account {
	out := make([]account.Account, 0, len(u.accounts))
	for _, a := range u.accounts {
		out = append(out, a)
	}
	return out
}

// Modes returns the set of account modes this user is registered with.
func (u *User) Modes() []order.Mode {
	out := make([]order.Mode, 0, len(u.accounts))
	for m := range u.accounts {
		out = append(out, m)
	}
	return out
}

// Account returns the account for mode, or ErrUnknownMode if the user was
// never registered with it.
func (u *User) Account(mode order.Mode) (account.Account, error) {
	a, ok := u.accounts[mode]
	if !ok {
		return nil, ErrUnknownMode
	}
	return a, nil
}

// TotalPortfolioValue sums PortfolioValue across every account the user
// holds.
func (u *User) TotalPortfolioValue() float64 {
	var total float64
	for _, a := range u.accounts {
		total += a.Value()
	}
	return total
}

// PortfolioValueByMode returns each account's current portfolio value keyed
// by mode.
func (u *User) PortfolioValueByMode() map[order.Mode]float64 {
	out := make(map[order.Mode]float64, len(u.accounts))
	for m, a := range u.accounts {
		out[m] = a.Value()
	}
	return out
}

// RecordDaywise appends a portfolio-value observation for ts to every
// account's series and to the "total" aggregate.
func (u *User) RecordDaywise(ts time.Time) {
	for m, a := range u.accounts {
		u.daywise[m] = append(u.daywise[m], Snapshot{Timestamp: ts, PortfolioValue: a.Value()})
	}
	u.total = append(u.total, Snapshot{Timestamp: ts, PortfolioValue: u.TotalPortfolioValue()})
}

// DaywiseByMode returns the recorded series for mode, or nil if unregistered.
func (u *User) DaywiseByMode(mode order.Mode) []Snapshot {
	return u.daywise[mode]
}

// DaywiseTotal returns the recorded aggregate series across all accounts.
func (u *User) DaywiseTotal() []Snapshot {
	return u.total
}

// Details returns the full JSON-serializable snapshot of the user and its
// accounts.
func (u *User) Details() Details {
	accs := make(map[order.Mode]account.Details, len(u.accounts))
	pv := make(map[order.Mode]float64, len(u.accounts))
	for m, a := range u.accounts {
		accs[m] = a.Details()
		pv[m] = a.Value()
	}
	return Details{
		UserID:         u.ID,
		Accounts:       accs,
		PortfolioValue: pv,
	}
}

// DaywiseExport is the JSON shape of one user's daywise series: each
// account mode's series keyed by its name, plus a "total" aggregate.
type DaywiseExport map[string][]Snapshot

// DaywiseExport builds the per-mode-plus-total daywise export for this user.
func (u *User) DaywiseExport() DaywiseExport {
	out := make(DaywiseExport, len(u.daywise)+1)
	for m, s := range u.daywise {
		out[string(m)] = s
	}
	out["total"] = u.total
	return out
}
