package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amaraeze/btengine/internal/account"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/amaraeze/btengine/internal/user"
)

// usersFile is the YAML shape of the --users document: one entry per user,
// naming which account modes to open and their starting cash.
type usersFile struct {
	Users []userSpec `yaml:"users"`
}

type userSpec struct {
	ID          string  `yaml:"id"`
	Spot        bool    `yaml:"spot"`
	Margin      bool    `yaml:"margin"`
	Futures     bool    `yaml:"futures"`
	SpotCash    float64 `yaml:"spot_cash"`
	MarginCash  float64 `yaml:"margin_cash"`
	FuturesCash float64 `yaml:"futures_cash"`
}

func loadUsersFile(path string) (usersFile, error) {
	var f usersFile
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

func (s userSpec) toConfig() user.Config {
	return user.Config{
		Spot:        s.Spot,
		Margin:      s.Margin,
		Futures:     s.Futures,
		SpotCash:    s.SpotCash,
		MarginCash:  s.MarginCash,
		FuturesCash: s.FuturesCash,
	}
}

// ordersFile is the YAML shape of the --orders document: a flat, timestamp-
// ordered sequence of actions replayed against the engine bar by bar.
type ordersFile struct {
	Orders []orderSpec `yaml:"orders"`
}

// orderSpec describes one scripted action. Op selects which engine call is
// made; the remaining fields are interpreted according to Op.
type orderSpec struct {
	Ts       time.Time `yaml:"ts"`
	User     string    `yaml:"user"`
	Mode     string    `yaml:"mode"`
	Op       string    `yaml:"op"` // open | close | close_all | close_all_asset | close_all_asset_side
	Asset    string    `yaml:"asset"`
	Side     string    `yaml:"side"`
	Qty      string    `yaml:"qty"` // exact decimal, "ALL_CASH", or "ALL_HOLDINGS"
	Leverage int       `yaml:"leverage"`
	OrderID  string    `yaml:"order_id"`
	Subtype  string    `yaml:"subtype"`
}

func loadOrdersFile(path string) (ordersFile, error) {
	var f ordersFile
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

func (s orderSpec) qty() (order.Qty, error) {
	switch s.Qty {
	case "ALL_CASH":
		return order.AllCash(), nil
	case "ALL_HOLDINGS":
		return order.AllHoldings(), nil
	default:
		var v float64
		if _, err := fmt.Sscanf(s.Qty, "%f", &v); err != nil {
			return order.Qty{}, fmt.Errorf("bad qty %q: %w", s.Qty, err)
		}
		return order.Exact(v), nil
	}
}

// resolveQty converts a possibly-sentinel Qty into an exact float64 against
// acc's current state, using rawPrice (the unslipped tape price at ts).
func resolveQty(acc account.Account, q order.Qty, asset string, side order.Side, rawPrice float64, leverage int) (float64, error) {
	switch a := acc.(type) {
	case interface {
		ResolveQty(q order.Qty, asset string, side order.Side, rawPrice float64) float64
	}:
		return a.ResolveQty(q, asset, side, rawPrice), nil
	case interface {
		ResolveQty(q order.Qty, side order.Side, rawPrice float64, leverage int) float64
	}:
		return a.ResolveQty(q, side, rawPrice, leverage), nil
	default:
		return 0, fmt.Errorf("account type %T has no ResolveQty", acc)
	}
}

func parseSide(s string) (order.Side, error) {
	switch s {
	case "buy":
		return order.Buy, nil
	case "sell":
		return order.Sell, nil
	case "long":
		return order.Long, nil
	case "short":
		return order.Short, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

func parseMode(s string) (order.Mode, error) {
	switch s {
	case "spot":
		return order.Spot, nil
	case "margin":
		return order.Margin, nil
	case "futures":
		return order.Futures, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}
