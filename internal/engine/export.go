package engine

import (
	"encoding/json"
	"os"
	"time"

	"github.com/amaraeze/btengine/internal/config"
	"github.com/amaraeze/btengine/internal/user"
)

// ExtraFees mirrors the flat borrow/funding rates not covered by
// FeeStructure's per-mode/subtype table.
type ExtraFees struct {
	MarginBorrowInterestHourly float64 `json:"margin_borrow_interest_hourly"`
	FuturesFundingFeeEvery8h  float64 `json:"futures_funding_fee_every_8h"`
}

// ConfigExport is the "config" section of the details export.
type ConfigExport struct {
	TradingFees    config.FeeStructure `json:"trading_fees"`
	ExtraFees      ExtraFees           `json:"extra_fees"`
	Slippage       config.Slippage     `json:"slippage"`
	MinimumQtyStep float64             `json:"minimum_qty_step"`
}

// DetailsExport is the full JSON document produced by SaveAllUsersDetails.
type DetailsExport struct {
	CurrentTimestamp time.Time      `json:"current_timestamp"`
	Assets           []string       `json:"assets"`
	Config           ConfigExport   `json:"config"`
	Users            []user.Details `json:"users"`
}

// AllUsersDetails builds the in-memory export document without touching the
// filesystem, for callers that want to serialize it themselves.
func (e *Engine) AllUsersDetails() DetailsExport {
	users := make([]user.Details, 0, len(e.users))
	for _, u := range e.users {
		users = append(users, u.Details())
	}
	return DetailsExport{
		CurrentTimestamp: e.currentTs,
		Assets:           e.Assets(),
		Config: ConfigExport{
			TradingFees: e.accCfg.FeeStructure,
			ExtraFees: ExtraFees{
				MarginBorrowInterestHourly: e.accCfg.BorrowInterestHourly,
				FuturesFundingFeeEvery8h:  e.accCfg.FundingFeeEvery8h,
			},
			Slippage:       e.accCfg.Slippage,
			MinimumQtyStep: e.accCfg.MinimumQtyStep,
		},
		Users: users,
	}
}

// SaveAllUsersDetails writes every registered user's full account state
// (holdings, open orders, history, portfolio value) to path as JSON.
func (e *Engine) SaveAllUsersDetails(path string) error {
	data, err := json.MarshalIndent(e.AllUsersDetails(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DaywiseExport is the JSON document produced by
// SaveAllUsersPortfolioValuesDaywise.
type DaywiseExport struct {
	CurrentTimestamp time.Time                        `json:"current_timestamp"`
	Users            map[string]user.DaywiseExport `json:"users"`
}

// AllUsersPortfolioValuesDaywise builds the in-memory daywise export.
func (e *Engine) AllUsersPortfolioValuesDaywise() DaywiseExport {
	users := make(map[string]user.DaywiseExport, len(e.users))
	for id, u := range e.users {
		users[id] = u.DaywiseExport()
	}
	return DaywiseExport{CurrentTimestamp: e.currentTs, Users: users}
}

// SaveAllUsersPortfolioValuesDaywise writes every registered user's daywise
// portfolio-value series (per mode, plus "total") to path as JSON.
func (e *Engine) SaveAllUsersPortfolioValuesDaywise(path string) error {
	data, err := json.MarshalIndent(e.AllUsersPortfolioValuesDaywise(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
