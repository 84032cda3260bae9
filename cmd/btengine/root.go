// Command btengine drives the deterministic accounting engine over a
// pre-loaded market tape: load CSV bars, register users, replay a scripted
// order file bar-by-bar, and export account/daywise state as JSON.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "btengine",
	Short: "Deterministic crypto backtesting accounting engine",
	Long: `btengine replays a scripted sequence of spot/margin/futures orders
against a per-asset OHLCV tape, applying fees, slippage, borrow/funding
accrual, and liquidation detection exactly as a live exchange account would.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/btengine.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateTapeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
