package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amaraeze/btengine/internal/tape"
)

var validateTapeFlags []string

var validateTapeCmd = &cobra.Command{
	Use:   "validate-tape",
	Short: "Load a set of per-asset CSVs and check pace alignment without running the engine",
	RunE:  runValidateTape,
}

func init() {
	validateTapeCmd.Flags().StringArrayVar(&validateTapeFlags, "tape", nil, "ASSET=path.csv, repeatable; first one is the pace asset")
	validateTapeCmd.MarkFlagRequired("tape")
}

func runValidateTape(cmd *cobra.Command, args []string) error {
	if len(validateTapeFlags) == 0 {
		return fmt.Errorf("at least one --tape is required")
	}
	assetPaths, assetOrder, err := parseTapeFlags(validateTapeFlags)
	if err != nil {
		return err
	}

	tp, err := tape.LoadCSVs(assetPaths)
	if err != nil {
		return err
	}

	pace := assetOrder[0]
	if err := tp.ValidatePaceAlignment(pace); err != nil {
		return err
	}

	first, err := tp.FirstTs(pace)
	if err != nil {
		return err
	}
	last, err := tp.LastTs(pace)
	if err != nil {
		return err
	}

	fmt.Printf("pace asset: %s\n", pace)
	fmt.Printf("assets: %v\n", tp.Assets())
	fmt.Printf("range: %s -> %s\n", first, last)
	fmt.Println("alignment OK")
	return nil
}
