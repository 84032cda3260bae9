package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/amaraeze/btengine/internal/config"
	"github.com/amaraeze/btengine/internal/engine"
	"github.com/amaraeze/btengine/internal/order"
	"github.com/amaraeze/btengine/internal/tape"
)

var (
	tapeFlags     []string
	usersFlag     string
	ordersFlag    string
	outFlag       string
	daywiseOutFlag string
	metricsAddr   string
	configFlag    string
	seedFlag      int64
	verboseFlag   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a scripted order file against a loaded tape",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&tapeFlags, "tape", nil, "ASSET=path.csv, repeatable; first one is the pace asset")
	runCmd.Flags().StringVar(&usersFlag, "users", "", "users YAML file (required)")
	runCmd.Flags().StringVar(&ordersFlag, "orders", "", "scripted orders YAML file")
	runCmd.Flags().StringVar(&outFlag, "out", "details.json", "account details export path")
	runCmd.Flags().StringVar(&daywiseOutFlag, "daywise-out", "", "daywise portfolio-value export path (disabled if empty)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090 (disabled if empty)")
	runCmd.Flags().StringVar(&configFlag, "engine-config", "", "engine constants YAML file (defaults to config.Load() search path)")
	runCmd.Flags().Int64Var(&seedFlag, "seed", 0, "seed for deterministic order IDs (0 uses a real UUID generator)")
	runCmd.Flags().BoolVar(&verboseFlag, "verbose", false, "log every order acceptance/rejection")
	runCmd.MarkFlagRequired("users")
}

func parseTapeFlags(flags []string) (map[string]string, []string, error) {
	paths := make(map[string]string, len(flags))
	var assetOrder []string
	for _, f := range flags {
		asset, path, ok := splitAssetPath(f)
		if !ok {
			return nil, nil, fmt.Errorf("--tape value %q must be ASSET=path.csv", f)
		}
		paths[asset] = path
		assetOrder = append(assetOrder, asset)
	}
	return paths, assetOrder, nil
}

func splitAssetPath(s string) (asset, path string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func runRun(cmd *cobra.Command, args []string) error {
	if len(tapeFlags) == 0 {
		return fmt.Errorf("at least one --tape is required")
	}
	assetPaths, assetOrder, err := parseTapeFlags(tapeFlags)
	if err != nil {
		return err
	}

	tp, err := tape.LoadCSVs(assetPaths)
	if err != nil {
		return err
	}
	if len(assetOrder) > 1 {
		if err := tp.ValidatePaceAlignment(assetOrder[0]); err != nil {
			return err
		}
	}

	accCfg := config.Default()
	cfgPath := configFlag
	if cfgPath == "" {
		cfgPath, _ = cmd.Flags().GetString("config")
	}
	if cfgPath != "" {
		accCfg, err = config.LoadFromFile(cfgPath)
		if err != nil {
			return err
		}
	} else if loaded, err := config.Load(); err == nil {
		accCfg = loaded
	}

	idGen := order.IDGenerator(order.UUIDGenerator{})
	if seedFlag != 0 {
		idGen = order.NewSeededGenerator(seedFlag)
	}

	logger := log.New(os.Stderr, "btengine: ", log.LstdFlags)

	eng, err := engine.New(tp, accCfg, assetOrder, daywiseOutFlag != "", idGen, logger, verboseFlag)
	if err != nil {
		return err
	}

	uf, err := loadUsersFile(usersFlag)
	if err != nil {
		return err
	}
	for _, us := range uf.Users {
		if err := eng.RegisterUser(us.ID, us.toConfig()); err != nil {
			return fmt.Errorf("registering user %s: %w", us.ID, err)
		}
	}

	var scripted ordersFile
	if ordersFlag != "" {
		scripted, err = loadOrdersFile(ordersFlag)
		if err != nil {
			return err
		}
		sort.SliceStable(scripted.Orders, func(i, j int) bool {
			return scripted.Orders[i].Ts.Before(scripted.Orders[j].Ts)
		})
	}

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Printf("serving metrics on %s", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	next := 0
	for {
		now := eng.CurrentTimestamp()
		eng.StepSimulation()

		for next < len(scripted.Orders) && !scripted.Orders[next].Ts.After(now) {
			if err := applyScriptedOrder(eng, scripted.Orders[next], now); err != nil {
				logger.Printf("order at %s for user %s: %v", now, scripted.Orders[next].User, err)
			}
			next++
		}

		end, err := eng.UpdateCurrentTimestamp()
		if err != nil {
			return err
		}
		if end {
			break
		}
	}

	if err := eng.SaveAllUsersDetails(outFlag); err != nil {
		return err
	}
	if daywiseOutFlag != "" {
		if err := eng.SaveAllUsersPortfolioValuesDaywise(daywiseOutFlag); err != nil {
			return err
		}
	}
	return nil
}

func applyScriptedOrder(eng *engine.Engine, s orderSpec, ts time.Time) error {
	mode, err := parseMode(s.Mode)
	if err != nil {
		return err
	}

	switch s.Op {
	case "close":
		_, err := eng.CloseOrder(s.User, mode, s.OrderID, ts)
		return err
	case "close_all":
		_, err := eng.CloseAllOrders(s.User, mode, ts)
		return err
	case "close_all_asset":
		_, err := eng.CloseAllOrdersByModeAsset(s.User, mode, s.Asset, ts)
		return err
	case "close_all_asset_side":
		side, err := parseSide(s.Side)
		if err != nil {
			return err
		}
		_, err = eng.CloseAllOrdersByModeAssetSide(s.User, mode, s.Asset, side, ts)
		return err
	case "open":
		return applyOpen(eng, s, mode, ts)
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
}

func applyOpen(eng *engine.Engine, s orderSpec, mode order.Mode, ts time.Time) error {
	side, err := parseSide(s.Side)
	if err != nil {
		return err
	}
	u, err := eng.GetUser(s.User)
	if err != nil {
		return err
	}
	acc, err := u.Account(mode)
	if err != nil {
		return err
	}

	qty, err := s.qty()
	if err != nil {
		return err
	}
	leverage := s.Leverage
	if leverage == 0 {
		leverage = 1
	}
	rawPrice, err := rawPriceForOrder(eng, s.Asset, ts)
	if err != nil {
		return err
	}
	exactQty, err := resolveQty(acc, qty, s.Asset, side, rawPrice, leverage)
	if err != nil {
		return err
	}

	subtype := s.Subtype
	if subtype == "" {
		subtype = "regular"
	}

	o := &order.Order{
		Asset:    s.Asset,
		Side:     side,
		Mode:     mode,
		Subtype:  subtype,
		Leverage: leverage,
		Qty:      exactQty,
		OpenTs:   ts,
	}
	_, err = eng.PlaceOrder(s.User, o, ts)
	return err
}

func rawPriceForOrder(eng *engine.Engine, asset string, ts time.Time) (float64, error) {
	return eng.PriceAt(asset, ts)
}
