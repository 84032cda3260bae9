package engine

// Metrics exposed:
//   - btengine_orders_placed_total{mode,side}     – orders accepted by Open
//   - btengine_orders_rejected_total{mode,reason} – orders rejected locally
//   - btengine_orders_closed_total{mode}          – orders closed (non-liquidation)
//   - btengine_liquidations_total{mode}           – orders force-closed by the detector
//   - btengine_user_equity_usd{user,mode}         – per-user, per-mode portfolio value
//
// Registered in init() and served by the caller's own HTTP handler (promhttp).

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxOrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btengine_orders_placed_total",
			Help: "Orders accepted by Open, by account mode and side.",
		},
		[]string{"mode", "side"},
	)

	mtxOrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btengine_orders_rejected_total",
			Help: "Orders rejected locally by Open, by account mode and reason.",
		},
		[]string{"mode", "reason"},
	)

	mtxOrdersClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btengine_orders_closed_total",
			Help: "Orders closed via Close/CloseAll, by account mode.",
		},
		[]string{"mode"},
	)

	mtxLiquidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btengine_liquidations_total",
			Help: "Orders force-closed by the liquidation detector, by account mode.",
		},
		[]string{"mode"},
	)

	mtxUserEquity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "btengine_user_equity_usd",
			Help: "Current portfolio value per user and account mode.",
		},
		[]string{"user", "mode"},
	)
)

func init() {
	prometheus.MustRegister(mtxOrdersPlaced, mtxOrdersRejected, mtxOrdersClosed)
	prometheus.MustRegister(mtxLiquidations, mtxUserEquity)
}
