// Package metrics exposes Prometheus collectors for the node: transactions,
// engine ticks, pool balances and RPC traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/game"
	"github.com/tolelom/purgegame/vm"
)

const namespace = "purgegame"

// Collector owns a registry and the node's collectors.
type Collector struct {
	Registry *prometheus.Registry

	txs       *prometheus.CounterVec
	ticks     *prometheus.CounterVec
	payouts   *prometheus.CounterVec
	pools     *prometheus.GaugeVec
	level     prometheus.Gauge
	phase     prometheus.Gauge
	rpcCalls  *prometheus.CounterVec
	rpcTiming *prometheus.HistogramVec
}

// New creates a Collector with every metric registered.
func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vm",
			Name:      "transactions_total",
			Help:      "Transactions executed, by type and result.",
		}, []string{"type", "result"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Successful engine ticks, by action.",
		}, []string{"action"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "payout_units_total",
			Help:      "Native units credited to claimable balances, by payout kind.",
		}, []string{"kind"}),
		pools: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pool_units",
			Help:      "Current balance of each pool.",
		}, []string{"pool"}),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "level",
			Help:      "Current level.",
		}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "phase",
			Help:      "Current phase (0 settlement, 1 purchase, 2 burn, 3 shutdown).",
		}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC requests, by method and outcome.",
		}, []string{"method", "status"}),
		rpcTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Duration of JSON-RPC requests.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"method"}),
	}
	c.Registry.MustRegister(
		c.txs, c.ticks, c.payouts, c.pools, c.level, c.phase, c.rpcCalls, c.rpcTiming,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return c
}

// Handler returns an HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// Attach subscribes the collector to engine events.
func (c *Collector) Attach(em *events.Emitter) {
	em.Subscribe(events.EventTick, func(ev events.Event) {
		action, _ := ev.Data["action"].(string)
		c.ticks.WithLabelValues(action).Inc()
	})
	em.Subscribe(events.EventPayout, func(ev events.Event) {
		kind, _ := ev.Data["kind"].(string)
		amount, _ := ev.Data["amount"].(uint64)
		if kind == "affiliate_tokens" {
			return
		}
		c.payouts.WithLabelValues(kind).Add(float64(amount))
	})
}

// ObserveTx counts one executed transaction.
func (c *Collector) ObserveTx(typ core.TxType, err error) {
	result := "ok"
	switch {
	case err == nil:
	case vm.IsRejection(err):
		result = "rejected"
	default:
		result = "error"
	}
	c.txs.WithLabelValues(string(typ), result).Inc()
}

// ObserveStatus sets the pool, level and phase gauges.
func (c *Collector) ObserveStatus(s *game.Status) {
	p := s.Pools
	for name, v := range map[string]uint64{
		"live":            p.Live,
		"next_round":      p.NextRound,
		"funding_target":  p.FundingTarget,
		"carryover":       p.Carryover,
		"reserve":         p.Reserve,
		"claimable_total": p.ClaimableTotal,
		"total_assets":    p.TotalAssets,
	} {
		c.pools.WithLabelValues(name).Set(float64(v))
	}
	c.level.Set(float64(s.Level))
	c.phase.Set(float64(s.Phase))
}

// ObserveRPC records one JSON-RPC call.
func (c *Collector) ObserveRPC(method string, code int, start time.Time) {
	c.rpcCalls.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.rpcTiming.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
