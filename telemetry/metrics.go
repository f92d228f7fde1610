// Package telemetry exports session events as Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ladderbot/agent"
)

const namespace = "ladderbot"

// Metrics is an agent.Observer backed by its own registry.
type Metrics struct {
	registry *prometheus.Registry

	ordersPlaced   prometheus.Counter
	ordersRejected prometheus.Counter
	fills          *prometheus.CounterVec
	filledVolume   *prometheus.CounterVec
	cancels        *prometheus.CounterVec
	base           prometheus.Gauge
	quote          prometheus.Gauge
	outstanding    prometheus.Gauge
	sessions       *prometheus.CounterVec
}

var _ agent.Observer = (*Metrics)(nil)

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_placed_total",
			Help: "Ladder orders accepted by the exchange.",
		}),
		ordersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_rejected_total",
			Help: "Ladder orders the exchange refused.",
		}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fills_total",
			Help: "Orders considered filled, by side.",
		}, []string{"side"}),
		filledVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "filled_volume_total",
			Help: "Base volume of filled orders, by side.",
		}, []string{"side"}),
		cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cancellations_total",
			Help: "Cancellations sent while aborting, by result.",
		}, []string{"result"}),
		base: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "wallet_base",
			Help: "Base asset balance at the last report.",
		}),
		quote: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "wallet_quote",
			Help: "Quote asset balance at the last report.",
		}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "orders_outstanding",
			Help: "Ladder orders not yet filled.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_finished_total",
			Help: "Sessions that reached a terminal state, by state.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(
		m.ordersPlaced, m.ordersRejected, m.fills, m.filledVolume, m.cancels,
		m.base, m.quote, m.outstanding, m.sessions,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) LadderPlaced(placed, rejected int) {
	m.ordersPlaced.Add(float64(placed))
	m.ordersRejected.Add(float64(rejected))
	m.outstanding.Set(float64(placed))
}

func (m *Metrics) OrdersFilled(filled []agent.Order) {
	for _, o := range filled {
		side := o.Side.String()
		m.fills.WithLabelValues(side).Inc()
		m.filledVolume.WithLabelValues(side).Add(o.Volume.InexactFloat64())
	}
	m.outstanding.Sub(float64(len(filled)))
}

func (m *Metrics) AssetsReported(h agent.Holdings, outstanding []agent.Order) {
	m.base.Set(h.Base.InexactFloat64())
	m.quote.Set(h.Quote.InexactFloat64())
	m.outstanding.Set(float64(len(outstanding)))
}

func (m *Metrics) OrderCancelled(_ agent.OrderID, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cancels.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionFinished(out agent.Outcome) {
	m.sessions.WithLabelValues(out.State.String()).Inc()
	m.base.Set(out.Holdings.Base.InexactFloat64())
	m.quote.Set(out.Holdings.Quote.InexactFloat64())
	m.outstanding.Set(float64(len(out.Outstanding)))
}
