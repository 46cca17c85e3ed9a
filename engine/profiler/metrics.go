package profiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports engine counters to a Prometheus registerer. All
// metrics live under the "lumen" namespace.
type Metrics struct {
	framesTotal       prometheus.Counter
	drawCallsTotal    prometheus.Counter
	batchRunsTotal    prometheus.Counter
	instancesTotal    prometheus.Counter
	visibleInstances  prometheus.Gauge
	activeResources   *prometheus.GaugeVec
	fallbackResolves  prometheus.Gauge
	graphCompiles     prometheus.Counter
	graphRejections   prometheus.Counter
	uploadBytesTotal  prometheus.Counter
	commandsProcessed prometheus.Counter
}

// NewMetrics creates and registers the engine's metrics against the
// given registerer.
//
// Parameters:
//   - reg: the Prometheus registerer to register with
//
// Returns:
//   - *Metrics: the metrics set
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		framesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lumen",
			Name:      "frames_total",
			Help:      "Frames executed since startup.",
		}),
		drawCallsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lumen",
			Name:      "draw_calls_total",
			Help:      "Draw commands encoded since startup.",
		}),
		batchRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lumen",
			Name:      "batch_runs_total",
			Help:      "Opaque batch runs drawn since startup.",
		}),
		instancesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lumen",
			Name:      "instances_total",
			Help:      "Instances drawn since startup.",
		}),
		visibleInstances: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lumen",
			Name:      "visible_instances",
			Help:      "Instances visible in the most recent frame.",
		}),
		activeResources: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lumen",
			Name:      "active_resources",
			Help:      "Live records per resource kind.",
		}, []string{"kind"}),
		fallbackResolves: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lumen",
			Name:      "fallback_resolves_total",
			Help:      "Resolutions that yielded a fallback record since startup.",
		}),
		graphCompiles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lumen",
			Name:      "graph_compiles_total",
			Help:      "Render graphs compiled successfully since startup.",
		}),
		graphRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lumen",
			Name:      "graph_rejections_total",
			Help:      "Render graph descriptions rejected by validation since startup.",
		}),
		uploadBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lumen",
			Name:      "upload_bytes_total",
			Help:      "Bytes staged through the upload table since startup.",
		}),
		commandsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lumen",
			Name:      "commands_total",
			Help:      "Controller commands applied since startup.",
		}),
	}
}

// ObserveFrame records one executed frame's counters.
//
// Parameters:
//   - drawCalls: draw commands encoded this frame
//   - batchRuns: opaque batch runs drawn this frame
//   - visibleInstances: instances visible this frame
func (m *Metrics) ObserveFrame(drawCalls, batchRuns, visibleInstances int) {
	m.framesTotal.Inc()
	m.drawCallsTotal.Add(float64(drawCalls))
	m.batchRunsTotal.Add(float64(batchRuns))
	m.instancesTotal.Add(float64(visibleInstances))
	m.visibleInstances.Set(float64(visibleInstances))
}

// ObserveCommands records applied commands and staged upload bytes.
//
// Parameters:
//   - commands: commands applied this tick
//   - uploadBytes: bytes staged this tick
func (m *Metrics) ObserveCommands(commands, uploadBytes int) {
	m.commandsProcessed.Add(float64(commands))
	m.uploadBytesTotal.Add(float64(uploadBytes))
}

// ObserveGraph records one graph submission outcome.
//
// Parameters:
//   - accepted: whether the description validated
func (m *Metrics) ObserveGraph(accepted bool) {
	if accepted {
		m.graphCompiles.Inc()
	} else {
		m.graphRejections.Inc()
	}
}

// SetActiveResources updates the live-record gauge for one kind.
//
// Parameters:
//   - kind: the resource kind label
//   - count: the live record count
func (m *Metrics) SetActiveResources(kind string, count int) {
	m.activeResources.WithLabelValues(kind).Set(float64(count))
}

// SetFallbackResolves updates the cumulative fallback-resolution gauge.
//
// Parameters:
//   - total: the cumulative fallback hit count
func (m *Metrics) SetFallbackResolves(total uint64) {
	m.fallbackResolves.Set(float64(total))
}
