package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// pipelineMetrics holds the Prometheus instruments for the telemetry
// pipeline. One instance per process, registered on the default registry.
type pipelineMetrics struct {
	telemetryRecords  prometheus.Counter
	malformedFrames   prometheus.Counter
	ingestFailures    prometheus.Counter
	alertsCreated     *prometheus.CounterVec
	alertsSuppressed  *prometheus.CounterVec
	eventsBroadcast   *prometheus.CounterVec
	subscribers       prometheus.Gauge
	upstreamReconnect prometheus.Counter
	scannerTicks      prometheus.Counter
}

var (
	instance *pipelineMetrics
	once     sync.Once
)

func get() *pipelineMetrics {
	once.Do(func() {
		instance = newPipelineMetrics()
		instance.register(prometheus.DefaultRegisterer)
	})
	return instance
}

func newPipelineMetrics() *pipelineMetrics {
	return &pipelineMetrics{
		telemetryRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight",
			Subsystem: "ingest",
			Name:      "telemetry_records_total",
			Help:      "Telemetry records accepted and written to the store.",
		}),
		malformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight",
			Subsystem: "upstream",
			Name:      "malformed_frames_total",
			Help:      "Upstream frames dropped because they were not valid telemetry JSON.",
		}),
		ingestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight",
			Subsystem: "ingest",
			Name:      "failures_total",
			Help:      "Records that could not be processed (bad timestamp or store failure).",
		}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insight",
			Subsystem: "alerts",
			Name:      "created_total",
			Help:      "Alerts inserted, by kind.",
		}, []string{"kind"}),
		alertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insight",
			Subsystem: "alerts",
			Name:      "suppressed_total",
			Help:      "Alert creations answered by an existing active alert, by kind.",
		}, []string{"kind"}),
		eventsBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insight",
			Subsystem: "hub",
			Name:      "events_broadcast_total",
			Help:      "Events fanned out to subscribers, by type.",
		}, []string{"type"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "insight",
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Currently connected alert stream subscribers.",
		}),
		upstreamReconnect: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight",
			Subsystem: "upstream",
			Name:      "reconnects_total",
			Help:      "Reconnection attempts to the telemetry feed.",
		}),
		scannerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insight",
			Subsystem: "scanner",
			Name:      "ticks_total",
			Help:      "Dead-vehicle scanner passes completed.",
		}),
	}
}

func (m *pipelineMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.telemetryRecords,
		m.malformedFrames,
		m.ingestFailures,
		m.alertsCreated,
		m.alertsSuppressed,
		m.eventsBroadcast,
		m.subscribers,
		m.upstreamReconnect,
		m.scannerTicks,
	)
}

// RecordTelemetry counts one accepted telemetry record.
func RecordTelemetry() { get().telemetryRecords.Inc() }

// RecordMalformedFrame counts one dropped upstream frame.
func RecordMalformedFrame() { get().malformedFrames.Inc() }

// RecordIngestFailure counts one record the pipeline could not process.
func RecordIngestFailure() { get().ingestFailures.Inc() }

// RecordAlert counts an alert creation; deduped creations count as
// suppressed instead.
func RecordAlert(kind string, deduped bool) {
	if deduped {
		get().alertsSuppressed.WithLabelValues(kind).Inc()
		return
	}
	get().alertsCreated.WithLabelValues(kind).Inc()
}

// RecordBroadcast counts one event handed to the fan-out hub.
func RecordBroadcast(eventType string) { get().eventsBroadcast.WithLabelValues(eventType).Inc() }

// SubscriberConnected tracks the subscriber gauge.
func SubscriberConnected() { get().subscribers.Inc() }

// SubscriberDisconnected tracks the subscriber gauge.
func SubscriberDisconnected() { get().subscribers.Dec() }

// RecordUpstreamReconnect counts one reconnection attempt.
func RecordUpstreamReconnect() { get().upstreamReconnect.Inc() }

// RecordScannerTick counts one completed scanner pass.
func RecordScannerTick() { get().scannerTicks.Inc() }
