// Package prometheus adapts tripwire.MetricsProvider to Prometheus
// collectors.
package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/tripwire-iot/tripwire"
)

// Metrics implements tripwire.MetricsProvider.
type Metrics struct {
	frames   prom.Counter
	failures prom.Counter
	commits  prom.Counter
	dropped  prom.Counter
	expiries *prom.CounterVec
	values   *prom.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// prom.DefaultRegisterer.
func New(reg prom.Registerer) *Metrics {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	m := &Metrics{
		frames: prom.NewCounter(prom.CounterOpts{
			Name: "tripwire_frames_received_total",
			Help: "Raw frames received from the transport.",
		}),
		failures: prom.NewCounter(prom.CounterOpts{
			Name: "tripwire_decode_failures_total",
			Help: "Frames dropped because they could not be decoded.",
		}),
		commits: prom.NewCounter(prom.CounterOpts{
			Name: "tripwire_snapshots_committed_total",
			Help: "Snapshots committed and published to subscribers.",
		}),
		dropped: prom.NewCounter(prom.CounterOpts{
			Name: "tripwire_sends_dropped_total",
			Help: "Outbound frames refused because the transport was not open.",
		}),
		expiries: prom.NewCounterVec(prom.CounterOpts{
			Name: "tripwire_channel_expiries_total",
			Help: "Channels reverted to their default after going quiet.",
		}, []string{"channel"}),
		values: prom.NewGaugeVec(prom.GaugeOpts{
			Name: "tripwire_channel_value",
			Help: "Current channel value; boolean channels report 0 or 1.",
		}, []string{"channel"}),
	}

	reg.MustRegister(m.frames, m.failures, m.commits, m.dropped, m.expiries, m.values)

	// expose every channel from the start, at its default
	for _, c := range tripwire.Channels() {
		m.expiries.WithLabelValues(c.String())
		m.values.WithLabelValues(c.String()).Set(gaugeValue(tripwire.Default(c)))
	}
	return m
}

func (m *Metrics) OnFrameReceived() { m.frames.Inc() }
func (m *Metrics) OnDecodeFailure() { m.failures.Inc() }
func (m *Metrics) OnSendDropped()   { m.dropped.Inc() }

func (m *Metrics) OnSnapshotCommitted(s tripwire.Snapshot) {
	m.commits.Inc()
	for _, c := range tripwire.Channels() {
		m.values.WithLabelValues(c.String()).Set(gaugeValue(s.Value(c)))
	}
}

func (m *Metrics) OnChannelExpired(c tripwire.Channel) {
	m.expiries.WithLabelValues(c.String()).Inc()
}

func gaugeValue(v tripwire.Value) float64 {
	if v.Kind() == tripwire.KindNumber {
		return v.Number()
	}
	if v.Bool() {
		return 1
	}
	return 0
}

// Ensure Metrics implements tripwire.MetricsProvider.
var _ tripwire.MetricsProvider = (*Metrics)(nil)
