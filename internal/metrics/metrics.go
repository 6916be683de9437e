// Package metrics exposes the control loop as Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/w1xm/areg_rotator/filter"
	"github.com/w1xm/areg_rotator/motion"
	"github.com/w1xm/areg_rotator/protocol"
	"github.com/w1xm/areg_rotator/rotator"
)

// Collector holds the rotator metrics. A nil *Collector discards everything.
type Collector struct {
	Frames          *prometheus.CounterVec
	FramesRejected  *prometheus.CounterVec
	ReplyFailures   *prometheus.CounterVec
	Overflows       prometheus.Counter
	BytesDropped    prometheus.Counter
	HeadingRejected prometheus.Counter
	HeadingForced   prometheus.Counter
	SensorOutages   prometheus.Counter

	Position        *prometheus.GaugeVec
	Target          *prometheus.GaugeVec
	Speed           *prometheus.GaugeVec
	MovementEnabled prometheus.Gauge

	lastFramer protocol.FramerStats
	lastFilter filter.Stats
}

// New registers the rotator metrics against reg, or the default registerer if reg is nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotator_frames_total",
			Help: "Complete command frames received, by protocol.",
		}, []string{"protocol"}),
		FramesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotator_frames_rejected_total",
			Help: "Frames dropped by their protocol handler, by protocol.",
		}, []string{"protocol"}),
		ReplyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotator_reply_failures_total",
			Help: "Frames executed whose reply could not be sent, by protocol.",
		}, []string{"protocol"}),
		Overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rotator_input_overflows_total",
			Help: "Times the input buffer filled without completing a frame.",
		}),
		BytesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rotator_input_bytes_dropped_total",
			Help: "Bytes discarded because they could not start a frame.",
		}),
		HeadingRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rotator_heading_rejected_total",
			Help: "Heading samples rejected as outliers.",
		}),
		HeadingForced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rotator_heading_forced_total",
			Help: "Heading samples accepted after too many consecutive rejections.",
		}),
		SensorOutages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rotator_sensor_outages_total",
			Help: "Sensor reads that returned no valid sample.",
		}),
		Position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rotator_position_degrees",
			Help: "Filtered orientation, by axis.",
		}, []string{"axis"}),
		Target: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rotator_target_degrees",
			Help: "Commanded orientation, by axis.",
		}, []string{"axis"}),
		Speed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rotator_speed_pwm",
			Help: "Signed PWM speed sent to each motor.",
		}, []string{"axis"}),
		MovementEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rotator_movement_enabled",
			Help: "1 unless an emergency stop is in effect.",
		}),
	}
	for _, coll := range []prometheus.Collector{
		c.Frames, c.FramesRejected, c.ReplyFailures, c.Overflows, c.BytesDropped,
		c.HeadingRejected, c.HeadingForced, c.SensorOutages,
		c.Position, c.Target, c.Speed, c.MovementEnabled,
	} {
		if err := reg.Register(coll); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveFrame counts a dispatched frame. err is the handler result.
func (c *Collector) ObserveFrame(kind protocol.Kind, err error) {
	if c == nil {
		return
	}
	c.Frames.WithLabelValues(kind.String()).Inc()
	switch {
	case errors.Is(err, protocol.ErrReply):
		c.ReplyFailures.WithLabelValues(kind.String()).Inc()
	case err != nil:
		c.FramesRejected.WithLabelValues(kind.String()).Inc()
	}
}

// ObserveFramer adds the framer counters accumulated since the last call.
func (c *Collector) ObserveFramer(st protocol.FramerStats) {
	if c == nil {
		return
	}
	c.Overflows.Add(float64(st.Overflows - c.lastFramer.Overflows))
	c.BytesDropped.Add(float64(st.Dropped - c.lastFramer.Dropped))
	c.lastFramer = st
}

// ObserveStatus updates the gauges and filter counters from a controller snapshot.
func (c *Collector) ObserveStatus(s motion.Status) {
	if c == nil {
		return
	}
	az, el := rotator.Azimuth.String(), rotator.Elevation.String()
	c.Position.WithLabelValues(az).Set(s.Current.Heading)
	c.Position.WithLabelValues(el).Set(s.Current.Pitch)
	c.Target.WithLabelValues(az).Set(s.Target.Azimuth)
	c.Target.WithLabelValues(el).Set(s.Target.Elevation)
	c.Speed.WithLabelValues(az).Set(s.AzimuthSpeed)
	c.Speed.WithLabelValues(el).Set(s.ElevationSpeed)
	if s.MovementEnabled {
		c.MovementEnabled.Set(1)
	} else {
		c.MovementEnabled.Set(0)
	}

	c.HeadingRejected.Add(float64(s.Filter.Rejected - c.lastFilter.Rejected))
	c.HeadingForced.Add(float64(s.Filter.Forced - c.lastFilter.Forced))
	c.SensorOutages.Add(float64(s.Filter.Outages - c.lastFilter.Outages))
	c.lastFilter = s.Filter
}
