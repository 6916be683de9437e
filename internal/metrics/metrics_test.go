package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/w1xm/areg_rotator/filter"
	"github.com/w1xm/areg_rotator/motion"
	"github.com/w1xm/areg_rotator/protocol"
	"github.com/w1xm/areg_rotator/rotator"
)

func newCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestObserveFrame(t *testing.T) {
	c := newCollector(t)
	c.ObserveFrame(protocol.KindCLI, nil)
	c.ObserveFrame(protocol.KindSPID, nil)
	c.ObserveFrame(protocol.KindSPID, errors.New("bad digit"))

	if got := testutil.ToFloat64(c.Frames.WithLabelValues("spid")); got != 2 {
		t.Errorf("spid frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.FramesRejected.WithLabelValues("spid")); got != 1 {
		t.Errorf("spid rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.FramesRejected.WithLabelValues("cli")); got != 0 {
		t.Errorf("cli rejected = %v, want 0", got)
	}
}

func TestObserveFrameReplyFailure(t *testing.T) {
	c := newCollector(t)
	c.ObserveFrame(protocol.KindCLI, fmt.Errorf("%w: not connected", protocol.ErrReply))
	if got := testutil.ToFloat64(c.ReplyFailures.WithLabelValues("cli")); got != 1 {
		t.Errorf("cli reply failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.FramesRejected.WithLabelValues("cli")); got != 0 {
		t.Errorf("cli rejected = %v, want 0", got)
	}
}

func TestObserveFramerDeltas(t *testing.T) {
	c := newCollector(t)
	c.ObserveFramer(protocol.FramerStats{Overflows: 2, Dropped: 5})
	c.ObserveFramer(protocol.FramerStats{Overflows: 3, Dropped: 5})
	if got := testutil.ToFloat64(c.Overflows); got != 3 {
		t.Errorf("overflows = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.BytesDropped); got != 5 {
		t.Errorf("dropped = %v, want 5", got)
	}
}

func TestObserveStatus(t *testing.T) {
	c := newCollector(t)
	c.ObserveStatus(motion.Status{
		Current:         rotator.Orientation{Heading: 45, Pitch: 10},
		Target:          rotator.Target{Azimuth: 90, Elevation: 10},
		AzimuthSpeed:    128,
		Filter:          filter.Stats{Rejected: 4, Outages: 1},
		MovementEnabled: true,
	})
	c.ObserveStatus(motion.Status{
		Current: rotator.Orientation{Heading: 50, Pitch: 10},
		Filter:  filter.Stats{Rejected: 6, Forced: 1, Outages: 1},
	})

	if got := testutil.ToFloat64(c.Position.WithLabelValues("azimuth")); got != 50 {
		t.Errorf("azimuth position = %v, want 50", got)
	}
	if got := testutil.ToFloat64(c.MovementEnabled); got != 0 {
		t.Errorf("movement enabled = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.HeadingRejected); got != 6 {
		t.Errorf("heading rejected = %v, want 6", got)
	}
	if got := testutil.ToFloat64(c.HeadingForced); got != 1 {
		t.Errorf("heading forced = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.SensorOutages); got != 1 {
		t.Errorf("sensor outages = %v, want 1", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveFrame(protocol.KindCLI, nil)
	c.ObserveFramer(protocol.FramerStats{})
	c.ObserveStatus(motion.Status{})
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := New(reg); err == nil {
		t.Error("second New on the same registry succeeded")
	}
}
