package simulator

import (
	"math"
	"testing"
	"time"

	"github.com/w1xm/areg_rotator/filter"
	"github.com/w1xm/areg_rotator/rotator"
)

func quiet() Options {
	opts := DefaultOptions()
	opts.NoiseDegrees = 0
	opts.OutlierRate = 0
	return opts
}

func stepFor(s *Simulator, d time.Duration) {
	for t := time.Duration(0); t < d; t += 25 * time.Millisecond {
		s.Step(25 * time.Millisecond)
	}
}

func TestReadMatchesFilterConvention(t *testing.T) {
	opts := quiet()
	opts.Start = rotator.Orientation{Heading: -135, Pitch: 12}
	s := New(opts)
	f := filter.New(filter.DefaultConfig())
	got := f.Sample(s.Read())
	if math.Abs(got.Heading+135) > 1e-9 || math.Abs(got.Pitch-12) > 1e-9 {
		t.Errorf("filtered orientation = %+v, want {-135 12}", got)
	}
}

func TestDrivenAxisMoves(t *testing.T) {
	s := New(quiet())
	s.SetAxisSpeed(rotator.Azimuth, 255)
	s.SetAxisSpeed(rotator.Elevation, -128)
	stepFor(s, 5*time.Second)
	st := s.State()
	if math.Abs(st.AzVel-6) > 1e-9 {
		t.Errorf("azimuth velocity = %v, want 6", st.AzVel)
	}
	if st.AzPos <= 20 {
		t.Errorf("azimuth position = %v, want > 20", st.AzPos)
	}
	if st.ElVel >= 0 || st.ElPos >= 0 {
		t.Errorf("elevation did not move down: %+v", st)
	}
}

func TestDragStops(t *testing.T) {
	s := New(quiet())
	s.SetAxisSpeed(rotator.Azimuth, -255)
	stepFor(s, 2*time.Second)
	s.SetAxisSpeed(rotator.Azimuth, 0)
	stepFor(s, 2*time.Second)
	if v := s.State().AzVel; v != 0 {
		t.Errorf("azimuth velocity = %v after coasting, want 0", v)
	}
}

func TestAzimuthWraps(t *testing.T) {
	opts := quiet()
	opts.Start = rotator.Orientation{Heading: 178}
	s := New(opts)
	s.SetAxisSpeed(rotator.Azimuth, 255)
	stepFor(s, 3*time.Second)
	if pos := s.State().AzPos; pos > 0 {
		t.Errorf("azimuth position = %v, want wrapped negative", pos)
	}
}

func TestElevationStops(t *testing.T) {
	s := New(quiet())
	s.SetAxisSpeed(rotator.Elevation, 255)
	stepFor(s, 30*time.Second)
	st := s.State()
	if st.ElPos != 90 || st.ElevationLimit != 2 {
		t.Errorf("elevation = %v limit %d, want 90 at upper stop", st.ElPos, st.ElevationLimit)
	}
}

func TestOutliersAndDropouts(t *testing.T) {
	opts := quiet()
	opts.OutlierRate = 1
	s := New(opts)
	far := 0
	for i := 0; i < 100; i++ {
		h, _, ok := s.Read()
		if !ok {
			t.Fatal("read failed with zero dropout rate")
		}
		if rotator.CircularDistance(h, 180) > 20 {
			far++
		}
	}
	if far == 0 {
		t.Error("no outliers generated")
	}

	opts = quiet()
	opts.DropoutRate = 1
	if _, _, ok := New(opts).Read(); ok {
		t.Error("read succeeded with dropout rate 1")
	}
}
