// Package simulator models a rotator's motors and AHRS sensor so the control
// loop can be run without hardware.
//
// Loosely inspired by https://github.com/rolandturner/ground-simulator/blob/master/Simulator.js
package simulator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/w1xm/areg_rotator/rotator"
)

type Options struct {
	// Maximum velocity in degrees/second at full PWM
	MaxVel float64
	// Maximum acceleration in degrees/second^2
	MaxAccel float64
	// Acceleration due to drag when not driving
	DragAccel float64
	// Discrete simulation step size
	StepSize time.Duration
	MaxPWM   int

	ElMin, ElMax float64

	// NoiseDegrees is the standard deviation of sensor noise.
	NoiseDegrees float64
	// OutlierRate is the probability that a heading sample is random garbage.
	OutlierRate float64
	// DropoutRate is the probability that a read fails.
	DropoutRate float64
	Seed        int64

	// Start is the initial orientation.
	Start rotator.Orientation
}

func DefaultOptions() Options {
	return Options{
		MaxVel:       6,
		MaxAccel:     12,
		DragAccel:    20,
		StepSize:     25 * time.Millisecond,
		MaxPWM:       255,
		ElMin:        -20,
		ElMax:        90,
		NoiseDegrees: 0.3,
		OutlierRate:  0.01,
		Seed:         1,
	}
}

// State is the true physical state of the simulated rotator.
type State struct {
	AzPos, ElPos float64
	AzVel, ElVel float64
	AzPWM, ElPWM int
	// ElevationLimit is 1 at the lower stop and 2 at the upper stop.
	ElevationLimit int
}

type Simulator struct {
	opts  Options
	mu    sync.Mutex
	rand  *rand.Rand
	state State
}

func New(opts Options) *Simulator {
	return &Simulator{
		opts: opts,
		rand: rand.New(rand.NewSource(opts.Seed)),
		state: State{
			AzPos: rotator.Normalize(opts.Start.Heading),
			ElPos: opts.Start.Pitch,
		},
	}
}

// Read implements rotator.Sensor. The heading is reported in the sensor's own
// convention: 0 is south and angles increase anticlockwise.
func (s *Simulator) Read() (float64, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rand.Float64() < s.opts.DropoutRate {
		return 0, 0, false
	}
	heading := rotator.Normalize(180 - s.state.AzPos + s.noise())
	if s.rand.Float64() < s.opts.OutlierRate {
		heading = s.rand.Float64()*360 - 180
	}
	return heading, s.state.ElPos + s.noise(), true
}

func (s *Simulator) noise() float64 {
	return s.rand.NormFloat64() * s.opts.NoiseDegrees
}

// SetAxisSpeed implements rotator.Actuator.
func (s *Simulator) SetAxisSpeed(axis rotator.Axis, pwm int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch axis {
	case rotator.Azimuth:
		s.state.AzPWM = pwm
	case rotator.Elevation:
		s.state.ElPWM = pwm
	}
}

func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run advances the model in real time until ctx is canceled.
func (s *Simulator) Run(ctx context.Context) error {
	t := time.NewTicker(s.opts.StepSize)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		s.Step(s.opts.StepSize)
	}
}

// velServo returns an actual velocity for the given current and target velocity
func velServo(s, t, maxAccel float64, dt time.Duration) float64 {
	delta := math.Abs(t - s)
	if delta > maxAccel*dt.Seconds() {
		delta = maxAccel * dt.Seconds()
	}
	if t < s {
		delta = -delta
	}
	return s + delta
}

func drag(s, dragAccel float64, dt time.Duration) float64 {
	a := math.Abs(s)
	a -= dragAccel * dt.Seconds()
	if a < 0 {
		a = 0
	}
	if s < 0 {
		return -a
	}
	return a
}

func (s *Simulator) axisVel(vel float64, pwm int, dt time.Duration) float64 {
	if pwm == 0 {
		return drag(vel, s.opts.DragAccel, dt)
	}
	cmdVel := s.opts.MaxVel * float64(pwm) / float64(s.opts.MaxPWM)
	return velServo(vel, cmdVel, s.opts.MaxAccel, dt)
}

// Step advances the model by dt.
func (s *Simulator) Step(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state
	st.AzVel = s.axisVel(st.AzVel, st.AzPWM, dt)
	st.ElVel = s.axisVel(st.ElVel, st.ElPWM, dt)

	st.AzPos = rotator.Normalize(st.AzPos + st.AzVel*dt.Seconds())
	st.ElPos += st.ElVel * dt.Seconds()
	st.ElevationLimit = 0
	if st.ElPos < s.opts.ElMin {
		st.ElPos = s.opts.ElMin
		st.ElVel = 0
		st.ElevationLimit = 1
	} else if st.ElPos > s.opts.ElMax {
		st.ElPos = s.opts.ElMax
		st.ElVel = 0
		st.ElevationLimit = 2
	}
}
