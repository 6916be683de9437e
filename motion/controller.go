// Package motion drives the two rotator axes toward a target orientation.
//
// A Controller is not safe for concurrent use. It is owned by a single
// scheduler which calls Tick once per pass and forwards protocol commands
// between ticks.
package motion

import (
	"math"
	"time"

	"github.com/w1xm/areg_rotator/filter"
	"github.com/w1xm/areg_rotator/rotator"
)

// snapPWM is how close a ramping speed must get to the wanted speed before it is set exactly.
const snapPWM = 5

var axes = [...]rotator.Axis{rotator.Azimuth, rotator.Elevation}

type Controller struct {
	cfg      Config
	sensor   rotator.Sensor
	actuator rotator.Actuator
	filter   *filter.Filter

	current rotator.Orientation
	target  rotator.Target
	// speed is the last PWM speed set for each axis, indexed by rotator.Axis.
	speed    [2]float64
	enabled  bool
	lastTick time.Time
}

// New creates a stopped controller whose target is the sensor's first reading.
func New(cfg Config, sensor rotator.Sensor, actuator rotator.Actuator) *Controller {
	c := &Controller{
		cfg:      cfg,
		sensor:   sensor,
		actuator: actuator,
		filter:   filter.New(cfg.Filter),
		enabled:  true,
	}
	c.current = c.sample()
	c.target = c.current.Target()
	for _, a := range axes {
		actuator.SetAxisSpeed(a, 0)
	}
	return c
}

func (c *Controller) sample() rotator.Orientation {
	return c.filter.Sample(c.sensor.Read())
}

// SetTarget points the rotator at target and re-enables movement.
// Azimuth is wrapped into (-180, 180] and elevation limited to the travel range.
func (c *Controller) SetTarget(target rotator.Target) {
	c.target = rotator.Target{
		Azimuth:   rotator.Normalize(target.Azimuth),
		Elevation: rotator.Clamp(target.Elevation, c.cfg.ElMinDegrees, c.cfg.ElMaxDegrees),
	}
	c.enabled = true
}

// Home points the rotator north at the horizon.
func (c *Controller) Home() {
	c.SetTarget(rotator.Target{})
}

// StopGraceful retargets the current orientation; the motors ramp down over the following ticks.
func (c *Controller) StopGraceful() {
	c.current = c.sample()
	c.target = c.current.Target()
}

// StopEmergency cuts both motors immediately and disables movement until a new target is set.
func (c *Controller) StopEmergency() {
	for _, a := range axes {
		c.speed[a] = 0
		c.actuator.SetAxisSpeed(a, 0)
	}
	c.enabled = false
	c.current = c.sample()
	c.target = c.current.Target()
}

// Current returns the orientation computed by the last tick or stop.
func (c *Controller) Current() rotator.Orientation {
	return c.current
}

func (c *Controller) Target() rotator.Target {
	return c.target
}

func (c *Controller) MovementEnabled() bool {
	return c.enabled
}

// Speed returns the signed PWM speed most recently sent for an axis.
func (c *Controller) Speed(a rotator.Axis) float64 {
	return c.speed[a]
}

// Tick reads the sensor once and moves each axis speed toward where it needs
// to be, scaled by the time since the previous tick.
func (c *Controller) Tick(now time.Time) {
	var elapsed time.Duration
	if !c.lastTick.IsZero() {
		elapsed = now.Sub(c.lastTick)
	}
	if elapsed < 0 {
		elapsed = 0
	}
	c.lastTick = now

	c.current = c.sample()
	c.drive(rotator.Azimuth, c.current.Heading, c.target.Azimuth, elapsed)
	c.drive(rotator.Elevation, c.current.Pitch, c.target.Elevation, elapsed)
}

func (c *Controller) drive(a rotator.Axis, current, target float64, elapsed time.Duration) {
	ac := c.cfg.axis(a)
	want := c.wanted(ac, current, target)
	speed := ramp(c.speed[a], want, elapsed, ac)
	if speed == c.speed[a] {
		return
	}
	c.speed[a] = speed
	c.actuator.SetAxisSpeed(a, int(math.Round(speed)))
}

// wanted returns full speed toward the target, or zero inside the dead-band.
func (c *Controller) wanted(ac axisConfig, current, target float64) float64 {
	if !c.enabled {
		return 0
	}
	half := ac.tolerance / 2
	switch {
	case current-half > target:
		return -float64(ac.maxPWM)
	case current+half < target:
		return float64(ac.maxPWM)
	}
	return 0
}

// ramp moves speed toward want by at most maxPWM per rampTime.
func ramp(speed, want float64, elapsed time.Duration, ac axisConfig) float64 {
	if speed == want {
		return speed
	}
	if ac.rampTime <= 0 {
		return want
	}
	step := float64(elapsed) * float64(ac.maxPWM) / float64(ac.rampTime)
	gap := want - speed
	if math.Abs(gap) <= step {
		return want
	}
	if gap > 0 {
		speed += step
	} else {
		speed -= step
	}
	if math.Abs(want-speed) < snapPWM {
		return want
	}
	return speed
}

// Status is a snapshot of the controller suitable for reporting.
type Status struct {
	Current         rotator.Orientation `json:"current"`
	Target          rotator.Target      `json:"target"`
	AzimuthSpeed    float64             `json:"azimuth_speed"`
	ElevationSpeed  float64             `json:"elevation_speed"`
	MovementEnabled bool                `json:"movement_enabled"`
	// HeadingErrors is the number of consecutive rejected heading samples.
	HeadingErrors int          `json:"heading_errors"`
	Filter        filter.Stats `json:"filter"`
	Time          time.Time    `json:"time"`
}

func (s Status) Clone() rotator.Status {
	return s
}

func (s Status) AzimuthPosition() float64 {
	return s.Current.Heading
}

func (s Status) ElevationPosition() float64 {
	return s.Current.Pitch
}

// Moving reports whether either motor is being driven.
func (s Status) Moving() bool {
	return s.AzimuthSpeed != 0 || s.ElevationSpeed != 0
}

func (c *Controller) Status() Status {
	return Status{
		Current:         c.current,
		Target:          c.target,
		AzimuthSpeed:    c.speed[rotator.Azimuth],
		ElevationSpeed:  c.speed[rotator.Elevation],
		MovementEnabled: c.enabled,
		HeadingErrors:   c.filter.Errors(),
		Filter:          c.filter.Stats(),
		Time:            c.lastTick,
	}
}
