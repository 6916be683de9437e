package motion

import (
	"time"

	"github.com/w1xm/areg_rotator/filter"
	"github.com/w1xm/areg_rotator/rotator"
)

// Config holds the per-axis tuning of the controller.
type Config struct {
	// AzToleranceDegrees and ElToleranceDegrees are the dead-band widths
	// centred on the target.
	AzToleranceDegrees float64
	ElToleranceDegrees float64
	// AzRampTime and ElRampTime are how long a motor takes to go from
	// stopped to full speed.
	AzRampTime time.Duration
	ElRampTime time.Duration

	AzMinDegrees, AzMaxDegrees float64
	ElMinDegrees, ElMaxDegrees float64

	AzMotorMaxPWM int
	ElMotorMaxPWM int

	Filter filter.Config
}

// DefaultConfig returns the values the rotator was commissioned with.
func DefaultConfig() Config {
	return Config{
		AzToleranceDegrees: 14,
		ElToleranceDegrees: 6,
		AzRampTime:         1000 * time.Millisecond,
		ElRampTime:         1000 * time.Millisecond,
		AzMinDegrees:       -270,
		AzMaxDegrees:       270,
		ElMinDegrees:       -20,
		ElMaxDegrees:       85,
		AzMotorMaxPWM:      255,
		ElMotorMaxPWM:      255,
		Filter:             filter.DefaultConfig(),
	}
}

type axisConfig struct {
	tolerance float64
	rampTime  time.Duration
	maxPWM    int
}

func (c Config) axis(a rotator.Axis) axisConfig {
	if a == rotator.Elevation {
		return axisConfig{c.ElToleranceDegrees, c.ElRampTime, c.ElMotorMaxPWM}
	}
	return axisConfig{c.AzToleranceDegrees, c.AzRampTime, c.AzMotorMaxPWM}
}
