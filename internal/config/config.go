// Package config loads the rotator daemon configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/w1xm/areg_rotator/filter"
	"github.com/w1xm/areg_rotator/motion"
	"github.com/w1xm/areg_rotator/protocol"
	"github.com/w1xm/areg_rotator/protocol/spid"
)

const (
	DriverSim    = "sim"
	DriverModbus = "modbus"
)

type Config struct {
	AzToleranceDegrees float64 `yaml:"az_tolerance_degrees"`
	ElToleranceDegrees float64 `yaml:"el_tolerance_degrees"`
	AzRampTimeMsecs    int     `yaml:"az_ramp_time_msecs"`
	ElRampTimeMsecs    int     `yaml:"el_ramp_time_msecs"`
	AzMinDegrees       float64 `yaml:"az_min_degrees"`
	AzMaxDegrees       float64 `yaml:"az_max_degrees"`
	ElMinDegrees       float64 `yaml:"el_min_degrees"`
	ElMaxDegrees       float64 `yaml:"el_max_degrees"`
	AzMotorMaxPWM      int     `yaml:"az_motor_max_pwm"`
	ElMotorMaxPWM      int     `yaml:"el_motor_max_pwm"`

	MaxHeadingDegreesChangeAllowed float64 `yaml:"max_heading_degrees_change_allowed"`
	MaxHeadingErrorsAllowed        int     `yaml:"max_heading_errors_allowed"`

	SerialBufferCapacity int `yaml:"serial_buffer_capacity"`
	SPIDPulseResolution  int `yaml:"spid_pulse_resolution"`

	// SerialPort is the host link; "-" uses stdin/stdout.
	SerialPort          string `yaml:"serial_port"`
	SerialBaud          int    `yaml:"serial_baud"`
	TickIntervalMsecs   int    `yaml:"tick_interval_msecs"`
	StatusIntervalMsecs int    `yaml:"status_interval_msecs"`
	HTTPAddr            string `yaml:"http_addr"`

	Driver    string    `yaml:"driver"`
	Modbus    Modbus    `yaml:"modbus"`
	Simulator Simulator `yaml:"simulator"`
}

type Modbus struct {
	Port              string `yaml:"port"`
	Baud              int    `yaml:"baud"`
	SlaveID           byte   `yaml:"slave_id"`
	PollIntervalMsecs int    `yaml:"poll_interval_msecs"`
}

type Simulator struct {
	NoiseDegrees float64 `yaml:"noise_degrees"`
	OutlierRate  float64 `yaml:"outlier_rate"`
	DropoutRate  float64 `yaml:"dropout_rate"`
	Seed         int64   `yaml:"seed"`
}

// Default returns the configuration the rotator firmware was built with.
func Default() Config {
	m := motion.DefaultConfig()
	return Config{
		AzToleranceDegrees: m.AzToleranceDegrees,
		ElToleranceDegrees: m.ElToleranceDegrees,
		AzRampTimeMsecs:    int(m.AzRampTime / time.Millisecond),
		ElRampTimeMsecs:    int(m.ElRampTime / time.Millisecond),
		AzMinDegrees:       m.AzMinDegrees,
		AzMaxDegrees:       m.AzMaxDegrees,
		ElMinDegrees:       m.ElMinDegrees,
		ElMaxDegrees:       m.ElMaxDegrees,
		AzMotorMaxPWM:      m.AzMotorMaxPWM,
		ElMotorMaxPWM:      m.ElMotorMaxPWM,

		MaxHeadingDegreesChangeAllowed: m.Filter.MaxChangeDegrees,
		MaxHeadingErrorsAllowed:        m.Filter.MaxErrors,

		SerialBufferCapacity: protocol.DefaultCapacity,
		SPIDPulseResolution:  spid.Resolution,

		SerialBaud:          115200,
		TickIntervalMsecs:   1,
		StatusIntervalMsecs: 100,
		HTTPAddr:            "127.0.0.1:8503",

		Driver: DriverSim,
		Modbus: Modbus{
			Baud:              19200,
			SlaveID:           1,
			PollIntervalMsecs: 20,
		},
		Simulator: Simulator{
			NoiseDegrees: 0.3,
			OutlierRate:  0.01,
			Seed:         1,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing %q: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%q: %w", path, err)
	}
	return c, nil
}

var ErrInvalid = errors.New("invalid config")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c Config) Validate() error {
	switch {
	case c.AzMinDegrees > c.AzMaxDegrees:
		return invalid("az_min_degrees %v > az_max_degrees %v", c.AzMinDegrees, c.AzMaxDegrees)
	case c.ElMinDegrees > c.ElMaxDegrees:
		return invalid("el_min_degrees %v > el_max_degrees %v", c.ElMinDegrees, c.ElMaxDegrees)
	case c.AzMotorMaxPWM <= 0 || c.ElMotorMaxPWM <= 0:
		return invalid("motor max pwm must be positive")
	case c.AzToleranceDegrees < 0 || c.ElToleranceDegrees < 0:
		return invalid("tolerance must not be negative")
	case c.AzRampTimeMsecs < 0 || c.ElRampTimeMsecs < 0:
		return invalid("ramp time must not be negative")
	case c.MaxHeadingDegreesChangeAllowed <= 0:
		return invalid("max_heading_degrees_change_allowed must be positive")
	case c.MaxHeadingErrorsAllowed < 0:
		return invalid("max_heading_errors_allowed must not be negative")
	case c.SerialBufferCapacity < spid.FrameLen:
		return invalid("serial_buffer_capacity %d cannot hold a %d byte SPID frame", c.SerialBufferCapacity, spid.FrameLen)
	case c.SPIDPulseResolution != spid.Resolution:
		return invalid("spid_pulse_resolution %d not supported", c.SPIDPulseResolution)
	case c.TickIntervalMsecs <= 0:
		return invalid("tick_interval_msecs must be positive")
	case c.StatusIntervalMsecs <= 0:
		return invalid("status_interval_msecs must be positive")
	}
	switch c.Driver {
	case DriverSim:
	case DriverModbus:
		if c.Modbus.Port == "" {
			return invalid("modbus driver needs modbus.port")
		}
	default:
		return invalid("unknown driver %q", c.Driver)
	}
	return nil
}

func msecs(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Motion returns the controller tuning.
func (c Config) Motion() motion.Config {
	return motion.Config{
		AzToleranceDegrees: c.AzToleranceDegrees,
		ElToleranceDegrees: c.ElToleranceDegrees,
		AzRampTime:         msecs(c.AzRampTimeMsecs),
		ElRampTime:         msecs(c.ElRampTimeMsecs),
		AzMinDegrees:       c.AzMinDegrees,
		AzMaxDegrees:       c.AzMaxDegrees,
		ElMinDegrees:       c.ElMinDegrees,
		ElMaxDegrees:       c.ElMaxDegrees,
		AzMotorMaxPWM:      c.AzMotorMaxPWM,
		ElMotorMaxPWM:      c.ElMotorMaxPWM,
		Filter: filter.Config{
			MaxChangeDegrees: c.MaxHeadingDegreesChangeAllowed,
			MaxErrors:        c.MaxHeadingErrorsAllowed,
		},
	}
}

// Limits returns the travel limits applied to SPID set commands.
func (c Config) Limits() spid.Limits {
	return spid.Limits{
		AzMin: c.AzMinDegrees,
		AzMax: c.AzMaxDegrees,
		ElMin: c.ElMinDegrees,
		ElMax: c.ElMaxDegrees,
	}
}

func (c Config) TickInterval() time.Duration {
	return msecs(c.TickIntervalMsecs)
}

func (c Config) StatusInterval() time.Duration {
	return msecs(c.StatusIntervalMsecs)
}
