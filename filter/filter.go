// Package filter smooths the heading reported by the AHRS sensor.
//
// The magnetometer occasionally returns wild values. Samples that jump too
// far from the last accepted heading are ignored, but only for a bounded
// number of consecutive samples so that a real, fast move is never frozen out.
package filter

import "github.com/w1xm/areg_rotator/rotator"

const (
	DefaultMaxChangeDegrees = 20
	DefaultMaxErrors        = 30
)

type Config struct {
	// MaxChangeDegrees is the largest heading jump accepted between samples.
	MaxChangeDegrees float64
	// MaxErrors is how many consecutive jumps are ignored before one is forced through.
	MaxErrors int
}

func DefaultConfig() Config {
	return Config{
		MaxChangeDegrees: DefaultMaxChangeDegrees,
		MaxErrors:        DefaultMaxErrors,
	}
}

// Stats counts what the filter has done with the samples it was given.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Forced   uint64 `json:"forced"`
	Outages  uint64 `json:"outages"`
}

type Filter struct {
	cfg    Config
	last   rotator.Orientation
	primed bool
	errors int
	stats  Stats
}

func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Sample feeds one raw sensor reading through the filter and returns the
// accepted orientation. The first valid sample is always accepted.
func (f *Filter) Sample(rawHeading, rawPitch float64, ok bool) rotator.Orientation {
	if !ok {
		f.stats.Outages++
		return f.last
	}
	// The sensor is mounted so that raw heading 0 points south and increases
	// anticlockwise; convert to 0 = north, positive clockwise.
	heading := rotator.Normalize(-rawHeading + 180)

	switch {
	case !f.primed || rotator.CircularDistance(heading, f.last.Heading) <= f.cfg.MaxChangeDegrees:
		f.primed = true
		f.errors = 0
		f.last.Heading = heading
		f.stats.Accepted++
	default:
		f.errors++
		if f.errors > f.cfg.MaxErrors {
			f.errors = 0
			f.last.Heading = heading
			f.stats.Forced++
		} else {
			f.stats.Rejected++
		}
	}
	f.last.Pitch = rawPitch
	return f.last
}

// Last returns the most recently accepted orientation.
func (f *Filter) Last() rotator.Orientation {
	return f.last
}

// Errors returns the number of consecutive rejected samples.
func (f *Filter) Errors() int {
	return f.errors
}

func (f *Filter) Stats() Stats {
	return f.stats
}
