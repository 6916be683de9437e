package rotator

// Axis identifies one of the two rotator motors.
type Axis int

const (
	Azimuth Axis = iota
	Elevation
)

func (a Axis) String() string {
	switch a {
	case Azimuth:
		return "azimuth"
	case Elevation:
		return "elevation"
	}
	return "unknown"
}

// Orientation is where the rotator is pointing, in degrees.
// Heading is kept in (-180, 180]; Pitch is unconstrained.
type Orientation struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
}

// Target returns the orientation as a pointing target.
func (o Orientation) Target() Target {
	return Target{Azimuth: o.Heading, Elevation: o.Pitch}
}

// Target is a requested pointing direction in degrees.
type Target struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
}

// Sensor reads raw heading and pitch. ok is false when no valid sample is available.
type Sensor interface {
	Read() (heading, pitch float64, ok bool)
}

// Actuator drives the motors. Positive speeds are clockwise / pitch up;
// the magnitude is a PWM duty.
type Actuator interface {
	SetAxisSpeed(axis Axis, pwm int)
}

// ByteTransport is a non-blocking byte stream to the controlling host.
type ByteTransport interface {
	TryReadByte() (byte, bool)
	Write(p []byte) (int, error)
}

// Controller is the command surface the wire protocols drive.
type Controller interface {
	SetTarget(target Target)
	StopGraceful()
	StopEmergency()
	Home()
	Current() Orientation
}

type StatusCallback func(status Status)

type Status interface {
	AzimuthPosition() float64
	ElevationPosition() float64

	Clone() Status
}
