// Package spid implements the SPID Rot2 binary rotator protocol.
//
// Requests are 13 bytes:
//
//	'W' H1 H2 H3 H4 PH V1 V2 V3 V4 PV K ' '
//
// where H1..H4 and V1..V4 are ASCII digits of (angle+360)*resolution, PH and
// PV are the pulse resolution, and K is the command. Replies are 12 bytes
// carrying the current position as raw (non-ASCII) digits.
package spid

import (
	"errors"
	"fmt"
	"io"

	"github.com/w1xm/areg_rotator/rotator"
)

const (
	Start      = 'W'
	Terminator = 0x20

	// FrameLen is the length of a request frame including the terminator.
	FrameLen        = 13
	TerminatorIndex = FrameLen - 1
	CommandIndex    = 11

	// Resolution is the only pulse resolution supported: one pulse per degree.
	Resolution = 0x01

	ReplyLen = 12
)

// Command codes.
const (
	CmdStop   = 0x0f
	CmdStatus = 0x1f
	CmdSet    = 0x2f
)

var (
	ErrShortFrame     = errors.New("short frame")
	ErrBadDigit       = errors.New("bad digit")
	ErrBadResolution  = errors.New("bad pulse resolution")
	ErrOutOfRange     = errors.New("angle out of range")
	ErrUnknownCommand = errors.New("unknown command")
)

// Limits are the travel limits applied to set commands.
type Limits struct {
	AzMin, AzMax float64
	ElMin, ElMax float64
}

type Protocol struct {
	Limits Limits
}

func New(limits Limits) *Protocol {
	return &Protocol{Limits: limits}
}

// DecodeField decodes a five byte angle field (four digits plus resolution) into degrees.
func DecodeField(field []byte) (int, error) {
	if len(field) < 5 {
		return 0, ErrShortFrame
	}
	raw := 0
	for _, b := range field[:4] {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("%w %#02x", ErrBadDigit, b)
		}
		raw = raw*10 + int(b-'0')
	}
	if field[4] != Resolution {
		return 0, fmt.Errorf("%w %#02x", ErrBadResolution, field[4])
	}
	// More than three full rotations is not a plausible request.
	if raw > 3*360*Resolution {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, raw)
	}
	return raw/Resolution - 360, nil
}

// replyField shifts angle into the non-negative three digit range the reply can carry.
func replyField(angle float64) int {
	v := int(angle) + 360
	if v < 0 {
		return 0
	}
	if v > 999 {
		return 999
	}
	return v
}

// EncodeStatus builds the reply describing o. Angles outside [-360, 639]
// are reported at the nearest end of that range.
func EncodeStatus(o rotator.Orientation) []byte {
	az := replyField(o.Heading)
	el := replyField(o.Pitch)
	return []byte{
		Start,
		byte(az / 100 % 10), byte(az / 10 % 10), byte(az % 10), 0x00, Resolution,
		byte(el / 100 % 10), byte(el / 10 % 10), byte(el % 10), 0x00, Resolution,
		Terminator,
	}
}

// Handle executes one complete request frame against c, writing any reply to w.
// Malformed set commands return an error and produce no reply.
func (p *Protocol) Handle(frame []byte, c rotator.Controller, w io.Writer) error {
	if len(frame) < FrameLen {
		return ErrShortFrame
	}
	switch frame[CommandIndex] {
	case CmdStop:
		c.StopGraceful()
		return p.reply(c, w)
	case CmdStatus:
		return p.reply(c, w)
	case CmdSet:
		az, err := DecodeField(frame[1:6])
		if err != nil {
			return fmt.Errorf("azimuth: %w", err)
		}
		el, err := DecodeField(frame[6:11])
		if err != nil {
			return fmt.Errorf("elevation: %w", err)
		}
		c.SetTarget(rotator.Target{
			Azimuth:   rotator.Clamp(float64(az), p.Limits.AzMin, p.Limits.AzMax),
			Elevation: rotator.Clamp(float64(el), p.Limits.ElMin, p.Limits.ElMax),
		})
		return nil
	}
	return fmt.Errorf("%w %#02x", ErrUnknownCommand, frame[CommandIndex])
}

func (p *Protocol) reply(c rotator.Controller, w io.Writer) error {
	_, err := w.Write(EncodeStatus(c.Current()))
	return err
}
