// Package cli implements the line oriented command set typed by an operator.
//
//	t|T<az>[,<el>]  set target
//	g|G             report current orientation
//	s|S             stop, ramping the motors down
//	e|E             emergency stop
//	h|H             home (0,0)
//	?               help
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/w1xm/areg_rotator/rotator"
)

const EOL = '\n'

// Help is printed in response to '?' or an empty line, and on startup.
const Help = `Az/El Rotator - www.areg.org.au

Simple CLI serial commands:
  t|T<azimuth>,<elevation> = set target, e.g. 't90,30' is East with 30 degrees elevation
  g|G - get current orientation, returns azimuth elevation, e.g. 'current_orientation: 145 0'
  h|H - move to Home orientation (0,0)
  s|S - stop motors (nicely) by ramping down
  e|E - EMERGENCY stop motors immediately
   ?  - Help

`

var ErrUnknownCommand = errors.New("unknown command")

// IsCommand reports whether b can start a command line.
func IsCommand(b byte) bool {
	switch b {
	case 't', 'T', 'g', 'G', 's', 'S', 'e', 'E', 'h', 'H', '?', EOL:
		return true
	}
	return false
}

// Handle executes one newline terminated command line against c and writes the reply to w.
func Handle(line []byte, c rotator.Controller, w io.Writer) error {
	if len(line) == 0 {
		return ErrUnknownCommand
	}
	switch line[0] {
	case 't', 'T':
		az, el := ParseTarget(line[1:])
		c.SetTarget(rotator.Target{Azimuth: float64(az), Elevation: float64(el)})
		_, err := fmt.Fprintf(w, "set_target: %d %d\n", az, el)
		return err
	case 'g', 'G':
		o := c.Current()
		_, err := fmt.Fprintf(w, "current_orientation: %d %d\n", int(o.Heading), int(o.Pitch))
		return err
	case 's', 'S':
		c.StopGraceful()
		_, err := io.WriteString(w, "Stopping motors\n")
		return err
	case 'e', 'E':
		c.StopEmergency()
		_, err := io.WriteString(w, "EMERGENCY Stop motors\n")
		return err
	case 'h', 'H':
		c.Home()
		_, err := io.WriteString(w, "Move to Home orientation (0,0)\n")
		return err
	case '?', EOL:
		_, err := io.WriteString(w, Help)
		return err
	}
	return fmt.Errorf("%w %q", ErrUnknownCommand, line[0])
}

// ParseTarget parses "<az>[,<el>]". A missing elevation is 0.
func ParseTarget(args []byte) (az, el int) {
	az, n := parseInt(args)
	rest := args[n:]
	for i, b := range rest {
		if b == ',' {
			el, _ = parseInt(rest[i+1:])
			break
		}
	}
	return az, el
}

// parseInt parses a leading, optionally signed, decimal integer and returns
// it with the number of bytes consumed. No digits parses as 0.
func parseInt(b []byte) (int, int) {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	neg := false
	if i < len(b) && (b[i] == '-' || b[i] == '+') {
		neg = b[i] == '-'
		i++
	}
	v := 0
	for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		v = v*10 + int(b[i]-'0')
		if v > 1e6 {
			// Keep absurd inputs from overflowing; SetTarget wraps them anyway.
			v = 1e6
		}
	}
	if neg {
		v = -v
	}
	return v, i
}
