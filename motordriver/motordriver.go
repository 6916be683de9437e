// Package motordriver talks to a Modbus RTU motor controller board that also
// carries the AHRS sensor.
//
// Input registers:
//
//	0  heading, tenths of a degree (int16)
//	1  pitch, tenths of a degree (int16)
//	2  nonzero when the sensor reading is valid
//
// Holding registers:
//
//	0  azimuth duty cycle (int16)
//	1  elevation duty cycle (int16)
package motordriver

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/w1xm/areg_rotator/internal/modbus"
	"github.com/w1xm/areg_rotator/rotator"
)

const (
	regHeading = 0
	regPitch   = 1
	regValid   = 2
	numInputs  = 3

	regAzDuty = 0
	regElDuty = 1
)

// DefaultStaleAfter is how old a sensor reading may be before Read reports
// an outage.
const DefaultStaleAfter = 500 * time.Millisecond

type registers interface {
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

type Status struct {
	Heading, Pitch float64
	Valid          bool
	AzDuty, ElDuty int
	Polled         time.Time
}

type StatusCallback func(status Status)

type Driver struct {
	statusCallback StatusCallback
	staleAfter     time.Duration
	now            func() time.Time

	regs registers

	mu      sync.Mutex
	status  Status
	want    [2]int
	written [2]int
	dirty   [2]bool
}

func newDriver(regs registers, statusCallback StatusCallback) *Driver {
	return &Driver{
		regs:           regs,
		statusCallback: statusCallback,
		staleAfter:     DefaultStaleAfter,
		now:            time.Now,
		// Force an initial zero write so the board starts stopped.
		dirty: [2]bool{true, true},
	}
}

func Connect(ctx context.Context, port string, baud int, slaveID byte, pollInterval time.Duration, statusCallback StatusCallback) (*Driver, error) {
	client := &modbus.Client{
		Port:         port,
		BaudRate:     baud,
		SlaveId:      slaveID,
		PollInterval: pollInterval,
	}
	d := newDriver(client, statusCallback)
	client.Poll = d.pollOnce
	return d, client.Connect(ctx)
}

func (d *Driver) pollOnce() error {
	if err := d.writeDuty(); err != nil {
		return err
	}
	results, err := d.regs.ReadInputRegisters(0, numInputs)
	if err != nil {
		return err
	}
	if len(results) < 2*numInputs {
		return fmt.Errorf("short input register read: %d bytes", len(results))
	}
	reg := func(i int) uint16 { return binary.BigEndian.Uint16(results[2*i:]) }

	d.mu.Lock()
	d.status.Heading = float64(int16(reg(regHeading))) / 10
	d.status.Pitch = float64(int16(reg(regPitch))) / 10
	d.status.Valid = reg(regValid) != 0
	d.status.AzDuty = d.written[rotator.Azimuth]
	d.status.ElDuty = d.written[rotator.Elevation]
	d.status.Polled = d.now()
	status := d.status
	d.mu.Unlock()

	if d.statusCallback != nil {
		d.statusCallback(status)
	}
	return nil
}

func (d *Driver) writeDuty() error {
	for _, axis := range []rotator.Axis{rotator.Azimuth, rotator.Elevation} {
		d.mu.Lock()
		dirty, duty := d.dirty[axis], d.want[axis]
		d.mu.Unlock()
		if !dirty {
			continue
		}
		addr := uint16(regAzDuty)
		if axis == rotator.Elevation {
			addr = regElDuty
		}
		if _, err := d.regs.WriteSingleRegister(addr, uint16(int16(duty))); err != nil {
			return fmt.Errorf("writing %s duty: %w", axis, err)
		}
		d.mu.Lock()
		d.written[axis] = duty
		if d.want[axis] == duty {
			d.dirty[axis] = false
		}
		d.mu.Unlock()
	}
	return nil
}

// Read implements rotator.Sensor from the most recent poll.
func (d *Driver) Read() (float64, float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.status.Valid || d.now().Sub(d.status.Polled) > d.staleAfter {
		return 0, 0, false
	}
	return d.status.Heading, d.status.Pitch, true
}

// SetAxisSpeed implements rotator.Actuator. The value is written to the
// board on the next poll.
func (d *Driver) SetAxisSpeed(axis rotator.Axis, pwm int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.want[axis] != pwm {
		d.want[axis] = pwm
		d.dirty[axis] = true
	}
}
