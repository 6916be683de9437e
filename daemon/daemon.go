// Package daemon runs the rotator control loop.
//
// A single goroutine owns the motion controller. Each pass ticks the
// controller and then feeds at most one received byte through the framer,
// executing any frame it completes before the next pass.
package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/w1xm/areg_rotator/internal/metrics"
	"github.com/w1xm/areg_rotator/motion"
	"github.com/w1xm/areg_rotator/protocol"
	"github.com/w1xm/areg_rotator/protocol/cli"
	"github.com/w1xm/areg_rotator/protocol/spid"
	"github.com/w1xm/areg_rotator/rotator"
)

type Options struct {
	TickInterval time.Duration
	// StatusInterval is the minimum time between status callbacks.
	StatusInterval time.Duration
	BufferCapacity int
	Limits         spid.Limits
	// Banner writes the help text to the transport when Run starts.
	Banner bool
}

type Daemon struct {
	opts           Options
	c              *motion.Controller
	t              rotator.ByteTransport
	framer         *protocol.Framer
	dispatcher     *protocol.Dispatcher
	metrics        *metrics.Collector
	statusCallback rotator.StatusCallback
	lastStatus     time.Time
}

// New returns a daemon driving c from commands read on t. m and
// statusCallback may be nil.
func New(c *motion.Controller, t rotator.ByteTransport, opts Options, m *metrics.Collector, statusCallback rotator.StatusCallback) *Daemon {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Millisecond
	}
	return &Daemon{
		opts:           opts,
		c:              c,
		t:              t,
		framer:         protocol.NewFramer(opts.BufferCapacity),
		dispatcher:     protocol.NewDispatcher(c, t, protocol.Handlers(opts.Limits)),
		metrics:        m,
		statusCallback: statusCallback,
	}
}

// Run steps the loop every tick interval until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	if d.opts.Banner {
		if _, err := io.WriteString(d.t, cli.Help); err != nil {
			log.Printf("writing banner: %v", err)
		}
	}
	t := time.NewTicker(d.opts.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			d.Step(now)
		}
	}
}

// Step performs one pass of the loop.
func (d *Daemon) Step(now time.Time) {
	d.c.Tick(now)

	if b, ok := d.t.TryReadByte(); ok {
		if f, ok := d.framer.Push(b); ok {
			err := d.dispatcher.Dispatch(f)
			switch {
			case errors.Is(err, protocol.ErrReply):
				log.Printf("executed %s frame %q: %v", f.Kind, f.Data, err)
			case err != nil:
				log.Printf("dropping %s frame %q: %v", f.Kind, f.Data, err)
			}
			d.metrics.ObserveFrame(f.Kind, err)
		}
	}

	if now.Sub(d.lastStatus) >= d.opts.StatusInterval {
		d.lastStatus = now
		d.publish()
	}
}

func (d *Daemon) publish() {
	status := d.c.Status()
	d.metrics.ObserveStatus(status)
	d.metrics.ObserveFramer(d.framer.Stats())
	if d.statusCallback != nil {
		d.statusCallback(status)
	}
}
