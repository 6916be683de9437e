package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/w1xm/areg_rotator/protocol/cli"
	"github.com/w1xm/areg_rotator/protocol/spid"
	"github.com/w1xm/areg_rotator/rotator"
)

// ErrReply marks a frame whose command was executed but whose reply could
// not be written.
var ErrReply = errors.New("reply not sent")

// Handler executes one complete frame of its protocol.
type Handler interface {
	Handle(frame []byte, c rotator.Controller, w io.Writer) error
}

type HandlerFunc func(frame []byte, c rotator.Controller, w io.Writer) error

func (f HandlerFunc) Handle(frame []byte, c rotator.Controller, w io.Writer) error {
	return f(frame, c, w)
}

// Handlers returns the text and SPID handlers, with SPID set commands
// limited to limits.
func Handlers(limits spid.Limits) map[Kind]Handler {
	return map[Kind]Handler{
		KindCLI:  HandlerFunc(cli.Handle),
		KindSPID: spid.New(limits),
	}
}

// Dispatcher hands complete frames to their protocol handler.
type Dispatcher struct {
	c        rotator.Controller
	out      io.Writer
	handlers map[Kind]Handler
}

func NewDispatcher(c rotator.Controller, out io.Writer, handlers map[Kind]Handler) *Dispatcher {
	d := &Dispatcher{c: c, out: out, handlers: make(map[Kind]Handler, len(handlers))}
	for k, h := range handlers {
		d.handlers[k] = h
	}
	return d
}

// replyWriter remembers the first write error.
type replyWriter struct {
	w   io.Writer
	err error
}

func (r *replyWriter) Write(p []byte) (int, error) {
	n, err := r.w.Write(p)
	if err != nil && r.err == nil {
		r.err = err
	}
	return n, err
}

// Dispatch executes f. A returned error wrapping ErrReply means the command
// ran but its reply was lost; any other error means the frame was dropped.
func (d *Dispatcher) Dispatch(f Frame) error {
	h, ok := d.handlers[f.Kind]
	if !ok {
		return fmt.Errorf("no handler for %v frame", f.Kind)
	}
	w := &replyWriter{w: d.out}
	err := h.Handle(f.Data, d.c, w)
	if err != nil && w.err != nil {
		return fmt.Errorf("%w: %v", ErrReply, w.err)
	}
	return err
}
