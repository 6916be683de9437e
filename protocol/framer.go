// Package protocol splits the incoming byte stream into command frames and
// routes them to the text or SPID Rot2 handlers.
//
// Both protocols share one input buffer. The first byte of the buffer decides
// which protocol the frame belongs to, so the CLI command letters must never
// collide with the SPID start byte.
package protocol

import (
	"bytes"

	"github.com/w1xm/areg_rotator/protocol/cli"
	"github.com/w1xm/areg_rotator/protocol/spid"
)

// DefaultCapacity is the size of the input buffer.
const DefaultCapacity = 30

type Kind int

const (
	KindUnrecognized Kind = iota
	KindCLI
	KindSPID
)

func (k Kind) String() string {
	switch k {
	case KindCLI:
		return "cli"
	case KindSPID:
		return "spid"
	}
	return "unrecognized"
}

// Classify returns the protocol a frame starting with b belongs to.
func Classify(b byte) Kind {
	switch {
	case cli.IsCommand(b):
		return KindCLI
	case b == spid.Start || b == 'w':
		return KindSPID
	}
	return KindUnrecognized
}

// Frame is a complete command of one protocol.
type Frame struct {
	Kind Kind
	Data []byte
}

type FramerStats struct {
	Frames    uint64 `json:"frames"`
	Dropped   uint64 `json:"dropped"`
	Overflows uint64 `json:"overflows"`
}

// Framer accumulates bytes until they form a frame. Push never blocks.
type Framer struct {
	buf   []byte
	n     int
	stats FramerStats
}

// NewFramer returns a framer with a buffer of capacity bytes, or
// DefaultCapacity if capacity is not positive.
func NewFramer(capacity int) *Framer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Framer{buf: make([]byte, capacity)}
}

// Push adds one byte to the buffer and returns a frame once one is complete.
// A byte that cannot start a frame is dropped. If the buffer fills without a
// complete frame it is discarded and the next byte starts afresh.
func (f *Framer) Push(b byte) (Frame, bool) {
	if f.n == 0 && Classify(b) == KindUnrecognized {
		f.stats.Dropped++
		return Frame{}, false
	}
	f.buf[f.n] = b
	f.n++

	kind := Classify(f.buf[0])
	complete := false
	switch kind {
	case KindCLI:
		complete = bytes.IndexByte(f.buf[:f.n], cli.EOL) >= 0
	case KindSPID:
		complete = f.n >= spid.FrameLen && f.buf[spid.TerminatorIndex] == spid.Terminator
	}
	if complete {
		frame := Frame{Kind: kind, Data: append([]byte(nil), f.buf[:f.n]...)}
		f.stats.Frames++
		f.Reset()
		return frame, true
	}
	if f.n == len(f.buf) {
		f.stats.Overflows++
		f.Reset()
	}
	return Frame{}, false
}

// Reset discards any buffered bytes.
func (f *Framer) Reset() {
	for i := range f.buf[:f.n] {
		f.buf[i] = 0
	}
	f.n = 0
}

// Len returns the number of buffered bytes.
func (f *Framer) Len() int {
	return f.n
}

func (f *Framer) Stats() FramerStats {
	return f.stats
}
