// Package transport provides non-blocking byte streams for the command
// protocols. A background goroutine moves bytes between the connection and
// bounded queues so that the control loop never waits on I/O.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	inQueue  = 1024
	outQueue = 64
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrQueueFull    = errors.New("output queue full")
)

// Port is a rotator.ByteTransport over whatever connection is currently attached.
type Port struct {
	in  chan byte
	out chan []byte

	mu        sync.Mutex
	connected bool
}

func newPort() *Port {
	return &Port{
		in:  make(chan byte, inQueue),
		out: make(chan []byte, outQueue),
	}
}

// TryReadByte returns the next received byte, if any.
func (p *Port) TryReadByte() (byte, bool) {
	select {
	case b := <-p.in:
		return b, true
	default:
		return 0, false
	}
}

// Write queues b for sending. It fails rather than blocks when the
// connection is down or slow.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	connected := p.connected
	p.mu.Unlock()
	if !connected {
		return 0, ErrNotConnected
	}
	select {
	case p.out <- append([]byte(nil), b...):
		return len(b), nil
	default:
		return 0, ErrQueueFull
	}
}

// Connected reports whether a connection is attached.
func (p *Port) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *Port) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// watch pumps bytes to and from conn until it fails or ctx is canceled.
func (p *Port) watch(ctx context.Context, conn io.ReadWriteCloser) error {
	p.setConnected(true)
	defer p.setConnected(false)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Wait for context to be canceled, then close connection.
		<-ctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		buf := make([]byte, 64)
		for {
			n, err := conn.Read(buf)
			for _, b := range buf[:n] {
				select {
				case p.in <- b:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err != nil {
				return fmt.Errorf("reading: %w", err)
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case b := <-p.out:
				if _, err := conn.Write(b); err != nil {
					return fmt.Errorf("writing: %w", err)
				}
			}
		}
	})
	return g.Wait()
}

// Stream is a Port over a single connection, such as a pipe or stdio.
type Stream struct {
	*Port
	done chan struct{}
	err  error
}

// NewStream starts pumping conn. The stream is finished when conn fails or ctx is canceled.
func NewStream(ctx context.Context, conn io.ReadWriteCloser) *Stream {
	s := &Stream{Port: newPort(), done: make(chan struct{})}
	s.setConnected(true)
	go func() {
		defer close(s.done)
		s.err = s.watch(ctx, conn)
	}()
	return s
}

// Done is closed once the connection has ended.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns why the stream ended. It is only valid after Done is closed.
func (s *Stream) Err() error {
	return s.err
}
