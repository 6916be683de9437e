package transport

import (
	"context"
	"log"
	"time"

	"github.com/tarm/serial"
)

// Serial is a Port on a serial device that is reopened whenever it goes away.
type Serial struct {
	*Port
}

// OpenSerial starts a reconnect loop on the named device and returns immediately.
func OpenSerial(ctx context.Context, name string, baud int) *Serial {
	s := &Serial{Port: newPort()}
	go s.reconnectLoop(ctx, name, baud)
	return s
}

func (s *Serial) reconnectLoop(ctx context.Context, name string, baud int) {
	for {
		c := &serial.Config{Name: name, Baud: baud}
		port, err := serial.OpenPort(c)
		if err != nil {
			log.Printf("opening %q: %v", name, err)
		} else {
			log.Printf("opened %q", name)
			if err := s.watch(ctx, port); err != nil && ctx.Err() == nil {
				log.Printf("watching %q: %v", name, err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
	}
}
