package modbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/modbus"
)

type fakeHandler struct {
	modbus.ClientHandler

	mu          sync.Mutex
	connectErrs []error
	connects    int
	closes      int
}

func (h *fakeHandler) Connect() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connects++
	if len(h.connectErrs) > 0 {
		err := h.connectErrs[0]
		h.connectErrs = h.connectErrs[1:]
		return err
	}
	return nil
}

func (h *fakeHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

func (h *fakeHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects, h.closes
}

func TestWatchPacesPolls(t *testing.T) {
	h := &fakeHandler{}
	polls := 0
	c := &Client{
		PollInterval: 20 * time.Millisecond,
		Poll:         func() error { polls++; return nil },
		handler:      h,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := c.watch(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("watch() = %v, want %v", err, context.DeadlineExceeded)
	}
	// A busy loop would poll thousands of times.
	if polls == 0 || polls > 15 {
		t.Errorf("polled %d times in 200ms at a 20ms interval", polls)
	}
	if _, closes := h.counts(); closes != 1 {
		t.Errorf("closed %d times, want 1", closes)
	}
}

func TestWatchStopsOnPollError(t *testing.T) {
	h := &fakeHandler{}
	pollErr := errors.New("timeout")
	c := &Client{
		Poll:    func() error { return pollErr },
		handler: h,
	}
	if err := c.watch(context.Background()); !errors.Is(err, pollErr) {
		t.Errorf("watch() = %v, want %v", err, pollErr)
	}
	if _, closes := h.counts(); closes != 1 {
		t.Errorf("closed %d times, want 1", closes)
	}
}

func TestReconnectLoopRetries(t *testing.T) {
	defer func(d time.Duration) { reconnectDelay = d }(reconnectDelay)
	reconnectDelay = 5 * time.Millisecond

	h := &fakeHandler{connectErrs: []error{errors.New("no such device")}}
	polled := make(chan struct{})
	var once sync.Once
	c := &Client{
		Port: "/dev/ttyTEST",
		Poll: func() error {
			once.Do(func() { close(polled) })
			return errors.New("bus error")
		},
		handler: h,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.reconnectLoop(ctx)
		close(done)
	}()

	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("never polled after a failed connect")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnectLoop did not return after cancel")
	}
	if connects, _ := h.counts(); connects < 2 {
		t.Errorf("connected %d times, want at least 2", connects)
	}
}
