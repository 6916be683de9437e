// Command random_targets points a rotator at a random target every few
// seconds, for soak testing. It prints everything the rotator sends back.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/tarm/serial"
	"golang.org/x/sync/errgroup"
)

var (
	serialPort = flag.String("serial", "", "rotator serial port name")
	baud       = flag.Int("baud", 115200, "baud rate")
	interval   = flag.Duration("interval", 4*time.Second, "time between targets")
	azMin      = flag.Int("az_min", -130, "minimum azimuth")
	azMax      = flag.Int("az_max", -100, "maximum azimuth")
	elMin      = flag.Int("el_min", 0, "minimum elevation")
	elMax      = flag.Int("el_max", 25, "maximum elevation")
	seed       = flag.Int64("seed", 0, "random seed; 0 uses the clock")
)

type bounds struct {
	AzMin, AzMax int
	ElMin, ElMax int
}

// randomTarget picks an integer target uniformly inside b, bounds inclusive.
func randomTarget(r *rand.Rand, b bounds) (az, el int) {
	az = b.AzMin + r.Intn(b.AzMax-b.AzMin+1)
	el = b.ElMin + r.Intn(b.ElMax-b.ElMin+1)
	return az, el
}

func targetCommand(az, el int) string {
	return fmt.Sprintf("t%d,%d\n", az, el)
}

func echo(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return scanner.Err()
}

func send(ctx context.Context, w io.Writer, r *rand.Rand, b bounds) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
	}
	log.Print("get current position")
	if _, err := io.WriteString(w, "g\n"); err != nil {
		return err
	}
	t := time.NewTicker(*interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		cmd := targetCommand(randomTarget(r, b))
		log.Printf("sending %q", cmd)
		if _, err := io.WriteString(w, cmd); err != nil {
			return err
		}
	}
}

func main() {
	flag.Parse()
	b := bounds{*azMin, *azMax, *elMin, *elMax}
	if b.AzMin > b.AzMax || b.ElMin > b.ElMax {
		log.Fatal("min bound above max bound")
	}
	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(s))

	port, err := serial.OpenPort(&serial.Config{Name: *serialPort, Baud: *baud})
	if err != nil {
		log.Fatalf("opening %q: %v", *serialPort, err)
	}
	defer port.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return echo(port) })
	g.Go(func() error { return send(ctx, port, r, b) })
	go func() {
		<-ctx.Done()
		port.Close()
	}()
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
