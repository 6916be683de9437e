// Command rotator drives an az/el antenna rotator from commands received on
// a serial link, speaking both the text CLI and the SPID Rot2 protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	bugst "go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"github.com/w1xm/areg_rotator/daemon"
	"github.com/w1xm/areg_rotator/internal/config"
	"github.com/w1xm/areg_rotator/internal/metrics"
	"github.com/w1xm/areg_rotator/motion"
	"github.com/w1xm/areg_rotator/motordriver"
	"github.com/w1xm/areg_rotator/rotator"
	"github.com/w1xm/areg_rotator/simulator"
	"github.com/w1xm/areg_rotator/transport"
)

var (
	configPath = flag.String("config", "", "YAML config file")
	serialPort = flag.String("serial", "", "host serial port name, or - for stdin/stdout (overrides config)")
	httpAddr   = flag.String("http_addr", "", "status server address (overrides config)")
	driver     = flag.String("driver", "", "motor driver: sim or modbus (overrides config)")
	listPorts  = flag.Bool("list_ports", false, "list serial ports and exit")
)

type hardware interface {
	rotator.Sensor
	rotator.Actuator
}

// stdio is the host link when running under a terminal or pipe.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdio) Close() error                { return os.Stdin.Close() }

func printPorts() error {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	if *serialPort != "" {
		cfg.SerialPort = *serialPort
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if cfg.SerialPort == "" {
		return cfg, errors.New("no serial port configured")
	}
	return cfg, cfg.Validate()
}

func openHardware(ctx context.Context, g *errgroup.Group, cfg config.Config) (hardware, error) {
	switch cfg.Driver {
	case config.DriverModbus:
		return motordriver.Connect(ctx, cfg.Modbus.Port, cfg.Modbus.Baud, cfg.Modbus.SlaveID,
			time.Duration(cfg.Modbus.PollIntervalMsecs)*time.Millisecond, nil)
	case config.DriverSim:
		opts := simulator.DefaultOptions()
		opts.ElMin = cfg.ElMinDegrees
		opts.ElMax = cfg.ElMaxDegrees
		opts.MaxPWM = cfg.AzMotorMaxPWM
		opts.NoiseDegrees = cfg.Simulator.NoiseDegrees
		opts.OutlierRate = cfg.Simulator.OutlierRate
		opts.DropoutRate = cfg.Simulator.DropoutRate
		opts.Seed = cfg.Simulator.Seed
		sim := simulator.New(opts)
		g.Go(func() error { return sim.Run(ctx) })
		return sim, nil
	}
	return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
}

// waitForSensor blocks until s has a valid reading, so the controller
// starts with its target at the real orientation.
func waitForSensor(ctx context.Context, s rotator.Sensor) error {
	for i := 0; ; i++ {
		if _, _, ok := s.Read(); ok {
			return nil
		}
		if i%10 == 9 {
			log.Print("waiting for sensor")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func openTransport(ctx context.Context, cfg config.Config) rotator.ByteTransport {
	if cfg.SerialPort == "-" {
		return transport.NewStream(ctx, stdio{})
	}
	return transport.OpenSerial(ctx, cfg.SerialPort, cfg.SerialBaud)
}

func run(ctx context.Context, cfg config.Config) error {
	g, ctx := errgroup.WithContext(ctx)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	hw, err := openHardware(ctx, g, cfg)
	if err != nil {
		return err
	}
	if err := waitForSensor(ctx, hw); err != nil {
		return err
	}

	server := NewServer()
	c := motion.New(cfg.Motion(), hw, hw)
	d := daemon.New(c, openTransport(ctx, cfg), daemon.Options{
		TickInterval:   cfg.TickInterval(),
		StatusInterval: cfg.StatusInterval(),
		BufferCapacity: cfg.SerialBufferCapacity,
		Limits:         cfg.Limits(),
		Banner:         true,
	}, m, server.statusCallback)

	g.Go(func() error { return d.Run(ctx) })
	if cfg.HTTPAddr != "" {
		g.Go(func() error { return server.ListenAndServe(ctx, cfg.HTTPAddr, reg) })
	}
	return g.Wait()
}

func main() {
	flag.Parse()
	if *listPorts {
		if err := printPorts(); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
