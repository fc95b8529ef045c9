// Command valve-driver runs the proportional valve output loops and reports
// faults over MQTT and CAN.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/propvalve/internal/canbus"
	"github.com/sweeney/propvalve/internal/emcy"
	"github.com/sweeney/propvalve/internal/hal"
	"github.com/sweeney/propvalve/internal/mqtt"
	"github.com/sweeney/propvalve/internal/status"
	"github.com/sweeney/propvalve/internal/store"
	"github.com/sweeney/propvalve/internal/web"
)

// commandQueue is how many operator commands may wait for the next step.
const commandQueue = 16

type options struct {
	step       time.Duration
	heartbeat  time.Duration
	broker     string
	clientID   string
	httpAddr   string
	configPath string
	canIface   string
	slcanDev   string
	slcanBaud  int
	canBitrate int
	node       uint
	vddMV      int
	sim        bool
	hw         hardware
}

func main() {
	var o options
	var auxGate int
	var pwmA, pwmB, pwmCoil, pwmRef string

	flag.DurationVar(&o.step, "step", 20*time.Millisecond, "Control loop step")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.StringVar(&o.clientID, "client-id", "valve-driver", "MQTT client id")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.StringVar(&o.configPath, "config", "/etc/propvalve/outputs.json", "Output tuning file")
	flag.StringVar(&o.canIface, "can", "", "SocketCAN interface for EMCY frames (empty to disable)")
	flag.StringVar(&o.slcanDev, "slcan", "", "SLCAN serial device for EMCY frames (empty to disable)")
	flag.IntVar(&o.slcanBaud, "slcan-baud", 115200, "SLCAN serial baud rate")
	flag.IntVar(&o.canBitrate, "can-bitrate", 250000, "CAN bit rate for SLCAN adapters")
	flag.UintVar(&o.node, "node", 1, "CANopen node id (1-127)")
	flag.IntVar(&o.vddMV, "vdd", 5000, "Reference supply voltage in mV")
	flag.BoolVar(&o.sim, "sim", false, "Run against simulated plants instead of hardware")
	flag.StringVar(&o.hw.i2cBus, "i2c", "", "I2C bus of the ADS1115 (empty for the first bus)")
	flag.StringVar(&o.hw.gpioChip, "gpio-chip", "gpiochip0", "GPIO chip for gate outputs")
	flag.IntVar(&auxGate, "gate-aux", 17, "GPIO line of the auxiliary gate output")
	flag.IntVar(&o.hw.pwmFreqHz, "pwm-freq", 1000, "PWM frequency in Hz")
	flag.StringVar(&pwmA, "pwm-a", "GPIO12", "PWM pin of valve coil A")
	flag.StringVar(&pwmB, "pwm-b", "GPIO13", "PWM pin of valve coil B")
	flag.StringVar(&pwmCoil, "pwm-coil", "GPIO18", "PWM pin of the single solenoid")
	flag.StringVar(&pwmRef, "pwm-ref", "GPIO19", "PWM pin of the reference output")

	flag.Parse()

	o.hw.auxGate = hal.Pin(auxGate)
	o.hw.pwmPins = map[hal.Channel]string{
		pwmValveA: pwmA,
		pwmValveB: pwmB,
		pwmCoil:   pwmCoil,
		pwmRef:    pwmRef,
	}

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	if o.node < 1 || o.node > 127 {
		return fmt.Errorf("node id %d out of range 1-127", o.node)
	}
	if o.step <= 0 {
		return fmt.Errorf("step must be positive, got %v", o.step)
	}

	// Load tuning (defaults are written on first start)
	cfgFile := store.NewFile(o.configPath)
	cfg, err := cfgFile.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize platform
	var hw hal.Platform
	var sim simulator
	if o.sim {
		s := newSimPlatform(int32(o.vddMV))
		hw, sim = s, s
		log.Printf("running against simulated plants")
	} else {
		board, release, err := newRealPlatform(o.hw)
		if err != nil {
			return fmt.Errorf("init platform: %w", err)
		}
		defer func() {
			if err := release(); err != nil {
				log.Printf("platform release: %v", err)
			}
		}()
		hw = board
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(o.broker, o.clientID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// EMCY transports: MQTT always, CAN when configured
	transports := []emcy.Transport{publisher}
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	if o.canIface != "" {
		sock, err := canbus.OpenSocketCAN(o.canIface)
		if err != nil {
			return fmt.Errorf("init socketcan: %w", err)
		}
		closers = append(closers, sock)
		transports = append(transports, canbus.NewTransport(sock))
		log.Printf("emcy frames on %s", o.canIface)
	}
	if o.slcanDev != "" {
		adapter, err := canbus.OpenSLCAN(o.slcanDev, o.slcanBaud, o.canBitrate)
		if err != nil {
			return fmt.Errorf("init slcan: %w", err)
		}
		closers = append(closers, adapter)
		transports = append(transports, canbus.NewTransport(adapter))
		log.Printf("emcy frames on %s", o.slcanDev)
	}

	dispatcher := emcy.NewDispatcher(uint8(o.node), time.Now, transports...)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	// Initialize status tracker (before STARTUP so snapshot is available)
	canName := o.canIface
	if canName == "" {
		canName = o.slcanDev
	}
	tracker := status.NewTracker(time.Now(), status.Config{
		StepMs:      o.step.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		CANIface:    canName,
		Node:        uint8(o.node),
		Sim:         o.sim,
	})

	d := newDriver(cfg, hw, dispatcher, sim, int32(o.vddMV), o.hw.auxGate)
	d.report(tracker)

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	cmds := make(chan web.Command, commandQueue)
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, cmds)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: step=%v broker=%s heartbeat=%v node=%d config=%s", o.step, o.broker, o.heartbeat, o.node, cfgFile.Path())

	ticker := time.NewTicker(o.step)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		driver:     d,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		emcy:       dispatcher,
		stepMs:     int32(o.step.Milliseconds()),
		heartbeat:  o.heartbeat,
		now:        time.Now,
	}
	return l.run(ticker.C, cmds, sigCh)
}

// emcyCounter reports delivered and dropped EMCY totals.
type emcyCounter interface {
	Counts() (sent, dropped int)
}

// loop is the single goroutine that owns output state.
type loop struct {
	driver     *driver
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	emcy       emcyCounter
	stepMs     int32
	heartbeat  time.Duration
	now        func() time.Time
}

func (l *loop) run(tick <-chan time.Time, cmds <-chan web.Command, sig <-chan os.Signal) error {
	lastHeartbeat := l.now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			// De-energise before reporting so the snapshot shows the final state
			l.driver.disableAll()
			l.driver.step(l.stepMs)
			l.refresh()

			snap := l.tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  l.now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case cmd := <-cmds:
			if err := l.driver.apply(cmd); err != nil {
				log.Printf("command %s %s: %v", cmd.Output, cmd.Action, err)
				continue
			}
			log.Printf("command: %s %s %d", cmd.Output, cmd.Action, cmd.Value)

		case <-tick:
			t := l.now()
			l.driver.step(l.stepMs)
			l.refresh()

			if l.heartbeat > 0 && t.Sub(lastHeartbeat) >= l.heartbeat {
				lastHeartbeat = t
				snap := l.tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v emcy_sent=%d emcy_dropped=%d", snap.Uptime().Truncate(time.Second), snap.EMCY.Sent, snap.EMCY.Dropped)

				hbEvent := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := l.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// refresh updates the status tracker for HTTP and heartbeat consumers.
func (l *loop) refresh() {
	l.driver.report(l.tracker)
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
	if l.emcy != nil {
		l.tracker.SetEMCY(l.emcy.Counts())
	}
}
