package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/caarlos0/env/v11"
	kyo "github.com/caarlos0/homekit-kyo"
	"github.com/cenkalti/backoff/v4"
	logp "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

//go:embed index.html
var index []byte

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "homekit",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const manufacturer = "Bentel Security"

func main() {
	log.Info(
		"homekit-kyo",
		"version", version,
		"commit", commit,
		"date", date,
		"info", strings.Join([]string{
			"Homekit bridge for Bentel KYO alarm panels",
			"© Carlos Alexandro Becker",
			"https://becker.software",
		}, "\n"),
	)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(
			"could not parse env",
			"err",
			strings.TrimPrefix(strings.ReplaceAll(err.Error(), "; ", "\n"), "env: ")+"\n",
		)
	}

	level, err := logp.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal("invalid log level", "level", cfg.LogLevel, "err", err)
	}
	log.SetLevel(level)
	kyo.SetLogLevel(level)

	parity, err := kyo.ParseParity(cfg.Parity)
	if err != nil {
		log.Fatal("invalid parity", "err", err)
	}

	var port *kyo.SerialPort
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Second * 5
	bo.MaxElapsedTime = time.Minute
	if err := backoff.RetryNotify(func() (err error) {
		port, err = kyo.OpenSerial(cfg.Device, cfg.Baud, parity)
		return err
	}, bo, func(err error, d time.Duration) {
		log.Error("could not open serial port", "err", err, "retry", d)
	}); err != nil {
		log.Fatal("could not open serial port", "device", cfg.Device, "err", err)
	}
	defer func() {
		if err := port.Close(); err != nil {
			log.Error("could not close serial port", "err", err)
		}
	}()

	cli := kyo.New(port, kyo.Options{
		Publisher: metrics{},
		Observer:  observe,
	})

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c
		log.Info("stopping server")
		signal.Stop(c)
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cli.Run(ctx, cfg.PollInterval)
	})

	if err := waitForPanel(ctx, cli, cfg.StartupTimeout); err != nil {
		log.Fatal("could not talk to the panel", "device", cfg.Device, "err", err)
	}

	status := cli.Status()
	panel := cli.PanelConfig()
	log.Info(
		"got alarm system information",
		"manufacturer", manufacturer,
		"model", status.Model,
		"version", status.Firmware,
		"config", cli.ConfigLoaded(),
	)
	log.Info(
		"loading accessories",
		"partitions", fmt.Sprintf("%v", cfg.Partitions),
		"zones", allZoneConfigs(cfg.allZones(panel)).String(),
	)

	if cfg.ClockSync {
		if err := cli.SetDateTime(time.Now()); err != nil {
			log.Error("could not set panel clock", "err", err)
		}
	}

	bridge := accessory.NewBridge(accessory.Info{
		Name:         "Alarm Bridge",
		Manufacturer: manufacturer,
		Firmware:     version,
	})

	alarm := NewSecuritySystem(accessory.Info{
		Name:         "Alarm",
		Manufacturer: manufacturer,
		Model:        status.Model.String(),
		Firmware:     status.Firmware,
	}, cfg, cli)
	alarm.Id = 2
	alarm.Update(status)
	if state := cfg.getAlarmState(status); state != characteristic.SecuritySystemCurrentStateAlarmTriggered {
		err := alarm.SecuritySystem.SecuritySystemTargetState.SetValue(state)
		log.Info("set target state", "state", state, "err", err)
	}

	resetBtn := setupResetButton(cli)
	resetBtn.Id = 3
	pollingSw := setupPollingSwitch(cli)
	pollingSw.Id = 4

	sensors := setupZones(cli, cfg, status, panel)
	outputs := setupOutputs(cli, cfg, status, panel)
	system := setupPanel(status)

	g.Go(func() error {
		tick := time.NewTicker(time.Second)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-tick.C:
			}
			status := cli.Status()
			alarm.Update(status)
			sensors.Update(status)
			for _, output := range outputs {
				output.Update(status)
			}
			system.Update(status)
			resetBtn.Switch.On.SetValue(status.Siren)
			pollingSw.Switch.On.SetValue(cli.PollingEnabled())
		}
	})

	fs := hap.NewFsStore(cfg.DB)

	server, err := hap.NewServer(
		fs, bridge.A,
		securityAccessories(sensors, outputs, alarm, system, resetBtn, pollingSw)...,
	)
	if err != nil {
		log.Fatal("fail to create server", "error", err)
	}
	server.Addr = cfg.Address
	server.ServeMux().Handle("/metrics", promhttp.Handler())
	server.ServeMux().Handle("/disarm", disarmHandler(cfg, alarm))
	server.ServeMux().Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := cli.Status()
		tpl := template.Must(template.New("index").Parse(string(index)))
		_ = tpl.Execute(w, newPage(cfg, status, cli.PanelConfig(), sensors, outputs))
	}))

	g.Go(func() error {
		log.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to close server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("stopped", "err", err)
	}
}

// waitForPanel blocks until the configuration was read or timeout elapses.
// Timing out is fine as long as the model is known.
func waitForPanel(ctx context.Context, cli *kyo.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for !cli.ConfigLoaded() {
		select {
		case <-ctx.Done():
			if cli.Model() != kyo.ModelUnknown {
				log.Warn("panel configuration not loaded yet, starting anyway")
				return nil
			}
			return fmt.Errorf("panel model not detected: %w", ctx.Err())
		case <-tick.C:
		}
	}
	return nil
}

// disarmHandler disarms the controlled partitions when a valid code is
// posted.
func disarmHandler(cfg Config, alarm *SecuritySystem) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !cfg.validCode(r.FormValue("code")) {
			log.Warn("disarm rejected: invalid code", "remote", r.RemoteAddr)
			http.Error(w, "invalid code", http.StatusForbidden)
			return
		}
		if err := alarm.setTarget(characteristic.SecuritySystemTargetStateDisarm); err != nil {
			log.Error("could not disarm", "err", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_ = alarm.SecuritySystem.SecuritySystemTargetState.SetValue(
			characteristic.SecuritySystemTargetStateDisarm,
		)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
}

func securityAccessories(
	sensors AlarmSensors,
	outputs []*Output,
	alarm *SecuritySystem,
	system *Panel,
	switches ...*accessory.Switch,
) []*accessory.A {
	result := []*accessory.A{
		alarm.A,
		system.A,
	}
	for _, s := range switches {
		result = append(result, s.A)
	}
	for _, c := range sensors {
		result = append(result, c.A)
	}
	for _, c := range outputs {
		result = append(result, c.A)
	}
	return result
}

func boolAs[T int | float64](b bool) T {
	if b {
		return 1
	}
	return 0
}
