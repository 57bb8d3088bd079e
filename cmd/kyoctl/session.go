package main

import (
	"context"
	"fmt"
	"time"

	kyo "github.com/caarlos0/homekit-kyo"
	"golang.org/x/sync/errgroup"
)

const (
	pollInterval = 100 * time.Millisecond
	drainTick    = 20 * time.Millisecond
)

type options struct {
	device  string
	baud    int
	parity  string
	timeout time.Duration
	debug   bool
}

// session opens the panel, waits for the first full status read and runs fn
// with the engine polling in the background. It returns once every queued
// command was sent.
func (o *options) session(ctx context.Context, fn func(context.Context, *kyo.Client) error) error {
	parity, err := kyo.ParseParity(o.parity)
	if err != nil {
		return err
	}
	port, err := kyo.OpenSerial(o.device, o.baud, parity)
	if err != nil {
		return err
	}
	defer func() {
		if err := port.Close(); err != nil {
			log.Error("could not close serial port", "err", err)
		}
	}()

	polled := make(chan struct{}, 1)
	cli := kyo.New(port, kyo.Options{
		Observer: func(r kyo.Result) {
			log.Debug("transaction", "op", r.Op, "took", r.Duration, "got", r.Received, "err", r.Err)
			if r.Op == "partition" && r.Err == nil {
				select {
				case polled <- struct{}{}:
				default:
				}
			}
		},
	})

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	engine, stop := context.WithCancel(ctx)

	g.Go(func() error {
		_ = cli.Run(engine, pollInterval)
		return nil
	})
	g.Go(func() error {
		defer stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("no status from %s: %w", o.device, ctx.Err())
		case <-polled:
		}
		if err := fn(ctx, cli); err != nil {
			return err
		}
		return drain(ctx, cli)
	})
	return g.Wait()
}

// drain waits for every queued command to be sent, then stops polling and
// waits for the last transaction to finish.
func drain(ctx context.Context, cli *kyo.Client) error {
	if err := waitFor(ctx, func() bool { return cli.Pending() == 0 }); err != nil {
		return err
	}
	cli.SetPollingEnabled(false)
	return waitFor(ctx, func() bool { return !cli.Busy() })
}

func waitFor(ctx context.Context, cond func() bool) error {
	tick := time.NewTicker(drainTick)
	defer tick.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}
