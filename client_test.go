package kyo

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// fakePanel answers frames written to it with the echo followed by whatever
// reply returns. A nil reply means the panel stays silent.
type fakePanel struct {
	in      []byte
	written [][]byte
	reply   func(frame []byte) []byte
	err     error
}

func (p *fakePanel) Available() int { return len(p.in) }

func (p *fakePanel) Read() (byte, error) {
	if len(p.in) == 0 {
		return 0, errors.New("empty")
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, nil
}

func (p *fakePanel) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	p.written = append(p.written, append([]byte(nil), b...))
	if p.reply == nil {
		return len(b), nil
	}
	if payload := p.reply(b); payload != nil {
		p.in = append(p.in, b...)
		p.in = append(p.in, payload...)
		p.in = append(p.in, checksum(payload, 0, len(payload)))
	}
	return len(b), nil
}

func (p *fakePanel) last() []byte {
	if len(p.written) == 0 {
		return nil
	}
	return p.written[len(p.written)-1]
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) take() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}

func (r *recorder) find(f Field, index int) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if e := r.events[i]; e.Field == f && e.Index == index {
			return e, true
		}
	}
	return Event{}, false
}

func count(events []Event, f Field) int {
	var n int
	for _, e := range events {
		if e.Field == f {
			n++
		}
	}
	return n
}

var firmware32G = []byte("KYO32G      FW1.0   ")

// panel32G answers like a KYO32G with every register read unanswered.
func panel32G(sensor, partition []byte) func([]byte) []byte {
	return func(frame []byte) []byte {
		switch {
		case bytes.Equal(frame, cmdVersion):
			return firmware32G
		case bytes.Equal(frame, cmdSensorStatus):
			return sensor
		case bytes.Equal(frame, cmdPartition32G):
			return partition
		}
		return nil
	}
}

type harness struct {
	c     *Client
	panel *fakePanel
	clk   *clock
	pub   *recorder
	res   []Result
}

func newHarness(t *testing.T, reply func([]byte) []byte) *harness {
	t.Helper()
	h := &harness{
		panel: &fakePanel{reply: reply},
		clk:   &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		pub:   &recorder{},
	}
	h.c = New(h.panel, Options{
		Publisher: h.pub,
		Clock:     h.clk.now,
		Observer:  func(r Result) { h.res = append(h.res, r) },
	})
	return h
}

// cycle runs one Update and then loops until the engine goes idle.
func (h *harness) cycle(t *testing.T) {
	t.Helper()
	h.c.Update()
	h.settle(t)
}

func (h *harness) settle(t *testing.T) {
	t.Helper()
	for range 2000 {
		if !h.c.Busy() {
			return
		}
		h.clk.advance(5 * time.Millisecond)
		h.c.Loop()
	}
	t.Fatal("engine never went idle")
}

// loadConfig runs cycles until the configuration sequence finishes.
func (h *harness) loadConfig(t *testing.T) {
	t.Helper()
	for range 100 {
		if h.c.ConfigLoaded() {
			return
		}
		h.cycle(t)
	}
	t.Fatal("configuration never loaded")
}

func sensor32(zones byte) []byte {
	payload := make([]byte, respSensor32-7)
	payload[0] = zones
	return payload
}

func partition32(total byte) []byte {
	payload := make([]byte, respPartition32-7)
	payload[0] = total
	payload[3] = ^total
	return payload
}

func TestEndToEndModel32G(t *testing.T) {
	h := newHarness(t, panel32G(sensor32(0x01), partition32(0)))

	h.cycle(t)
	require.Equal(t, Model32G, h.c.Model())
	require.Equal(t, 32, h.c.Model().MaxZones())
	require.True(t, h.c.Communicating())

	e, ok := h.pub.find(FieldModel, 0)
	require.True(t, ok)
	require.Equal(t, "KYO32G", e.Text)
	e, ok = h.pub.find(FieldFirmwareVersion, 0)
	require.True(t, ok)
	require.Equal(t, "KYO32G", e.Text)

	h.loadConfig(t)
	h.cycle(t)

	status := h.c.Status()
	require.Len(t, status.Zones, 32)
	for i, z := range status.Zones {
		require.Equal(t, i == 24, z.Open, "zone index %d", i)
	}
	require.Len(t, status.Outputs, 16)
	require.True(t, status.Partitions[0].Disarmed)
	require.Equal(t, cmdPartition32G, h.panel.last())

	e, ok = h.pub.find(FieldZone, 24)
	require.True(t, ok)
	require.True(t, e.Value)
	_, ok = h.pub.find(FieldZone, 32)
	require.False(t, ok)
}

func TestChangeSuppression(t *testing.T) {
	h := newHarness(t, panel32G(sensor32(0x04), partition32(0)))
	h.cycle(t)
	h.loadConfig(t)

	h.cycle(t)
	first := h.pub.take()
	require.Equal(t, 32, count(first, FieldZone))
	require.Equal(t, 8, count(first, FieldPartitionDisarmed))

	h.cycle(t)
	second := h.pub.take()
	require.Zero(t, count(second, FieldZone))
	require.Zero(t, count(second, FieldPartitionDisarmed))
	require.Equal(t, 1, count(second, FieldCommunication))

	h.c.SetPollingEnabled(false)
	h.c.SetPollingEnabled(true)
	h.cycle(t)
	third := h.pub.take()
	require.Equal(t, 32, count(third, FieldZone))
	require.Equal(t, 32, count(third, FieldZoneName))
}

func TestHealthBackoff(t *testing.T) {
	online := true
	reply := panel32G(sensor32(0), partition32(0))
	h := newHarness(t, func(frame []byte) []byte {
		if !online {
			return nil
		}
		return reply(frame)
	})
	h.cycle(t)
	h.loadConfig(t)
	h.cycle(t)
	require.True(t, h.c.Communicating())

	online = false
	for range 3 {
		h.cycle(t)
	}
	require.False(t, h.c.Communicating())
	require.Equal(t, 3, h.c.health.failures)
	require.True(t, h.c.health.inBackoff(h.clk.now()))

	writes := len(h.panel.written)
	h.cycle(t)
	require.Len(t, h.panel.written, writes, "no transaction while backing off")

	online = true
	h.clk.advance(9 * time.Second)
	h.pub.take()
	h.cycle(t)
	require.True(t, h.c.Communicating())
	require.Zero(t, h.c.health.failures)
	require.True(t, h.c.health.forcePublish)

	h.cycle(t)
	require.Equal(t, 32, count(h.pub.take(), FieldZone))
}

func TestDetectFromSensorLength(t *testing.T) {
	h := newHarness(t, func(frame []byte) []byte {
		switch {
		case bytes.Equal(frame, cmdVersion):
			return []byte("MYSTERY PANEL 1.0   ")
		case bytes.Equal(frame, cmdSensorStatus):
			return make([]byte, respSensor8-7)
		case bytes.Equal(frame, cmdPartition8):
			return make([]byte, respPartition8-7)
		}
		return nil
	})

	h.cycle(t)
	require.Equal(t, Model8, h.c.Model())
	require.True(t, h.c.Communicating())
	require.Equal(t, cmdPartition8, h.panel.last())
	require.Len(t, h.c.Status().Zones, 8)
}

func TestVersionNoAnswerIsFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.cycle(t)
	require.Equal(t, ModelUnknown, h.c.Model())
	require.Equal(t, 1, h.c.health.failures)
	require.Len(t, h.panel.written, 1)
	require.Len(t, h.res, 1)
	require.ErrorIs(t, h.res[0].Err, ErrNoAnswer)
}

func TestCommandQueue(t *testing.T) {
	h := newHarness(t, panel32G(sensor32(0), partition32(0b10010)))
	h.cycle(t)
	h.loadConfig(t)
	h.cycle(t)
	require.True(t, h.c.Status().Partitions[1].ArmedTotal)

	require.NoError(t, h.c.ArmPartition(3, ArmTotal))
	h.settle(t)
	frame := h.panel.last()
	require.Len(t, frame, 11)
	require.Equal(t, byte(0b010110), frame[6])
	require.Equal(t, crc(frame, 9), frame[9])

	t.Run("full", func(t *testing.T) {
		h.c.SetPollingEnabled(false)
		defer h.c.SetPollingEnabled(true)
		for range queueSize {
			require.NoError(t, h.c.ResetAlarms())
		}
		require.ErrorIs(t, h.c.ResetAlarms(), ErrQueueFull)
		writes := len(h.panel.written)
		h.c.Loop()
		require.Len(t, h.panel.written, writes, "no commands while polling is disabled")
	})

	h.settle(t)
	require.Equal(t, cmdResetAlarms, h.panel.last())
}

func TestArmRightAfterDetection(t *testing.T) {
	h := newHarness(t, panel32G(sensor32(0), partition32(0b10010)))

	// queued before the model is even known
	require.NoError(t, h.c.ArmPartition(3, ArmTotal))
	h.cycle(t)

	require.Equal(t, Model32G, h.c.Model())
	require.False(t, h.c.ConfigLoaded())
	require.True(t, h.c.Communicating())
	parts := h.c.Status().Partitions
	require.True(t, parts[1].ArmedTotal)
	require.True(t, parts[4].ArmedTotal)

	var ops []string
	for _, r := range h.res {
		ops = append(ops, r.Op)
	}
	require.Equal(t, []string{"version", "sensor", "partition", "arm"}, ops)

	frame := h.panel.last()
	require.Len(t, frame, 11)
	require.Equal(t, byte(0b010110), frame[6])

	t.Run("during configuration read", func(t *testing.T) {
		require.NoError(t, h.c.DisarmPartition(5))
		h.cycle(t)
		require.False(t, h.c.ConfigLoaded())
		var arm []byte
		for _, w := range h.panel.written {
			if len(w) == 11 {
				arm = w
			}
		}
		require.Equal(t, byte(0b000110), arm[6])
	})
}

func TestQueuedArmingFollowsPreviousCommand(t *testing.T) {
	h := newHarness(t, panel32G(sensor32(0), partition32(0b10010)))
	h.cycle(t)
	h.loadConfig(t)
	h.cycle(t)

	require.NoError(t, h.c.ArmPartition(3, ArmTotal))
	require.NoError(t, h.c.DisarmPartition(2))
	h.settle(t)

	n := len(h.panel.written)
	require.Equal(t, byte(0b010110), h.panel.written[n-2][6])
	require.Equal(t, byte(0b010100), h.panel.written[n-1][6])

	parts := h.c.Status().Partitions
	require.False(t, parts[1].ArmedTotal)
	require.True(t, parts[2].ArmedTotal)

	h.pub.take()
	h.cycle(t)
	ev, ok := h.pub.find(FieldPartitionArmedTotal, 1)
	require.True(t, ok, "panel state is published again after the next read")
	require.True(t, ev.Value)
}

func TestCommandRange(t *testing.T) {
	h := newHarness(t, nil)
	require.ErrorIs(t, h.c.ArmPartition(0, ArmTotal), ErrOutOfRange)
	require.ErrorIs(t, h.c.ArmPartition(9, ArmTotal), ErrOutOfRange)
	require.ErrorIs(t, h.c.ArmPartition(1, ArmType(9)), ErrOutOfRange)
	require.ErrorIs(t, h.c.DisarmPartition(9), ErrOutOfRange)
	require.ErrorIs(t, h.c.ActivateOutput(17), ErrOutOfRange)
	require.ErrorIs(t, h.c.DeactivateOutput(0), ErrOutOfRange)
	require.ErrorIs(t, h.c.IncludeZone(33), ErrOutOfRange)
	require.ErrorIs(t, h.c.ExcludeZone(0), ErrOutOfRange)
	require.ErrorIs(t, h.c.SetDateTimeParts(1, 1, 2100, 0, 0, 0), ErrOutOfRange)
	require.ErrorIs(t, h.c.SetDateTimeParts(0, 1, 2026, 0, 0, 0), ErrOutOfRange)
	require.ErrorIs(t, h.c.SetDateTimeParts(1, 1, 2026, 24, 0, 0), ErrOutOfRange)
	require.False(t, h.c.Busy())
	require.Empty(t, h.panel.written)
}

func TestZoneRangeFollowsModel(t *testing.T) {
	h := newHarness(t, func(frame []byte) []byte {
		if bytes.Equal(frame, cmdVersion) {
			return []byte("KYO8G       FW2.0   ")
		}
		return nil
	})
	h.cycle(t)
	require.Equal(t, Model8G, h.c.Model())
	require.ErrorIs(t, h.c.ExcludeZone(9), ErrOutOfRange)
	require.NoError(t, h.c.ExcludeZone(8))
}

func TestPulseOutput(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.PulseOutput(2, time.Second))
	require.Equal(t, 2, h.c.Pending())
	h.c.Loop()
	require.Equal(t, outputFrame(2, true), h.panel.last())
	require.Equal(t, 1, h.c.Pending())

	h.settle(t)
	require.Equal(t, outputFrame(2, false), h.panel.last())
	require.False(t, h.c.Busy())
	require.Zero(t, h.c.Pending())
}

func TestPublishAfterUnlock(t *testing.T) {
	h := newHarness(t, panel32G(sensor32(0), partition32(0)))
	var seen []AlarmModel
	h.c.pub = PublishFunc(func(e Event) {
		if e.Field == FieldModel {
			seen = append(seen, h.c.Model())
		}
	})
	h.cycle(t)
	require.Equal(t, []AlarmModel{Model32G}, seen)
}

func TestWriteErrorIsNoAnswer(t *testing.T) {
	h := newHarness(t, nil)
	h.panel.err = errors.New("device unplugged")
	h.c.Update()
	require.False(t, h.c.Busy())
	require.Equal(t, 1, h.c.health.failures)
}

func TestRereadConfig(t *testing.T) {
	h := newHarness(t, panel32G(sensor32(0), partition32(0)))
	h.cycle(t)
	for h.c.cfg.step != stepTimers {
		h.cycle(t)
	}

	h.c.Update()
	require.True(t, h.c.Busy())
	h.c.RereadConfig()
	h.settle(t)

	require.Equal(t, stepDetected, h.c.cfg.step)
	require.Zero(t, h.c.cfg.zoneESN)
	require.Zero(t, h.c.cfg.keyfobESN)
	require.False(t, h.c.ConfigLoaded())

	h.loadConfig(t)
}

func TestSerialPanel(t *testing.T) {
	device := os.Getenv("KYO_DEVICE")
	if device == "" {
		t.Skip("KYO_DEVICE not set")
	}
	parity, err := ParseParity("even")
	require.NoError(t, err)
	port, err := OpenSerial(device, DefaultBaudRate, parity)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = port.Close()
	})

	cli := New(port, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = cli.Run(ctx, 500*time.Millisecond)

	require.NotEqual(t, ModelUnknown, cli.Model())
	status := cli.Status()
	for _, zone := range status.Zones {
		t.Logf("zone: %+v", zone)
	}
	for _, part := range status.Partitions {
		t.Logf("partition: %+v", part)
	}
}
