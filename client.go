package kyo

import (
	"context"
	"os"
	"sync"
	"time"

	logp "github.com/charmbracelet/log"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "kyo",
})

// SetLogLevel sets the level of the engine logger.
func SetLogLevel(level logp.Level) {
	log.SetLevel(level)
}

const (
	// text values are sent again every republishEvery polling ticks.
	republishEvery = 120

	loopInterval = 2 * time.Millisecond
)

// Options configures a Client. Every field is optional.
type Options struct {
	Publisher Publisher
	Observer  func(Result)
	Clock     func() time.Time
}

// Result describes a finished transaction.
type Result struct {
	Op       string
	Err      error
	Duration time.Duration
	Received int
}

type pulse struct {
	output int
	due    time.Time
}

// Client talks to a Bentel KYO panel over a half-duplex transport. Loop and
// Update never block; Run drives both from tickers.
type Client struct {
	mu sync.Mutex

	m      machine
	st     store
	health *health
	cfg    configReader

	queue     []command
	pulses    []pulse
	polling   bool
	republish int

	now      func() time.Time
	pub      Publisher
	observer func(Result)

	events  []Event
	results []Result
}

func New(t Transport, opts Options) *Client {
	c := &Client{
		m:        machine{t: t},
		health:   newHealth(),
		polling:  true,
		now:      opts.Clock,
		pub:      opts.Publisher,
		observer: opts.Observer,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.pub == nil {
		c.pub = discard{}
	}
	return c
}

// Run calls Loop continuously and Update every interval until ctx is done.
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	loop := time.NewTicker(loopInterval)
	defer loop.Stop()
	update := time.NewTicker(interval)
	defer update.Stop()

	c.Update()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-loop.C:
			c.Loop()
		case <-update.C:
			c.Update()
		}
	}
}

// Loop progresses the transaction in flight and dispatches queued commands.
func (c *Client) Loop() {
	c.mu.Lock()
	now := c.now()
	c.duePulses(now)
	if tx := c.m.poll(now); tx != nil {
		c.finish(tx, now)
	}
	if c.polling && c.m.idle() {
		c.dispatch(now)
	}
	events, results := c.flush()
	c.mu.Unlock()
	c.emit(events, results)
}

// Update takes one scheduling decision.
func (c *Client) Update() {
	c.mu.Lock()
	now := c.now()
	c.schedule(now)
	c.events = append(c.events, Event{Field: FieldCommunication, Value: c.health.ok})
	events, results := c.flush()
	c.mu.Unlock()
	c.emit(events, results)
}

func (c *Client) schedule(now time.Time) {
	if !c.polling || !c.m.idle() {
		return
	}
	if c.dispatch(now) {
		return
	}
	if c.health.inBackoff(now) {
		return
	}

	if !c.st.detected {
		c.begin(request{op: opVersion, frame: cmdVersion, timeout: timeoutPoll}, now)
		return
	}

	if !c.cfg.done() && c.health.ok {
		req, publish := c.cfg.next(&c.st)
		if publish {
			log.Info("panel configuration loaded")
			c.events = append(c.events, c.st.textEvents()...)
		}
		if req != nil {
			c.begin(*req, now)
		}
		return
	}

	if c.cfg.done() {
		c.republish++
		if c.health.forcePublish || c.republish >= republishEvery {
			c.republish = 0
			c.events = append(c.events, c.st.textEvents()...)
		}
	}

	c.begin(request{op: opSensor, frame: cmdSensorStatus, timeout: timeoutPoll}, now)
}

func (c *Client) dispatch(now time.Time) bool {
	if len(c.queue) == 0 {
		return false
	}
	cmd := c.queue[0]
	if cmd.needsPartitions() && !c.st.partitionsRead {
		return false
	}
	c.queue = c.queue[1:]
	req := cmd.request(&c.st)
	if cmd.arming() {
		c.st.assumeArming(req.frame[6], req.frame[7])
	}
	c.begin(req, now)
	return true
}

func (c *Client) duePulses(now time.Time) {
	pending := c.pulses[:0]
	for _, p := range c.pulses {
		if now.Before(p.due) || len(c.queue) >= queueSize {
			pending = append(pending, p)
			continue
		}
		log.Info("pulse done", "output", p.output)
		c.queue = append(c.queue, command{
			kind:  kindOutputOff,
			n:     p.output,
			frame: outputFrame(p.output, false),
		})
	}
	c.pulses = pending
}

func (c *Client) begin(req request, now time.Time) {
	if err := c.m.start(req, now); err != nil {
		log.Error("could not start transaction", "op", req.op, "err", err)
		c.finish(&transaction{request: req, startedAt: now}, now)
	}
}

// finish hands a completed transaction to its operation handler and starts
// the follow-up transaction, if the handler chained one.
func (c *Client) finish(tx *transaction, now time.Time) {
	var err error
	if len(tx.rx) == 0 {
		err = ErrNoAnswer
	} else if cerr := verifyResponse(tx.rx, len(tx.frame)); cerr != nil {
		log.Warn("checksum mismatch", "op", tx.name(), "err", cerr)
	}

	var next *request
	switch tx.op {
	case opVersion:
		next, err = c.onVersion(tx, err, now)
	case opSensor:
		next, err = c.onSensor(tx, err, now)
	case opPartition:
		err = c.onPartition(tx, err, now)
	case opRegister:
		next = c.cfg.complete(&c.st, tx)
	case opCommand:
		if err != nil {
			log.Error("command failed", "cmd", tx.name(), "err", err)
		} else {
			log.Debug("command sent", "cmd", tx.name(), "got", len(tx.rx))
		}
	}

	c.results = append(c.results, Result{
		Op:       tx.name(),
		Err:      err,
		Duration: now.Sub(tx.startedAt),
		Received: len(tx.rx),
	})
	if next != nil {
		c.begin(*next, now)
	}
}

func (c *Client) onVersion(tx *transaction, err error, now time.Time) (*request, error) {
	if err != nil {
		c.fail(now, err)
		return nil, err
	}
	ok, err := c.st.detectVersion(tx.rx)
	if err != nil || !ok {
		// inconclusive: the sensor status length tells the model family.
		log.Warn("could not detect model from firmware, trying sensor status", "err", err)
		return &request{op: opSensor, frame: cmdSensorStatus, timeout: timeoutPoll}, err
	}
	c.events = append(c.events, c.st.identityEvents()...)
	// the partition read that follows settles health for the whole chain.
	return &request{op: opSensor, frame: cmdSensorStatus, timeout: timeoutPoll}, nil
}

func (c *Client) onSensor(tx *transaction, err error, now time.Time) (*request, error) {
	if err != nil {
		c.fail(now, err)
		return nil, err
	}
	detected := c.st.detected
	if err := c.st.checkSensorLength(tx.rx); err != nil {
		c.fail(now, err)
		return nil, err
	}
	if !detected {
		c.events = append(c.events, c.st.identityEvents()...)
	}
	if c.st.sensorChanged(tx.rx) || c.health.forcePublish {
		c.st.decodeSensor(tx.rx)
		c.events = append(c.events, c.st.sensorEvents()...)
	}
	return &request{
		op:      opPartition,
		frame:   c.st.layout().partitionCmd,
		timeout: timeoutPoll,
	}, nil
}

func (c *Client) onPartition(tx *transaction, err error, now time.Time) error {
	if err != nil {
		c.fail(now, err)
		return err
	}
	if err := c.st.checkPartitionLength(tx.rx); err != nil {
		c.fail(now, err)
		return err
	}
	c.st.partitionsRead = true
	if c.st.partitionChanged(tx.rx) || c.health.forcePublish {
		c.st.decodePartition(tx.rx)
		c.events = append(c.events, c.st.partitionEvents()...)
	}
	c.health.forcePublish = false
	c.succeed()
	return nil
}

func (c *Client) succeed() {
	if c.health.success() {
		log.Info("communication established")
	}
}

func (c *Client) fail(now time.Time, err error) {
	wasOK := c.health.ok
	d := c.health.failure(now)
	log.Debug("poll failed", "err", err, "failures", c.health.failures)
	if wasOK && !c.health.ok {
		log.Warn("communication lost", "failures", c.health.failures)
	}
	if d > 0 {
		log.Warn("backing off", "delay", d)
	}
}

func (c *Client) flush() ([]Event, []Result) {
	events, results := c.events, c.results
	c.events, c.results = nil, nil
	return events, results
}

func (c *Client) emit(events []Event, results []Result) {
	for _, e := range events {
		c.pub.Publish(e)
	}
	if c.observer == nil {
		return
	}
	for _, r := range results {
		c.observer(r)
	}
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.st.status()
	st.Communicating = c.health.ok
	return st
}

func (c *Client) PanelConfig() PanelConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.panelConfig()
}

// Model returns the detected model, or ModelUnknown before detection.
func (c *Client) Model() AlarmModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.model
}

func (c *Client) Communicating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health.ok
}

// ConfigLoaded reports whether the configuration read sequence finished.
func (c *Client) ConfigLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.done()
}

// Busy reports whether a transaction, a queued command or a pending output
// pulse is outstanding.
func (c *Client) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.m.idle() || len(c.queue) > 0 || len(c.pulses) > 0
}

// Pending returns the number of queued commands plus pending output pulses.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) + len(c.pulses)
}
