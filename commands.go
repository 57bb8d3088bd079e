package kyo

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOutOfRange = errors.New("out of range")
	ErrQueueFull  = errors.New("command queue full")
)

const queueSize = 16

type ArmType uint8

const (
	ArmTotal ArmType = iota + 1
	ArmPartial
	ArmPartialDelay0
)

func (t ArmType) String() string {
	switch t {
	case ArmTotal:
		return "total"
	case ArmPartial:
		return "partial"
	case ArmPartialDelay0:
		return "partial delay 0"
	default:
		return "unknown"
	}
}

type commandKind uint8

const (
	kindArm commandKind = iota + 1
	kindDisarm
	kindArmAll
	kindDisarmAll
	kindArmPreset
	kindResetAlarms
	kindOutputOn
	kindOutputOff
	kindIncludeZone
	kindExcludeZone
	kindDateTime
)

func (k commandKind) String() string {
	switch k {
	case kindArm:
		return "arm"
	case kindDisarm:
		return "disarm"
	case kindArmAll:
		return "arm all"
	case kindDisarmAll:
		return "disarm all"
	case kindArmPreset:
		return "arm preset"
	case kindResetAlarms:
		return "reset alarms"
	case kindOutputOn:
		return "activate output"
	case kindOutputOff:
		return "deactivate output"
	case kindIncludeZone:
		return "include zone"
	case kindExcludeZone:
		return "exclude zone"
	case kindDateTime:
		return "set datetime"
	default:
		return "unknown"
	}
}

type command struct {
	kind    commandKind
	n       int // partition, output or zone, 1-based
	arm     ArmType
	total   byte
	partial byte
	frame   []byte
}

func (c *command) arming() bool {
	switch c.kind {
	case kindArm, kindDisarm, kindArmAll, kindDisarmAll, kindArmPreset:
		return true
	}
	return false
}

// needsPartitions reports whether the frame is built from the current
// partition state, which is unknown until the first partition read.
func (c *command) needsPartitions() bool {
	switch c.kind {
	case kindArm, kindDisarm, kindArmAll:
		return true
	}
	return false
}

// request builds the frame for c. Arm and disarm frames depend on the
// current partition state, so they are built right before sending.
func (c *command) request(st *store) request {
	req := request{op: opCommand, cmd: c, timeout: timeoutCommand}
	total, partial := st.armingMasks()
	switch c.kind {
	case kindArm:
		total, partial = armMasks(total, partial, c.n, c.arm)
		req.frame = armFrame(total, partial)
		req.timeout = timeoutArm
	case kindDisarm:
		total, partial = disarmMasks(total, partial, c.n)
		req.frame = armFrame(total, partial)
		req.timeout = timeoutDisarm
	case kindArmAll:
		if c.arm == ArmPartial {
			req.frame = armFrame(total, 0xFF)
		} else {
			req.frame = armFrame(0xFF, partial)
		}
		req.timeout = timeoutArm
	case kindDisarmAll:
		req.frame = armFrame(0, 0)
		req.timeout = timeoutDisarm
	case kindArmPreset:
		req.frame = armFrame(c.total, c.partial)
		req.timeout = timeoutArm
	case kindDateTime:
		req.frame = c.frame
		req.timeout = timeoutDateTime
	default:
		req.frame = c.frame
	}
	return req
}

// enqueue adds a validated command to the queue.
func (c *Client) enqueue(cmd command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) >= queueSize {
		log.Error("dropping command", "cmd", cmd.kind, "err", ErrQueueFull)
		return ErrQueueFull
	}
	c.queue = append(c.queue, cmd)
	return nil
}

func rangeError(what string, n, limit int) error {
	err := fmt.Errorf("invalid %s %d (1-%d): %w", what, n, limit, ErrOutOfRange)
	log.Error("rejected command", "err", err)
	return err
}

func (c *Client) ArmPartition(partition int, t ArmType) error {
	if partition < 1 || partition > maxPartitions {
		return rangeError("partition", partition, maxPartitions)
	}
	if t < ArmTotal || t > ArmPartialDelay0 {
		return rangeError("arm type", int(t), int(ArmPartialDelay0))
	}
	log.Info("arm partition", "partition", partition, "type", t)
	return c.enqueue(command{kind: kindArm, n: partition, arm: t})
}

func (c *Client) DisarmPartition(partition int) error {
	if partition < 1 || partition > maxPartitions {
		return rangeError("partition", partition, maxPartitions)
	}
	log.Info("disarm partition", "partition", partition)
	return c.enqueue(command{kind: kindDisarm, n: partition})
}

// ArmAll arms every partition with the same arm type.
func (c *Client) ArmAll(t ArmType) error {
	if t < ArmTotal || t > ArmPartialDelay0 {
		return rangeError("arm type", int(t), int(ArmPartialDelay0))
	}
	log.Info("arm all partitions", "type", t)
	return c.enqueue(command{kind: kindArmAll, arm: t})
}

func (c *Client) DisarmAll() error {
	log.Info("disarm all partitions")
	return c.enqueue(command{kind: kindDisarmAll})
}

// ArmPreset writes explicit arming masks, one bit per partition. The panel
// has no separate partial delay 0 mask, so those partitions are armed total.
func (c *Client) ArmPreset(total, partial, partialDelay0 uint8) error {
	log.Info("arm preset", "total", total, "partial", partial, "partial_delay0", partialDelay0)
	return c.enqueue(command{
		kind:    kindArmPreset,
		total:   total | partialDelay0,
		partial: partial,
	})
}

func (c *Client) ResetAlarms() error {
	log.Info("reset alarms")
	return c.enqueue(command{kind: kindResetAlarms, frame: cmdResetAlarms})
}

func (c *Client) ActivateOutput(output int) error {
	if output < 1 || output > maxOutputs {
		return rangeError("output", output, maxOutputs)
	}
	log.Info("activate output", "output", output)
	return c.enqueue(command{kind: kindOutputOn, n: output, frame: outputFrame(output, true)})
}

func (c *Client) DeactivateOutput(output int) error {
	if output < 1 || output > maxOutputs {
		return rangeError("output", output, maxOutputs)
	}
	log.Info("deactivate output", "output", output)
	return c.enqueue(command{kind: kindOutputOff, n: output, frame: outputFrame(output, false)})
}

// PulseOutput activates an output and deactivates it once d has elapsed.
func (c *Client) PulseOutput(output int, d time.Duration) error {
	if err := c.ActivateOutput(output); err != nil {
		return err
	}
	c.mu.Lock()
	c.pulses = append(c.pulses, pulse{output: output, due: c.now().Add(d)})
	c.mu.Unlock()
	return nil
}

func (c *Client) zoneLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.st.maxZones(); n > 0 {
		return n
	}
	return maxZones
}

// IncludeZone removes the bypass from a zone.
func (c *Client) IncludeZone(zone int) error {
	if limit := c.zoneLimit(); zone < 1 || zone > limit {
		return rangeError("zone", zone, limit)
	}
	log.Info("include zone", "zone", zone)
	return c.enqueue(command{kind: kindIncludeZone, n: zone, frame: zoneFrame(zone, true)})
}

// ExcludeZone bypasses a zone.
func (c *Client) ExcludeZone(zone int) error {
	if limit := c.zoneLimit(); zone < 1 || zone > limit {
		return rangeError("zone", zone, limit)
	}
	log.Info("exclude zone", "zone", zone)
	return c.enqueue(command{kind: kindExcludeZone, n: zone, frame: zoneFrame(zone, false)})
}

// SetDateTime sets the panel clock.
func (c *Client) SetDateTime(t time.Time) error {
	return c.SetDateTimeParts(t.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute(), t.Second())
}

func (c *Client) SetDateTimeParts(day, month, year, hour, minute, second int) error {
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 2000 || year > 2099 ||
		hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		err := fmt.Errorf(
			"invalid datetime %02d/%02d/%04d %02d:%02d:%02d: %w",
			day, month, year, hour, minute, second, ErrOutOfRange,
		)
		log.Error("rejected command", "err", err)
		return err
	}
	log.Info("set datetime", "date", fmt.Sprintf("%02d/%02d/%04d %02d:%02d:%02d", day, month, year, hour, minute, second))
	return c.enqueue(command{
		kind:  kindDateTime,
		frame: dateTimeFrame(day, month, year, hour, minute, second),
	})
}

// SetPollingEnabled stops or resumes all serial traffic. A transaction
// already in flight runs to completion.
func (c *Client) SetPollingEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.polling == enabled {
		return
	}
	c.polling = enabled
	if enabled {
		log.Info("polling enabled")
		c.health.forcePublish = true
		return
	}
	log.Warn("polling disabled")
}

func (c *Client) PollingEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polling
}

// RereadConfig restarts the configuration read sequence from the top.
func (c *Client) RereadConfig() {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Info("re-reading panel configuration")
	c.cfg.reset()
}
