package kyo

import (
	"errors"
	"fmt"
	"time"
)

const (
	// silence is the idle gap that marks the end of a reply.
	silence = 10 * time.Millisecond

	// rxCap bounds the receive buffer; extra bytes are drained and dropped.
	rxCap = 254
)

const (
	timeoutPoll     = 80 * time.Millisecond
	timeoutRegister = 300 * time.Millisecond
	timeoutESN      = 1500 * time.Millisecond
	timeoutArm      = 250 * time.Millisecond
	timeoutDisarm   = 100 * time.Millisecond
	timeoutCommand  = 250 * time.Millisecond
	timeoutDateTime = 300 * time.Millisecond
)

var (
	ErrNoAnswer  = errors.New("no answer from panel")
	ErrMalformed = errors.New("malformed response")
)

// op tags the operation a transaction belongs to. The completion handler
// for each op decides the next op, if any.
type op uint8

const (
	opVersion op = iota + 1
	opSensor
	opPartition
	opRegister
	opCommand
)

func (o op) String() string {
	switch o {
	case opVersion:
		return "version"
	case opSensor:
		return "sensor"
	case opPartition:
		return "partition"
	case opRegister:
		return "register"
	case opCommand:
		return "command"
	default:
		return "none"
	}
}

// request is a transaction waiting to be started.
type request struct {
	op      op
	frame   []byte
	timeout time.Duration

	// register reads issued by the configuration reader.
	step int
	part int
	gen  uint64

	// command transactions.
	cmd *command
}

type transaction struct {
	request
	rx         []byte
	startedAt  time.Time
	lastByteAt time.Time
}

func (tx *transaction) name() string {
	if tx.cmd != nil {
		return tx.cmd.kind.String()
	}
	if tx.op == opRegister {
		return fmt.Sprintf("register step %d", tx.step)
	}
	return tx.op.String()
}

// payload reports whether anything beyond the echoed command arrived.
func (tx *transaction) payload() bool {
	return len(tx.rx) > len(tx.frame)
}

// machine drives one request/response exchange at a time over the transport.
type machine struct {
	t   Transport
	cur *transaction
}

func (m *machine) idle() bool {
	return m.cur == nil
}

// start flushes stale input and writes the request frame. A write error
// leaves the machine idle.
func (m *machine) start(req request, now time.Time) error {
	for m.t.Available() > 0 {
		if _, err := m.t.Read(); err != nil {
			break
		}
	}
	if _, err := m.t.Write(req.frame); err != nil {
		return fmt.Errorf("could not write %s: %w", req.op, err)
	}
	log.Debug("sent", "op", req.op, "frame", fmt.Sprintf("% X", req.frame))
	m.cur = &transaction{
		request:    req,
		rx:         make([]byte, 0, 64),
		startedAt:  now,
		lastByteAt: now,
	}
	return nil
}

// poll drains available bytes and returns the transaction once it completed,
// either after the reply went silent or when its timeout elapsed.
func (m *machine) poll(now time.Time) *transaction {
	tx := m.cur
	if tx == nil {
		return nil
	}
	for m.t.Available() > 0 {
		b, err := m.t.Read()
		if err != nil {
			break
		}
		if len(tx.rx) < rxCap {
			tx.rx = append(tx.rx, b)
		}
		tx.lastByteAt = now
	}

	if tx.payload() && now.Sub(tx.lastByteAt) > silence {
		m.cur = nil
		return tx
	}
	if now.Sub(tx.startedAt) >= tx.timeout {
		m.cur = nil
		return tx
	}
	return nil
}
