package kyo

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Transport is a byte stream the engine polls without blocking.
type Transport interface {
	// Available returns the number of bytes that can be read right away.
	Available() int
	Read() (byte, error)
	Write(p []byte) (int, error)
}

const (
	DefaultBaudRate = 9600
	pumpTimeout     = 50 * time.Millisecond
	pumpBuffer      = 1024
)

// ParseParity parses none, even or odd.
func ParseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(s) {
	case "none", "n":
		return serial.NoParity, nil
	case "even", "e":
		return serial.EvenParity, nil
	case "odd", "o":
		return serial.OddParity, nil
	default:
		return serial.NoParity, fmt.Errorf("invalid parity %q", s)
	}
}

// SerialPort is a Transport backed by a serial device. A background
// goroutine moves received bytes into a buffer so Available and Read never
// block.
type SerialPort struct {
	port serial.Port

	mu   sync.Mutex
	buf  []byte
	err  error
	done chan struct{}
}

// OpenSerial opens device as 8 data bits, 1 stop bit.
func OpenSerial(device string, baud int, parity serial.Parity) (*SerialPort, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   parity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(pumpTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("could not set read timeout on %s: %w", device, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		log.Warn("could not reset input buffer", "device", device, "err", err)
	}
	log.Info("opened serial port", "device", device, "baud", baud)

	p := &SerialPort{
		port: port,
		done: make(chan struct{}),
	}
	go p.pump()
	return p, nil
}

func (p *SerialPort) pump() {
	defer close(p.done)
	chunk := make([]byte, 64)
	for {
		n, err := p.port.Read(chunk)
		if err != nil {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			var perr *serial.PortError
			if !errors.As(err, &perr) || perr.Code() != serial.PortClosed {
				log.Error("serial read failed", "err", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		p.mu.Lock()
		p.buf = append(p.buf, chunk[:n]...)
		if over := len(p.buf) - pumpBuffer; over > 0 {
			p.buf = p.buf[over:]
		}
		p.mu.Unlock()
	}
}

func (p *SerialPort) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

func (p *SerialPort) Read() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		return 0, io.EOF
	}
	b := p.buf[0]
	p.buf = p.buf[1:]
	return b, nil
}

func (p *SerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("serial port is gone: %w", err)
	}
	return p.port.Write(b)
}

func (p *SerialPort) Close() error {
	err := p.port.Close()
	<-p.done
	return err
}
