// Package transport owns the serial connection to the device: open and
// configure the port, byte-level writes (optionally paced), and the
// timeout-terminated read that frames device responses.
package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is used when no rate is configured.
	DefaultBaudRate = 115200
	// MinBaudRate is the slowest rate the device supports.
	MinBaudRate = 9600

	// ReadInterval bounds the gap between bytes of one response.
	ReadInterval = 50 * time.Millisecond
	// ReadTotal bounds the wait for the first byte of a response. Its expiry
	// with no data is the end-of-frame signal.
	ReadTotal = 1000 * time.Millisecond
	// WriteBudget bounds one paced write end to end.
	WriteBudget = 1000 * time.Millisecond
)

// Options configures an open port.
type Options struct {
	BaudRate int
	// CharDelay, when positive, writes one byte at a time with this delay
	// between bytes. Needed for devices with small input buffers.
	CharDelay time.Duration
}

// Conn is the narrow surface the exchange protocol needs. *Port implements
// it; tests use in-memory fakes.
type Conn interface {
	Write(p []byte) error
	ReadUntilIdle(max int) ([]byte, error)
	Purge() error
}

// Port is one open, configured serial connection. Opened once per run and
// closed exactly once.
type Port struct {
	port   serial.Port
	name   string
	opts   Options
	closed bool
}

// Open opens and configures the named port: 8-N-1 framing at the requested
// baud rate, read timeout policy, DTR and RTS asserted for device wake, and
// stale queues purged. Any configuration step failing closes the
// partially-opened handle; the caller must not retry automatically.
func Open(name string, opts Options) (*Port, error) {
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.BaudRate < MinBaudRate {
		return nil, fmt.Errorf("baud rate too small: %d", opts.BaudRate)
	}
	if opts.CharDelay < 0 {
		return nil, fmt.Errorf("character delay must not be negative: %s", opts.CharDelay)
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open port %s: %w", name, err)
	}

	steps := []struct {
		what string
		do   func() error
	}{
		{"set read timeout", func() error { return port.SetReadTimeout(ReadTotal) }},
		{"assert DTR", func() error { return port.SetDTR(true) }},
		{"assert RTS", func() error { return port.SetRTS(true) }},
		{"purge input", port.ResetInputBuffer},
		{"purge output", port.ResetOutputBuffer},
	}
	for _, step := range steps {
		if err := step.do(); err != nil {
			port.Close()
			return nil, fmt.Errorf("configure port %s: %s: %w", name, step.what, err)
		}
	}

	return &Port{port: port, name: name, opts: opts}, nil
}

// Name returns the port name used at open.
func (p *Port) Name() string { return p.name }

// Write sends p to the device. With a configured character delay the bytes go
// out one at a time; otherwise the whole buffer is one operation.
func (p *Port) Write(buf []byte) error {
	if p.opts.CharDelay > 0 {
		return writePaced(p.port, buf, p.opts.CharDelay, WriteBudget)
	}
	n, err := p.port.Write(buf)
	if err != nil {
		return fmt.Errorf("write %s: %w", p.name, err)
	}
	if n != len(buf) {
		return fmt.Errorf("write %s: short write (%d of %d bytes)", p.name, n, len(buf))
	}
	return nil
}

// byteWriter is the subset of serial.Port writePaced needs.
type byteWriter interface {
	Write(p []byte) (int, error)
}

// writePaced writes buf one byte at a time, sleeping delay between bytes and
// giving up when budget elapses. The delay is a monotonic-clock sleep, not a
// calibrated busy wait.
func writePaced(w byteWriter, buf []byte, delay, budget time.Duration) error {
	deadline := time.Now().Add(budget)
	for i := range buf {
		if time.Now().After(deadline) {
			return fmt.Errorf("paced write timed out after %d of %d bytes", i, len(buf))
		}
		if _, err := w.Write(buf[i : i+1]); err != nil {
			return fmt.Errorf("paced write at byte %d: %w", i, err)
		}
		if i < len(buf)-1 {
			time.Sleep(delay)
		}
	}
	return nil
}

// ReadUntilIdle reads until max bytes have arrived or a read window passes
// with no data. The first window is the total timeout; once data starts
// flowing, the inter-byte window applies. Devices send no length or
// terminator, so idle is the only end-of-frame signal.
func (p *Port) ReadUntilIdle(max int) ([]byte, error) {
	buf, err := readUntilIdle(p.port, max)
	if err != nil {
		return buf, fmt.Errorf("read %s: %w", p.name, err)
	}
	return buf, nil
}

// timedReader is the subset of serial.Port readUntilIdle needs.
type timedReader interface {
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
}

func readUntilIdle(r timedReader, max int) ([]byte, error) {
	buf := make([]byte, 0, max)
	chunk := make([]byte, max)
	window := ReadTotal
	for len(buf) < max {
		if err := r.SetReadTimeout(window); err != nil {
			return buf, fmt.Errorf("set timeout: %w", err)
		}
		n, err := r.Read(chunk[:max-len(buf)])
		if err != nil {
			return buf, err
		}
		if n == 0 {
			// Timeout with no data: frame complete.
			break
		}
		buf = append(buf, chunk[:n]...)
		window = ReadInterval
	}
	return buf, nil
}

// Purge discards pending input and output. Best effort before error returns
// and close.
func (p *Port) Purge() error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("purge input %s: %w", p.name, err)
	}
	if err := p.port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("purge output %s: %w", p.name, err)
	}
	return nil
}

// Close releases the port. Safe to call again on an already-closed handle.
func (p *Port) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	_ = p.Purge()
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("close port %s: %w", p.name, err)
	}
	return nil
}
