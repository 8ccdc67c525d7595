// Package hostserial opens the physical serial link the host side of
// the command protocol runs over.
//
// Grounded on the host/serial package: the Port interface
// and Config/DefaultConfig shape are carried over almost unchanged
// (this is generic serial-port plumbing, not anything specific to the
// Klipper transport), with the default baud rate
// updated from Klipper's 250000 to the 115200 spec.md §6 lists as one
// of the two values the source actually uses.
package hostserial

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is an open serial connection.
type Port interface {
	io.ReadWriteCloser

	// Flush discards any buffered data.
	Flush() error
}

// Config holds the parameters needed to open a serial port.
type Config struct {
	// Device is the OS device path (e.g. "/dev/ttyACM0", "COM3").
	Device string

	// Baud is the bit rate. spec.md §6 lists 115200 and 1000000 as
	// the values used in the source.
	Baud int

	// ReadTimeout bounds how long Read blocks with no data available.
	// Zero means block indefinitely.
	ReadTimeout time.Duration
}

// DefaultConfig returns a Config for device at the command link's
// default baud rate.
func DefaultConfig(device string) Config {
	return Config{Device: device, Baud: 115200, ReadTimeout: 100 * time.Millisecond}
}

// nativePort wraps github.com/tarm/serial.
type nativePort struct {
	port *serial.Port
}

// Open opens a native serial port with cfg.
func Open(cfg Config) (Port, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("hostserial: device must be set")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("hostserial: open %s: %w", cfg.Device, err)
	}
	return &nativePort{port: port}, nil
}

func (p *nativePort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *nativePort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *nativePort) Close() error                { return p.port.Close() }

// Flush is a no-op: tarm/serial does not expose a buffer flush, and
// every Write already blocks until the bytes are handed to the OS.
func (p *nativePort) Flush() error { return nil }
