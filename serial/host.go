// Package serial provides SerialDevice implementations for package zmodem
// and package xmodem: a real host USB-serial adapter backed by
// go.bug.st/serial, and an in-memory loopback pair for tests and demos.
package serial

import (
	"time"

	"go.bug.st/serial"
)

// Host implements the zmodem/xmodem SerialDevice interfaces over a real
// serial port opened with go.bug.st/serial.
type Host struct {
	port serial.Port
}

// OpenHost opens name (e.g. "/dev/ttyUSB0") at baud, 8 data bits, no
// parity, one stop bit.
func OpenHost(name string, baud int) (*Host, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return &Host{port: port}, nil
}

// Close releases the underlying port.
func (h *Host) Close() error { return h.port.Close() }

// Send transmits one byte, blocking until the port accepts it.
func (h *Host) Send(b byte) error {
	_, err := h.port.Write([]byte{b})
	return err
}

// Recv waits up to timeout for one byte. A zero timeout waits forever.
func (h *Host) Recv(timeout time.Duration) (byte, bool, error) {
	if timeout <= 0 {
		if err := h.port.SetReadTimeout(serial.NoTimeout); err != nil {
			return 0, false, err
		}
	} else if err := h.port.SetReadTimeout(timeout); err != nil {
		return 0, false, err
	}

	var buf [1]byte
	n, err := h.port.Read(buf[:])
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	return buf[0], true, nil
}
