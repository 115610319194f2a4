package zmodem

import (
	"time"

	"github.com/sirupsen/logrus"
)

// SerialDevice is the sole transport boundary this package depends on: one
// byte in, one byte out, each with its own timeout. Implementations live
// outside this package: a bare-metal UART driver, a host USB-serial
// adapter (see package serial), or an in-memory loopback for tests.
type SerialDevice interface {
	// Send transmits one byte, blocking until the line accepts it.
	Send(b byte) error

	// Recv waits up to timeout for one byte. A zero timeout means wait
	// forever. ok is false if timeout elapsed before a byte arrived.
	Recv(timeout time.Duration) (b byte, ok bool, err error)
}

// device wraps a SerialDevice, translating a timed-out Recv into the
// package's TimedOut error and logging every byte crossing the wire at
// Trace level.
type device struct {
	dev    SerialDevice
	logger logrus.FieldLogger
}

func newDevice(dev SerialDevice, logger logrus.FieldLogger) *device {
	if logger == nil {
		logger = noopLogger()
	}
	return &device{dev: dev, logger: logger}
}

func (d *device) send(b byte) error {
	if err := d.dev.Send(b); err != nil {
		return newDeviceError(err)
	}
	d.logger.Tracef("tx %#02x", b)
	return nil
}

func (d *device) recv(timeout time.Duration) (byte, error) {
	b, ok, err := d.dev.Recv(timeout)
	if err != nil {
		return 0, newDeviceError(err)
	}
	if !ok {
		return 0, newError(ErrTimeout, "serial read timed out")
	}
	d.logger.Tracef("rx %#02x", b)
	return b, nil
}

// noopLogger returns a logrus logger with output fully discarded, used
// whenever a caller doesn't supply one.
func noopLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
