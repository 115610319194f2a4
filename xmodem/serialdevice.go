package xmodem

import (
	"time"

	"github.com/sirupsen/logrus"
)

// SerialDevice mirrors package zmodem's transport boundary: one byte in,
// one byte out, each with its own timeout. A single concrete type
// typically implements both packages' SerialDevice interfaces.
type SerialDevice interface {
	Send(b byte) error
	Recv(timeout time.Duration) (b byte, ok bool, err error)
}

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
		return 0, newError(ErrTimeout)
	}
	d.logger.Tracef("rx %#02x", b)
	return b, nil
}

func noopLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
