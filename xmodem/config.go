package xmodem

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config tunes a Receiver's timeouts and logging. The zero value is not
// valid; use DefaultConfig and override individual fields.
type Config struct {
	// BlockTimeout bounds the wait for the next block's leading byte
	// (SOH/EOT). Per block thereafter, reads block indefinitely once a
	// block has started (the sender committed to sending the rest).
	BlockTimeout time.Duration

	// Logger receives Trace-level byte tracing. Defaults to a discarding
	// logger.
	Logger logrus.FieldLogger
}

// DefaultConfig returns the 500ms block-start timeout specified for the
// XMODEM-CRC receiver.
func DefaultConfig() Config {
	return Config{
		BlockTimeout: 500 * time.Millisecond,
		Logger:       nil,
	}
}
