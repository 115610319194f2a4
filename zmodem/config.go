package zmodem

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config tunes a Receiver's timeouts and logging. The zero value is not
// valid; use DefaultConfig and override individual fields.
type Config struct {
	// IdleTimeout bounds each ZRINIT re-advertisement while waiting for a
	// sender to start a session.
	IdleTimeout time.Duration

	// SessionTimeout bounds every header read once a ZFILE has arrived.
	SessionTimeout time.Duration

	// MaxSubpacket sizes the scratch buffer used to stream one subpacket
	// payload.
	MaxSubpacket int

	// MaxGarbage bounds how many non-sync bytes receiveFrameHeader will
	// discard while scanning for ZPAD+ZDLE before giving up with
	// ErrProtocol. A dead or miswired line otherwise scans forever.
	MaxGarbage int

	// AdvertiseCRC32 controls whether the CANFC32 capability bit is set
	// in our ZRINIT, telling the sender it may use BIN32-encoded frames
	// and 32-bit subpacket CRCs. Senders still choose the encoding.
	AdvertiseCRC32 bool

	// StrictCRC, if set, turns a header or subpacket CRC mismatch into a
	// returned error instead of a logged warning. The wire protocol this
	// receiver was modeled on tolerates mismatches silently; StrictCRC is
	// an opt-in hardening knob for noisy lines.
	StrictCRC bool

	// OnMeta, if set, is called with the raw metadata subpacket payload
	// (typically the filename and a string of space-separated stat
	// fields) as soon as it's received, before ZRPOS(0) is sent. It runs
	// on the goroutine calling Receive; a slow or blocking hook stalls
	// the session.
	OnMeta func(data []byte)

	// Logger receives Trace-level byte tracing and Warn-level protocol
	// anomalies. Defaults to a discarding logger.
	Logger logrus.FieldLogger
}

// DefaultConfig returns the timeouts and buffer size the core uses in
// practice: 500ms idle re-advertisement, 600s steady-state reads, 1024-byte
// subpacket scratch space, CRC mismatches logged rather than fatal.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:    500 * time.Millisecond,
		SessionTimeout: 600 * time.Second,
		MaxSubpacket:   1024,
		MaxGarbage:     1400 + 2400, // Zrwindow + baud-rate-derived default
		AdvertiseCRC32: true,
		StrictCRC:      false,
		OnMeta:         nil,
		Logger:         nil,
	}
}
