package zmodem

import (
	"context"
	"time"
)

// Receiver drives the ZMODEM receive-only session state machine: advertise
// ZRINIT, accept a ZFILE and its metadata subpacket, stream ZDATA
// subpackets into the sink until ZEOF, then handshake ZFIN.
type Receiver struct {
	dev    *device
	cfg    Config
	subbuf []byte
}

// NewReceiver builds a Receiver over dev using cfg (zero value: call
// DefaultConfig first).
func NewReceiver(dev SerialDevice, cfg Config) *Receiver {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger()
	}
	if cfg.MaxSubpacket <= 0 {
		cfg.MaxSubpacket = 1024
	}
	if cfg.MaxGarbage <= 0 {
		cfg.MaxGarbage = 1400 + 2400
	}
	return &Receiver{
		dev:    newDevice(dev, logger),
		cfg:    cfg,
		subbuf: make([]byte, cfg.MaxSubpacket),
	}
}

var errSessionDone = newError(ErrProtocol, "session finished")

// Receive runs one full session: it streams the incoming file's bytes into
// sink (appended from offset 0) and returns the number of bytes written.
// ctx is checked between header reads; cancelling it aborts the session
// with ctx.Err() the next time the receiver would otherwise block on a new
// frame header.
func (r *Receiver) Receive(ctx context.Context, sink []byte) (int, error) {
	outputOffset := 0
	timeout := r.cfg.IdleTimeout

	for {
		encoding, err := r.awaitZFILE(ctx, timeout)
		if err != nil {
			if err == errSessionDone {
				return outputOffset, nil
			}
			return outputOffset, err
		}
		timeout = r.cfg.SessionTimeout

		marker, n, err := receiveSubpacket(r.dev, encoding, r.subbuf, timeout, r.cfg.StrictCRC)
		if err != nil {
			return outputOffset, err
		}
		if marker != ZCRCW {
			return outputOffset, newError(ErrProtocol, "expected ZCRCW metadata subpacket")
		}
		if r.cfg.OnMeta != nil {
			r.cfg.OnMeta(append([]byte(nil), r.subbuf[:n]...))
		}

		if err := sendHexHeader(r.dev, newPositionHeader(ZRPOS, 0)); err != nil {
			return outputOffset, err
		}

		outputOffset, err = r.streamData(ctx, sink, outputOffset)
		if err != nil {
			return outputOffset, err
		}
	}
}

// awaitZFILE implements the Idle state: it re-advertises ZRINIT on every
// timeout until it sees ZFILE (session begins, returning the encoding the
// following metadata subpacket will use), ZFIN (session ends), or an
// unexpected frame (error). ZRQINIT just triggers another advertisement.
func (r *Receiver) awaitZFILE(ctx context.Context, timeout time.Duration) (byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		flags := byte(CANFDX | CANOVIO)
		if r.cfg.AdvertiseCRC32 {
			flags |= CANFC32
		}
		if err := sendHexHeader(r.dev, newFlagsHeader(ZRINIT, flags, 0, 0, 0)); err != nil {
			return 0, err
		}
		h, encoding, err := receiveFrameHeader(r.dev, timeout, r.cfg.StrictCRC, r.cfg.MaxGarbage)
		if IsTimeout(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		switch h.Type {
		case ZRQINIT:
			continue
		case ZFILE:
			return encoding, nil
		case ZFIN:
			if err := r.finish(); err != nil {
				return 0, err
			}
			return 0, errSessionDone
		default:
			return 0, newFrameError(ErrProtocol, "unexpected frame while idle", h.Type)
		}
	}
}

// streamData implements the Streaming state's outer/inner loop: read
// headers until ZEOF, and for each ZDATA stream subpackets into sink until
// the marker is ZCRCE.
func (r *Receiver) streamData(ctx context.Context, sink []byte, outputOffset int) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return outputOffset, err
		}
		h, encoding, err := receiveFrameHeader(r.dev, r.cfg.SessionTimeout, r.cfg.StrictCRC, r.cfg.MaxGarbage)
		if err != nil {
			return outputOffset, err
		}
		switch h.Type {
		case ZEOF:
			return outputOffset, nil
		case ZDATA:
			for {
				marker, n, err := receiveSubpacket(r.dev, encoding, r.subbuf, r.cfg.SessionTimeout, r.cfg.StrictCRC)
				if err != nil {
					return outputOffset, err
				}
				if outputOffset+n > len(sink) {
					return outputOffset, newError(ErrBufferFull, "sink buffer exhausted")
				}
				copy(sink[outputOffset:], r.subbuf[:n])
				outputOffset += n

				if marker == ZCRCG {
					continue
				}
				if marker == ZCRCE {
					break
				}
				return outputOffset, newError(ErrProtocol, "unexpected subpacket marker in ZDATA")
			}
		default:
			return outputOffset, newFrameError(ErrProtocol, "unexpected frame while streaming", h.Type)
		}
	}
}

// finish implements the Done state: send ZFIN and consume the sender's
// literal "OO" trailer.
func (r *Receiver) finish() error {
	if err := sendHexHeader(r.dev, Header{Type: ZFIN}); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		b, err := r.dev.recv(r.cfg.SessionTimeout)
		if err != nil {
			return err
		}
		if b != 'O' {
			r.dev.logger.Warnf("expected 'O' in ZFIN trailer, got %#02x", b)
		}
	}
	return nil
}
