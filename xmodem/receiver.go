package xmodem

import (
	"context"
)

// Receiver drives the XMODEM-CRC receive loop, a simpler sibling of
// package zmodem's session: request CRC mode, then repeatedly validate
// and append 128-byte blocks until EOT/ETB closes the transfer.
type Receiver struct {
	dev *device
	cfg Config
}

// NewReceiver builds a Receiver over dev using cfg (zero value: call
// DefaultConfig first).
func NewReceiver(dev SerialDevice, cfg Config) *Receiver {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger()
	}
	return &Receiver{dev: newDevice(dev, logger), cfg: cfg}
}

// Receive runs one session: it appends successive validated blocks into
// sink starting at offset 0 and returns the number of bytes written.
// A NoResponse error (no sender ever answered the CRC request) is the one
// case callers are expected to retry by calling Receive again; every other
// error is fatal to the session.
func (r *Receiver) Receive(ctx context.Context, sink []byte) (int, error) {
	if err := r.dev.send(CRCRequest); err != nil {
		return 0, err
	}

	offset := 0
	var prevID byte
	haveID := false

	for {
		if err := ctx.Err(); err != nil {
			return offset, err
		}

		lead, err := r.dev.recv(r.cfg.BlockTimeout)
		if err != nil {
			if isTimeout(err) {
				return offset, newError(ErrNoResponse)
			}
			return offset, err
		}

		switch lead {
		case SOH:
			// fall through to block read below
		case EOT:
			if err := r.dev.send(ACK); err != nil {
				return offset, err
			}
			etb, err := r.dev.recv(0)
			if err != nil {
				return offset, err
			}
			if etb != ETB {
				return offset, newByteError(ErrBadPacketType, etb)
			}
			if err := r.dev.send(ACK); err != nil {
				return offset, err
			}
			return offset, nil
		default:
			return offset, newByteError(ErrBadPacketType, lead)
		}

		block, err := r.readBlock()
		if err != nil {
			return offset, err
		}

		if !block.checksumOK() {
			if err := r.dev.send(NAK); err != nil {
				return offset, err
			}
			continue
		}

		if haveID {
			if block.id != prevID+1 {
				return offset, newError(ErrBadPacketID)
			}
		}
		prevID = block.id
		haveID = true

		if offset+BlockSize > len(sink) {
			return offset, newError(ErrBufferFull)
		}
		copy(sink[offset:], block.data[:])
		offset += BlockSize

		if err := r.dev.send(ACK); err != nil {
			return offset, err
		}
	}
}

// packet is the 132-byte tail read after a SOH leader: id, ~id, 128 data
// bytes, and a big-endian CRC-16.
type packet struct {
	id         byte
	idInverted byte
	data       [BlockSize]byte
	crc        [2]byte
}

func (p *packet) checksumOK() bool {
	idOK := p.id == ^p.idInverted
	want := uint16(p.crc[0])<<8 | uint16(p.crc[1])
	return idOK && crc16Of(p.data[:]) == want
}

func (r *Receiver) readBlock() (packet, error) {
	var p packet
	var err error
	if p.id, err = r.dev.recv(0); err != nil {
		return p, err
	}
	if p.idInverted, err = r.dev.recv(0); err != nil {
		return p, err
	}
	for i := range p.data {
		if p.data[i], err = r.dev.recv(0); err != nil {
			return p, err
		}
	}
	if p.crc[0], err = r.dev.recv(0); err != nil {
		return p, err
	}
	if p.crc[1], err = r.dev.recv(0); err != nil {
		return p, err
	}
	return p, nil
}

func isTimeout(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrTimeout
}
