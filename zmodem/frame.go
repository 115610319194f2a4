package zmodem

import "time"

// Header is the logical 6-byte shape of a ZMODEM frame header, independent
// of how it was encoded on the wire: a type byte and a 4-byte data field
// interpreted per type (flags, big-endian, or a count, little-endian).
type Header struct {
	Type int
	Data [4]byte
}

// HeaderFlags returns Data interpreted as four independent flag bytes
// (ZRINIT/ZSINIT), in ZF0..ZF3 order.
func (h Header) HeaderFlags() (f0, f1, f2, f3 byte) {
	return h.Data[ZF0], h.Data[ZF1], h.Data[ZF2], h.Data[ZF3]
}

// Position returns Data interpreted as a little-endian 32-bit count
// (ZRPOS/ZEOF/ZDATA).
func (h Header) Position() uint32 {
	return uint32(h.Data[ZP0]) | uint32(h.Data[ZP1])<<8 |
		uint32(h.Data[ZP2])<<16 | uint32(h.Data[ZP3])<<24
}

// newPositionHeader builds a header whose Data is pos encoded little-endian,
// matching the original's set_count accessor.
func newPositionHeader(frameType int, pos uint32) Header {
	return Header{
		Type: frameType,
		Data: [4]byte{
			byte(pos), byte(pos >> 8), byte(pos >> 16), byte(pos >> 24),
		},
	}
}

// newFlagsHeader builds a header whose Data is the four flag bytes in
// ZF0..ZF3 order, matching the original's set_flags accessor.
func newFlagsHeader(frameType int, f0, f1, f2, f3 byte) Header {
	var data [4]byte
	data[ZF0], data[ZF1], data[ZF2], data[ZF3] = f0, f1, f2, f3
	return Header{Type: frameType, Data: data}
}

// sendHexHeader transmits h as a HEX-encoded frame: ZPAD ZPAD ZDLE ZHEX,
// then type/data/CRC each as two hex digits, then CR, LF|0x80, and XON
// unless the frame type is ZACK or ZFIN.
func sendHexHeader(dev *device, h Header) error {
	raw := []byte{byte(h.Type), h.Data[0], h.Data[1], h.Data[2], h.Data[3]}
	crc := newCRC16()
	crc.updateBytes(raw)
	sum := crc.sum()

	if err := dev.send(ZPAD); err != nil {
		return err
	}
	if err := dev.send(ZPAD); err != nil {
		return err
	}
	if err := dev.send(ZDLE); err != nil {
		return err
	}
	if err := dev.send(ZHEX); err != nil {
		return err
	}

	hexBytes := append(raw, byte(sum>>8), byte(sum))
	var digits [2]byte
	for _, b := range hexBytes {
		encodeHex(b, digits[:])
		if err := dev.send(digits[0]); err != nil {
			return err
		}
		if err := dev.send(digits[1]); err != nil {
			return err
		}
	}

	if err := dev.send(CR); err != nil {
		return err
	}
	if err := dev.send(LF | 0x80); err != nil {
		return err
	}
	if h.Type != ZACK && h.Type != ZFIN {
		if err := dev.send(XON); err != nil {
			return err
		}
	}
	return nil
}

// receiveFrameHeader reads one frame header: sync scan, encoding byte,
// type+data, CRC check (a mismatch is logged, or returned as ErrCRC when
// strictCRC is set), and HEX trailer consumption.
// timeout applies only to the initial sync scan. maxGarbage bounds the
// sync scan's tolerance for non-protocol bytes; see scanForSync.
func receiveFrameHeader(dev *device, timeout time.Duration, strictCRC bool, maxGarbage int) (Header, byte, error) {
	if err := scanForSync(dev, timeout, maxGarbage); err != nil {
		return Header{}, 0, err
	}

	encoding, err := dev.recv(0)
	if err != nil {
		return Header{}, 0, err
	}
	if encoding == CAN {
		cancelled, err := readCancelRun(dev)
		if err != nil {
			return Header{}, 0, err
		}
		if cancelled {
			return Header{}, 0, newError(ErrCancelled, "peer sent CAN*5 abort sequence")
		}
	}
	if encoding != ZHEX && encoding != ZBIN && encoding != ZBIN32 {
		return Header{}, 0, newError(ErrInvalidFrame, "unrecognized frame encoding")
	}

	var raw [5]byte // type, data[0..4]
	switch encoding {
	case ZHEX:
		for i := range raw {
			b, err := recvHexByte(dev)
			if err != nil {
				return Header{}, 0, err
			}
			raw[i] = b
		}
	default: // ZBIN, ZBIN32
		for i := range raw {
			b, marker, err := recvUnescaped(dev, 0)
			if err != nil {
				return Header{}, 0, err
			}
			if marker {
				return Header{}, 0, newError(ErrInvalidFrame, "unexpected subpacket marker in header")
			}
			raw[i] = b
		}
	}

	h := Header{Type: int(raw[0]), Data: [4]byte{raw[1], raw[2], raw[3], raw[4]}}

	crcOK, err := verifyHeaderCRC(dev, encoding, raw[:])
	if err != nil {
		return Header{}, 0, err
	}
	if !crcOK {
		if strictCRC {
			return Header{}, 0, newFrameError(ErrCRC, "header CRC mismatch", h.Type)
		}
		dev.logger.Warnf("header CRC mismatch for frame %s", FrameTypeName(h.Type))
	}

	if encoding == ZHEX {
		if err := consumeHexTrailer(dev, h.Type); err != nil {
			return Header{}, 0, err
		}
	}

	return h, encoding, nil
}

// verifyHeaderCRC reads the trailing CRC (2 bytes for HEX/BIN16, 4 for
// BIN32) and reports whether it matches the CRC over type||data. The BIN32
// CRC is big-endian on the wire.
func verifyHeaderCRC(dev *device, encoding byte, typeAndData []byte) (bool, error) {
	switch encoding {
	case ZBIN32:
		var bytes [4]byte
		for i := range bytes {
			b, marker, err := recvUnescaped(dev, 0)
			if err != nil {
				return false, err
			}
			if marker {
				return false, newError(ErrInvalidFrame, "unexpected subpacket marker in CRC")
			}
			bytes[i] = b
		}
		got := uint32(bytes[0])<<24 | uint32(bytes[1])<<16 | uint32(bytes[2])<<8 | uint32(bytes[3])
		want := crc32Of(typeAndData)
		return got == want, nil
	case ZHEX:
		hi, err := recvHexByte(dev)
		if err != nil {
			return false, err
		}
		lo, err := recvHexByte(dev)
		if err != nil {
			return false, err
		}
		got := uint16(hi)<<8 | uint16(lo)
		want := crc16Of(typeAndData)
		return got == want, nil
	default: // ZBIN
		var bytes [2]byte
		for i := range bytes {
			b, marker, err := recvUnescaped(dev, 0)
			if err != nil {
				return false, err
			}
			if marker {
				return false, newError(ErrInvalidFrame, "unexpected subpacket marker in CRC")
			}
			bytes[i] = b
		}
		got := uint16(bytes[0])<<8 | uint16(bytes[1])
		want := crc16Of(typeAndData)
		return got == want, nil
	}
}

// consumeHexTrailer reads CR, LF (modulo high bit), and, for frame types
// other than ZACK/ZFIN, XON. Missing terminators are logged, not fatal.
func consumeHexTrailer(dev *device, frameType int) error {
	cr, err := dev.recv(0)
	if err != nil {
		return err
	}
	if cr != CR {
		dev.logger.Warnf("expected CR after hex header, got %#02x", cr)
	}
	lf, err := dev.recv(0)
	if err != nil {
		return err
	}
	if lf&0x7f != LF {
		dev.logger.Warnf("expected LF after hex header, got %#02x", lf)
	}
	if frameType == ZACK || frameType == ZFIN {
		return nil
	}
	xon, err := dev.recv(0)
	if err != nil {
		return err
	}
	if xon != XON {
		dev.logger.Warnf("expected XON after hex header, got %#02x", xon)
	}
	return nil
}

// recvHexByte reads two hex digits and combines them into a byte.
func recvHexByte(dev *device) (byte, error) {
	hi, err := dev.recv(0)
	if err != nil {
		return 0, err
	}
	lo, err := dev.recv(0)
	if err != nil {
		return 0, err
	}
	return decodeHexByte(hi, lo)
}

// scanForSync discards bytes until it sees the ZPAD(+)ZDLE sync sequence.
// timeout bounds only the very first byte read. Every discarded byte (one
// that doesn't advance the ZPAD/ZDLE state) counts against maxGarbage; once
// it's exhausted, scanForSync gives up with ErrProtocol rather than
// looping forever on a dead or miswired line. Five CAN bytes in a row,
// wherever they appear in the scan, is a sender-initiated abort and is
// reported as ErrCancelled instead.
func scanForSync(dev *device, timeout time.Duration, maxGarbage int) error {
	b, err := dev.recv(timeout)
	if err != nil {
		return err
	}
	sawPad := false
	canRun := 0
	garbage := maxGarbage
	for {
		if b == CAN {
			canRun++
			if canRun >= 5 {
				return newError(ErrCancelled, "peer sent CAN*5 abort sequence")
			}
		} else {
			canRun = 0
		}

		switch {
		case b == ZPAD:
			sawPad = true
		case b == ZDLE && sawPad:
			return nil
		default:
			sawPad = false
			garbage--
			if garbage <= 0 {
				return newError(ErrProtocol, "garbage count exceeded during header sync")
			}
		}
		b, err = dev.recv(0)
		if err != nil {
			return err
		}
	}
}

// readCancelRun is called after a CAN byte is read where a frame-encoding
// byte was expected. It reads up to four more bytes, reporting true only
// if all four are also CAN, completing the CAN*5 abort sequence.
func readCancelRun(dev *device) (bool, error) {
	for i := 0; i < 4; i++ {
		b, err := dev.recv(0)
		if err != nil {
			return false, err
		}
		if b != CAN {
			return false, nil
		}
	}
	return true, nil
}
