package zmodem

import "time"

// decodeEscapeByte interprets the byte following a ZDLE.
// isMarker is true when b is one of ZCRCE/G/Q/W, a subpacket terminator
// rather than a data byte. It is only legal in subpacket scope, so callers
// reading a frame header treat isMarker==true as an error.
func decodeEscapeByte(b byte) (value byte, isMarker bool, ok bool) {
	switch {
	case b&0x60 == 0x40:
		return b ^ 0x40, false, true
	case b == ZRUB0:
		return 0x7f, false, true
	case b == ZRUB1:
		return 0xff, false, true
	case b == ZCRCE || b == ZCRCG || b == ZCRCQ || b == ZCRCW:
		return b, true, true
	default:
		return 0, false, false
	}
}

// recvUnescaped reads one logical byte from dev, transparently consuming a
// ZDLE escape pair if present. isMarker reports whether the byte decoded
// from an escape is a subpacket terminator rather than data.
func recvUnescaped(dev *device, timeout time.Duration) (value byte, isMarker bool, err error) {
	b, err := dev.recv(timeout)
	if err != nil {
		return 0, false, err
	}
	if b != ZDLE {
		return b, false, nil
	}
	next, err := dev.recv(timeout)
	if err != nil {
		return 0, false, err
	}
	v, marker, ok := decodeEscapeByte(next)
	if !ok {
		return 0, false, newError(ErrInvalidEscape, "unrecognized ZDLE escape")
	}
	return v, marker, nil
}
