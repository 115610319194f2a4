package zmodem

import "time"

// receiveSubpacket streams ZDLE-unescaped bytes into buf until a
// packet-type marker ends the subpacket, then reads and checks the
// trailing CRC over payload||marker. Subpacket bytes are always sent raw
// ZDLE-escaped on the wire, never hex-encoded, even under a HEX frame
// header; only the CRC width (2 bytes for HEX/BIN16, 4 for BIN32) depends
// on encoding.
//
// ErrBufferFull is returned if buf fills before a terminator arrives.
// The caller is expected to size buf generously (1024 bytes covers every
// subpacket this receiver ever sees) rather than recover mid-subpacket.
func receiveSubpacket(dev *device, encoding byte, buf []byte, timeout time.Duration, strictCRC bool) (marker byte, n int, err error) {
	c16 := newCRC16()
	c32 := newCRC32()
	use32 := encoding == ZBIN32

	for {
		b, isMarker, err := recvUnescaped(dev, timeout)
		if err != nil {
			return 0, 0, err
		}
		if isMarker {
			marker = b
			break
		}
		if n >= len(buf) {
			return 0, 0, newError(ErrBufferFull, "subpacket payload exceeded buffer")
		}
		buf[n] = b
		n++
		if use32 {
			c32.update(b)
		} else {
			c16.update(b)
		}
	}

	if use32 {
		c32.update(marker)
	} else {
		c16.update(marker)
	}

	crcOK, err := verifySubpacketCRC(dev, use32, c16, c32, timeout)
	if err != nil {
		return 0, 0, err
	}
	if !crcOK {
		if strictCRC {
			return 0, 0, newError(ErrCRC, "subpacket CRC mismatch")
		}
		dev.logger.Warnf("subpacket CRC mismatch (marker %#02x)", marker)
	}

	return marker, n, nil
}

func verifySubpacketCRC(dev *device, use32 bool, c16 *crc16, c32 *crc32Acc, timeout time.Duration) (bool, error) {
	readTrailer := func(n int) ([]byte, error) {
		out := make([]byte, n)
		for i := range out {
			b, isMarker, err := recvUnescaped(dev, timeout)
			if err != nil {
				return nil, err
			}
			if isMarker {
				return nil, newError(ErrInvalidFrame, "unexpected subpacket marker in trailing CRC")
			}
			out[i] = b
		}
		return out, nil
	}

	if use32 {
		bytes, err := readTrailer(4)
		if err != nil {
			return false, err
		}
		got := uint32(bytes[0])<<24 | uint32(bytes[1])<<16 | uint32(bytes[2])<<8 | uint32(bytes[3])
		return got == c32.sum(), nil
	}
	bytes, err := readTrailer(2)
	if err != nil {
		return false, err
	}
	got := uint16(bytes[0])<<8 | uint16(bytes[1])
	return got == c16.sum(), nil
}
