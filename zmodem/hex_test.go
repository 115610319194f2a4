package zmodem

import "testing"

func TestEncodeDecodeHexRoundTrip(t *testing.T) {
	for b := 0; b < 256; b++ {
		var digits [2]byte
		encodeHex(byte(b), digits[:])
		got, err := decodeHexByte(digits[0], digits[1])
		if err != nil {
			t.Fatalf("decodeHexByte(%q, %q) error: %v", digits[0], digits[1], err)
		}
		if got != byte(b) {
			t.Fatalf("round trip for %#02x gave %#02x", b, got)
		}
	}
}

func TestDecodeHexDigitMasksParityBit(t *testing.T) {
	// High bit set on an otherwise valid digit must still decode.
	v, ok := decodeHexDigit('a' | 0x80)
	if !ok || v != 10 {
		t.Fatalf("decodeHexDigit('a'|0x80) = (%d, %v), want (10, true)", v, ok)
	}
}

func TestDecodeHexDigitRejectsNonHex(t *testing.T) {
	for _, c := range []byte{'g', 'Z', ' ', 0x00, 0xff} {
		if _, ok := decodeHexDigit(c); ok {
			t.Errorf("decodeHexDigit(%#02x) unexpectedly ok", c)
		}
	}
}

func TestDecodeHexByteReportsOffendingDigit(t *testing.T) {
	_, err := decodeHexByte('z', '0')
	if err == nil {
		t.Fatal("expected error for invalid high digit")
	}
	e, ok := err.(*Error)
	if !ok || e.Type != ErrInvalidHex || e.Byte != 'z' {
		t.Fatalf("unexpected error: %#v", err)
	}
}
