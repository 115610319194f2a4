package zmodem

import "github.com/snksoft/crc"

// crc16Params is CRC-16/XMODEM: polynomial 0x1021, initial value 0, MSB
// first, no reflection, no final XOR.
var crc16Params = &crc.Parameters{
	Width:      16,
	Polynomial: 0x1021,
	Init:       0x0000,
	ReflectIn:  false,
	ReflectOut: false,
	FinalXor:   0x0000,
}

// crc32Params is the reflected CRC-32 ZMODEM uses for BIN32 frames and
// 32-bit subpacket trailers (the same parameters as CRC-32/ISO-HDLC).
var crc32Params = &crc.Parameters{
	Width:      32,
	Polynomial: 0x04C11DB7,
	Init:       0xFFFFFFFF,
	ReflectIn:  true,
	ReflectOut: true,
	FinalXor:   0xFFFFFFFF,
}

// crc16 accumulates a running CRC-16/XMODEM value across however many
// update calls the caller needs. A frame header folds in its type byte
// ahead of its data; a subpacket folds in its packet-type marker after its
// payload. The accumulator doesn't care which position the caller folds
// the extra byte into, so both orderings use the same update call.
type crc16 struct {
	hash *crc.Hash
}

func newCRC16() *crc16 {
	return &crc16{hash: crc.NewHash(crc16Params)}
}

func (c *crc16) update(b byte) {
	c.hash.Update([]byte{b})
}

func (c *crc16) updateBytes(b []byte) {
	c.hash.Update(b)
}

func (c *crc16) sum() uint16 {
	return uint16(c.hash.CRC())
}

// crc16Of computes the CRC-16/XMODEM of buf in one shot.
func crc16Of(buf []byte) uint16 {
	return uint16(crc.NewHash(crc16Params).CalculateCRC(buf))
}

type crc32Acc struct {
	hash *crc.Hash
}

func newCRC32() *crc32Acc {
	return &crc32Acc{hash: crc.NewHash(crc32Params)}
}

func (c *crc32Acc) update(b byte) {
	c.hash.Update([]byte{b})
}

func (c *crc32Acc) updateBytes(b []byte) {
	c.hash.Update(b)
}

func (c *crc32Acc) sum() uint32 {
	return uint32(c.hash.CRC())
}

func crc32Of(buf []byte) uint32 {
	return uint32(crc.NewHash(crc32Params).CalculateCRC(buf))
}
