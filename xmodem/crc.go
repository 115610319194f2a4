package xmodem

import "github.com/snksoft/crc"

// crc16Params is CRC-16/XMODEM: polynomial 0x1021, initial value 0,
// MSB-first, no reflection, no final XOR. Same parameters package zmodem
// uses for its 16-bit CRC, applied here over a 128-byte block.
var crc16Params = &crc.Parameters{
	Width:      16,
	Polynomial: 0x1021,
	Init:       0x0000,
	ReflectIn:  false,
	ReflectOut: false,
	FinalXor:   0x0000,
}

// crc16Of computes the CRC-16/XMODEM of buf in one shot.
func crc16Of(buf []byte) uint16 {
	return uint16(crc.NewHash(crc16Params).CalculateCRC(buf))
}
