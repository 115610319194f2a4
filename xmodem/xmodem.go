// Package xmodem implements the receiving half of XMODEM-CRC: a simpler
// sibling to package zmodem, used to interoperate with senders that only
// speak the 128-byte-block protocol rather than full ZMODEM.
package xmodem

// Wire protocol control bytes.
const (
	SOH = 0x01 // start of header, begins a 128-byte block
	EOT = 0x04 // end of transmission
	ACK = 0x06
	NAK = 0x15
	ETB = 0x17 // end of transmission block, follows the final EOT
	CAN = 0x18

	// CRCRequest is sent once at the start of a session to tell the
	// sender we want XMODEM-CRC (16-bit CRC) rather than classic
	// checksum-mode XMODEM.
	CRCRequest = 'C'
)

// BlockSize is the fixed payload size of every XMODEM-CRC block.
const BlockSize = 128
