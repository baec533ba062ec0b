package pix

import "fmt"

// crc16Poly is the CCITT polynomial the instant-payment payload format uses.
const crc16Poly = 0x1021

// Checksum computes CRC-16/CCITT-FALSE over the given text and renders it as
// four uppercase hex digits. Initial register 0xFFFF, MSB-first, no final XOR.
//
// The payload checksum is computed over everything up to and including the
// checksum field's own tag and length header ("6304"), with the value absent.
func Checksum(data string) string {
	crc := uint16(0xFFFF)
	for i := 0; i < len(data); i++ {
		crc ^= uint16(data[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crc16Poly
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}
