package easybus

// checksumPolynomial is XOR-ed into the shift register whenever its top bit
// falls out.
const checksumPolynomial = 0x0700

// Checksum calculates the Easybus check byte for one pair of data bytes.
// Every pair on the wire is followed by this byte (positions 2, 5, 8, ...).
func Checksum(a, b byte) byte {
	h := uint16(a)<<8 | uint16(b)
	for i := 0; i < 16; i++ {
		if h&0x8000 != 0 {
			h = (h << 1) ^ checksumPolynomial
		} else {
			h <<= 1
		}
	}
	return ^byte(h >> 8)
}
