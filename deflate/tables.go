// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

// RFC 1951 §3.2.5: length code base values and extra-bit counts for
// length symbols 257..285 (indexed 0..28 here).
var lenBase = [29]uint16{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17,
	19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
}
var lenExtra = [29]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2,
	2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
}

// RFC 1951 §3.2.5: distance code base values and extra-bit counts for
// distance symbols 0..29.
var distBase = [30]uint16{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33,
	49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097,
	6145, 8193, 12289, 16385, 24577,
}
var distExtra = [30]uint8{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5,
	5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// codeLengthOrder is the order in which code-length code lengths (HCLEN)
// appear in a dynamic Huffman header, RFC 1951 §3.2.7.
var codeLengthOrder = [19]uint8{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

const (
	maxLitLenSymbols = 288
	maxDistSymbols   = 32

	windowBitsDefault = 15
	windowBitsMin     = 8
	windowBitsMax     = 15
)

// fixedLitLenLengths builds the fixed literal/length code lengths of RFC
// 1951 §3.2.6.
func fixedLitLenLengths() []uint8 {
	lengths := make([]uint8, maxLitLenSymbols)
	for i := 0; i <= 143; i++ {
		lengths[i] = 8
	}
	for i := 144; i <= 255; i++ {
		lengths[i] = 9
	}
	for i := 256; i <= 279; i++ {
		lengths[i] = 7
	}
	for i := 280; i <= 287; i++ {
		lengths[i] = 8
	}
	return lengths
}

// fixedDistLengths builds the fixed distance code lengths of RFC 1951
// §3.2.6: all 30 usable distance symbols get 5 bits (two reserved slots
// pad the alphabet out to 32 to keep the table power-of-two sized).
func fixedDistLengths() []uint8 {
	lengths := make([]uint8, maxDistSymbols)
	for i := 0; i < 30; i++ {
		lengths[i] = 5
	}
	return lengths
}
