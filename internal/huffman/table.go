// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package huffman builds and decodes canonical Huffman codes the way RFC
// 1951 requires: codes are derived purely from a per-symbol length table
// (the bl_count/next_code recurrence of RFC 1951 §3.2.2), and decoding uses
// a two-level table so that most symbols resolve with a single array
// lookup after peeking FastBits bits, falling back to a second-level table
// for any code longer than that.
package huffman

const (
	// MaxBits is the longest Huffman code DEFLATE allows.
	MaxBits = 15
	// FastBits is the width of the first-level lookup table. Codes no
	// longer than this resolve with a single table access; longer codes
	// spill into the second-level long table.
	FastBits = 9
	// FastSize is the number of entries in the first-level table.
	FastSize = 1 << FastBits

	// MaxSymbols bounds the literal/length alphabet (288), the widest
	// alphabet this package is ever asked to build a table for.
	MaxSymbols = 288
)

// entry is a single decode-table slot: the symbol a given bit pattern
// decodes to, and how many bits that code consumes. nbits == 0 marks an
// unused fast-table slot that must fall through to the long table.
type entry struct {
	symbol uint16
	nbits  uint8
}

// Table is a built two-level canonical Huffman decode table, populated by
// BuildDecodeTable. The zero value is not usable.
type Table struct {
	fast          [FastSize]entry
	longBase      [FastSize]uint16
	longExtraBits [FastSize]uint8
	long          []entry
}

// Validate checks that lengths describes a valid (not over-subscribed)
// canonical Huffman code, per RFC 1951 §3.2.2. Zero-length entries mean
// "symbol unused" and are ignored. An incomplete code is valid.
func Validate(lengths []uint8, maxBits uint) error {
	if maxBits == 0 || maxBits > MaxBits {
		return StructuralError("invalid max_bits")
	}

	var blCount [MaxBits + 1]uint32
	for _, l := range lengths {
		if uint(l) > maxBits {
			return StructuralError("code length exceeds max_bits")
		}
		if l > 0 {
			blCount[l]++
		}
	}

	var nextCode [MaxBits + 1]uint32
	var code uint32
	blCount[0] = 0
	for bits := uint(1); bits <= maxBits; bits++ {
		code = (code + blCount[bits-1]) << 1
		nextCode[bits] = code
	}

	for bits := uint(1); bits <= maxBits; bits++ {
		if nextCode[bits]+blCount[bits] > (1 << bits) {
			return ErrOverSubscribed
		}
	}

	return nil
}

// BuildCodes assigns canonical code values to each symbol with a non-zero
// length. Encoders call this directly (decoders only need BuildDecodeTable);
// it is exported separately from BuildDecodeTable because an encoder needs
// the codes themselves to write bits, not a decode table.
func BuildCodes(lengths []uint8, maxBits uint) (codes []uint16, err error) {
	return buildCodes(lengths, maxBits)
}

// buildCodes assigns canonical code values to each symbol with a non-zero
// length, per RFC 1951 §3.2.2 steps 1-3: shorter codes get smaller values,
// and same-length codes are consecutive in symbol order.
func buildCodes(lengths []uint8, maxBits uint) (codes []uint16, err error) {
	if err := Validate(lengths, maxBits); err != nil {
		return nil, err
	}

	var blCount [MaxBits + 1]uint32
	for _, l := range lengths {
		if l > 0 {
			blCount[l]++
		}
	}

	var nextCode [MaxBits + 1]uint32
	var code uint32
	blCount[0] = 0
	for bits := uint(1); bits <= maxBits; bits++ {
		code = (code + blCount[bits-1]) << 1
		nextCode[bits] = code
	}

	codes = make([]uint16, len(lengths))
	for i, l := range lengths {
		if l == 0 {
			continue
		}
		codes[i] = uint16(nextCode[l])
		nextCode[l]++
	}
	return codes, nil
}

// BuildDecodeTable constructs a two-level fast/long decode table from a
// per-symbol code-length table. This is a direct port of the reference
// two-pass algorithm: pass one fills the fast table for codes no longer
// than FastBits and, for each longer code, tracks the maximum number of
// "extra" bits (beyond FastBits) needed by any code sharing its FastBits
// prefix; pass two allocates the long table sized to that maximum per
// prefix and fills it, replicating shorter long-codes across every slot
// their prefix's wider entries could also match.
//
// Mixed-length codes sharing a FastBits prefix are the subtle case: if
// prefix P has both an 11-bit and a 13-bit code, the long table for P must
// be sized for 13-bit codes (2^(13-9)=16 entries), and the 11-bit code
// (which only pins down 2 of those 4 extra bits) must be replicated across
// every combination of the remaining 2 "don't care" bits, matching what a
// decoder that always reads the prefix's max extra bits would see.
func BuildDecodeTable(lengths []uint8, maxBits uint) (*Table, error) {
	if len(lengths) > MaxSymbols {
		return nil, StructuralError("too many symbols")
	}
	if maxBits == 0 || maxBits > MaxBits {
		return nil, StructuralError("invalid max_bits")
	}

	codes, err := buildCodes(lengths, maxBits)
	if err != nil {
		return nil, err
	}

	t := &Table{}

	// Pass 1: fast table for short codes; track max extra bits per prefix
	// for long codes.
	for i, l := range lengths {
		if l == 0 {
			continue
		}
		code := codes[i]
		if uint(l) <= FastBits {
			step := 1 << (FastBits - uint(l))
			start := int(code) << (FastBits - uint(l))
			if start+step > FastSize {
				return nil, StructuralError("short code overflows fast table")
			}
			for j := 0; j < step; j++ {
				t.fast[start+j] = entry{symbol: uint16(i), nbits: l}
			}
			continue
		}

		extra := uint(l) - FastBits
		high := uint(code) >> extra
		if t.longExtraBits[high] < uint8(extra) {
			t.longExtraBits[high] = uint8(extra)
		}
	}

	// Compute long_base: a running prefix-sum over the FastBits-wide space
	// of how many long_table slots each prefix with long codes needs.
	var longOffset uint16
	for i := 0; i < FastSize; i++ {
		if t.longExtraBits[i] > 0 {
			t.longBase[i] = longOffset
			longOffset += 1 << t.longExtraBits[i]
		}
	}

	if longOffset == 0 {
		return t, nil
	}

	t.long = make([]entry, longOffset)

	// Pass 2: fill the long table, replicating shorter codes to cover
	// every slot their prefix's widest code could also match.
	for i, l := range lengths {
		if l == 0 || uint(l) <= FastBits {
			continue
		}
		code := codes[i]
		extra := uint(l) - FastBits
		high := uint(code) >> extra
		maxExtra := uint(t.longExtraBits[high])
		lowBits := uint(code) & (1<<extra - 1)

		if extra < maxExtra {
			diff := maxExtra - extra
			step := 1 << diff
			for j := 0; j < step; j++ {
				low := (lowBits << diff) | uint(j)
				idx := uint(t.longBase[high]) + low
				t.long[idx] = entry{symbol: uint16(i), nbits: l}
			}
		} else {
			idx := uint(t.longBase[high]) + lowBits
			t.long[idx] = entry{symbol: uint16(i), nbits: l}
		}
	}

	return t, nil
}
