// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package huffman

import "github.com/cosnicolaou/gcomp/internal/bitio"

// Decode attempts to decode one symbol from br/input using t. It reports
// ok=false (consuming nothing further from input than it already has
// buffered) when there is not yet enough input to resolve a symbol, so the
// caller can retry once more input arrives without losing any bits already
// read. consumed reports how many bytes of input were pulled into br's
// accumulator this call.
//
// Codes are transmitted LSB-first but canonical code values are built
// MSB-first (RFC 1951 §3.2.2), so the bits peeked from the stream are
// reversed before indexing into the fast/long tables.
func (t *Table) Decode(br *bitio.Reader, input []byte) (symbol uint16, consumed int, ok bool, err error) {
	consumed = br.Fill(input, FastBits)
	if br.NBits() == 0 {
		return 0, consumed, false, nil
	}

	avail := br.NBits()
	if avail > FastBits {
		avail = FastBits
	}
	peek, _ := br.Peek(avail)
	idx := bitio.ReverseBits(peek, avail) << (FastBits - avail)

	fe := t.fast[idx]
	if fe.nbits > 0 {
		if br.NBits() < uint(fe.nbits) {
			return 0, consumed, false, nil
		}
		br.Drop(uint(fe.nbits))
		return fe.symbol, consumed, true, nil
	}

	extra := t.longExtraBits[idx]
	if extra == 0 || t.long == nil {
		return 0, consumed, false, StructuralError("no matching code")
	}

	fullBits := uint(FastBits) + uint(extra)
	c2 := br.Fill(input[consumed:], fullBits)
	consumed += c2
	fullPeek, avail2 := br.Peek(fullBits)
	if avail2 < fullBits {
		return 0, consumed, false, nil
	}

	fullRev := bitio.ReverseBits(fullPeek, fullBits)
	lowMask := uint32(1)<<extra - 1
	low := fullRev & lowMask
	longIdx := uint(t.longBase[idx]) + uint(low)
	if longIdx >= uint(len(t.long)) {
		return 0, consumed, false, StructuralError("long table index out of range")
	}

	le := t.long[longIdx]
	if le.nbits == 0 {
		return 0, consumed, false, StructuralError("unused long table slot")
	}
	if br.NBits() < uint(le.nbits) {
		return 0, consumed, false, nil
	}
	br.Drop(uint(le.nbits))
	return le.symbol, consumed, true, nil
}
