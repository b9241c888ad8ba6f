// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package deflate implements a streaming RFC 1951 DEFLATE decoder and
// encoder over caller-owned buffers: Update consumes from an input slice
// and produces into an output slice, reporting how much of each it used,
// and can be called repeatedly with partial buffers of either kind.
// Neither the Decoder nor the Encoder performs any I/O of their own.
package deflate

import (
	"fmt"

	"github.com/cosnicolaou/gcomp/internal/bitio"
	"github.com/cosnicolaou/gcomp/internal/codecerr"
	"github.com/cosnicolaou/gcomp/internal/huffman"
)

type decoderStage uint8

const (
	stageBlockHeader decoderStage = iota
	stageStoredLen
	stageStoredCopy
	stageDynamicHeader
	stageDynamicCodelen
	stageDynamicLengths
	stageHuffmanData
	stageDone
)

// Decoder is a streaming RFC 1951 decoder. The zero value is not usable;
// construct one with NewDecoder.
type Decoder struct {
	br bitio.Reader

	maxOutputBytes uint64
	totalOutput    uint64

	window       []byte
	windowPos    int
	windowFilled int

	stage     decoderStage
	lastBlock bool
	blockType uint32

	storedRemaining uint32

	fixedLitLen *huffman.Table
	fixedDist   *huffman.Table

	dynLitLen *huffman.Table
	dynDist   *huffman.Table

	curLitLen *huffman.Table
	curDist   *huffman.Table

	matchRemaining uint32
	matchDistance  uint32

	// Pending state across suspended calls, reflecting how far into
	// decoding a literal or length/distance pair the decoder got before
	// input ran out (or, for a literal, before output filled).
	// pendingDistValid is only ever set together with pendingLengthValid;
	// otherwise at most one of these flags is set at a time.
	pendingLenSymValid bool   // length symbol decoded, its own extra bits not yet read
	pendingLenSym      uint16 // index into lenBase/lenExtra (sym-257)
	pendingLengthValid bool   // full length known, distance symbol not yet decoded
	pendingLengthValue uint32
	pendingDistValid bool // length + distance symbol known, distance extra bits not yet read
	pendingDistSym   uint16
	pendingLitValid  bool // literal decoded but output had no room to take it yet
	pendingLit       byte

	// Dynamic Huffman header construction scratch.
	dynHlit         uint32
	dynHdist        uint32
	dynHclen        uint32
	dynClenIndex    uint32
	dynLengthsIndex uint32
	dynLengthsTotal uint32
	dynPrevLen      uint8

	dynClenLengths   [19]uint8
	dynLitLenLengths [maxLitLenSymbols]uint8
	dynDistLengths   [maxDistSymbols]uint8

	dynClenTable *huffman.Table

	// Pending state for the code-length alphabet's own repeat symbols
	// (16/17/18), which like length codes in the main data stage decode a
	// symbol and then need extra bits that might not yet be available.
	dynPendingSymValid bool
	dynPendingSym      uint16
}

// NewDecoder constructs a Decoder ready to process the start of a DEFLATE
// stream.
func NewDecoder(opts DecoderOptions) (*Decoder, error) {
	wb := opts.windowBits()
	if wb < windowBitsMin || wb > windowBitsMax {
		return nil, fmt.Errorf("%w: window_bits %d out of range", codecerr.ErrInvalidArg, wb)
	}
	windowSize := 1 << wb
	maxWindow := opts.maxWindowBytes()
	if maxWindow != 0 && uint64(windowSize) > maxWindow {
		return nil, fmt.Errorf("%w: window size exceeds limit", codecerr.ErrLimit)
	}

	fixedLit, err := huffman.BuildDecodeTable(fixedLitLenLengths(), huffman.MaxBits)
	if err != nil {
		return nil, fmt.Errorf("%w: building fixed literal/length table: %v", codecerr.ErrInternal, err)
	}
	fixedDist, err := huffman.BuildDecodeTable(fixedDistLengths(), huffman.MaxBits)
	if err != nil {
		return nil, fmt.Errorf("%w: building fixed distance table: %v", codecerr.ErrInternal, err)
	}

	d := &Decoder{
		maxOutputBytes: opts.maxOutputBytes(),
		window:         make([]byte, windowSize),
		stage:          stageBlockHeader,
		fixedLitLen:    fixedLit,
		fixedDist:      fixedDist,
	}
	return d, nil
}

// Reset returns the decoder to the state it was in immediately after
// NewDecoder, discarding any in-progress block or window contents.
func (d *Decoder) Reset() {
	d.br = bitio.Reader{}
	d.totalOutput = 0
	for i := range d.window {
		d.window[i] = 0
	}
	d.windowPos = 0
	d.windowFilled = 0
	d.stage = stageBlockHeader
	d.lastBlock = false
	d.blockType = 0
	d.storedRemaining = 0
	d.dynLitLen = nil
	d.dynDist = nil
	d.curLitLen = nil
	d.curDist = nil
	d.matchRemaining = 0
	d.matchDistance = 0
	d.pendingLenSymValid = false
	d.pendingLengthValid = false
	d.pendingDistValid = false
	d.pendingLitValid = false
	d.dynPendingSymValid = false
	d.dynClenTable = nil
}

func errCorrupt(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{codecerr.ErrCorrupt}, args...)...)
}

func (d *Decoder) checkOutputLimit(add int) error {
	if d.maxOutputBytes != 0 && d.totalOutput+uint64(add) > d.maxOutputBytes {
		return fmt.Errorf("%w: decompressed output exceeds %d bytes", codecerr.ErrLimit, d.maxOutputBytes)
	}
	return nil
}

func (d *Decoder) windowPut(b byte) {
	d.window[d.windowPos] = b
	d.windowPos = (d.windowPos + 1) % len(d.window)
	if d.windowFilled < len(d.window) {
		d.windowFilled++
	}
}

func (d *Decoder) emitByte(output []byte, outPos *int, b byte) error {
	if *outPos >= len(output) {
		return nil
	}
	if err := d.checkOutputLimit(1); err != nil {
		return err
	}
	output[*outPos] = b
	*outPos++
	d.totalOutput++
	d.windowPut(b)
	return nil
}

func (d *Decoder) tryReadBits(input []byte, inPos *int, nbits uint) (value uint32, ok bool) {
	v, consumed, ok := d.br.TryReadBits(input[*inPos:], nbits)
	*inPos += consumed
	return v, ok
}

func (d *Decoder) decodeSymbol(table *huffman.Table, input []byte, inPos *int) (sym uint16, decoded bool, err error) {
	sym, consumed, decoded, err := table.Decode(&d.br, input[*inPos:])
	*inPos += consumed
	if err != nil {
		return 0, false, errCorrupt("huffman decode: %v", err)
	}
	return sym, decoded, nil
}

func (d *Decoder) copyStored(input []byte, inPos *int, output []byte, outPos *int) error {
	if d.storedRemaining == 0 {
		return nil
	}
	inAvail := len(input) - *inPos
	outAvail := len(output) - *outPos
	toCopy := int(d.storedRemaining)
	if toCopy > inAvail {
		toCopy = inAvail
	}
	if toCopy > outAvail {
		toCopy = outAvail
	}
	if toCopy <= 0 {
		return nil
	}
	if err := d.checkOutputLimit(toCopy); err != nil {
		return err
	}
	copy(output[*outPos:*outPos+toCopy], input[*inPos:*inPos+toCopy])
	for i := 0; i < toCopy; i++ {
		d.windowPut(input[*inPos+i])
	}
	*inPos += toCopy
	*outPos += toCopy
	d.totalOutput += uint64(toCopy)
	d.storedRemaining -= uint32(toCopy)
	return nil
}

func (d *Decoder) copyMatch(output []byte, outPos *int) error {
	for d.matchRemaining > 0 && *outPos < len(output) {
		if d.matchDistance == 0 || int(d.matchDistance) > d.windowFilled || int(d.matchDistance) > len(d.window) {
			return errCorrupt("match distance %d invalid (window filled %d)", d.matchDistance, d.windowFilled)
		}
		srcPos := (d.windowPos + len(d.window) - int(d.matchDistance)) % len(d.window)
		b := d.window[srcPos]
		if err := d.emitByte(output, outPos, b); err != nil {
			return err
		}
		d.matchRemaining--
	}
	return nil
}

func (d *Decoder) processBlockHeader(input []byte, inPos *int) error {
	// Read BFINAL (1 bit) and BTYPE (2 bits) as one atomic 3-bit read so a
	// suspension can never land between the two: reading them separately
	// (as stand-alone single/double-bit reads) would let a 1-bit-short
	// input chunk consume BFINAL while failing to also get BTYPE, losing
	// BFINAL on resume exactly the way the reference implementation loses
	// a length symbol's extra bits (see decodeHuffmanData).
	header, ok := d.tryReadBits(input, inPos, 3)
	if !ok {
		return nil
	}
	bfinal := header & 1
	btype := (header >> 1) & 3

	d.lastBlock = bfinal != 0
	d.blockType = btype

	switch btype {
	case 0:
		d.br.AlignToByte()
		d.stage = stageStoredLen
	case 1:
		d.curLitLen = d.fixedLitLen
		d.curDist = d.fixedDist
		d.stage = stageHuffmanData
	case 2:
		d.resetDynamic()
		d.stage = stageDynamicHeader
	default:
		return errCorrupt("invalid block type %d", btype)
	}
	return nil
}

func (d *Decoder) resetDynamic() {
	d.dynHlit, d.dynHdist, d.dynHclen = 0, 0, 0
	d.dynClenIndex, d.dynLengthsIndex, d.dynLengthsTotal = 0, 0, 0
	d.dynPrevLen = 0
	for i := range d.dynClenLengths {
		d.dynClenLengths[i] = 0
	}
	for i := range d.dynLitLenLengths {
		d.dynLitLenLengths[i] = 0
	}
	for i := range d.dynDistLengths {
		d.dynDistLengths[i] = 0
	}
	d.dynClenTable = nil
	d.dynLitLen = nil
	d.dynDist = nil
	d.dynPendingSymValid = false
}

func (d *Decoder) processStoredLen(input []byte, inPos *int) error {
	// LEN and NLEN (16 bits each) read atomically, as the reference does.
	lenNlen, ok := d.tryReadBits(input, inPos, 32)
	if !ok {
		return nil
	}
	length := lenNlen & 0xFFFF
	nlen := (lenNlen >> 16) & 0xFFFF
	if (length^0xFFFF)&0xFFFF != nlen {
		return errCorrupt("stored block LEN/NLEN mismatch")
	}
	d.storedRemaining = length
	d.stage = stageStoredCopy
	return nil
}

func (d *Decoder) processDynamicHeader(input []byte, inPos *int) error {
	header, ok := d.tryReadBits(input, inPos, 14)
	if !ok {
		return nil
	}
	hlit := header & 0x1F
	hdist := (header >> 5) & 0x1F
	hclen := (header >> 10) & 0xF

	d.dynHlit = hlit + 257
	d.dynHdist = hdist + 1
	d.dynHclen = hclen + 4

	if d.dynHlit > 286 || d.dynHdist > 32 || d.dynHclen > 19 {
		return errCorrupt("invalid dynamic header HLIT/HDIST/HCLEN")
	}
	d.dynClenIndex = 0
	return nil
}

func (d *Decoder) processDynamicCodelen(input []byte, inPos *int) error {
	for d.dynClenIndex < d.dynHclen {
		v, ok := d.tryReadBits(input, inPos, 3)
		if !ok {
			return nil
		}
		sym := codeLengthOrder[d.dynClenIndex]
		d.dynClenLengths[sym] = uint8(v)
		d.dynClenIndex++
	}

	table, err := huffman.BuildDecodeTable(d.dynClenLengths[:], 7)
	if err != nil {
		return errCorrupt("building code-length table: %v", err)
	}
	d.dynClenTable = table
	d.dynLengthsTotal = d.dynHlit + d.dynHdist
	d.dynLengthsIndex = 0
	d.dynPrevLen = 0
	return nil
}

func (d *Decoder) processDynamicLengths(input []byte, inPos *int) error {
	if d.dynClenTable == nil {
		return fmt.Errorf("%w: code-length table not ready", codecerr.ErrInternal)
	}

	for d.dynLengthsIndex < d.dynLengthsTotal {
		var sym uint16
		if d.dynPendingSymValid {
			sym = d.dynPendingSym
		} else {
			s, decoded, err := d.decodeSymbol(d.dynClenTable, input, inPos)
			if err != nil {
				return err
			}
			if !decoded {
				return nil
			}
			sym = s
		}

		switch {
		case sym <= 15:
			length := uint8(sym)
			idx := d.dynLengthsIndex
			if idx < d.dynHlit {
				d.dynLitLenLengths[idx] = length
			} else {
				d.dynDistLengths[idx-d.dynHlit] = length
			}
			d.dynPrevLen = length
			d.dynLengthsIndex++
			d.dynPendingSymValid = false

		case sym == 16:
			if d.dynLengthsIndex == 0 {
				return errCorrupt("repeat-previous code length with no previous entry")
			}
			extra, ok := d.tryReadBits(input, inPos, 2)
			if !ok {
				d.dynPendingSymValid = true
				d.dynPendingSym = sym
				return nil
			}
			count := 3 + extra
			if d.dynLengthsIndex+count > d.dynLengthsTotal {
				return errCorrupt("repeat run overflows length table")
			}
			for i := uint32(0); i < count; i++ {
				idx := d.dynLengthsIndex
				if idx < d.dynHlit {
					d.dynLitLenLengths[idx] = d.dynPrevLen
				} else {
					d.dynDistLengths[idx-d.dynHlit] = d.dynPrevLen
				}
				d.dynLengthsIndex++
			}
			d.dynPendingSymValid = false

		case sym == 17 || sym == 18:
			extraBits := uint(3)
			base := uint32(3)
			if sym == 18 {
				extraBits = 7
				base = 11
			}
			extra, ok := d.tryReadBits(input, inPos, extraBits)
			if !ok {
				d.dynPendingSymValid = true
				d.dynPendingSym = sym
				return nil
			}
			count := base + extra
			if d.dynLengthsIndex+count > d.dynLengthsTotal {
				return errCorrupt("zero run overflows length table")
			}
			for i := uint32(0); i < count; i++ {
				idx := d.dynLengthsIndex
				if idx < d.dynHlit {
					d.dynLitLenLengths[idx] = 0
				} else {
					d.dynDistLengths[idx-d.dynHlit] = 0
				}
				d.dynLengthsIndex++
			}
			d.dynPrevLen = 0
			d.dynPendingSymValid = false

		default:
			return errCorrupt("invalid code-length symbol %d", sym)
		}
	}

	// The end-of-block symbol (256) must be reachable; an all-zero
	// distance tree is fine (RFC 1951 permits a block with no LZ77
	// matches at all), so only the literal/length tree is required to be
	// complete enough to include symbol 256.
	if d.dynLitLenLengths[256] == 0 {
		return errCorrupt("dynamic block missing end-of-block symbol")
	}

	litTable, err := huffman.BuildDecodeTable(d.dynLitLenLengths[:], huffman.MaxBits)
	if err != nil {
		return errCorrupt("building literal/length table: %v", err)
	}
	distTable, err := huffman.BuildDecodeTable(d.dynDistLengths[:], huffman.MaxBits)
	if err != nil {
		return errCorrupt("building distance table: %v", err)
	}

	d.dynLitLen = litTable
	d.dynDist = distTable
	d.dynClenTable = nil
	return nil
}

// decodeDistance resolves the distance half of a length/distance pair and,
// once both are known, sets up the match copy. It is entered either with a
// freshly decoded length or on resume with one already pending.
func (d *Decoder) decodeDistance(input []byte, inPos *int, output []byte, outPos *int, length uint32) error {
	var distSym uint16
	if d.pendingDistValid {
		distSym = d.pendingDistSym
	} else {
		sym, decoded, err := d.decodeSymbol(d.curDist, input, inPos)
		if err != nil {
			return err
		}
		if !decoded {
			d.pendingLengthValid = true
			d.pendingLengthValue = length
			return nil
		}
		if sym >= 30 {
			return errCorrupt("invalid distance symbol %d", sym)
		}
		distSym = sym
	}

	distance := uint32(distBase[distSym])
	extraBits := uint(distExtra[distSym])
	if extraBits > 0 {
		extra, ok := d.tryReadBits(input, inPos, extraBits)
		if !ok {
			d.pendingLengthValid = true
			d.pendingLengthValue = length
			d.pendingDistValid = true
			d.pendingDistSym = distSym
			return nil
		}
		distance += extra
	}

	if distance == 0 || distance > uint32(d.windowFilled) {
		return errCorrupt("distance %d exceeds available window (%d)", distance, d.windowFilled)
	}

	d.pendingLengthValid = false
	d.pendingDistValid = false
	d.matchDistance = distance
	d.matchRemaining = length
	return d.copyMatch(output, outPos)
}

func (d *Decoder) processHuffmanData(input []byte, inPos *int, output []byte, outPos *int) error {
	if d.curLitLen == nil || d.curDist == nil {
		return fmt.Errorf("%w: no active Huffman tables", codecerr.ErrInternal)
	}

	if d.matchRemaining > 0 {
		return d.copyMatch(output, outPos)
	}

	// A literal decoded last call but not yet emitted (output was full)
	// must be retried before decoding anything new: the Huffman decode
	// already consumed its bits from the bit accumulator, so there is no
	// way to re-derive it. This mirrors the fix below for length symbols,
	// generalized to the plain-literal case.
	if d.pendingLitValid {
		if *outPos >= len(output) {
			return nil
		}
		if err := d.emitByte(output, outPos, d.pendingLit); err != nil {
			return err
		}
		d.pendingLitValid = false
		return nil
	}

	if d.pendingLengthValid {
		return d.decodeDistance(input, inPos, output, outPos, d.pendingLengthValue)
	}

	// Fix for the reference implementation's documented gap: if a length
	// symbol was decoded but its extra bits could not be read last call,
	// resume directly into reading those extra bits instead of trying to
	// decode a fresh literal/length symbol (which would silently
	// misinterpret the remaining bits of the in-progress length code).
	if d.pendingLenSymValid {
		lenSym := d.pendingLenSym
		length := uint32(lenBase[lenSym])
		extraBits := uint(lenExtra[lenSym])
		if extraBits > 0 {
			extra, ok := d.tryReadBits(input, inPos, extraBits)
			if !ok {
				return nil
			}
			length += extra
		}
		d.pendingLenSymValid = false
		return d.decodeDistance(input, inPos, output, outPos, length)
	}

	sym, decoded, err := d.decodeSymbol(d.curLitLen, input, inPos)
	if err != nil {
		return err
	}
	if !decoded {
		return nil
	}

	if sym < 256 {
		if *outPos >= len(output) {
			d.pendingLitValid = true
			d.pendingLit = byte(sym)
			return nil
		}
		return d.emitByte(output, outPos, byte(sym))
	}
	if sym == 256 {
		if d.lastBlock {
			d.stage = stageDone
		} else {
			d.stage = stageBlockHeader
		}
		return nil
	}
	if sym > 285 {
		return errCorrupt("invalid literal/length symbol %d", sym)
	}

	lenSym := sym - 257
	length := uint32(lenBase[lenSym])
	extraBits := uint(lenExtra[lenSym])
	if extraBits > 0 {
		extra, ok := d.tryReadBits(input, inPos, extraBits)
		if !ok {
			d.pendingLenSymValid = true
			d.pendingLenSym = lenSym
			return nil
		}
		length += extra
	}

	return d.decodeDistance(input, inPos, output, outPos, length)
}

// Update decodes as much of input as it can into output, returning how
// many bytes of each it consumed/produced. It may return having consumed
// or produced nothing at all if either buffer was too small to make
// progress (e.g. output is full, or input doesn't yet contain a whole
// code); callers should supply more of one or the other buffer and call
// again. A non-nil error is terminal: the only valid next operation is
// Reset.
func (d *Decoder) Update(input, output []byte) (consumed, produced int, err error) {
	inPos, outPos := 0, 0

	for {
		if d.stage == stageDone {
			return inPos, outPos, nil
		}

		prevIn, prevOut := inPos, outPos
		prevStage := d.stage
		prevStored := d.storedRemaining
		prevMatch := d.matchRemaining
		prevBits := d.br.NBits()

		var stepErr error
		switch d.stage {
		case stageBlockHeader:
			stepErr = d.processBlockHeader(input, &inPos)
		case stageStoredLen:
			stepErr = d.processStoredLen(input, &inPos)
		case stageStoredCopy:
			stepErr = d.copyStored(input, &inPos, output, &outPos)
			if stepErr == nil && d.storedRemaining == 0 && d.stage == stageStoredCopy {
				if d.lastBlock {
					d.stage = stageDone
				} else {
					d.stage = stageBlockHeader
				}
			}
		case stageDynamicHeader:
			stepErr = d.processDynamicHeader(input, &inPos)
			if stepErr == nil && d.dynHclen != 0 && d.dynClenIndex == 0 {
				d.stage = stageDynamicCodelen
			}
		case stageDynamicCodelen:
			stepErr = d.processDynamicCodelen(input, &inPos)
			if stepErr == nil && d.dynClenTable != nil {
				d.stage = stageDynamicLengths
			}
		case stageDynamicLengths:
			stepErr = d.processDynamicLengths(input, &inPos)
			if stepErr == nil && d.dynLitLen != nil {
				d.curLitLen = d.dynLitLen
				d.curDist = d.dynDist
				d.stage = stageHuffmanData
			}
		case stageHuffmanData:
			stepErr = d.processHuffmanData(input, &inPos, output, &outPos)
		default:
			stepErr = fmt.Errorf("%w: unknown decoder stage", codecerr.ErrInternal)
		}

		if stepErr != nil {
			return inPos, outPos, stepErr
		}

		if inPos == prevIn && outPos == prevOut && d.stage == prevStage &&
			d.storedRemaining == prevStored && d.matchRemaining == prevMatch &&
			d.br.NBits() == prevBits {
			return inPos, outPos, nil
		}
	}
}

// Finish decodes whatever is still buffered (a pending literal or match
// copy, and any symbols left in the bit accumulator) into output and
// reports whether the stream ended cleanly. If output fills before the
// stream's end is reached, Finish returns ErrShortBuffer and must be called
// again with more room. If the buffered bits run out before the final
// block ends, the input ended mid-stream and Finish reports ErrCorrupt.
func (d *Decoder) Finish(output []byte) (produced int, err error) {
	_, outPos, err := d.Update(nil, output)
	if err != nil {
		return outPos, err
	}
	if d.stage != stageDone && outPos == len(output) {
		return outPos, fmt.Errorf("%w", codecerr.ErrShortBuffer)
	}
	if d.stage != stageDone {
		return outPos, fmt.Errorf("%w: stream ended before final block", codecerr.ErrCorrupt)
	}
	return outPos, nil
}

// Done reports whether the decoder has finished the final block of the
// stream (its end-of-block has been decoded). A wrapping format (gzip) polls this after Update to know when to
// stop feeding deflate input and start reading its own trailer instead.
func (d *Decoder) Done() bool {
	return d.stage == stageDone
}

// UnconsumedBytes reports how many whole bytes are still sitting in the
// decoder's bit accumulator once the final block has been finished. Fill
// pulls input in whole-byte chunks, so the accumulator can hold bytes that
// were already reported as consumed by Update but were never actually
// needed by the compressed stream itself — typically because they belong
// to whatever follows the deflate stream (a gzip trailer, a concatenated
// member). A wrapping format must reclaim these bytes rather than assume
// consumed bytes were all spent on decoding.
func (d *Decoder) UnconsumedBytes() int {
	return int(d.br.NBits() / 8)
}

// UnconsumedData copies the buffered-but-unused whole bytes (oldest first)
// into buf and drops them from the accumulator, returning how many bytes
// were copied. The padding bits left in the stream's last partial byte are
// discarded first. Only meaningful once Done reports true.
func (d *Decoder) UnconsumedData(buf []byte) int {
	d.br.AlignToByte()
	n := d.UnconsumedBytes()
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		v, _, _ := d.br.TryPeekBits(nil, 8)
		buf[i] = byte(v)
		d.br.Drop(8)
	}
	return n
}
