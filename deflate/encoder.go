// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

import (
	"fmt"

	"github.com/cosnicolaou/gcomp/internal/bitio"
	"github.com/cosnicolaou/gcomp/internal/codecerr"
	"github.com/cosnicolaou/gcomp/internal/huffman"
)

const (
	minMatchLength = 3
	maxMatchLength = 258
	maxDistance    = 32768

	hashBits = 15
	hashSize = 1 << hashBits
	hashMask = hashSize - 1

	// blockSize bounds how many input bytes go into a single emitted
	// block. It matches the largest legal window so that a block's own
	// matches never need to reach further back than the window the
	// decoder keeps.
	blockSize = 1 << 15

	noPos = -1
)

type encoderStage uint8

const (
	stageInit encoderStage = iota
	stageAccepting
	stageFlushing
	stageEncDone
)

// hash3 mixes three bytes into a hashBits-wide bucket index. Multiplicative
// hashing over a small constant is the standard choice for a byte-string
// hash chain; the constant is an arbitrary odd 32-bit value, not tuned.
func hash3(a, b, c byte) uint32 {
	v := uint32(a) | uint32(b)<<8 | uint32(c)<<16
	return (v * 2654435761) >> (32 - hashBits) & hashMask
}

// token is one LZ77-encoded unit: either a literal byte or a length/distance
// back-reference.
type token struct {
	isMatch  bool
	lit      byte
	length   uint32
	distance uint32
}

// Encoder is a streaming RFC 1951 encoder. The zero value is not usable;
// construct one with NewEncoder. Input accepted by Update is buffered
// internally until a full block's worth has accumulated (or Finish is
// called), at which point it is matched against its own recent history and
// emitted as one DEFLATE block.
type Encoder struct {
	bw bitio.Writer

	level      int
	strategy   Strategy
	chainDepth int
	windowSize int

	// buf holds, contiguously, up to windowSize bytes of already-emitted
	// history (kept only so later blocks can reference back into it)
	// followed by bytes accepted but not yet emitted. bufBase is the
	// absolute input offset of buf[0].
	buf        []byte
	bufBase    int64
	historyLen int

	head []int32 // hashSize buckets, absolute positions, noPos if empty
	prev []int32 // windowSize entries, indexed by absolute position % windowSize

	stage     encoderStage
	finalSent bool
}

// NewEncoder constructs an Encoder for the given options.
func NewEncoder(opts EncoderOptions) (*Encoder, error) {
	wb := opts.windowBits()
	if wb < windowBitsMin || wb > windowBitsMax {
		return nil, fmt.Errorf("%w: window_bits %d out of range", codecerr.ErrInvalidArg, wb)
	}
	level := opts.level()
	if level != LevelStore && (level < 1 || level > 9) {
		return nil, fmt.Errorf("%w: level %d out of range", codecerr.ErrInvalidArg, level)
	}
	if opts.Strategy < StrategyDefault || opts.Strategy > StrategyFixed {
		return nil, fmt.Errorf("%w: unknown strategy %d", codecerr.ErrInvalidArg, opts.Strategy)
	}

	e := &Encoder{
		level:      level,
		strategy:   opts.Strategy,
		windowSize: 1 << wb,
		stage:      stageAccepting,
	}
	e.chainDepth = chainDepthForLevel(level)
	e.head = make([]int32, hashSize)
	for i := range e.head {
		e.head[i] = noPos
	}
	e.prev = make([]int32, e.windowSize)
	return e, nil
}

// chainDepthForLevel maps a compression level to how many hash-chain
// candidates the match finder inspects before settling. Levels 1-3 use
// fixed Huffman output over shallow chains; levels 4-9 use dynamic Huffman
// output over progressively deeper chains, matching the level strategy
// documented for this codec: low levels trade ratio for speed via shorter
// chains and a precomputed (fixed) Huffman table, high levels spend more
// time searching and pay the cost of a per-block dynamic table because the
// resulting ratio improvement is worth it.
func chainDepthForLevel(level int) int {
	if level == LevelStore {
		return 0
	}
	return level * 4
}

// Reset returns the Encoder to its initial state, ready to encode a new,
// unrelated stream.
func (e *Encoder) Reset() {
	e.bw = bitio.Writer{}
	e.buf = e.buf[:0]
	e.bufBase = 0
	e.historyLen = 0
	for i := range e.head {
		e.head[i] = noPos
	}
	for i := range e.prev {
		e.prev[i] = noPos
	}
	e.stage = stageAccepting
	e.finalSent = false
}

// Update accepts input into the encoder's internal buffer and compresses
// any full blocks that have accumulated, draining as much compressed output
// as fits into output. It never blocks: all of input is always accepted
// (consumed == len(input)), since buffering is the encoder's job, not the
// caller's.
func (e *Encoder) Update(input, output []byte) (consumed, produced int, err error) {
	if e.stage == stageEncDone {
		return 0, 0, fmt.Errorf("%w: Update called after Finish", codecerr.ErrInvalidArg)
	}
	e.buf = append(e.buf, input...)
	consumed = len(input)

	for e.pendingLen() >= blockSize {
		e.emitBlock(blockSize, false)
		e.trimHistory()
	}

	produced = e.bw.Flush(output)
	return consumed, produced, nil
}

// Finish emits a final block covering whatever input remains buffered (even
// if empty) and drains all remaining compressed output into output. If
// output is too small to hold everything, Finish returns ErrShortBuffer and
// must be called again with a fresh or larger buffer to retrieve the rest;
// this does not invalidate the encoder's state.
func (e *Encoder) Finish(output []byte) (produced int, err error) {
	if !e.finalSent {
		e.emitBlock(e.pendingLen(), true)
		e.bw.AlignToByte()
		e.finalSent = true
		e.stage = stageFlushing
	}

	produced = e.bw.Flush(output)
	if e.bw.Pending() > 0 {
		return produced, codecerr.ErrShortBuffer
	}
	e.stage = stageEncDone
	return produced, nil
}

// pendingLen reports how many accepted-but-not-yet-emitted bytes are
// buffered.
func (e *Encoder) pendingLen() int {
	return len(e.buf) - e.historyLen
}

// trimHistory drops buffered bytes older than one window's worth once
// they can no longer be referenced by a future match, keeping buf's memory
// bounded regardless of how much input Update has accepted in total.
func (e *Encoder) trimHistory() {
	drop := e.historyLen - e.windowSize
	if drop <= 0 {
		return
	}
	copy(e.buf, e.buf[drop:])
	e.buf = e.buf[:len(e.buf)-drop]
	e.bufBase += int64(drop)
	e.historyLen -= drop
}

// emitBlock matches and writes exactly n of the currently pending bytes
// (n <= e.pendingLen()) as one DEFLATE block, then advances historyLen past
// them.
func (e *Encoder) emitBlock(n int, final bool) {
	start := e.historyLen
	end := start + n
	data := e.buf[start:end]

	if e.level == LevelStore {
		e.writeStoredChunks(data, final)
		e.historyLen = end
		return
	}

	var tokens []token
	switch e.strategy {
	case StrategyHuffmanOnly:
		tokens = literalTokens(data)
	case StrategyRLE:
		tokens = e.findRLEMatches(start, end)
	default:
		tokens = e.findMatches(start, end)
	}

	if e.strategy == StrategyFixed || e.level <= 3 {
		e.writeFixedBlock(tokens, final)
	} else {
		e.writeDynamicOrFixedBlock(tokens, final)
	}
	e.historyLen = end
}

// literalTokens emits every byte of data as its own literal token, used by
// StrategyHuffmanOnly to skip LZ77 matching entirely.
func literalTokens(data []byte) []token {
	tokens := make([]token, len(data))
	for i, b := range data {
		tokens[i] = token{lit: b}
	}
	return tokens
}

// findRLEMatches implements StrategyRLE over buf[start:end]: the only
// back-reference it ever proposes is a run of the single byte immediately
// preceding the current position (distance 1), matching zlib's Z_RLE. Unlike
// findMatches it does not touch the hash chains, since StrategyRLE never
// falls back to them.
func (e *Encoder) findRLEMatches(start, end int) []token {
	var tokens []token
	i := start
	for i < end {
		if i > 0 {
			limit := end - i
			if limit > maxMatchLength {
				limit = maxMatchLength
			}
			length := matchLen(e.buf, i-1, i, limit)
			if length >= minMatchLength {
				tokens = append(tokens, token{isMatch: true, length: uint32(length), distance: 1})
				i += length
				continue
			}
		}
		tokens = append(tokens, token{lit: e.buf[i]})
		i++
	}
	return tokens
}

// findMatches runs the hash-chain match finder over buf[start:end],
// inserting every scanned position into the chain (including positions
// skipped over by a match) so later blocks in the same stream can still
// find references into this one.
func (e *Encoder) findMatches(start, end int) []token {
	var tokens []token
	i := start
	for i < end {
		length, distance := 0, 0
		if i+minMatchLength <= end {
			length, distance = e.findMatch(i, end)
		}
		if length >= minMatchLength {
			tokens = append(tokens, token{isMatch: true, length: uint32(length), distance: uint32(distance)})
			matchEnd := i + length
			for i < matchEnd {
				if i+minMatchLength <= end {
					e.insert(i)
				}
				i++
			}
		} else {
			if i+minMatchLength <= end {
				e.insert(i)
			}
			tokens = append(tokens, token{lit: e.buf[i]})
			i++
		}
	}
	return tokens
}

// insert records absolute position p (an index into e.buf, NOT yet
// offset-adjusted by bufBase since buf is addressed directly here) into its
// 3-byte hash chain.
func (e *Encoder) insert(p int) {
	h := hash3(e.buf[p], e.buf[p+1], e.buf[p+2])
	abs := e.bufBase + int64(p)
	slot := abs % int64(e.windowSize)
	e.prev[slot] = e.head[h]
	e.head[h] = int32(abs)
}

// findMatch searches position i's hash chain (up to e.chainDepth
// candidates) for the longest run matching buf[i:], returning its length
// and distance. The result may be shorter than minMatchLength (or (0,0) if
// no candidate was examined); callers treat such a result as no match.
func (e *Encoder) findMatch(i, end int) (bestLen, bestDist int) {
	abs := e.bufBase + int64(i)
	h := hash3(e.buf[i], e.buf[i+1], e.buf[i+2])
	cand := e.head[h]
	limit := end - i
	if limit > maxMatchLength {
		limit = maxMatchLength
	}
	depth := e.chainDepth
	for cand != noPos && depth > 0 {
		candAbs := int64(cand)
		if candAbs >= abs {
			break
		}
		dist := abs - candAbs
		if dist > maxDistance {
			break
		}
		ci := int(candAbs - e.bufBase)
		if ci >= 0 && ci < len(e.buf) {
			l := matchLen(e.buf, ci, i, limit)
			if l > bestLen {
				bestLen = l
				bestDist = int(dist)
				if l >= limit {
					break
				}
			}
		}
		slot := candAbs % int64(e.windowSize)
		next := e.prev[slot]
		if next == noPos || next >= cand {
			break
		}
		cand = next
		depth--
	}
	return bestLen, bestDist
}

func matchLen(buf []byte, a, b, limit int) int {
	n := 0
	for n < limit && buf[a+n] == buf[b+n] {
		n++
	}
	return n
}

// writeStoredChunks emits data as a sequence of RFC 1951 stored blocks, each
// at most maxStored (65535) bytes, the last one marked final
// iff final is set.
func (e *Encoder) writeStoredChunks(data []byte, final bool) {
	const maxStored = 65535
	for len(data) > 0 || (final && len(data) == 0) {
		chunk := data
		if len(chunk) > maxStored {
			chunk = chunk[:maxStored]
		}
		isLast := final && len(chunk) == len(data)
		e.writeStoredBlockHeader(isLast)
		e.bw.AlignToByte()
		e.bw.WriteBits(uint32(len(chunk)), 16)
		e.bw.WriteBits(uint32(uint16(^uint16(len(chunk)))), 16)
		e.bw.WriteBytes(chunk)
		data = data[len(chunk):]
		if len(data) == 0 {
			break
		}
	}
}

func (e *Encoder) writeStoredBlockHeader(final bool) {
	bfinal := uint32(0)
	if final {
		bfinal = 1
	}
	e.bw.WriteBits(bfinal, 1)
	e.bw.WriteBits(0, 2)
}

func (e *Encoder) writeBlockHeader(btype uint32, final bool) {
	bfinal := uint32(0)
	if final {
		bfinal = 1
	}
	e.bw.WriteBits(bfinal, 1)
	e.bw.WriteBits(btype, 2)
}

// writeSymbol writes a canonical Huffman code, most-significant-bit first
// per RFC 1951 §3.1.1, which on this LSB-first bit writer means reversing
// the code's bits before writing them.
func (e *Encoder) writeSymbol(code uint16, length uint8) {
	e.bw.WriteBits(bitio.ReverseBits(uint32(code), uint(length)), uint(length))
}

// writeFixedBlock emits tokens as one btype=01 block using RFC 1951's fixed
// Huffman tables.
func (e *Encoder) writeFixedBlock(tokens []token, final bool) {
	e.writeBlockHeader(1, final)

	litLens := fixedLitLenLengths()
	distLens := fixedDistLengths()
	litCodes, _ := huffman.BuildCodes(litLens, huffman.MaxBits)
	distCodes, _ := huffman.BuildCodes(distLens, huffman.MaxBits)

	e.writeTokens(tokens, litCodes, litLens, distCodes, distLens)
	e.writeSymbol(litCodes[256], litLens[256])
}

// writeDynamicOrFixedBlock builds a per-block dynamic Huffman table from
// the tokens' own symbol frequencies and emits it as a btype=10 block. If
// the resulting code lengths would exceed the 15-bit limit RFC 1951 allows
// (possible only for pathological, heavily skewed frequency distributions,
// since BuildLengths does not itself enforce a length limit), it falls back
// to a fixed-table block instead of implementing the more involved
// length-limiting (package-merge) construction for a case this simpler
// fallback already handles correctly.
func (e *Encoder) writeDynamicOrFixedBlock(tokens []token, final bool) {
	var litFreq [maxLitLenSymbols]uint32
	var distFreq [maxDistSymbols]uint32
	litFreq[256] = 1 // the end-of-block symbol always occurs exactly once

	for _, t := range tokens {
		if !t.isMatch {
			litFreq[t.lit]++
			continue
		}
		lsym, _ := lengthSymbol(t.length)
		litFreq[257+lsym]++
		dsym, _ := distSymbol(t.distance)
		distFreq[dsym]++
	}

	litLens, _ := huffman.BuildLengths(litFreq[:])
	hlit := lastNonZero(litLens, 257) + 1
	if hlit < 257 {
		hlit = 257
	}

	anyDist := false
	for _, f := range distFreq {
		if f > 0 {
			anyDist = true
			break
		}
	}
	if !anyDist {
		distFreq[0] = 1
	}
	distLens, _ := huffman.BuildLengths(distFreq[:])
	hdist := lastNonZero(distLens, 1) + 1
	if hdist < 1 {
		hdist = 1
	}

	if maxOf(litLens) > huffman.MaxBits || maxOf(distLens) > huffman.MaxBits {
		e.writeFixedBlock(tokens, final)
		return
	}

	e.writeBlockHeader(2, final)

	clSyms, clExtras := rleCodeLengths(append(append([]uint8{}, litLens[:hlit]...), distLens[:hdist]...))
	var clFreq [19]uint32
	for _, s := range clSyms {
		clFreq[s]++
	}
	clLens, _ := huffman.BuildLengths(clFreq[:])
	if maxOf(clLens) > 7 {
		// Another pathological-input guard: the code-length alphabet
		// itself failed to fit its 7-bit limit. Fall back rather than
		// risk emitting an invalid header.
		e.writeFixedBlock(tokens, final)
		return
	}
	hclen := 19
	for hclen > 4 && clLens[codeLengthOrder[hclen-1]] == 0 {
		hclen--
	}

	e.bw.WriteBits(uint32(hlit-257), 5)
	e.bw.WriteBits(uint32(hdist-1), 5)
	e.bw.WriteBits(uint32(hclen-4), 4)
	for i := 0; i < hclen; i++ {
		e.bw.WriteBits(uint32(clLens[codeLengthOrder[i]]), 3)
	}

	clCodes, _ := huffman.BuildCodes(clLens, 7)
	for i, s := range clSyms {
		e.writeSymbol(clCodes[s], clLens[s])
		switch s {
		case 16:
			e.bw.WriteBits(clExtras[i], 2)
		case 17:
			e.bw.WriteBits(clExtras[i], 3)
		case 18:
			e.bw.WriteBits(clExtras[i], 7)
		}
	}

	litCodes, _ := huffman.BuildCodes(litLens, huffman.MaxBits)
	distCodes, _ := huffman.BuildCodes(distLens, huffman.MaxBits)
	e.writeTokens(tokens, litCodes, litLens, distCodes, distLens)
	e.writeSymbol(litCodes[256], litLens[256])
}

func (e *Encoder) writeTokens(tokens []token, litCodes []uint16, litLens []uint8, distCodes []uint16, distLens []uint8) {
	for _, t := range tokens {
		if !t.isMatch {
			e.writeSymbol(litCodes[t.lit], litLens[t.lit])
			continue
		}
		lsym, lextra := lengthSymbol(t.length)
		e.writeSymbol(litCodes[257+lsym], litLens[257+lsym])
		e.bw.WriteBits(lextra, uint(lenExtra[lsym]))

		dsym, dextra := distSymbol(t.distance)
		e.writeSymbol(distCodes[dsym], distLens[dsym])
		e.bw.WriteBits(dextra, uint(distExtra[dsym]))
	}
}

// lengthSymbol maps a full match length (3..258) to its RFC 1951 length
// symbol index (0..28, i.e. literal/length symbol 257+index) and extra-bits
// value.
func lengthSymbol(length uint32) (sym int, extra uint32) {
	for i := len(lenBase) - 1; i >= 0; i-- {
		if length >= uint32(lenBase[i]) {
			return i, length - uint32(lenBase[i])
		}
	}
	return 0, 0
}

// distSymbol maps a full match distance (1..32768) to its RFC 1951 distance
// symbol index (0..29) and extra-bits value.
func distSymbol(distance uint32) (sym int, extra uint32) {
	for i := len(distBase) - 1; i >= 0; i-- {
		if distance >= uint32(distBase[i]) {
			return i, distance - uint32(distBase[i])
		}
	}
	return 0, 0
}

// rleCodeLengths run-length-encodes a concatenated literal/length +
// distance code-length table into the symbol stream (0-18) RFC 1951 §3.2.7
// defines for a dynamic Huffman header: 16 repeats the previous length
// (3-6 times), 17 and 18 repeat a zero length (3-10 and 11-138 times).
func rleCodeLengths(lens []uint8) (syms []uint16, extras []uint32) {
	n := len(lens)
	i := 0
	for i < n {
		cur := lens[i]
		runLen := 1
		for i+runLen < n && lens[i+runLen] == cur {
			runLen++
		}
		if cur == 0 {
			remaining := runLen
			for remaining > 0 {
				switch {
				case remaining >= 11:
					chunk := remaining
					if chunk > 138 {
						chunk = 138
					}
					syms = append(syms, 18)
					extras = append(extras, uint32(chunk-11))
					remaining -= chunk
				case remaining >= 3:
					chunk := remaining
					if chunk > 10 {
						chunk = 10
					}
					syms = append(syms, 17)
					extras = append(extras, uint32(chunk-3))
					remaining -= chunk
				default:
					syms = append(syms, 0)
					extras = append(extras, 0)
					remaining--
				}
			}
		} else {
			syms = append(syms, uint16(cur))
			extras = append(extras, 0)
			remaining := runLen - 1
			for remaining > 0 {
				if remaining >= 3 {
					chunk := remaining
					if chunk > 6 {
						chunk = 6
					}
					syms = append(syms, 16)
					extras = append(extras, uint32(chunk-3))
					remaining -= chunk
				} else {
					syms = append(syms, uint16(cur))
					extras = append(extras, 0)
					remaining--
				}
			}
		}
		i += runLen
	}
	return syms, extras
}

func lastNonZero(lens []uint8, floor int) int {
	last := floor - 1
	for i, l := range lens {
		if l != 0 && i > last {
			last = i
		}
	}
	return last
}

func maxOf(lens []uint8) uint8 {
	var m uint8
	for _, l := range lens {
		if l > m {
			m = l
		}
	}
	return m
}
