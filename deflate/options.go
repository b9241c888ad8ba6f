// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

// DecoderOptions configures a Decoder. The zero value is valid and selects
// RFC 1951 defaults (a full 32KiB window, no output/window caps beyond
// what DefaultMaxOutputBytes/DefaultMaxWindowBytes below impose).
type DecoderOptions struct {
	// WindowBits sets the LZ77 window size as a power of two, 8..15
	// (matching the encoder's deflate.window_bits option). 0 selects 15.
	WindowBits uint
	// MaxOutputBytes caps total decompressed bytes across the life of the
	// decoder; 0 selects DefaultMaxOutputBytes. This is the resource guard
	// against decompression bombs called out in the external interface's
	// limits.max_output_bytes option.
	MaxOutputBytes uint64
	// MaxWindowBytes caps the window allocation; 0 selects
	// DefaultMaxWindowBytes.
	MaxWindowBytes uint64
}

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	// Level is the compression level, 1 (fastest) through 9 (maximum
	// compression effort), or 0 to select the default (6). Store-only
	// output (RFC 1951 stored blocks for every block) is requested with
	// LevelStore.
	Level int
	// WindowBits sets the LZ77 window size, 8..15. 0 selects 15.
	WindowBits uint
	// Strategy biases the match finder independently of Level. The zero
	// value, StrategyDefault, is the ordinary level-driven policy.
	Strategy Strategy
}

// Strategy selects a match-finding policy independent of Level, mirroring
// zlib's deflateInit2 strategy parameter (the same knob the RFC 1951
// encoder's own doc comment gestures at with "dynamic Huffman output").
type Strategy int

const (
	// StrategyDefault uses the ordinary hash-chain match finder and picks
	// fixed vs. dynamic Huffman by Level, as described on chainDepthForLevel.
	StrategyDefault Strategy = iota
	// StrategyFiltered behaves like StrategyDefault: this encoder's match
	// finder already favors short, cheap matches over exhaustively chasing
	// the single longest one once a chain gets deep, which is the same bias
	// Z_FILTERED asks for on data produced by a predictor/filter.
	StrategyFiltered
	// StrategyHuffmanOnly disables LZ77 matching entirely: every input byte
	// is emitted as a literal, Huffman-coded (fixed or dynamic, by Level).
	StrategyHuffmanOnly
	// StrategyRLE restricts matches to distance 1 (runs of a single
	// repeated byte), the cheap run-length-only mode zlib calls Z_RLE.
	StrategyRLE
	// StrategyFixed forces fixed Huffman coding for every block regardless
	// of Level, skipping the dynamic-header cost entirely.
	StrategyFixed
)

// LevelStore requests that the encoder emit only RFC 1951 stored blocks,
// i.e. no compression at all.
const LevelStore = -1

const (
	// DefaultMaxOutputBytes bounds decompressed output absent an explicit
	// limits.max_output_bytes override: 4 GiB, generous for a streaming
	// buffer-to-buffer codec while still catching runaway decompression
	// bombs long before they exhaust a typical process's memory.
	DefaultMaxOutputBytes = 4 << 30
	// DefaultMaxWindowBytes bounds the window allocation; the largest
	// legal DEFLATE window (32KiB) is far below this, so in practice this
	// only matters if a caller requests a pathological window_bits value.
	DefaultMaxWindowBytes = 1 << 20
)

func (o DecoderOptions) windowBits() uint {
	if o.WindowBits == 0 {
		return windowBitsDefault
	}
	return o.WindowBits
}

func (o DecoderOptions) maxOutputBytes() uint64 {
	if o.MaxOutputBytes == 0 {
		return DefaultMaxOutputBytes
	}
	return o.MaxOutputBytes
}

func (o DecoderOptions) maxWindowBytes() uint64 {
	if o.MaxWindowBytes == 0 {
		return DefaultMaxWindowBytes
	}
	return o.MaxWindowBytes
}

func (o EncoderOptions) windowBits() uint {
	if o.WindowBits == 0 {
		return windowBitsDefault
	}
	return o.WindowBits
}

func (o EncoderOptions) level() int {
	if o.Level == 0 {
		return 6
	}
	return o.Level
}
