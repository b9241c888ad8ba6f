// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package gzip

import "github.com/cosnicolaou/gcomp/deflate"

// EncoderOptions configures a gzip Encoder. Deflate carries the pass-through
// compression settings (level, window size) for the inner deflate encoder.
type EncoderOptions struct {
	// MTime is the modification time, as a Unix timestamp. 0 (the zero
	// value) means "not set", matching RFC 1952's convention.
	MTime uint32
	// OS is the operating system code, 1-255. 0 selects osUnknown (255),
	// so OS code 0 cannot be written through this field.
	OS byte
	// Name is the optional original filename (FNAME).
	Name string
	// Comment is the optional file comment (FCOMMENT).
	Comment string
	// Extra is optional FEXTRA field data.
	Extra []byte
	// HeaderCRC requests an FHCRC field (CRC16 of the header itself).
	HeaderCRC bool
	// XFL sets RFC 1952's extra-flags byte explicitly. 0 requests
	// auto-computation from Deflate.Level.
	XFL byte

	Deflate deflate.EncoderOptions
}

func (o EncoderOptions) os() byte {
	if o.OS == 0 {
		return osUnknown
	}
	return o.OS
}

// DecoderOptions configures a gzip Decoder.
type DecoderOptions struct {
	// Concat enables support for concatenated gzip members (RFC 1952
	// permits multiple members joined back to back); disabled by default,
	// matching the reference implementation's default.
	Concat bool
	// MaxNameBytes/MaxCommentBytes/MaxExtraBytes bound the respective
	// optional header fields as a decoder safety limit. 0 selects the
	// package defaults.
	MaxNameBytes    uint64
	MaxCommentBytes uint64
	MaxExtraBytes   uint64
	// MaxOutputBytes caps total decompressed output across the life of
	// the decoder (across all concatenated members). 0 selects
	// deflate.DefaultMaxOutputBytes.
	MaxOutputBytes uint64
	// MaxExpansionRatio caps output_bytes/input_bytes as a decompression
	// bomb guard. 0 disables the check.
	MaxExpansionRatio uint64

	Deflate deflate.DecoderOptions
}

func (o DecoderOptions) maxNameBytes() uint64 {
	if o.MaxNameBytes == 0 {
		return DefaultMaxNameBytes
	}
	return o.MaxNameBytes
}

func (o DecoderOptions) maxCommentBytes() uint64 {
	if o.MaxCommentBytes == 0 {
		return DefaultMaxCommentBytes
	}
	return o.MaxCommentBytes
}

func (o DecoderOptions) maxExtraBytes() uint64 {
	if o.MaxExtraBytes == 0 {
		return DefaultMaxExtraBytes
	}
	return o.MaxExtraBytes
}

func (o DecoderOptions) maxOutputBytes() uint64 {
	if o.MaxOutputBytes == 0 {
		return deflate.DefaultMaxOutputBytes
	}
	return o.MaxOutputBytes
}
