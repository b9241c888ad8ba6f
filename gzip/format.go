// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package gzip implements a streaming RFC 1952 gzip encoder and decoder,
// wrapping the deflate package's RFC 1951 codec with a header, a CRC32 +
// ISIZE trailer, and (on decode) optional support for concatenated
// members. Like deflate, it operates entirely over caller-owned buffers.
package gzip

import (
	"fmt"
	"hash/crc32"

	"github.com/cosnicolaou/gcomp/internal/codecerr"
)

// RFC 1952 §2.3.1 constants.
const (
	id1         = 0x1F
	id2         = 0x8B
	cmDeflate   = 8
	headerMinSize = 10
	trailerSize   = 8
	osUnknown     = 255
	maxHeaderSize = 1024 // generous bound for FEXTRA/FNAME/FCOMMENT/FHCRC combined

	flgFText     = 0x01
	flgFHCRC     = 0x02
	flgFExtra    = 0x04
	flgFName     = 0x08
	flgFComment  = 0x10
	flgReserved  = 0xE0
)

// Default header-field safety limits (decoder-side), matching the reference
// implementation's documented defaults.
const (
	DefaultMaxNameBytes    = 1 << 20 // 1 MiB
	DefaultMaxCommentBytes = 1 << 20 // 1 MiB
	DefaultMaxExtraBytes   = 64 << 10
)

// headerInfo holds the parsed (decoder) or to-be-written (encoder) gzip
// header fields.
type headerInfo struct {
	mtime   uint32
	xfl     byte
	os      byte
	flg     byte
	extra   []byte
	name    string
	comment string
	headerCRC uint16
}

// computeXFL derives RFC 1952's XFL byte from a deflate compression level
// when the caller did not set one explicitly: 4 (fastest) for levels 2 and
// below, 2 (strongest) for levels 6 and above, 0 otherwise.
func computeXFL(level int) byte {
	switch {
	case level <= 2:
		return 4
	case level >= 6:
		return 2
	default:
		return 0
	}
}

// writeHeader serializes info as an RFC 1952 header, returning the bytes
// written. FNAME/FCOMMENT are encoded Latin-1/NUL-terminated per the
// format; this implementation only supports the ASCII subset of Latin-1.
func writeHeader(info *headerInfo) ([]byte, error) {
	size := headerMinSize
	if info.flg&flgFExtra != 0 {
		size += 2 + len(info.extra)
	}
	if info.flg&flgFName != 0 {
		size += len(info.name) + 1
	}
	if info.flg&flgFComment != 0 {
		size += len(info.comment) + 1
	}
	if info.flg&flgFHCRC != 0 {
		size += 2
	}
	if size > maxHeaderSize {
		return nil, fmt.Errorf("%w: gzip header fields too large", codecerr.ErrInvalidArg)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, id1, id2, cmDeflate, info.flg)
	buf = append(buf, byte(info.mtime), byte(info.mtime>>8), byte(info.mtime>>16), byte(info.mtime>>24))
	buf = append(buf, info.xfl, info.os)

	if info.flg&flgFExtra != 0 {
		n := uint16(len(info.extra))
		buf = append(buf, byte(n), byte(n>>8))
		buf = append(buf, info.extra...)
	}
	if info.flg&flgFName != 0 {
		buf = append(buf, []byte(info.name)...)
		buf = append(buf, 0)
	}
	if info.flg&flgFComment != 0 {
		buf = append(buf, []byte(info.comment)...)
		buf = append(buf, 0)
	}
	if info.flg&flgFHCRC != 0 {
		crc := crc32.ChecksumIEEE(buf)
		crc16 := uint16(crc & 0xFFFF)
		buf = append(buf, byte(crc16), byte(crc16>>8))
	}

	return buf, nil
}

// writeTrailer serializes the RFC 1952 trailer: CRC32 then ISIZE, both
// little-endian.
func writeTrailer(crc, isize uint32) [trailerSize]byte {
	var b [trailerSize]byte
	b[0], b[1], b[2], b[3] = byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24)
	b[4], b[5], b[6], b[7] = byte(isize), byte(isize>>8), byte(isize>>16), byte(isize>>24)
	return b
}

func readLE16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func readLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
