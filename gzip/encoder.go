// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package gzip

import (
	"errors"
	"hash/crc32"

	"github.com/cosnicolaou/gcomp/deflate"
	"github.com/cosnicolaou/gcomp/internal/codecerr"
)

type encoderStage uint8

const (
	stageEncHeader encoderStage = iota
	stageEncBody
	stageEncTrailer
	stageEncDone
)

// Encoder is a streaming RFC 1952 gzip encoder: an RFC 1951 deflate.Encoder
// wrapped with a header emitted up front and a CRC32 + ISIZE trailer
// emitted once Finish drains the underlying deflate stream.
type Encoder struct {
	opts  EncoderOptions
	inner *deflate.Encoder

	headerBuf []byte
	headerPos int

	crc   uint32
	isize uint32

	trailerBuf [trailerSize]byte
	trailerPos int

	stage encoderStage
}

// NewEncoder constructs an Encoder for the given options, building its
// header eagerly (everything it needs is known up front).
func NewEncoder(opts EncoderOptions) (*Encoder, error) {
	inner, err := deflate.NewEncoder(opts.Deflate)
	if err != nil {
		return nil, err
	}

	xfl := opts.XFL
	if xfl == 0 {
		level := opts.Deflate.Level
		if level == 0 {
			level = 6
		}
		xfl = computeXFL(level)
	}

	info := &headerInfo{
		mtime:   opts.MTime,
		xfl:     xfl,
		os:      opts.os(),
		name:    opts.Name,
		comment: opts.Comment,
		extra:   opts.Extra,
	}
	if len(info.extra) > 0 {
		info.flg |= flgFExtra
	}
	if info.name != "" {
		info.flg |= flgFName
	}
	if info.comment != "" {
		info.flg |= flgFComment
	}
	if opts.HeaderCRC {
		info.flg |= flgFHCRC
	}

	hdr, err := writeHeader(info)
	if err != nil {
		return nil, err
	}

	return &Encoder{
		opts:      opts,
		inner:     inner,
		headerBuf: hdr,
		stage:     stageEncHeader,
	}, nil
}

// Reset returns the Encoder to its initial state, ready to encode a new,
// unrelated stream with the same header.
func (e *Encoder) Reset() {
	e.inner.Reset()
	e.headerPos = 0
	e.crc = 0
	e.isize = 0
	e.trailerPos = 0
	e.stage = stageEncHeader
}

// Update feeds input into the underlying deflate encoder and drains
// compressed output (preceded by the header, on the very first call). Like
// deflate.Encoder.Update, it always accepts all of input.
func (e *Encoder) Update(input, output []byte) (consumed, produced int, err error) {
	outPos := 0
	if e.stage == stageEncHeader {
		outPos += e.drainHeader(output)
	}

	c, p, err := e.inner.Update(input, output[outPos:])
	e.crc = crc32.Update(e.crc, crc32.IEEETable, input[:c])
	e.isize += uint32(c)
	outPos += p
	return c, outPos, err
}

// Finish flushes the deflate stream and appends the CRC32 + ISIZE trailer.
// As with deflate.Encoder.Finish, a short output buffer yields
// ErrShortBuffer and must be retried with more room; the encoder's state is
// unaffected.
func (e *Encoder) Finish(output []byte) (produced int, err error) {
	outPos := 0
	if e.stage == stageEncHeader {
		outPos += e.drainHeader(output)
		if e.stage == stageEncHeader {
			return outPos, codecerr.ErrShortBuffer
		}
	}

	if e.stage == stageEncBody {
		p, ferr := e.inner.Finish(output[outPos:])
		outPos += p
		if errors.Is(ferr, codecerr.ErrShortBuffer) {
			return outPos, ferr
		}
		if ferr != nil {
			return outPos, ferr
		}
		e.trailerBuf = writeTrailer(e.crc, e.isize)
		e.trailerPos = 0
		e.stage = stageEncTrailer
	}

	if e.stage == stageEncTrailer {
		n := copy(output[outPos:], e.trailerBuf[e.trailerPos:])
		e.trailerPos += n
		outPos += n
		if e.trailerPos < trailerSize {
			return outPos, codecerr.ErrShortBuffer
		}
		e.stage = stageEncDone
	}

	return outPos, nil
}

// drainHeader copies as much of the pending header as fits in output,
// advancing to the body stage once it is fully written.
func (e *Encoder) drainHeader(output []byte) int {
	n := copy(output, e.headerBuf[e.headerPos:])
	e.headerPos += n
	if e.headerPos >= len(e.headerBuf) {
		e.stage = stageEncBody
	}
	return n
}
