// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package gzip

import (
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/cosnicolaou/gcomp/deflate"
	"github.com/cosnicolaou/gcomp/internal/codecerr"
)

type decoderStage uint8

const (
	stageHeader decoderStage = iota
	stageBody
	stageTrailer
	stagePeek
	stageDone
)

// headerSubStage walks the fixed-then-optional-fields shape of an RFC 1952
// header one piece at a time, so Update can suspend between any two bytes
// of input and resume without re-parsing anything already consumed.
type headerSubStage uint8

const (
	hdrFixed headerSubStage = iota
	hdrExtraLen
	hdrExtraData
	hdrName
	hdrComment
	hdrCRC
	hdrDone
)

// Decoder is a streaming RFC 1952 gzip decoder. The zero value is not
// usable; construct one with NewDecoder.
type Decoder struct {
	opts  DecoderOptions
	inner *deflate.Decoder

	stage  decoderStage
	hdrSub headerSubStage

	hdrFixedBuf [headerMinSize]byte
	hdrFixedN   int
	hdrAll      []byte // every header byte seen this member, for FHCRC validation

	flg      byte
	mtime    uint32
	xfl      byte
	os       byte
	extraLen uint16
	extra    []byte
	name     []byte
	comment  []byte
	hcrcBuf  [2]byte
	hcrcN    int

	crc   uint32
	isize uint32

	trailerBuf     [trailerSize]byte
	trailerN       int
	reclaimed      []byte
	reclaimedPos   int

	totalConsumed uint64
	totalOutput   uint64
	members       int

	memberStartConsumed uint64
	memberStartOutput   uint64
	stats               []MemberStats
}

// MemberStats summarizes one completed gzip member, in the order members
// were decoded.
type MemberStats struct {
	Name              string
	Comment           string
	MTime             uint32
	CRC32             uint32
	CompressedBytes   uint64
	UncompressedBytes uint64
}

// Stats returns per-member statistics for every member fully decoded so
// far. The slice is appended to as Update validates each member's trailer,
// so it grows even before the decoder as a whole reaches Done.
func (d *Decoder) Stats() []MemberStats {
	return d.stats
}

// NewDecoder constructs a Decoder ready to process the start of a gzip
// stream (or the first of a series of concatenated members, if
// opts.Concat is set).
func NewDecoder(opts DecoderOptions) (*Decoder, error) {
	inner, err := deflate.NewDecoder(opts.Deflate)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		opts:  opts,
		inner: inner,
		stage: stageHeader,
	}, nil
}

// Reset returns the Decoder to its initial state, ready to decode a new,
// unrelated stream.
func (d *Decoder) Reset() {
	d.inner.Reset()
	*d = Decoder{opts: d.opts, inner: d.inner, stage: stageHeader}
}

// Name returns the current member's optional original filename, or "" if
// none was present.
func (d *Decoder) Name() string { return string(d.name) }

// Comment returns the current member's optional comment, or "" if none was
// present.
func (d *Decoder) Comment() string { return string(d.comment) }

// MTime returns the current member's modification time.
func (d *Decoder) MTime() uint32 { return d.mtime }

// Update decodes as much of input as it can, producing decompressed bytes
// into output and reporting how much of each it used. It transparently
// walks the header, body, and trailer of one member, and — when
// opts.Concat is set — any number of members concatenated back to back.
func (d *Decoder) Update(input, output []byte) (consumed, produced int, err error) {
	inPos, outPos := 0, 0
	for {
		if d.stage == stageDone {
			return inPos, outPos, nil
		}

		prevIn, prevOut := inPos, outPos
		prevStage := d.stage
		var stepErr error
		switch d.stage {
		case stageHeader:
			stepErr = d.updateHeader(input, &inPos)
		case stageBody:
			stepErr = d.updateBody(input, &inPos, output, &outPos)
		case stageTrailer:
			stepErr = d.updateTrailer(input, &inPos)
		case stagePeek:
			stepErr = d.updatePeek(input, inPos)
		default:
			stepErr = fmt.Errorf("%w: unknown gzip decoder stage", codecerr.ErrInternal)
		}

		d.totalConsumed += uint64(inPos - prevIn)
		d.totalOutput += uint64(outPos - prevOut)

		if stepErr == nil && prevStage == stageTrailer && d.stage != stageTrailer {
			d.recordMemberStats()
		}

		if stepErr == nil {
			if d.totalOutput > d.opts.maxOutputBytes() {
				stepErr = fmt.Errorf("%w: decompressed output too large", codecerr.ErrLimit)
			} else if ratio := d.opts.MaxExpansionRatio; ratio > 0 && d.totalConsumed > 0 &&
				d.totalOutput > d.totalConsumed*ratio {
				stepErr = fmt.Errorf("%w: expansion ratio exceeded", codecerr.ErrLimit)
			}
		}
		if stepErr != nil {
			return inPos, outPos, stepErr
		}

		if inPos == prevIn && outPos == prevOut {
			return inPos, outPos, nil
		}
	}
}

func (d *Decoder) nextByte(input []byte, inPos *int) (byte, bool) {
	if *inPos >= len(input) {
		return 0, false
	}
	b := input[*inPos]
	*inPos++
	d.hdrAll = append(d.hdrAll, b)
	return b, true
}

func (d *Decoder) updateHeader(input []byte, inPos *int) error {
	for {
		switch d.hdrSub {
		case hdrFixed:
			for d.hdrFixedN < headerMinSize {
				b, ok := d.nextByte(input, inPos)
				if !ok {
					return nil
				}
				d.hdrFixedBuf[d.hdrFixedN] = b
				d.hdrFixedN++
			}
			if err := d.parseFixedHeader(); err != nil {
				return err
			}
			d.hdrSub = d.nextSubStageAfter(hdrFixed)
			continue

		case hdrExtraLen:
			for len(d.hdrAll) < headerMinSize+2 {
				if _, ok := d.nextByte(input, inPos); !ok {
					return nil
				}
			}
			d.extraLen = readLE16(d.hdrAll[headerMinSize : headerMinSize+2])
			if uint64(d.extraLen) > d.opts.maxExtraBytes() {
				return fmt.Errorf("%w: gzip FEXTRA field too large", codecerr.ErrLimit)
			}
			d.extra = make([]byte, 0, d.extraLen)
			d.hdrSub = hdrExtraData
			continue

		case hdrExtraData:
			for len(d.extra) < int(d.extraLen) {
				b, ok := d.nextByte(input, inPos)
				if !ok {
					return nil
				}
				d.extra = append(d.extra, b)
			}
			d.hdrSub = d.nextSubStageAfter(hdrExtraData)
			continue

		case hdrName:
			for {
				b, ok := d.nextByte(input, inPos)
				if !ok {
					return nil
				}
				if b == 0 {
					break
				}
				if uint64(len(d.name)) >= d.opts.maxNameBytes() {
					return fmt.Errorf("%w: gzip FNAME field too large", codecerr.ErrLimit)
				}
				d.name = append(d.name, b)
			}
			d.hdrSub = d.nextSubStageAfter(hdrName)
			continue

		case hdrComment:
			for {
				b, ok := d.nextByte(input, inPos)
				if !ok {
					return nil
				}
				if b == 0 {
					break
				}
				if uint64(len(d.comment)) >= d.opts.maxCommentBytes() {
					return fmt.Errorf("%w: gzip FCOMMENT field too large", codecerr.ErrLimit)
				}
				d.comment = append(d.comment, b)
			}
			d.hdrSub = d.nextSubStageAfter(hdrComment)
			continue

		case hdrCRC:
			for d.hcrcN < 2 {
				b, ok := d.nextByte(input, inPos)
				if !ok {
					return nil
				}
				d.hcrcBuf[d.hcrcN] = b
				d.hcrcN++
			}
			stored := readLE16(d.hcrcBuf[:])
			want := uint16(crc32.ChecksumIEEE(d.hdrAll[:len(d.hdrAll)-2]) & 0xFFFF)
			if stored != want {
				return fmt.Errorf("%w: gzip header CRC mismatch", codecerr.ErrCorrupt)
			}
			d.hdrSub = hdrDone
			continue

		case hdrDone:
			d.stage = stageBody
			return nil
		}
	}
}

func (d *Decoder) parseFixedHeader() error {
	b := d.hdrFixedBuf
	if b[0] != id1 || b[1] != id2 {
		return fmt.Errorf("%w: not a gzip stream", codecerr.ErrCorrupt)
	}
	if b[2] != cmDeflate {
		return fmt.Errorf("%w: unsupported gzip compression method", codecerr.ErrUnsupported)
	}
	d.flg = b[3]
	if d.flg&flgReserved != 0 {
		return fmt.Errorf("%w: reserved gzip header bits set", codecerr.ErrCorrupt)
	}
	d.mtime = readLE32(b[4:8])
	d.xfl = b[8]
	d.os = b[9]
	return nil
}

// nextSubStageAfter picks the next optional field present after the one
// just finished, in RFC 1952 order, or hdrDone once none remain.
func (d *Decoder) nextSubStageAfter(cur headerSubStage) headerSubStage {
	if cur <= hdrFixed && d.flg&flgFExtra != 0 {
		return hdrExtraLen
	}
	if cur <= hdrExtraData && d.flg&flgFName != 0 {
		return hdrName
	}
	if cur <= hdrName && d.flg&flgFComment != 0 {
		return hdrComment
	}
	if cur <= hdrComment && d.flg&flgFHCRC != 0 {
		return hdrCRC
	}
	return hdrDone
}

func (d *Decoder) updateBody(input []byte, inPos *int, output []byte, outPos *int) error {
	consumed, produced, err := d.inner.Update(input[*inPos:], output[*outPos:])
	*inPos += consumed
	d.crc = crc32.Update(d.crc, crc32.IEEETable, output[*outPos:*outPos+produced])
	d.isize += uint32(produced)
	*outPos += produced
	if err != nil {
		return err
	}
	if d.inner.Done() {
		n := d.inner.UnconsumedBytes()
		if n > 0 {
			buf := make([]byte, n)
			d.inner.UnconsumedData(buf)
			d.reclaimed = buf
			d.reclaimedPos = 0
		}
		d.stage = stageTrailer
	}
	return nil
}

func (d *Decoder) updateTrailer(input []byte, inPos *int) error {
	for d.trailerN < trailerSize {
		var b byte
		switch {
		case d.reclaimedPos < len(d.reclaimed):
			b = d.reclaimed[d.reclaimedPos]
			d.reclaimedPos++
		case *inPos < len(input):
			b = input[*inPos]
			*inPos++
		default:
			return nil
		}
		d.trailerBuf[d.trailerN] = b
		d.trailerN++
	}

	crc := readLE32(d.trailerBuf[0:4])
	isize := readLE32(d.trailerBuf[4:8])
	if crc != d.crc {
		return fmt.Errorf("%w: gzip CRC32 mismatch", codecerr.ErrCorrupt)
	}
	if isize != d.isize {
		return fmt.Errorf("%w: gzip ISIZE mismatch", codecerr.ErrCorrupt)
	}
	d.members++

	if !d.opts.Concat {
		d.stage = stageDone
		return nil
	}
	d.stage = stagePeek
	return nil
}

// updatePeek decides, without consuming anything, whether the bytes right
// after a validated trailer start a new gzip member. It only looks at
// fresh input (the small handful of bytes UnconsumedBytes can reclaim from
// the deflate bit accumulator never reaches past the trailer itself, so
// reclaimed is always already drained by this point). If fewer than two
// bytes are available yet, it waits for more rather than guessing.
func (d *Decoder) updatePeek(input []byte, inPos int) error {
	if len(input)-inPos < 2 {
		return nil
	}
	if input[inPos] == id1 && input[inPos+1] == id2 {
		d.resetForNextMember()
		return nil
	}
	d.stage = stageDone
	return nil
}

// recordMemberStats appends a MemberStats entry for the member whose
// trailer was just validated. It must run before resetForNextMember (or
// the final transition to Done) clears the per-member fields it reads.
func (d *Decoder) recordMemberStats() {
	d.stats = append(d.stats, MemberStats{
		Name:              string(d.name),
		Comment:           string(d.comment),
		MTime:             d.mtime,
		CRC32:             d.crc,
		CompressedBytes:   d.totalConsumed - d.memberStartConsumed,
		UncompressedBytes: d.totalOutput - d.memberStartOutput,
	})
	d.memberStartConsumed = d.totalConsumed
	d.memberStartOutput = d.totalOutput
}

// resetForNextMember clears per-member header/body/trailer state in
// preparation for a concatenated member, without disturbing the running
// totalConsumed/totalOutput counters opts.MaxOutputBytes and
// opts.MaxExpansionRatio are checked against over the decoder's whole
// life, not per member.
func (d *Decoder) resetForNextMember() {
	d.inner.Reset()
	d.stage = stageHeader
	d.hdrSub = hdrFixed
	d.hdrFixedN = 0
	d.hdrAll = d.hdrAll[:0]
	d.flg = 0
	d.extraLen = 0
	d.extra = nil
	d.name = nil
	d.comment = nil
	d.hcrcN = 0
	d.crc = 0
	d.isize = 0
	d.trailerN = 0
	d.reclaimed = nil
	d.reclaimedPos = 0
}

// Finish reports whether the stream ended cleanly: either after a
// complete, validated trailer (with Concat unset), or at a member
// boundary with no bytes of a next member yet started (with Concat set).
func (d *Decoder) Finish(output []byte) (produced int, err error) {
	switch d.stage {
	case stageDone:
		return 0, nil
	case stageHeader:
		if d.hdrFixedN == 0 && len(d.hdrAll) == 0 {
			if d.members == 0 {
				return 0, fmt.Errorf("%w: empty gzip input", codecerr.ErrCorrupt)
			}
			d.stage = stageDone
			return 0, nil
		}
		return 0, fmt.Errorf("%w: gzip header truncated", codecerr.ErrCorrupt)
	case stageBody:
		produced, err = d.inner.Finish(output)
		d.crc = crc32.Update(d.crc, crc32.IEEETable, output[:produced])
		d.isize += uint32(produced)
		if errors.Is(err, codecerr.ErrShortBuffer) {
			return produced, err
		}
		if err != nil {
			return produced, err
		}
		return produced, fmt.Errorf("%w: gzip stream truncated before trailer", codecerr.ErrCorrupt)
	case stageTrailer:
		return 0, fmt.Errorf("%w: gzip trailer truncated", codecerr.ErrCorrupt)
	case stagePeek:
		d.stage = stageDone
		return 0, nil
	}
	return 0, fmt.Errorf("%w: unknown gzip decoder stage", codecerr.ErrInternal)
}
