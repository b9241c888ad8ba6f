// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package gcomp

import (
	"fmt"

	"github.com/cosnicolaou/gcomp/deflate"
	"github.com/cosnicolaou/gcomp/gzip"
)

// Option keys recognized by the "deflate" and "gzip" methods, per the
// external interface's option table.
const (
	optDeflateLevel       = "deflate.level"
	optDeflateWindowBits  = "deflate.window_bits"
	optDeflateStrategy    = "deflate.strategy"
	optLimitsMaxOutput    = "limits.max_output_bytes"
	optLimitsMaxMemory    = "limits.max_memory_bytes"
	optLimitsMaxWindow    = "limits.max_window_bytes"
	optLimitsMaxExpansion = "limits.max_expansion_ratio"

	optGzipMTime           = "gzip.mtime"
	optGzipOS              = "gzip.os"
	optGzipXFL             = "gzip.xfl"
	optGzipName            = "gzip.name"
	optGzipComment         = "gzip.comment"
	optGzipExtra           = "gzip.extra"
	optGzipHeaderCRC       = "gzip.header_crc"
	optGzipConcat          = "gzip.concat"
	optGzipMaxNameBytes    = "gzip.max_name_bytes"
	optGzipMaxCommentBytes = "gzip.max_comment_bytes"
	optGzipMaxExtraBytes   = "gzip.max_extra_bytes"
)

var deflateSchema = OptionSchema{Specs: []OptionSpec{
	{Key: optDeflateLevel, Type: OptInt64},
	{Key: optDeflateWindowBits, Type: OptUint64},
	{Key: optDeflateStrategy, Type: OptString},
	{Key: optLimitsMaxOutput, Type: OptUint64},
	{Key: optLimitsMaxMemory, Type: OptUint64},
	{Key: optLimitsMaxWindow, Type: OptUint64},
	{Key: optLimitsMaxExpansion, Type: OptUint64},
}}

var gzipSchema = OptionSchema{Specs: append([]OptionSpec{
	{Key: optGzipMTime, Type: OptUint64},
	{Key: optGzipOS, Type: OptUint64},
	{Key: optGzipXFL, Type: OptUint64},
	{Key: optGzipName, Type: OptString},
	{Key: optGzipComment, Type: OptString},
	{Key: optGzipExtra, Type: OptBytes},
	{Key: optGzipHeaderCRC, Type: OptBool},
	{Key: optGzipConcat, Type: OptBool},
	{Key: optGzipMaxNameBytes, Type: OptUint64},
	{Key: optGzipMaxCommentBytes, Type: OptUint64},
	{Key: optGzipMaxExtraBytes, Type: OptUint64},
}, deflateSchema.Specs...)}

// parseStrategy maps spec.md's deflate.strategy string values onto
// deflate.Strategy.
func parseStrategy(s string) (deflate.Strategy, error) {
	switch s {
	case "", "default":
		return deflate.StrategyDefault, nil
	case "filtered":
		return deflate.StrategyFiltered, nil
	case "huffman_only":
		return deflate.StrategyHuffmanOnly, nil
	case "rle":
		return deflate.StrategyRLE, nil
	case "fixed":
		return deflate.StrategyFixed, nil
	default:
		return 0, fmt.Errorf("%w: unknown deflate.strategy %q", ErrInvalidArg, s)
	}
}

// deflateEncoderOptions translates opts into deflate.EncoderOptions. A
// deflate.level of literal 0 means "stored-only" in the external option
// table (spec.md), which collides with deflate.EncoderOptions.Level's own
// zero value meaning "use the default level 6"; this is the one place that
// mismatch is resolved, by mapping an explicitly-set 0 onto
// deflate.LevelStore and leaving an unset level to deflate's own default.
func deflateEncoderOptions(opts *Options) (deflate.EncoderOptions, error) {
	strategy, err := parseStrategy(opts.String(optDeflateStrategy, "default"))
	if err != nil {
		return deflate.EncoderOptions{}, err
	}

	level := opts.Int64(optDeflateLevel, 6)
	resolved := int(level)
	if opts.Has(optDeflateLevel) && level == 0 {
		resolved = deflate.LevelStore
	}

	return deflate.EncoderOptions{
		Level:      resolved,
		WindowBits: uint(opts.Uint64(optDeflateWindowBits, 15)),
		Strategy:   strategy,
	}, nil
}

func deflateDecoderOptions(opts *Options) deflate.DecoderOptions {
	return deflate.DecoderOptions{
		WindowBits:     uint(opts.Uint64(optDeflateWindowBits, 15)),
		MaxOutputBytes: opts.Uint64(optLimitsMaxOutput, 0),
		MaxWindowBytes: opts.Uint64(optLimitsMaxWindow, 0),
	}
}

// deflateEncoder adapts *deflate.Encoder's Reset() (no return value) to the
// Encoder interface's Reset() error.
type deflateEncoder struct{ *deflate.Encoder }

func (e deflateEncoder) Reset() error { e.Encoder.Reset(); return nil }

type deflateDecoder struct{ *deflate.Decoder }

func (d deflateDecoder) Reset() error { d.Decoder.Reset(); return nil }

type deflateMethod struct{}

func (deflateMethod) Name() string { return "deflate" }

func (deflateMethod) Schema() OptionSchema { return deflateSchema }

func (deflateMethod) NewEncoder(opts *Options) (Encoder, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := deflateSchema.Validate(opts); err != nil {
		return nil, err
	}
	eopts, err := deflateEncoderOptions(opts)
	if err != nil {
		return nil, err
	}
	enc, err := deflate.NewEncoder(eopts)
	if err != nil {
		return nil, err
	}
	return deflateEncoder{enc}, nil
}

func (deflateMethod) NewDecoder(opts *Options) (Decoder, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := deflateSchema.Validate(opts); err != nil {
		return nil, err
	}
	dec, err := deflate.NewDecoder(deflateDecoderOptions(opts))
	if err != nil {
		return nil, err
	}
	return deflateDecoder{dec}, nil
}

// gzipEncoderOptions translates opts into gzip.EncoderOptions, reusing
// deflateEncoderOptions for the embedded Deflate settings.
func gzipEncoderOptions(opts *Options) (gzip.EncoderOptions, error) {
	deflateOpts, err := deflateEncoderOptions(opts)
	if err != nil {
		return gzip.EncoderOptions{}, err
	}
	return gzip.EncoderOptions{
		MTime:     uint32(opts.Uint64(optGzipMTime, 0)),
		OS:        byte(opts.Uint64(optGzipOS, 0)),
		Name:      opts.String(optGzipName, ""),
		Comment:   opts.String(optGzipComment, ""),
		Extra:     opts.Bytes(optGzipExtra, nil),
		HeaderCRC: opts.Bool(optGzipHeaderCRC, false),
		XFL:       byte(opts.Uint64(optGzipXFL, 0)),
		Deflate:   deflateOpts,
	}, nil
}

func gzipDecoderOptions(opts *Options) gzip.DecoderOptions {
	return gzip.DecoderOptions{
		Concat:            opts.Bool(optGzipConcat, false),
		MaxNameBytes:      opts.Uint64(optGzipMaxNameBytes, 0),
		MaxCommentBytes:   opts.Uint64(optGzipMaxCommentBytes, 0),
		MaxExtraBytes:     opts.Uint64(optGzipMaxExtraBytes, 0),
		MaxOutputBytes:    opts.Uint64(optLimitsMaxOutput, 0),
		MaxExpansionRatio: opts.Uint64(optLimitsMaxExpansion, 1000),
		Deflate:           deflateDecoderOptions(opts),
	}
}

type gzipEncoder struct{ *gzip.Encoder }

func (e gzipEncoder) Reset() error { e.Encoder.Reset(); return nil }

type gzipDecoder struct{ *gzip.Decoder }

func (d gzipDecoder) Reset() error { d.Decoder.Reset(); return nil }

type gzipMethod struct{}

func (gzipMethod) Name() string { return "gzip" }

func (gzipMethod) Schema() OptionSchema { return gzipSchema }

func (gzipMethod) NewEncoder(opts *Options) (Encoder, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := gzipSchema.Validate(opts); err != nil {
		return nil, err
	}
	eopts, err := gzipEncoderOptions(opts)
	if err != nil {
		return nil, err
	}
	enc, err := gzip.NewEncoder(eopts)
	if err != nil {
		return nil, err
	}
	return gzipEncoder{enc}, nil
}

func (gzipMethod) NewDecoder(opts *Options) (Decoder, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := gzipSchema.Validate(opts); err != nil {
		return nil, err
	}
	dec, err := gzip.NewDecoder(gzipDecoderOptions(opts))
	if err != nil {
		return nil, err
	}
	return gzipDecoder{dec}, nil
}
