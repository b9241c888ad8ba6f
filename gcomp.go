// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package gcomp provides a pluggable registry over streaming compression
// methods (deflate, gzip), each operating strictly on caller-owned []byte
// buffers. A Method is looked up by name from a Registry, constructs
// Encoder/Decoder values from an Options set, and those values are driven
// by repeated Update/Finish calls until the stream is exhausted.
package gcomp

// Encoder is the method-agnostic shape every registered method's encoder
// satisfies.
type Encoder interface {
	// Update compresses as much of input as it can, writing compressed
	// bytes into output, and reports how much of each it used.
	Update(input, output []byte) (consumed, produced int, err error)
	// Finish flushes any buffered input and emits a final, complete
	// stream tail. A short output buffer yields ErrShortBuffer; Finish
	// must be retried with more room until it returns a nil error.
	Finish(output []byte) (produced int, err error)
	// Reset returns the Encoder to its initial state for a new, unrelated
	// stream.
	Reset() error
}

// Decoder is the method-agnostic shape every registered method's decoder
// satisfies.
type Decoder interface {
	Update(input, output []byte) (consumed, produced int, err error)
	Finish(output []byte) (produced int, err error)
	Reset() error
}

// Method is a registered compression method (e.g. "deflate", "gzip"): a
// name, an options schema, and factories for its Encoder/Decoder.
type Method interface {
	Name() string
	Schema() OptionSchema
	NewEncoder(opts *Options) (Encoder, error)
	NewDecoder(opts *Options) (Decoder, error)
}
