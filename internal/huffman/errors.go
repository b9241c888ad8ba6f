// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package huffman

import "errors"

// StructuralError indicates a code-length table or bit pattern that cannot
// be used: an invalid max_bits, a length that exceeds max_bits, too many
// symbols, or a bit pattern Decode cannot resolve. Over-subscription (more
// codes at length L than 2^L distinct values) is reported separately as
// ErrOverSubscribed. An incomplete code (one whose
// lengths leave some codes unused) is not an error: RFC 1951 explicitly
// permits it, e.g. for a block that emits no distance codes at all.
type StructuralError string

func (e StructuralError) Error() string { return "huffman: " + string(e) }

// ErrOverSubscribed is returned by Validate/BuildDecodeTable when the
// supplied code lengths assign more codes at some bit length than fit.
var ErrOverSubscribed = errors.New("huffman: over-subscribed code length table")
