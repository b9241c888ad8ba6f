// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package gcomp

import "github.com/cosnicolaou/gcomp/internal/codecerr"

// These re-export the sentinel error kinds shared by every method package
// (deflate, gzip) so callers never need to import internal/codecerr
// directly. Wrap one of these with fmt.Errorf("%w: detail") at the call
// site and recover it with errors.Is. Every kind is terminal for the
// Encoder/Decoder value that returned it except ErrShortBuffer, which
// simply asks Finish to be retried with more output room.
var (
	ErrInvalidArg  = codecerr.ErrInvalidArg
	ErrUnsupported = codecerr.ErrUnsupported
	ErrCorrupt     = codecerr.ErrCorrupt
	ErrLimit       = codecerr.ErrLimit
	ErrMemory      = codecerr.ErrMemory
	ErrInternal    = codecerr.ErrInternal
	ErrShortBuffer = codecerr.ErrShortBuffer
)
