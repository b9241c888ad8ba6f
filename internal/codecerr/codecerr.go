// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package codecerr defines the sentinel error kinds shared by every codec
// method (deflate, gzip) and re-exported by the root gcomp package. It
// lives apart from the root package purely to avoid an import cycle: the
// root package registers deflate and gzip, so the method packages cannot
// themselves import it.
package codecerr

import "errors"

// These mirror the taxonomy of a buffer-to-buffer streaming codec: most
// kinds are terminal for the codec instance that returned them, except
// ErrShortBuffer, which simply asks the caller to retry Finish with more
// output room.
var (
	ErrInvalidArg  = errors.New("gcomp: invalid argument")
	ErrUnsupported = errors.New("gcomp: unsupported")
	ErrCorrupt     = errors.New("gcomp: corrupt stream")
	ErrLimit       = errors.New("gcomp: limit exceeded")
	ErrMemory      = errors.New("gcomp: allocation failed")
	ErrInternal    = errors.New("gcomp: internal invariant violation")
	ErrShortBuffer = errors.New("gcomp: output buffer too small to finish")
)
