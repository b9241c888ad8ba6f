// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/cosnicolaou/gcomp"
)

const streamBufSize = 64 * 1024

// streamEncode drives enc over r, writing compressed output to w. onRead is
// called with the number of bytes read from r, for progress reporting.
func streamEncode(enc gcomp.Encoder, r io.Reader, w io.Writer, onRead func(int)) error {
	in := make([]byte, streamBufSize)
	out := make([]byte, streamBufSize)
	for {
		n, rerr := r.Read(in)
		if n > 0 {
			onRead(n)
			if err := drive(enc.Update, in[:n], out, w); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	return drainFinish(enc.Finish, out, w)
}

// streamDecode drives dec over r, writing decompressed output to w.
func streamDecode(dec gcomp.Decoder, r io.Reader, w io.Writer, onRead func(int)) error {
	in := make([]byte, streamBufSize)
	out := make([]byte, streamBufSize)
	for {
		n, rerr := r.Read(in)
		if n > 0 {
			onRead(n)
			if err := drive(dec.Update, in[:n], out, w); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	return drainFinish(dec.Finish, out, w)
}

// drive feeds chunk through update (an Encoder's or Decoder's Update) until
// every byte of it has been consumed, writing out whatever is produced
// along the way. A call that consumes and produces nothing while bytes of
// chunk remain (for example bytes after the end of the compressed stream)
// is reported as an error rather than retried.
func drive(update func(input, output []byte) (int, int, error), chunk, out []byte, w io.Writer) error {
	for len(chunk) > 0 {
		consumed, produced, err := update(chunk, out)
		if produced > 0 {
			if _, werr := w.Write(out[:produced]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
		if consumed == 0 && produced == 0 {
			return fmt.Errorf("gcomp: codec made no progress on %d pending bytes", len(chunk))
		}
		chunk = chunk[consumed:]
	}
	return nil
}

// drainFinish calls finish repeatedly, writing whatever it produces, until
// it reports success or a non-retryable error. ErrShortBuffer asks for
// another call with the same (now-empty) output buffer to make room.
func drainFinish(finish func(output []byte) (int, error), out []byte, w io.Writer) error {
	for {
		produced, err := finish(out)
		if produced > 0 {
			if _, werr := w.Write(out[:produced]); werr != nil {
				return werr
			}
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, gcomp.ErrShortBuffer) {
			continue
		}
		return err
	}
}
