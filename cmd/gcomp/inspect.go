// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/cosnicolaou/gcomp/gzip"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [file...]",
		Short: "print per-member gzip stats (name, CRC32, sizes) without writing output",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if err := inspectFile(cmd.Context(), name); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			}
			return nil
		},
	}
	cmd.Args = cobra.MinimumNArgs(1)
	return cmd
}

// inspectFile decodes name purely to drive gzip.Decoder.Stats(), discarding
// the decompressed bytes, and prints a per-member table (member number,
// name, CRC32, compressed and uncompressed sizes).
func inspectFile(ctx context.Context, name string) error {
	rd, _, readerCleanup, err := openFileOrURL(ctx, name)
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	dec, err := gzip.NewDecoder(gzip.DecoderOptions{Concat: true})
	if err != nil {
		return err
	}

	in := make([]byte, streamBufSize)
	out := make([]byte, streamBufSize)
	for {
		n, rerr := rd.Read(in)
		if n > 0 {
			if err := drive(dec.Update, in[:n], out, ioutil.Discard); err != nil {
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
	if err := drainFinish(dec.Finish, out, ioutil.Discard); err != nil {
		return err
	}

	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("Member, Name, CRC32, Compressed, Uncompressed\n")
	for i, m := range dec.Stats() {
		fmt.Printf("% 6d  %-20s  %08x  % 12d  % 12d\n",
			i+1, m.Name, m.CRC32, m.CompressedBytes, m.UncompressedBytes)
	}
	return nil
}
