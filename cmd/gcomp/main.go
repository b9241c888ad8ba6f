// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command gcomp compresses and decompresses files using the gcomp codec
// registry (deflate, gzip). Files may be local, on S3 (s3://...) or a URL.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cosnicolaou/gcomp"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/schollz/progressbar/v2"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"
)

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

var (
	methodFlag  string
	outputFlag  string
	levelFlag   int64
	progressBar bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gcomp",
		Short: "compress and decompress files with the gcomp codec registry",
	}

	compressCmd := &cobra.Command{
		Use:   "compress [file...]",
		Short: "compress local, S3 or URL files, or stdin if none given",
		RunE:  runCompress,
	}
	compressCmd.Flags().StringVar(&methodFlag, "method", "gzip", "codec method: gzip or deflate")
	compressCmd.Flags().StringVar(&outputFlag, "output", "", "output file or s3:// path, omit for stdout")
	compressCmd.Flags().Int64Var(&levelFlag, "level", 6, "deflate.level: 0=stored, 1-3=fixed, 4-9=dynamic")
	compressCmd.Flags().BoolVar(&progressBar, "progress", true, "display a progress bar")

	decompressCmd := &cobra.Command{
		Use:   "decompress [file...]",
		Short: "decompress local, S3 or URL files, or stdin if none given",
		RunE:  runDecompress,
	}
	decompressCmd.Flags().StringVar(&methodFlag, "method", "gzip", "codec method: gzip or deflate")
	decompressCmd.Flags().StringVar(&outputFlag, "output", "", "output file or s3:// path, omit for stdout")
	decompressCmd.Flags().BoolVar(&progressBar, "progress", true, "display a progress bar")

	root.AddCommand(compressCmd, decompressCmd, newInspectCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, 0, nil, err
		}
		return resp.Body, resp.ContentLength, func(context.Context) error {
			return resp.Body.Close()
		}, nil
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout, func(context.Context) error { return nil }, nil
	}
	if strings.HasPrefix(name, "s3://") {
		return createS3FileWithRetry(ctx, name)
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

func newProgressBar(wr io.Writer, size int64) *progressbar.ProgressBar {
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetBytes64(size),
		progressbar.OptionSetWriter(wr),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	return bar
}

func progressWriter() (io.Writer, bool) {
	isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
	if !isTTY {
		return os.Stderr, isTTY
	}
	return os.Stdout, isTTY
}

func methodOptions() *gcomp.Options {
	opts := gcomp.NewOptions()
	opts.SetInt64("deflate.level", levelFlag)
	return opts
}

func runCompress(cmd *cobra.Command, args []string) error {
	return process(cmd.Context(), args, true)
}

func runDecompress(cmd *cobra.Command, args []string) error {
	return process(cmd.Context(), args, false)
}

// process drives one method.NewEncoder/NewDecoder over each input (or
// stdin, if args is empty), writing to outputFlag (or stdout).
func process(ctx context.Context, args []string, compress bool) error {
	method, err := gcomp.DefaultRegistry().Find(methodFlag)
	if err != nil {
		return err
	}

	wr, writerCleanup, err := createFile(ctx, outputFlag)
	if err != nil {
		return err
	}
	defer writerCleanup(ctx)

	if len(args) == 0 {
		return processOne(ctx, method, compress, os.Stdin, 0, wr)
	}
	for _, name := range args {
		rd, size, readerCleanup, err := openFileOrURL(ctx, name)
		if err != nil {
			return err
		}
		err = processOne(ctx, method, compress, rd, size, wr)
		readerCleanup(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func processOne(ctx context.Context, method gcomp.Method, compress bool, rd io.Reader, size int64, wr io.Writer) error {
	var bar *progressbar.ProgressBar
	if progressBar && size > 0 {
		barWr, _ := progressWriter()
		bar = newProgressBar(barWr, size)
	}
	onRead := func(n int) {
		if bar != nil {
			bar.Add(n)
		}
	}

	opts := methodOptions()
	if compress {
		enc, err := method.NewEncoder(opts)
		if err != nil {
			return err
		}
		return streamEncode(enc, rd, wr, onRead)
	}
	dec, err := method.NewDecoder(opts)
	if err != nil {
		return err
	}
	return streamDecode(dec, rd, wr, onRead)
}
