// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package gcomp_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/cosnicolaou/gcomp"
)

func runCodec(t *testing.T, method gcomp.Method, opts *gcomp.Options, data []byte) []byte {
	t.Helper()

	enc, err := method.NewEncoder(opts)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	var compressed bytes.Buffer
	buf := make([]byte, 8)
	in := data
	for len(in) > 0 {
		consumed, produced, err := enc.Update(in, buf)
		if err != nil {
			t.Fatalf("Encoder.Update: %v", err)
		}
		compressed.Write(buf[:produced])
		in = in[consumed:]
	}
	for {
		produced, err := enc.Finish(buf)
		compressed.Write(buf[:produced])
		if err == nil {
			break
		}
		if errors.Is(err, gcomp.ErrShortBuffer) {
			continue
		}
		t.Fatalf("Encoder.Finish: %v", err)
	}

	dec, err := method.NewDecoder(opts)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	var decompressed bytes.Buffer
	obuf := make([]byte, 8)
	cin := compressed.Bytes()
	for len(cin) > 0 {
		consumed, produced, err := dec.Update(cin, obuf)
		decompressed.Write(obuf[:produced])
		if err != nil {
			t.Fatalf("Decoder.Update: %v", err)
		}
		cin = cin[consumed:]
	}
	for {
		produced, err := dec.Finish(obuf)
		decompressed.Write(obuf[:produced])
		if err == nil {
			break
		}
		if errors.Is(err, gcomp.ErrShortBuffer) {
			continue
		}
		t.Fatalf("Decoder.Finish: %v", err)
	}
	return decompressed.Bytes()
}

func TestRegistryRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("round trip through the registry. ", 200))
	for _, name := range []string{"deflate", "gzip"} {
		method, err := gcomp.DefaultRegistry().Find(name)
		if err != nil {
			t.Fatalf("Find(%q): %v", name, err)
		}
		got := runCodec(t, method, gcomp.NewOptions(), data)
		if !bytes.Equal(got, data) {
			t.Errorf("%s: round trip mismatch", name)
		}
	}
}

func TestDeflateLevelZeroMeansStored(t *testing.T) {
	method, err := gcomp.DefaultRegistry().Find("deflate")
	if err != nil {
		t.Fatal(err)
	}
	opts := gcomp.NewOptions().SetInt64("deflate.level", 0)
	data := []byte(strings.Repeat("store only please", 100))
	got := runCodec(t, method, opts, data)
	if !bytes.Equal(got, data) {
		t.Fatal("level=0 round trip mismatch")
	}

	enc, err := method.NewEncoder(opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := enc.Update(data, nil); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 4096)
	n, err := enc.Finish(out)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 || out[0]&0x06 != 0 { // BTYPE (bits 1-2) of the first block header
		t.Fatalf("level=0: first block is not a stored block (first byte %#x)", out[0])
	}
}

func TestGzipOptionsRoundTrip(t *testing.T) {
	method, err := gcomp.DefaultRegistry().Find("gzip")
	if err != nil {
		t.Fatal(err)
	}
	opts := gcomp.NewOptions().
		SetString("gzip.name", "archive.txt").
		SetUint64("gzip.mtime", 1690000000).
		SetBool("gzip.header_crc", true)
	data := []byte("payload with gzip-specific options set")
	got := runCodec(t, method, opts, data)
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch with gzip options set")
	}
}

func TestRegistryFindUnknown(t *testing.T) {
	if _, err := gcomp.DefaultRegistry().Find("bzip2"); !errors.Is(err, gcomp.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestSchemaRejectsUnknownOption(t *testing.T) {
	method, err := gcomp.DefaultRegistry().Find("deflate")
	if err != nil {
		t.Fatal(err)
	}
	opts := gcomp.NewOptions().SetString("deflate.bogus", "x")
	if _, err := method.NewEncoder(opts); !errors.Is(err, gcomp.ErrInvalidArg) {
		t.Fatalf("expected ErrInvalidArg for unrecognized option, got %v", err)
	}
}

func TestSchemaRejectsWrongType(t *testing.T) {
	method, err := gcomp.DefaultRegistry().Find("deflate")
	if err != nil {
		t.Fatal(err)
	}
	opts := gcomp.NewOptions().SetString("deflate.level", "six")
	if _, err := method.NewEncoder(opts); !errors.Is(err, gcomp.ErrInvalidArg) {
		t.Fatalf("expected ErrInvalidArg for wrong option type, got %v", err)
	}
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	r := gcomp.NewRegistry()
	m, err := gcomp.DefaultRegistry().Find("gzip")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Register(m); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(m); !errors.Is(err, gcomp.ErrInvalidArg) {
		t.Fatalf("expected ErrInvalidArg on duplicate Register, got %v", err)
	}
}
