// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package gzip_test

import (
	"bytes"
	stdgzip "compress/gzip"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cosnicolaou/gcomp/gzip"
	"github.com/cosnicolaou/gcomp/internal/codecerr"
)

func encodeAll(t *testing.T, enc *gzip.Encoder, data []byte, chunkSize int) []byte {
	t.Helper()
	if chunkSize <= 0 {
		chunkSize = len(data) + 1
	}
	var out bytes.Buffer
	buf := make([]byte, 9)
	for len(data) > 0 {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}
		chunk := data[:n]
		data = data[n:]
		for len(chunk) > 0 {
			consumed, produced, err := enc.Update(chunk, buf)
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			out.Write(buf[:produced])
			chunk = chunk[consumed:]
		}
	}
	for {
		produced, err := enc.Finish(buf)
		out.Write(buf[:produced])
		if err == nil {
			break
		}
		if errors.Is(err, codecerr.ErrShortBuffer) {
			continue
		}
		t.Fatalf("Finish: %v", err)
	}
	return out.Bytes()
}

func decodeAll(t *testing.T, dec *gzip.Decoder, compressed []byte, chunkSize int) []byte {
	t.Helper()
	if chunkSize <= 0 {
		chunkSize = len(compressed) + 1
	}
	var out bytes.Buffer
	buf := make([]byte, 13)
	for len(compressed) > 0 {
		n := chunkSize
		if n > len(compressed) {
			n = len(compressed)
		}
		chunk := compressed[:n]
		compressed = compressed[n:]
		for len(chunk) > 0 {
			consumed, produced, err := dec.Update(chunk, buf)
			out.Write(buf[:produced])
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			chunk = chunk[consumed:]
			if consumed == 0 && produced == 0 {
				t.Fatalf("Update made no progress with %d bytes pending", len(chunk))
			}
		}
	}
	for {
		produced, err := dec.Finish(buf)
		out.Write(buf[:produced])
		if err == nil {
			break
		}
		t.Fatalf("Finish: %v", err)
	}
	return out.Bytes()
}

func TestRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("hello, gzip world. ", 500))
	for _, chunk := range []int{0, 1, 23, 4096} {
		enc, err := gzip.NewEncoder(gzip.EncoderOptions{
			Name:    "greeting.txt",
			Comment: "a test file",
			MTime:   1700000000,
		})
		if err != nil {
			t.Fatal(err)
		}
		compressed := encodeAll(t, enc, data, chunk)

		dec, err := gzip.NewDecoder(gzip.DecoderOptions{})
		if err != nil {
			t.Fatal(err)
		}
		got := decodeAll(t, dec, compressed, chunk)
		if !bytes.Equal(got, data) {
			t.Errorf("chunk=%d: round trip mismatch", chunk)
		}
		if dec.Name() != "greeting.txt" {
			t.Errorf("chunk=%d: Name() = %q, want greeting.txt", chunk, dec.Name())
		}
		if dec.Comment() != "a test file" {
			t.Errorf("chunk=%d: Comment() = %q, want %q", chunk, dec.Comment(), "a test file")
		}
		if dec.MTime() != 1700000000 {
			t.Errorf("chunk=%d: MTime() = %d, want 1700000000", chunk, dec.MTime())
		}
	}
}

func TestHeaderCRCAndExtra(t *testing.T) {
	data := []byte("small payload")
	enc, err := gzip.NewEncoder(gzip.EncoderOptions{
		HeaderCRC: true,
		Extra:     []byte{1, 2, 3, 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	compressed := encodeAll(t, enc, data, 0)

	dec, err := gzip.NewDecoder(gzip.DecoderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got := decodeAll(t, dec, compressed, 3)
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch")
	}
}

func TestConcatenatedMembers(t *testing.T) {
	var all bytes.Buffer
	parts := [][]byte{
		[]byte("first member "),
		[]byte("second member "),
		[]byte("third member"),
	}
	for _, p := range parts {
		enc, err := gzip.NewEncoder(gzip.EncoderOptions{})
		if err != nil {
			t.Fatal(err)
		}
		all.Write(encodeAll(t, enc, p, 0))
	}

	for _, chunk := range []int{0, 1, 5} {
		dec, err := gzip.NewDecoder(gzip.DecoderOptions{Concat: true})
		if err != nil {
			t.Fatal(err)
		}
		got := decodeAll(t, dec, all.Bytes(), chunk)
		var want bytes.Buffer
		for _, p := range parts {
			want.Write(p)
		}
		if !bytes.Equal(got, want.Bytes()) {
			t.Errorf("chunk=%d: concatenated round trip mismatch: got %q want %q", chunk, got, want.Bytes())
		}
		stats := dec.Stats()
		if len(stats) != len(parts) {
			t.Fatalf("chunk=%d: got %d member stats, want %d", chunk, len(stats), len(parts))
		}
		for i, p := range parts {
			if stats[i].UncompressedBytes != uint64(len(p)) {
				t.Errorf("chunk=%d: member %d UncompressedBytes = %d, want %d",
					chunk, i, stats[i].UncompressedBytes, len(p))
			}
		}
	}
}

func TestConcatDisabledStopsAtFirstMember(t *testing.T) {
	enc1, _ := gzip.NewEncoder(gzip.EncoderOptions{})
	first := encodeAll(t, enc1, []byte("only this much"), 0)
	enc2, _ := gzip.NewEncoder(gzip.EncoderOptions{})
	second := encodeAll(t, enc2, []byte("not this"), 0)

	dec, err := gzip.NewDecoder(gzip.DecoderOptions{}) // Concat unset
	if err != nil {
		t.Fatal(err)
	}
	all := append(append([]byte{}, first...), second...)
	out := make([]byte, 256)
	consumed, _, err := dec.Update(all, out)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if consumed != len(first) {
		t.Errorf("consumed %d bytes, want exactly the first member's %d", consumed, len(first))
	}
	if _, err := dec.Finish(out[:0]); err != nil {
		t.Errorf("Finish: %v", err)
	}
}

func TestDecodeOracle(t *testing.T) {
	data := []byte(strings.Repeat("cross-checked against the standard library. ", 100))
	var buf bytes.Buffer
	gw := stdgzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}

	dec, err := gzip.NewDecoder(gzip.DecoderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got := decodeAll(t, dec, buf.Bytes(), 7)
	if !bytes.Equal(got, data) {
		t.Fatal("decoding compress/gzip output mismatch")
	}
}

func TestEncodeOracle(t *testing.T) {
	data := []byte(strings.Repeat("our encoder's output must open with the standard library too. ", 50))
	enc, err := gzip.NewEncoder(gzip.EncoderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	compressed := encodeAll(t, enc, data, 0)

	gr, err := stdgzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(gr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("compress/gzip reading our output mismatch")
	}
}

func TestTrailerCRCMismatchRejected(t *testing.T) {
	enc, _ := gzip.NewEncoder(gzip.EncoderOptions{})
	compressed := encodeAll(t, enc, []byte("corrupt me"), 0)
	compressed[len(compressed)-8] ^= 0xFF // flip the first byte of the trailer's CRC32

	dec, err := gzip.NewDecoder(gzip.DecoderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 256)
	_, _, uerr := dec.Update(compressed, out)
	if uerr != nil {
		return
	}
	if _, err := dec.Finish(out); err == nil {
		t.Fatal("expected trailer corruption to be detected")
	}
}
