// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate_test

import (
	"bytes"
	"compress/flate"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/cosnicolaou/gcomp/deflate"
	"github.com/cosnicolaou/gcomp/internal/codecerr"
)

// encodeAll runs enc over data in chunkSize pieces (0 means one shot),
// returning the full compressed output.
func encodeAll(t *testing.T, enc *deflate.Encoder, data []byte, chunkSize int) []byte {
	t.Helper()
	if chunkSize <= 0 {
		chunkSize = len(data) + 1
	}
	var out bytes.Buffer
	buf := make([]byte, 7) // deliberately small and non-aligned
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

// decodeAll runs dec over compressed in chunkSize pieces, returning the
// full decompressed output.
func decodeAll(t *testing.T, dec *deflate.Decoder, compressed []byte, chunkSize int) []byte {
	t.Helper()
	if chunkSize <= 0 {
		chunkSize = len(compressed) + 1
	}
	var out bytes.Buffer
	buf := make([]byte, 11)
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
		if errors.Is(err, codecerr.ErrShortBuffer) {
			continue
		}
		t.Fatalf("Finish: %v", err)
	}
	return out.Bytes()
}

func testCorpus() map[string][]byte {
	rnd := rand.New(rand.NewSource(1))
	random := make([]byte, 5000)
	rnd.Read(random)

	repeated := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 400)

	runs := bytes.Repeat([]byte{0xAB}, 10000)

	return map[string][]byte{
		"empty":    {},
		"tiny":     []byte("hi"),
		"text":     []byte(strings.Repeat("go is fun. ", 2000)),
		"repeated": repeated,
		"random":   random,
		"runs":     runs,
	}
}

func TestRoundTrip(t *testing.T) {
	for name, data := range testCorpus() {
		for level := 1; level <= 9; level++ {
			for _, chunk := range []int{0, 1, 17, 4096} {
				enc, err := deflate.NewEncoder(deflate.EncoderOptions{Level: level})
				if err != nil {
					t.Fatalf("%s level=%d: NewEncoder: %v", name, level, err)
				}
				compressed := encodeAll(t, enc, data, chunk)

				dec, err := deflate.NewDecoder(deflate.DecoderOptions{})
				if err != nil {
					t.Fatalf("NewDecoder: %v", err)
				}
				got := decodeAll(t, dec, compressed, chunk)
				if !bytes.Equal(got, data) {
					t.Errorf("%s level=%d chunk=%d: round trip mismatch (got %d bytes, want %d)",
						name, level, chunk, len(got), len(data))
				}
			}
		}
	}
}

func TestRoundTripStore(t *testing.T) {
	data := testCorpus()["text"]
	enc, err := deflate.NewEncoder(deflate.EncoderOptions{Level: deflate.LevelStore})
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	compressed := encodeAll(t, enc, data, 13)

	dec, err := deflate.NewDecoder(deflate.DecoderOptions{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	got := decodeAll(t, dec, compressed, 13)
	if !bytes.Equal(got, data) {
		t.Errorf("store round trip mismatch")
	}
}

func TestStrategies(t *testing.T) {
	data := bytes.Repeat([]byte("abcabcabcabc"), 500)
	for _, strategy := range []deflate.Strategy{
		deflate.StrategyDefault,
		deflate.StrategyFiltered,
		deflate.StrategyHuffmanOnly,
		deflate.StrategyRLE,
		deflate.StrategyFixed,
	} {
		enc, err := deflate.NewEncoder(deflate.EncoderOptions{Level: 6, Strategy: strategy})
		if err != nil {
			t.Fatalf("strategy %d: NewEncoder: %v", strategy, err)
		}
		compressed := encodeAll(t, enc, data, 0)

		// Every strategy still produces a standard-conformant DEFLATE
		// stream: the standard library must be able to decode it.
		fr := flate.NewReader(bytes.NewReader(compressed))
		got, err := io.ReadAll(fr)
		if err != nil {
			t.Fatalf("strategy %d: compress/flate failed to decode our output: %v", strategy, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("strategy %d: compress/flate round trip mismatch", strategy)
		}

		dec, err := deflate.NewDecoder(deflate.DecoderOptions{})
		if err != nil {
			t.Fatalf("NewDecoder: %v", err)
		}
		got2 := decodeAll(t, dec, compressed, 0)
		if !bytes.Equal(got2, data) {
			t.Errorf("strategy %d: our own round trip mismatch", strategy)
		}
	}
}

func TestDecodeOracle(t *testing.T) {
	// Anything the standard library produces, our decoder must also
	// accept and reproduce exactly.
	for name, data := range testCorpus() {
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.BestCompression)
		if err != nil {
			t.Fatalf("flate.NewWriter: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := fw.Close(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}

		dec, err := deflate.NewDecoder(deflate.DecoderOptions{})
		if err != nil {
			t.Fatalf("NewDecoder: %v", err)
		}
		got := decodeAll(t, dec, buf.Bytes(), 0)
		if !bytes.Equal(got, data) {
			t.Errorf("%s: decoding compress/flate output mismatch", name)
		}
	}
}

func TestCorruptInputRejected(t *testing.T) {
	data := []byte("some data to compress and then corrupt")
	enc, err := deflate.NewEncoder(deflate.EncoderOptions{Level: 6})
	if err != nil {
		t.Fatal(err)
	}
	compressed := encodeAll(t, enc, data, 0)
	if len(compressed) == 0 {
		t.Fatal("expected non-empty compressed output")
	}
	compressed[len(compressed)/2] ^= 0xFF

	dec, err := deflate.NewDecoder(deflate.DecoderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 256)
	_, _, updateErr := dec.Update(compressed, out)
	if updateErr != nil {
		return // corruption detected during Update, as expected.
	}
	if _, err := dec.Finish(out); err == nil {
		t.Fatal("expected corruption to be detected")
	}
}

func TestMaxOutputBytesLimit(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10000)
	enc, err := deflate.NewEncoder(deflate.EncoderOptions{Level: 1})
	if err != nil {
		t.Fatal(err)
	}
	compressed := encodeAll(t, enc, data, 0)

	dec, err := deflate.NewDecoder(deflate.DecoderOptions{MaxOutputBytes: 100})
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 16)
	var gotErr error
	in := compressed
	for len(in) > 0 && gotErr == nil {
		n := 16
		if n > len(in) {
			n = len(in)
		}
		consumed, _, err := dec.Update(in[:n], out)
		in = in[consumed:]
		gotErr = err
	}
	if !errors.Is(gotErr, codecerr.ErrLimit) {
		t.Fatalf("expected ErrLimit, got %v", gotErr)
	}
}
