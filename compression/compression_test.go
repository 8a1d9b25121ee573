package compression_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/talvora/neofile/compression"
	"github.com/talvora/neofile/errs"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

	for _, algo := range []compression.Algo{compression.None, compression.Zlib, compression.Gzip, compression.Bz2} {
		t.Run(string(algo), func(t *testing.T) {
			stored, used, err := compression.Compress(payload, algo, 0)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if used != algo {
				t.Fatalf("used algo = %q, want %q", used, algo)
			}
			got, err := compression.Decompress(stored, used)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round trip mismatch")
			}
		})
	}
}

func TestLzmaWriteFallsBackToZlib(t *testing.T) {
	stored, used, err := compression.Compress([]byte("some data to compress"), compression.Lzma, 0)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if used != compression.Zlib {
		t.Fatalf("used = %q, want zlib fallback", used)
	}
	got, err := compression.Decompress(stored, used)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(got) != "some data to compress" {
		t.Fatalf("got %q", got)
	}
}

func TestLzmaDecompressUnsupported(t *testing.T) {
	_, err := compression.Decompress([]byte("data"), compression.Lzma)
	if err == nil {
		t.Fatal("expected error for lzma decompression")
	}
	var uc *errs.UnsupportedCompression
	if !errors.As(err, &uc) {
		t.Fatalf("expected UnsupportedCompression, got %v", err)
	}
}

func TestAutoPolicy(t *testing.T) {
	cases := []struct {
		size int
		want compression.Algo
	}{
		{100, compression.None},
		{16*1024 - 1, compression.None},
		{16 * 1024, compression.Zlib},
		{256*1024 - 1, compression.Zlib},
		{256 * 1024, compression.Bz2},
	}
	for _, tc := range cases {
		algo, _ := compression.AutoPolicy(tc.size)
		if algo != tc.want {
			t.Errorf("AutoPolicy(%d) = %q, want %q", tc.size, algo, tc.want)
		}
	}
}

func TestAliasNormalization(t *testing.T) {
	cases := map[string]compression.Algo{
		"gz":     compression.Gzip,
		"bzip2":  compression.Bz2,
		"bz":     compression.Bz2,
		"z":      compression.Zlib,
		"xz":     compression.Lzma,
		"":       compression.None,
		"gzip":   compression.Gzip,
	}
	for in, want := range cases {
		if got := compression.ParseAlgo(in); got != want {
			t.Errorf("ParseAlgo(%q) = %q, want %q", in, got, want)
		}
	}
}
