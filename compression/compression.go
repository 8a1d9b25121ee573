// Package compression implements the codec's symmetric compress/
// decompress engine over a closed set of algorithms, plus the
// size-based auto policy writers use when no explicit algorithm is
// requested.
//
// Grounded on the reference implementation's _compress_bytes /
// _decompress_bytes / _auto_pick_for_size, and on indrora-ponzu's
// algorithm-dispatch-by-enum style (ponzu/writer/compress.go,
// ponzu/reader/decompress.go) generalized from zstd/brotli to the
// zlib/gzip/bz2 family this format actually specifies. zlib and gzip
// are handled with klauspost/compress, the drop-in replacement
// indrora-ponzu already depends on; bz2 needs a library that can write
// (the standard library's compress/bzip2 only decodes), so
// github.com/dsnet/compress/bzip2 is used for both directions.
package compression

import (
	"bytes"
	"io"

	dbzip2 "github.com/dsnet/compress/bzip2"
	kgzip "github.com/klauspost/compress/gzip"
	kzlib "github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/talvora/neofile/errs"
)

// Algo is a closed enum of supported compression algorithms. LZMA is
// recognized (for name normalization) but never performed.
type Algo string

const (
	None Algo = "none"
	Zlib Algo = "zlib"
	Gzip Algo = "gzip"
	Bz2  Algo = "bz2"
	Lzma Algo = "lzma"
	Auto Algo = "auto"
)

// ParseAlgo normalizes an algorithm name per the format's aliasing
// rule: gz->gzip, bz|bzip|bzip2->bz2, z->zlib, xz->lzma, empty->none.
func ParseAlgo(name string) Algo {
	switch name {
	case "", "none":
		return None
	case "gz":
		return Gzip
	case "gzip":
		return Gzip
	case "bz", "bzip", "bzip2", "bz2":
		return Bz2
	case "z":
		return Zlib
	case "zlib":
		return Zlib
	case "xz", "lzma":
		return Lzma
	case "auto":
		return Auto
	default:
		return Algo(name)
	}
}

func (a Algo) known() bool {
	switch a {
	case None, Zlib, Gzip, Bz2, Lzma:
		return true
	}
	return false
}

// AutoPolicy picks an algorithm and level for size bytes of raw
// content: <16KiB -> none, [16KiB,256KiB) -> zlib level 6,
// >=256KiB -> bz2 level 9.
func AutoPolicy(size int) (Algo, int) {
	switch {
	case size < 16*1024:
		return None, 0
	case size < 256*1024:
		return Zlib, 6
	default:
		return Bz2, 9
	}
}

// Compress compresses data under algo at level (0 means "algorithm
// default"). On success it returns the compressed bytes and the
// canonical algorithm actually used. If algo is Auto, AutoPolicy
// selects both algorithm and level based on len(data). If the
// requested algorithm fails (or is lzma, which always fails), Compress
// falls back to zlib at level 6 and reports that as the canonical
// algorithm.
func Compress(data []byte, algo Algo, level int) ([]byte, Algo, error) {
	algo = ParseAlgo(string(algo))
	if algo == Auto {
		var lvl int
		algo, lvl = AutoPolicy(len(data))
		if level != 0 {
			lvl = level
		}
		level = lvl
	}

	out, err := compressOne(data, algo, level)
	if err == nil {
		return out, algo, nil
	}
	if algo == None {
		return nil, "", err
	}
	fallback, ferr := compressOne(data, Zlib, 6)
	if ferr != nil {
		return nil, "", errors.Wrap(ferr, "compression: zlib fallback also failed")
	}
	return fallback, Zlib, nil
}

func compressOne(data []byte, algo Algo, level int) ([]byte, error) {
	switch algo {
	case None, "":
		return data, nil
	case Zlib:
		var buf bytes.Buffer
		lvl := level
		if lvl == 0 {
			lvl = kzlib.DefaultCompression
		}
		w, err := kzlib.NewWriterLevel(&buf, lvl)
		if err != nil {
			return nil, errors.Wrap(err, "compression: zlib writer")
		}
		if _, err := w.Write(data); err != nil {
			return nil, errors.Wrap(err, "compression: zlib write")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "compression: zlib close")
		}
		return buf.Bytes(), nil
	case Gzip:
		var buf bytes.Buffer
		lvl := level
		if lvl == 0 {
			lvl = kgzip.DefaultCompression
		}
		w, err := kgzip.NewWriterLevel(&buf, lvl)
		if err != nil {
			return nil, errors.Wrap(err, "compression: gzip writer")
		}
		if _, err := w.Write(data); err != nil {
			return nil, errors.Wrap(err, "compression: gzip write")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "compression: gzip close")
		}
		return buf.Bytes(), nil
	case Bz2:
		var buf bytes.Buffer
		lvl := level
		if lvl == 0 {
			lvl = 9
		}
		w, err := dbzip2.NewWriter(&buf, &dbzip2.WriterConfig{Level: lvl})
		if err != nil {
			return nil, errors.Wrap(err, "compression: bz2 writer")
		}
		if _, err := w.Write(data); err != nil {
			return nil, errors.Wrap(err, "compression: bz2 write")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "compression: bz2 close")
		}
		return buf.Bytes(), nil
	case Lzma:
		return nil, &errs.UnsupportedCompression{Name: string(Lzma)}
	default:
		return nil, &errs.UnsupportedCompression{Name: string(algo)}
	}
}

// Decompress reverses Compress. Unlike Compress, it never falls back:
// callers decide how to handle failure (the record codec treats it as
// non-fatal when decompression was merely requested rather than
// required).
func Decompress(data []byte, algo Algo) ([]byte, error) {
	algo = ParseAlgo(string(algo))
	switch algo {
	case None, "":
		return data, nil
	case Zlib:
		r, err := kzlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "compression: zlib reader")
		}
		defer r.Close()
		return io.ReadAll(r)
	case Gzip:
		r, err := kgzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "compression: gzip reader")
		}
		defer r.Close()
		return io.ReadAll(r)
	case Bz2:
		r, err := dbzip2.NewReader(bytes.NewReader(data), nil)
		if err != nil {
			return nil, errors.Wrap(err, "compression: bz2 reader")
		}
		defer r.Close()
		return io.ReadAll(r)
	case Lzma:
		return nil, &errs.UnsupportedCompression{Name: string(Lzma)}
	default:
		return nil, &errs.UnsupportedCompression{Name: string(algo)}
	}
}
