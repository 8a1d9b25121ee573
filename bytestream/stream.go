// Package bytestream provides a uniform sequential reader over bytes
// held in memory or backed by a file, with chunked buffering and
// bounded pushback for delimiter scanning.
//
// It generalizes the chunked-read/realign style of indrora-ponzu's
// BlockReader (fixed block size) into a delimiter-oriented scanner: the
// wire format here never aligns to blocks, so the unit of work is "read
// until the next delimiter" rather than "read N bytes".
package bytestream

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/talvora/neofile/errs"
)

const readChunk = 4096

// Stream is a sequential byte source. It is built from either a
// non-seekable io.Reader (Skip falls back to read-and-discard) or a
// seekable io.ReadSeeker (Skip and Seek use the underlying Seek).
type Stream struct {
	underlying io.Reader
	r          *bufio.Reader
	seeker     io.Seeker
	pos        int64
	hasSeek    bool
}

// New wraps an arbitrary io.Reader. If the reader also implements
// io.Seeker, Seek and Tell become exact; otherwise Tell tracks bytes
// consumed from this call's start, Seek returns an error, and Skip
// reads and discards.
func New(r io.Reader) *Stream {
	s := &Stream{underlying: r, r: bufio.NewReaderSize(r, readChunk)}
	if sk, ok := r.(io.Seeker); ok {
		s.seeker = sk
		s.hasSeek = true
	}
	return s
}

// NewFromBytes wraps an in-memory byte slice. Bounds are strict: reads
// past the end of the slice return io.EOF with a short read, never more.
func NewFromBytes(b []byte) *Stream {
	return New(&bytesReaderSeeker{data: b})
}

// Read reads up to n bytes. A short read is only permitted at EOF.
func (s *Stream) Read(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(s.r, buf)
	s.pos += int64(read)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return buf[:read], err
	}
	return buf, nil
}

// Skip discards n bytes. Non-seekable sources read and discard.
func (s *Stream) Skip(n int64) error {
	if n <= 0 {
		return nil
	}
	if s.hasSeek {
		// bufio may already hold bytes read ahead of the logical
		// position: consume those first, then seek over the remainder.
		buffered := int64(s.r.Buffered())
		if n <= buffered {
			discarded, _ := s.r.Discard(int(n))
			s.pos += int64(discarded)
			return nil
		}
		if _, err := s.seeker.Seek(n-buffered, io.SeekCurrent); err != nil {
			return errors.Wrap(&errs.IoFailure{Err: err}, "seek skip")
		}
		s.r.Reset(s.underlying)
		s.pos += n
		return nil
	}
	discarded, err := io.CopyN(io.Discard, s.r, n)
	s.pos += discarded
	if err != nil {
		return errors.Wrap(&errs.IoFailure{Err: err}, "discard skip")
	}
	return nil
}

// Seek repositions the stream. Only meaningful for seekable sources.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if !s.hasSeek {
		return 0, errors.New("bytestream: underlying reader is not seekable")
	}
	if whence == io.SeekCurrent {
		// The underlying reader is ahead of the logical position by
		// whatever bufio has buffered.
		offset -= int64(s.r.Buffered())
	}
	abs, err := s.seeker.Seek(offset, whence)
	if err != nil {
		return 0, errors.Wrap(&errs.IoFailure{Err: err}, "seek")
	}
	s.r.Reset(s.underlying)
	s.pos = abs
	return abs, nil
}

// Tell reports the current logical offset.
func (s *Stream) Tell() int64 { return s.pos }

// ReadDelimited scans forward for the first occurrence of delim and
// returns the bytes preceding it (not including delim), leaving the
// stream positioned immediately after delim. The scan consumes one
// byte at a time and stops as soon as the full delimiter is seen, so
// nothing past the delimiter is consumed from the logical position;
// bufio.Reader may hold up to readChunk bytes read ahead from the
// underlying reader, which Skip and Seek account for.
//
// Mirrors the reference implementation's _read_cstring: a chunked scan
// that seeks back over anything read past the delimiter. Here the
// "seek back" is implicit: bufio.Reader buffers ahead of the logical
// position, so we only ever consume exactly up through the delimiter.
func (s *Stream) ReadDelimited(delim []byte) ([]byte, error) {
	if len(delim) == 0 {
		return nil, errors.New("bytestream: empty delimiter")
	}
	var out []byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				s.pos += int64(len(out))
				return out, io.EOF
			}
			return nil, errors.Wrap(&errs.IoFailure{Err: err}, "read delimited")
		}
		out = append(out, b)
		if len(out) >= len(delim) && bytesEqual(out[len(out)-len(delim):], delim) {
			trimmed := out[:len(out)-len(delim)]
			s.pos += int64(len(out))
			return trimmed, nil
		}
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// bytesReaderSeeker is a minimal io.ReadSeeker over an in-memory slice
// with strict bounds: short reads only ever happen at EOF, matching the
// in-memory ByteStream implementation called for by the component design.
type bytesReaderSeeker struct {
	data []byte
	pos  int64
}

func (b *bytesReaderSeeker) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *bytesReaderSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("bytestream: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("bytestream: negative position")
	}
	b.pos = abs
	return abs, nil
}
