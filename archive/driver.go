package archive

import (
	"io"
	"log/slog"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/talvora/neofile/bytestream"
	"github.com/talvora/neofile/checksum"
	"github.com/talvora/neofile/compression"
	"github.com/talvora/neofile/neofile"
)

// Driver performs archive-level operations over a fixed FormatSpec. It
// holds no open handles between calls: every method takes the
// io.Reader/io.Writer it needs and releases nothing beyond what the
// caller gave it.
type Driver struct {
	FormatSpec neofile.FormatSpec
	// Verbose enables per-entry spew.Dump tracing to standard output
	// (plus one slog.Debug line per packed entry) —
	// useful when diagnosing schema-drift or checksum disputes against
	// a foreign-written archive.
	Verbose bool
}

// NewDriver returns a Driver using fs for every operation.
func NewDriver(fs neofile.FormatSpec) *Driver {
	return &Driver{FormatSpec: fs}
}

// PackOptions controls the global header and the per-entry checksum
// and compression policy Pack applies uniformly across the archive.
type PackOptions struct {
	Encoding string
	OSTag    string
	Extras   []string

	HeaderChecksum checksum.Algo // global header checksum algorithm

	EntryHeaderChecksum  checksum.Algo
	EntryContentChecksum checksum.Algo
	EntryJSONChecksum    checksum.Algo

	Compression      compression.Algo
	CompressionLevel int
}

func (o PackOptions) buildOptions() neofile.BuildOptions {
	return neofile.BuildOptions{
		HeaderChecksum:   o.EntryHeaderChecksum,
		ContentChecksum:  o.EntryContentChecksum,
		JSONChecksum:     o.EntryJSONChecksum,
		Compression:      o.Compression,
		CompressionLevel: o.CompressionLevel,
	}
}

// Pack writes a full archive to w: the global header, one record per
// Item from src in order, then the end-of-archive sentinel. fid/finode
// default to the item's 0-based sequence number when left zero.
func (d *Driver) Pack(w io.Writer, src Source, opts PackOptions) error {
	numFiles := uint64(0)
	if c, ok := src.(Counter); ok {
		numFiles = uint64(c.Len())
	}

	if err := neofile.WriteGlobalHeader(w, d.FormatSpec, numFiles, opts.Encoding, opts.OSTag, opts.Extras, opts.HeaderChecksum); err != nil {
		return errors.Wrap(err, "archive: write global header")
	}

	build := opts.buildOptions()
	var idx uint64
	for {
		item, err := src.Next()
		if err != nil {
			return errors.Wrap(err, "archive: read pack source")
		}
		if item == nil {
			break
		}
		e := item.Entry
		if e.FID == 0 {
			e.FID = idx
		}
		if e.FInode == 0 {
			e.FInode = idx
		}
		if d.Verbose {
			slog.Debug("packing entry", "name", e.Name, "seq", idx)
			spew.Dump(e)
		}
		if err := neofile.WriteRecord(w, d.FormatSpec, e, item.Content, build); err != nil {
			return errors.Wrapf(err, "archive: write record %q", e.Name)
		}
		idx++
	}

	return neofile.WriteEndOfArchive(w, d.FormatSpec)
}

// WriteEmpty writes a header-only archive: the global header with zero
// files followed directly by the end-of-archive sentinel. A thin
// convenience exercised by the empty-archive boundary scenario.
func (d *Driver) WriteEmpty(w io.Writer, encoding, osTag string, checksumAlgo checksum.Algo) error {
	if err := neofile.WriteGlobalHeader(w, d.FormatSpec, 0, encoding, osTag, nil, checksumAlgo); err != nil {
		return errors.Wrap(err, "archive: write empty global header")
	}
	return neofile.WriteEndOfArchive(w, d.FormatSpec)
}

// ParseOptions controls how much of an archive's records a Parse or
// ArchiveReader pass materializes.
type ParseOptions struct {
	ListOnly        bool // skip content bytes
	SkipJSON        bool // skip JSON sidecar bytes
	Uncompress      bool // attempt to restore logical content
	VerifyChecksums bool
	// RequireDecompress turns a decompression failure into a returned
	// *errs.DecompressFailed instead of Uncompress's default of
	// falling back to the stored, still-compressed bytes.
	RequireDecompress bool
}

// ArchiveReader streams one archive's global header and records,
// generalizing indrora-ponzu's Next()-based Reader to this wire format.
type ArchiveReader struct {
	stream *bytestream.Stream
	fs     neofile.FormatSpec
	opts   ParseOptions
	header *neofile.GlobalHeader
	done   bool
}

// NewArchiveReader reads and returns the global header immediately,
// leaving the stream positioned at the first record.
func NewArchiveReader(r io.Reader, fs neofile.FormatSpec, opts ParseOptions) (*ArchiveReader, error) {
	s := bytestream.New(r)
	header, err := neofile.ReadGlobalHeader(s, fs, opts.VerifyChecksums)
	if err != nil {
		return nil, errors.Wrap(err, "archive: read global header")
	}
	return &ArchiveReader{stream: s, fs: fs, opts: opts, header: header}, nil
}

// Header returns the parsed global header.
func (ar *ArchiveReader) Header() *neofile.GlobalHeader { return ar.header }

// Next returns the next entry, or (nil, nil) once the end-of-archive
// sentinel has been consumed.
func (ar *ArchiveReader) Next() (*neofile.Entry, error) {
	if ar.done {
		return nil, nil
	}
	e, err := neofile.ReadRecord(ar.stream, ar.fs, neofile.ReadOptions{
		SkipContent:       ar.opts.ListOnly,
		SkipJSON:          ar.opts.SkipJSON,
		Decompress:        ar.opts.Uncompress,
		RequireDecompress: ar.opts.RequireDecompress,
		VerifyChecksums:   ar.opts.VerifyChecksums,
	})
	if err != nil {
		return nil, err
	}
	if e == nil {
		ar.done = true
		return nil, nil
	}
	return e, nil
}

// Parse reads an entire archive into memory: the global header and
// every entry, in order. Prefer ArchiveReader directly when the
// archive may be large.
func (d *Driver) Parse(r io.Reader, opts ParseOptions) (*neofile.GlobalHeader, []*neofile.Entry, error) {
	ar, err := NewArchiveReader(r, d.FormatSpec, opts)
	if err != nil {
		return nil, nil, err
	}
	var entries []*neofile.Entry
	for {
		e, err := ar.Next()
		if err != nil {
			return ar.Header(), entries, err
		}
		if e == nil {
			break
		}
		if d.Verbose {
			spew.Dump(e)
		}
		entries = append(entries, e)
	}
	return ar.Header(), entries, nil
}

// List returns the ordered fname projection of the archive's entries,
// skipping content, JSON, and checksum verification for speed.
func (d *Driver) List(r io.Reader) ([]string, error) {
	_, entries, err := d.Parse(r, ParseOptions{ListOnly: true, SkipJSON: true})
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// ListDetails is List's advanced form: full entry metadata without
// content or JSON bytes.
func (d *Driver) ListDetails(r io.Reader) ([]*neofile.Entry, error) {
	_, entries, err := d.Parse(r, ParseOptions{ListOnly: true, SkipJSON: true})
	return entries, err
}

// ValidateDetail reports one entry's checksum outcome.
type ValidateDetail struct {
	Name string
	OK   bool
	Err  error
}

// Validate performs a full parse with checksums and JSON enabled.
// Checksum and structural failures surface as ok=false with a detail,
// never as a returned error — only a failure to even read the global
// header is a fatal Go error.
func (d *Driver) Validate(r io.Reader) (bool, []ValidateDetail, error) {
	ar, err := NewArchiveReader(r, d.FormatSpec, ParseOptions{VerifyChecksums: true})
	if err != nil {
		return false, nil, err
	}
	var details []ValidateDetail
	for {
		e, err := ar.Next()
		if err != nil {
			details = append(details, ValidateDetail{OK: false, Err: err})
			return false, details, nil
		}
		if e == nil {
			break
		}
		details = append(details, ValidateDetail{Name: e.Name, OK: true})
	}
	return true, details, nil
}

// FileSystemSink receives reconstructed entries during Unpack. It is
// a thin collaborator interface kept outside the core's scope; Driver
// never touches the filesystem itself.
type FileSystemSink interface {
	WriteFile(e *neofile.Entry, content []byte) error
	MakeDir(e *neofile.Entry) error
	WriteSymlink(e *neofile.Entry) error
}

// Unpack reconstructs every entry of an archive. When sink is nil, it
// instead returns a name→bytes mapping (directories map to a nil
// value) rather than writing anything to disk.
func (d *Driver) Unpack(r io.Reader, sink FileSystemSink) (map[string][]byte, error) {
	ar, err := NewArchiveReader(r, d.FormatSpec, ParseOptions{Uncompress: true, VerifyChecksums: true})
	if err != nil {
		return nil, err
	}

	var out map[string][]byte
	if sink == nil {
		out = make(map[string][]byte)
	}

	for {
		e, err := ar.Next()
		if err != nil {
			return out, err
		}
		if e == nil {
			break
		}

		if sink != nil {
			switch e.Type {
			case neofile.TypeDirectory:
				err = sink.MakeDir(e)
			case neofile.TypeSymlink:
				err = sink.WriteSymlink(e)
			default:
				err = sink.WriteFile(e, e.Content)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "archive: unpack %q", e.Name)
			}
			continue
		}

		if e.IsDirectory() {
			out[e.Name] = nil
		} else {
			out[e.Name] = e.Content
		}
	}

	return out, nil
}

// Repack copies an archive from r to w, changing the per-entry
// compression algorithm. Entries whose stored algorithm already
// matches destAlgo are copied verbatim (no decompress/recompress
// round trip); all others are decompressed then recompressed.
func (d *Driver) Repack(r io.Reader, w io.Writer, destAlgo compression.Algo, destLevel int, build neofile.BuildOptions) error {
	ar, err := NewArchiveReader(r, d.FormatSpec, ParseOptions{VerifyChecksums: false})
	if err != nil {
		return err
	}
	header := ar.Header()

	if err := neofile.WriteGlobalHeader(w, d.FormatSpec, header.NumFiles, header.Encoding, header.OSTag, header.Extras, header.ChecksumAlgo); err != nil {
		return errors.Wrap(err, "archive: write repacked global header")
	}

	for {
		e, err := ar.Next()
		if err != nil {
			return errors.Wrap(err, "archive: read record during repack")
		}
		if e == nil {
			break
		}

		srcAlgo := compression.ParseAlgo(e.Compression)
		if srcAlgo == destAlgo {
			if err := neofile.WriteStoredRecord(w, d.FormatSpec, e, e.Content, srcAlgo, build); err != nil {
				return errors.Wrapf(err, "archive: repack verbatim %q", e.Name)
			}
			continue
		}

		logical, err := compression.Decompress(e.Content, srcAlgo)
		if err != nil {
			return errors.Wrapf(err, "archive: decompress %q for repack", e.Name)
		}
		recompressOpts := build
		recompressOpts.Compression = destAlgo
		recompressOpts.CompressionLevel = destLevel
		if err := neofile.WriteRecord(w, d.FormatSpec, e, logical, recompressOpts); err != nil {
			return errors.Wrapf(err, "archive: repack recompress %q", e.Name)
		}
	}

	return neofile.WriteEndOfArchive(w, d.FormatSpec)
}
