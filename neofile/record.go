package neofile

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/talvora/neofile/bytestream"
	"github.com/talvora/neofile/checksum"
	"github.com/talvora/neofile/codec"
	"github.com/talvora/neofile/compression"
	"github.com/talvora/neofile/errs"
)

// BuildOptions controls the checksum algorithms and compression policy
// WriteRecord applies to one entry. A zero value picks "none" for
// every checksum and no compression; compression.AutoPolicy is applied
// only when Compression is compression.Auto.
type BuildOptions struct {
	HeaderChecksum   checksum.Algo
	ContentChecksum  checksum.Algo
	JSONChecksum     checksum.Algo
	Compression      compression.Algo
	CompressionLevel int
	Extras           []string
}

// normalizeName mirrors the reference implementation's path handling:
// an absolute source path keeps its leading "/", everything else is
// rooted at "./".
func normalizeName(name string) string {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "./") {
		return name
	}
	return "./" + strings.TrimPrefix(name, "/")
}

func seekNextField(fs FormatSpec) string {
	return "+" + strconv.Itoa(len(fs.Delimiter))
}

// endOfArchiveSentinel is the two-field marker that terminates a
// record stream.
const endOfArchiveSentinel = "0"

// WriteRecord serializes one entry and its logical content to w. On
// return, e.Compression, e.StoredSize and e.Checksums are populated
// with the values actually written (compression may have fallen back,
// per compression.Compress).
func WriteRecord(w io.Writer, fs FormatSpec, e *Entry, content []byte, opts BuildOptions) error {
	stored, usedAlgo, err := compression.Compress(content, opts.Compression, opts.CompressionLevel)
	if err != nil {
		return errors.Wrap(err, "neofile: compress entry content")
	}
	e.Size = uint64(len(content))
	return writeRecordStored(w, fs, e, stored, usedAlgo, opts)
}

// WriteStoredRecord serializes a record whose content bytes are
// already in their final on-wire form (possibly already compressed).
// Used by repack's verbatim-copy path, where stored bytes carry over
// from a parsed entry untouched rather than being recompressed.
func WriteStoredRecord(w io.Writer, fs FormatSpec, e *Entry, stored []byte, algo compression.Algo, opts BuildOptions) error {
	return writeRecordStored(w, fs, e, stored, algo, opts)
}

func writeRecordStored(w io.Writer, fs FormatSpec, e *Entry, stored []byte, usedAlgo compression.Algo, opts BuildOptions) error {
	d := fs.Delimiter

	e.Compression = string(usedAlgo)
	e.StoredSize = uint64(len(stored))

	// fcsize on the wire is "0" for uncompressed entries (the stored
	// region's length is then recovered from fsize on read), and the
	// actual stored byte count otherwise.
	wireCSize := uint64(0)
	if usedAlgo != compression.None {
		wireCSize = e.StoredSize
	}

	if e.JSON == nil {
		e.JSON = map[string]interface{}{}
	}
	jsonBytes, err := json.Marshal(e.JSON)
	if err != nil {
		return errors.Wrap(err, "neofile: marshal entry json")
	}
	e.JSONKeyCount = uint64(len(e.JSON))

	fixed := []string{
		codec.HexEncode(uint64(e.Type)),
		orDefault(e.Encoding, "UTF-8"),
		e.CEncoding,
		normalizeName(e.Name),
		e.LinkName,
		codec.HexEncode(e.Size),
		codec.HexEncode(uint64(e.ATime)),
		codec.HexEncode(uint64(e.MTime)),
		codec.HexEncode(uint64(e.CTime)),
		codec.HexEncode(uint64(e.BTime)),
		codec.HexEncode(uint64(e.Mode)),
		codec.HexEncode(uint64(e.WinAttributes)),
		e.Compression,
		codec.HexEncode(wireCSize),
		codec.HexEncode(uint64(e.UID)),
		e.UName,
		codec.HexEncode(uint64(e.GID)),
		e.GName,
		codec.HexEncode(e.FID),
		codec.HexEncode(e.FInode),
		codec.HexEncode(e.LinkCount),
		codec.HexEncode(e.Dev),
		codec.HexEncode(e.DevMinor),
		codec.HexEncode(e.DevMajor),
		seekNextField(fs),
	}

	jsonCS, err := checksum.Digest(jsonBytes, opts.JSONChecksum)
	if err != nil {
		return errors.Wrap(err, "neofile: digest json")
	}
	e.Checksums.JSONAlgo = opts.JSONChecksum
	e.Checksums.JSONValue = jsonCS

	descriptor := []string{
		"dict",
		codec.HexEncode(e.JSONKeyCount),
		codec.HexEncode(uint64(len(jsonBytes))),
		string(opts.JSONChecksum),
		jsonCS,
	}

	extras := opts.Extras
	extrasBlob := codec.JoinFields(extras, d)
	extrasTail := []string{
		codec.HexEncode(uint64(len(extrasBlob))),
		codec.HexEncode(uint64(len(extras))),
	}

	// preFields is every field up to and including content_checksum_algo
	// — the header checksum's coverage region once headersize_hex and
	// fields_count_hex are prepended.
	preFields := append([]string{}, fixed...)
	preFields = append(preFields, descriptor...)
	preFields = append(preFields, extrasTail...)
	preFields = append(preFields, extras...)
	preFields = append(preFields, string(opts.HeaderChecksum), string(opts.ContentChecksum))

	body := codec.JoinFields(preFields, d)
	headerSizeHex := codec.HexEncode(uint64(len(body) - len(d)))
	fieldsCountHex := codec.HexEncode(uint64(len(preFields) + 2)) // +2 for the trailing value fields

	out := codec.JoinFields([]string{headerSizeHex, fieldsCountHex}, d)
	out = append(out, body...)

	headerCS, err := checksum.Digest(out, opts.HeaderChecksum)
	if err != nil {
		return errors.Wrap(err, "neofile: digest header")
	}
	e.Checksums.HeaderAlgo = opts.HeaderChecksum
	e.Checksums.HeaderValue = headerCS

	contentCS, err := checksum.Digest(stored, opts.ContentChecksum)
	if err != nil {
		return errors.Wrap(err, "neofile: digest content")
	}
	e.Checksums.ContentAlgo = opts.ContentChecksum
	e.Checksums.ContentValue = contentCS

	out = codec.AppendField(out, headerCS, d)
	out = codec.AppendField(out, contentCS, d)

	if _, err := w.Write(out); err != nil {
		return errors.Wrap(&errs.IoFailure{Err: err}, "neofile: write record header")
	}
	if _, err := w.Write(jsonBytes); err != nil {
		return errors.Wrap(&errs.IoFailure{Err: err}, "neofile: write record json")
	}
	if _, err := w.Write(d); err != nil {
		return errors.Wrap(&errs.IoFailure{Err: err}, "neofile: write record json delimiter")
	}
	if _, err := w.Write(stored); err != nil {
		return errors.Wrap(&errs.IoFailure{Err: err}, "neofile: write record content")
	}
	if _, err := w.Write(d); err != nil {
		return errors.Wrap(&errs.IoFailure{Err: err}, "neofile: write record content delimiter")
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// WriteEndOfArchive writes the two-"0" sentinel that terminates a
// record stream.
func WriteEndOfArchive(w io.Writer, fs FormatSpec) error {
	d := fs.Delimiter
	out := codec.JoinFields([]string{endOfArchiveSentinel, endOfArchiveSentinel}, d)
	if _, err := w.Write(out); err != nil {
		return errors.Wrap(&errs.IoFailure{Err: err}, "neofile: write end of archive sentinel")
	}
	return nil
}

// ReadOptions controls how much of a record ReadRecord materializes.
type ReadOptions struct {
	// SkipContent leaves Entry.Content nil and advances past the
	// stored bytes without allocating or decompressing them. Use for
	// List/ListDetails where only metadata is needed.
	SkipContent bool
	// SkipJSON leaves Entry.JSON nil and advances past the JSON bytes
	// without parsing them.
	SkipJSON bool
	// Decompress, when true and SkipContent is false, attempts to
	// restore the logical content from the stored bytes. On failure,
	// Entry.Content retains the stored bytes and Entry.DecompressFailed
	// is set instead of returning an error.
	Decompress bool
	// RequireDecompress escalates a decompression failure to a returned
	// *errs.DecompressFailed instead of the silent stored-bytes
	// fallback. Only meaningful alongside Decompress.
	RequireDecompress bool
	// VerifyChecksums causes header/content/json mismatches to
	// surface as *errs.ChecksumMismatch.
	VerifyChecksums bool
}

// ReadRecord reads the next record from s. It returns (nil, nil) when
// the two-field end-of-archive sentinel ("0", "0") is encountered
// instead of a record.
func ReadRecord(s *bytestream.Stream, fs FormatSpec, opts ReadOptions) (*Entry, error) {
	d := fs.Delimiter
	var covered []byte

	readRaw := func(what string) (string, error) {
		payload, raw, err := readFieldRaw(s, d)
		if err != nil {
			return "", errors.Wrap(err, "neofile: read "+what)
		}
		covered = append(covered, raw...)
		return string(payload), nil
	}

	headerSizeStr, err := readRaw("record header size")
	if err != nil {
		return nil, err
	}
	fieldsCountStr, err := readRaw("record fields count")
	if err != nil {
		return nil, err
	}
	if headerSizeStr == endOfArchiveSentinel && fieldsCountStr == endOfArchiveSentinel {
		return nil, nil
	}
	fieldsCount, err := codec.HexDecode(fieldsCountStr)
	if err != nil {
		return nil, &errs.MalformedRecord{Reason: "fields_count not hex"}
	}
	if fieldsCount < uint64(recordFieldCount+6) {
		return nil, &errs.MalformedRecord{Reason: "fields_count too small for a well-formed record"}
	}

	// Everything except the two trailing checksum value fields is
	// buffered so the schema resolver can see the whole shape at once.
	vals := make([]string, 0, fieldsCount-2)
	for i := uint64(0); i < fieldsCount-2; i++ {
		v, err := readRaw("record field")
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}

	// Header checksum coverage ends here: headersize_hex, fields_count_hex
	// and every field through content_checksum_algo.
	headerCovered := append([]byte{}, covered...)

	headerValueStr, err := s.ReadDelimited(d)
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read header checksum value")
	}
	contentValueStr, err := s.ReadDelimited(d)
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read content checksum value")
	}

	idx, err := resolveSchema(vals)
	if err != nil {
		return nil, err
	}

	e := &Entry{}
	typeNum, err := codec.HexDecode(fieldAt(vals, 0))
	if err != nil {
		return nil, &errs.MalformedRecord{Reason: "ftype not hex"}
	}
	e.Type = EntryType(typeNum)
	e.Encoding = fieldAt(vals, 1)
	e.CEncoding = fieldAt(vals, 2)
	e.Name = fieldAt(vals, 3)
	e.LinkName = fieldAt(vals, 4)
	if e.Size, err = codec.HexDecode(fieldAt(vals, 5)); err != nil {
		return nil, &errs.MalformedRecord{Reason: "fsize not hex"}
	}
	atime, _ := codec.HexDecode(fieldAt(vals, 6))
	mtime, _ := codec.HexDecode(fieldAt(vals, 7))
	ctime, _ := codec.HexDecode(fieldAt(vals, 8))
	btime, _ := codec.HexDecode(fieldAt(vals, 9))
	e.ATime, e.MTime, e.CTime, e.BTime = int64(atime), int64(mtime), int64(ctime), int64(btime)
	modeV, _ := codec.HexDecode(fieldAt(vals, 10))
	e.Mode = uint32(modeV)
	winV, _ := codec.HexDecode(fieldAt(vals, 11))
	e.WinAttributes = uint32(winV)
	e.Compression = fieldAt(vals, 12)
	wireCSize, err := codec.HexDecode(fieldAt(vals, 13))
	if err != nil {
		return nil, &errs.MalformedRecord{Reason: "fcsize not hex"}
	}
	uidV, _ := codec.HexDecode(fieldAt(vals, 14))
	e.UID = uint32(uidV)
	e.UName = fieldAt(vals, 15)
	gidV, _ := codec.HexDecode(fieldAt(vals, 16))
	e.GID = uint32(gidV)
	e.GName = fieldAt(vals, 17)
	e.FID, _ = codec.HexDecode(fieldAt(vals, 18))
	e.FInode, _ = codec.HexDecode(fieldAt(vals, 19))
	e.LinkCount, _ = codec.HexDecode(fieldAt(vals, 20))
	e.Dev, _ = codec.HexDecode(fieldAt(vals, 21))
	e.DevMinor, _ = codec.HexDecode(fieldAt(vals, 22))
	e.DevMajor, _ = codec.HexDecode(fieldAt(vals, 23))
	e.SeekNext = fieldAt(vals, 24)
	e.Name = normalizeName(e.Name)

	storedLen := e.Size
	compAlgo := compression.ParseAlgo(e.Compression)
	if compAlgo != compression.None && wireCSize > 0 {
		storedLen = wireCSize
	}
	e.StoredSize = storedLen

	jsonLen, err := codec.HexDecode(fieldAt(vals, idx.jsonSize))
	if err != nil {
		return nil, &errs.MalformedRecord{Reason: "json size not hex"}
	}
	if idx.jsonLen >= 0 {
		keyCount, _ := codec.HexDecode(fieldAt(vals, idx.jsonLen))
		e.JSONKeyCount = keyCount
	}
	e.Checksums.JSONAlgo = checksum.ParseAlgo(fieldAt(vals, idx.jsonCSAlgo))
	e.Checksums.JSONValue = fieldAt(vals, idx.jsonCSValue)

	e.Checksums.HeaderAlgo = checksum.ParseAlgo(fieldAt(vals, idx.headerCSAlgo))
	e.Checksums.ContentAlgo = checksum.ParseAlgo(fieldAt(vals, idx.contentCSAlgo))
	e.Checksums.HeaderValue = string(headerValueStr)
	e.Checksums.ContentValue = string(contentValueStr)

	if opts.VerifyChecksums {
		got, err := checksum.Digest(headerCovered, e.Checksums.HeaderAlgo)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(got, e.Checksums.HeaderValue) {
			return nil, &errs.ChecksumMismatch{Scope: errs.ScopeHeader, Entry: e.Name}
		}
	}

	if opts.SkipJSON {
		if err := s.Skip(int64(jsonLen)); err != nil {
			return nil, errors.Wrap(err, "neofile: skip json body")
		}
	} else {
		jsonBytes, err := s.Read(int(jsonLen))
		if err != nil {
			return nil, errors.Wrap(err, "neofile: read json body")
		}
		if len(jsonBytes) == 0 {
			e.JSON = map[string]interface{}{}
		} else if err := json.Unmarshal(jsonBytes, &e.JSON); err != nil {
			return nil, &errs.MalformedRecord{Reason: "json body does not parse: " + err.Error()}
		}
		if opts.VerifyChecksums {
			if ok, err := checksum.Verify(jsonBytes, e.Checksums.JSONAlgo, e.Checksums.JSONValue); err != nil {
				return nil, err
			} else if !ok {
				return nil, &errs.ChecksumMismatch{Scope: errs.ScopeJSON, Entry: e.Name}
			}
		}
	}
	if _, err := s.Read(len(d)); err != nil {
		return nil, errors.Wrap(err, "neofile: read json delimiter")
	}

	if opts.SkipContent {
		if err := s.Skip(int64(e.StoredSize)); err != nil {
			return nil, errors.Wrap(err, "neofile: skip content body")
		}
		if _, err := s.Read(len(d)); err != nil {
			return nil, errors.Wrap(err, "neofile: read content delimiter")
		}
		return e, nil
	}

	stored, err := s.Read(int(e.StoredSize))
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read content body")
	}
	if _, err := s.Read(len(d)); err != nil {
		return nil, errors.Wrap(err, "neofile: read content delimiter")
	}

	if opts.VerifyChecksums {
		if ok, err := checksum.Verify(stored, e.Checksums.ContentAlgo, e.Checksums.ContentValue); err != nil {
			return nil, err
		} else if !ok {
			return nil, &errs.ChecksumMismatch{Scope: errs.ScopeContent, Entry: e.Name}
		}
	}

	if opts.Decompress && compAlgo != compression.None {
		logical, err := compression.Decompress(stored, compAlgo)
		if err != nil {
			if opts.RequireDecompress {
				return nil, &errs.DecompressFailed{Algo: string(compAlgo), Entry: e.Name, Err: err}
			}
			e.Content = stored
			e.DecompressFailed = true
		} else {
			e.Content = logical
		}
	} else {
		e.Content = stored
	}

	return e, nil
}
