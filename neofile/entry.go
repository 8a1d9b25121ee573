package neofile

import (
	"github.com/mitchellh/mapstructure"

	"github.com/talvora/neofile/checksum"
)

// EntryType is the closed enum of record kinds carried in the ftype field.
type EntryType uint8

const (
	TypeFile        EntryType = 0
	TypeHardlink    EntryType = 1
	TypeSymlink     EntryType = 2
	TypeCharDevice  EntryType = 3
	TypeBlockDevice EntryType = 4
	TypeDirectory   EntryType = 5
	TypeFIFO        EntryType = 6
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeHardlink:
		return "hardlink"
	case TypeSymlink:
		return "symlink"
	case TypeCharDevice:
		return "chardevice"
	case TypeBlockDevice:
		return "blockdevice"
	case TypeDirectory:
		return "directory"
	case TypeFIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// ChecksumTriple holds the three independent algorithm/value pairs a
// record carries: header, content, and JSON sidecar.
type ChecksumTriple struct {
	HeaderAlgo    checksum.Algo
	HeaderValue   string
	ContentAlgo   checksum.Algo
	ContentValue  string
	JSONAlgo      checksum.Algo
	JSONValue     string
}

// Entry is the normalized in-memory representation of one record. It
// exists only between a call's start and end; the archive byte stream
// is the only persistent form.
type Entry struct {
	FID    uint64
	FInode uint64

	Name     string // normalized to start with "./" or "/"
	LinkName string

	Type EntryType

	Size       uint64 // logical byte count of raw content
	StoredSize uint64 // byte count of stored, possibly-compressed content

	ATime int64
	MTime int64
	CTime int64
	BTime int64

	Mode           uint32
	WinAttributes  uint32

	UID   uint32
	UName string
	GID   uint32
	GName string

	LinkCount uint64
	Dev       uint64
	DevMinor  uint64
	DevMajor  uint64

	// Compression names the algorithm the stored content is encoded
	// with, e.g. "none", "zlib", "gzip", "bz2".
	Compression string

	Encoding  string
	CEncoding string

	// SeekNext carries the opaque wire value emitted at pack time
	// ("+" + delimiter length). It is never consulted on read.
	SeekNext string

	// JSON is the decoded sidecar object, or an empty map when absent;
	// nil when the read skipped it (ReadOptions.SkipJSON).
	JSON map[string]interface{}
	// JSONKeyCount is the advisory key-count field the reference
	// implementation writes alongside the JSON byte size (new-style
	// records only); it is never re-derived from JSON on read.
	JSONKeyCount uint64

	// Content holds logical (post-decompression) bytes when the read
	// decompressed it or the entry is uncompressed; when decompression
	// was not requested it holds the stored bytes as read. nil when the
	// caller requested listing-only and no content was read.
	Content []byte

	// DecompressFailed is set when decompression was requested but
	// failed; Content then retains the stored (still-compressed)
	// bytes instead of returning an error.
	DecompressFailed bool

	Checksums ChecksumTriple
}

// IsDirectory reports whether the entry is a directory record.
func (e *Entry) IsDirectory() bool { return e.Type == TypeDirectory }

// DecodeJSON decodes the entry's JSON sidecar into dst, a pointer to a
// typed struct, using the same loosely-typed-map-to-struct decode
// DecodeOverride uses for FormatSpec overrides. Callers that don't
// need a typed view can read e.JSON directly instead.
func (e *Entry) DecodeJSON(dst interface{}) error {
	return mapstructure.Decode(e.JSON, dst)
}
