package neofile

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/talvora/neofile/bytestream"
	"github.com/talvora/neofile/checksum"
	"github.com/talvora/neofile/codec"
	"github.com/talvora/neofile/errs"
)

// GlobalHeader is the archive preamble written once at the start of
// every archive, ahead of the record stream.
type GlobalHeader struct {
	Encoding      string
	OSTag         string
	NumFiles      uint64
	Extras        []string
	ChecksumAlgo  checksum.Algo
	ChecksumValue string
}

// DefaultOSTag is emitted when the caller does not supply one. The
// reference implementation writes os.name ("posix"/"nt"); Go has no
// single equivalent constant, so a fixed, descriptive tag is used
// instead — the field is informational on read regardless.
const DefaultOSTag = "go"

// WriteGlobalHeader serializes the archive preamble to w in its fixed
// field order. numFiles is advisory only: the two-"0" sentinel that
// terminates the record stream is what actually marks the end of the
// archive, so a reader should never trust numFiles over the sentinel.
func WriteGlobalHeader(w io.Writer, fs FormatSpec, numFiles uint64, encoding, osTag string, extras []string, checksumAlgo checksum.Algo) error {
	d := fs.Delimiter
	if encoding == "" {
		encoding = "UTF-8"
	}
	if osTag == "" {
		osTag = DefaultOSTag
	}

	extrasBlob := codec.JoinFields(append([]string{codec.HexEncode(uint64(len(extras)))}, extras...), d)
	extrasSizeHex := codec.HexEncode(uint64(len(extrasBlob)))
	extraFieldsHex := codec.HexEncode(uint64(len(extras)))

	bodyFields := []string{
		codec.HexEncode(uint64(3 + 5 + len(extras) + 1)), // body_scratch_hex: opaque legacy-reader compatibility slot, never interpreted on read
		encoding,
		osTag,
		codec.HexEncode(numFiles),
		extrasSizeHex,
		extraFieldsHex,
	}
	body := codec.JoinFields(bodyFields, d)
	body = append(body, codec.JoinFields(extras, d)...)
	body = codec.AppendField(body, string(checksumAlgo), d)

	prefix := codec.JoinFields([]string{fs.Magic + fs.VersionDigits}, d)
	probe := append(append([]byte{}, body...), d...)
	headerSizeHex := codec.HexEncode(uint64(len(probe) - len(d)))

	out := append(prefix, codec.JoinFields([]string{headerSizeHex}, d)...)
	out = append(out, body...)

	headerCS, err := checksum.Digest(out, checksumAlgo)
	if err != nil {
		return err
	}
	out = codec.AppendField(out, headerCS, d)

	if _, err := w.Write(out); err != nil {
		return errors.Wrap(&errs.IoFailure{Err: err}, "write global header")
	}
	return nil
}

// readFieldRaw reads one delimited field, returning both its payload
// and the exact bytes consumed (payload+delimiter) so callers can
// reconstruct the checksum input without re-serializing from scratch.
func readFieldRaw(s *bytestream.Stream, d []byte) (payload []byte, raw []byte, err error) {
	payload, err = s.ReadDelimited(d)
	if err != nil {
		return nil, nil, err
	}
	raw = append(append([]byte{}, payload...), d...)
	return payload, raw, nil
}

// ReadGlobalHeader parses the archive preamble. NumFiles is
// informational: the record stream's own two-"0" sentinel is
// authoritative for where entries end. When verify is true, the
// trailing header checksum is recomputed over the bytes actually read
// and a *errs.ChecksumMismatch is returned on disagreement;
// verification is optional since tolerant parsers are expected to
// accept the field even when it doesn't check out.
func ReadGlobalHeader(s *bytestream.Stream, fs FormatSpec, verify bool) (*GlobalHeader, error) {
	d := fs.Delimiter
	var covered []byte

	_, raw, err := readFieldRaw(s, d) // magic+version
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read magic")
	}
	covered = append(covered, raw...)

	_, raw, err = readFieldRaw(s, d) // headersize_hex
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read header size")
	}
	covered = append(covered, raw...)

	_, raw, err = readFieldRaw(s, d) // body_scratch_hex
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read body scratch")
	}
	covered = append(covered, raw...)

	encodingB, raw, err := readFieldRaw(s, d)
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read encoding")
	}
	covered = append(covered, raw...)

	osTagB, raw, err := readFieldRaw(s, d)
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read os tag")
	}
	covered = append(covered, raw...)

	numFilesB, raw, err := readFieldRaw(s, d)
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read num files")
	}
	covered = append(covered, raw...)
	numFiles, err := codec.HexDecode(string(numFilesB))
	if err != nil {
		return nil, &errs.MalformedHeader{Reason: "num_files not hex"}
	}

	_, raw, err = readFieldRaw(s, d) // extras_size_hex
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read extras size")
	}
	covered = append(covered, raw...)

	extraFieldsB, raw, err := readFieldRaw(s, d)
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read extras count")
	}
	covered = append(covered, raw...)
	extraCount, err := codec.HexDecode(string(extraFieldsB))
	if err != nil {
		return nil, &errs.MalformedHeader{Reason: "extras count not hex"}
	}

	extras := make([]string, 0, extraCount)
	for i := uint64(0); i < extraCount; i++ {
		v, raw, err := readFieldRaw(s, d)
		if err != nil {
			return nil, errors.Wrap(err, "neofile: read extra")
		}
		covered = append(covered, raw...)
		extras = append(extras, string(v))
	}

	csAlgoB, raw, err := readFieldRaw(s, d)
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read checksum algo")
	}
	covered = append(covered, raw...)

	csValueB, err := s.ReadDelimited(d)
	if err != nil {
		return nil, errors.Wrap(err, "neofile: read checksum value")
	}

	encoding := string(encodingB)
	if encoding == "" {
		encoding = "UTF-8"
	}
	algo := checksum.ParseAlgo(string(csAlgoB))

	if verify {
		got, err := checksum.Digest(covered, algo)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(got, string(csValueB)) {
			return nil, &errs.ChecksumMismatch{Scope: errs.ScopeHeader}
		}
	}

	return &GlobalHeader{
		Encoding:      encoding,
		OSTag:         string(osTagB),
		NumFiles:      numFiles,
		Extras:        extras,
		ChecksumAlgo:  algo,
		ChecksumValue: string(csValueB),
	}, nil
}

