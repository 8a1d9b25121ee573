package neofile

import (
	"strings"

	"github.com/talvora/neofile/codec"
	"github.com/talvora/neofile/errs"
)

// recordFieldCount is the number of fixed header fields preceding the
// JSON descriptor in every record.
const recordFieldCount = 25

// schemaIndices locates the variable-shaped tail of a record's field
// vector (everything from the JSON descriptor through
// content_checksum_algo, i.e. excluding the two trailing checksum
// value fields which are always read separately). The optional
// json_len field shifts every later index by one, so positions are
// resolved relative to the detected shape rather than fixed offsets.
type schemaIndices struct {
	jsonType      int
	jsonLen       int // -1 when legacy (4-field) form
	jsonSize      int
	jsonCSAlgo    int
	jsonCSValue   int
	extrasSize    int
	extrasCount   int
	extrasStart   int
	headerCSAlgo  int
	contentCSAlgo int
}

// knownChecksumNames mirrors the reference implementation's csnames
// set used by its schema-drift heuristic, including two names
// (blake2b/blake2s) this codec doesn't implement as digests but still
// recognizes for the purpose of the new-vs-legacy shape decision.
var knownChecksumNames = map[string]bool{
	"none": true, "crc32": true, "md5": true, "sha1": true,
	"sha224": true, "sha256": true, "sha384": true, "sha512": true,
	"blake2b": true, "blake2s": true,
}

// resolveSchema distinguishes the new-style (5-field) JSON descriptor
// from the legacy (4-field) one: it inspects positions 26 and 27
// (hex-shaped?) and 28 (a known checksum algorithm name?) to decide
// whether position 26 is json_len (new style) or json_size (legacy).
// vals must already hold every header field from ftype through
// content_checksum_algo (the two checksum value fields are read
// separately and are not part of vals).
func resolveSchema(vals []string) (schemaIndices, error) {
	if len(vals) < recordFieldCount+4 {
		return schemaIndices{}, &errs.MalformedRecord{
			Reason: "fewer than 29 fields present; cannot locate JSON descriptor",
		}
	}

	idx := schemaIndices{jsonType: recordFieldCount}

	v2 := fieldAt(vals, 26)
	v3 := fieldAt(vals, 27)
	v4 := fieldAt(vals, 28)

	newStyle := codec.IsHex(v2) && codec.IsHex(v3) && knownChecksumNames[strings.ToLower(v4)]

	if newStyle {
		idx.jsonLen = 26
		idx.jsonSize = 27
		idx.jsonCSAlgo = 28
		idx.jsonCSValue = 29
		idx.extrasSize = 30
	} else {
		idx.jsonLen = -1
		idx.jsonSize = 26
		idx.jsonCSAlgo = 27
		idx.jsonCSValue = 28
		idx.extrasSize = 29
	}
	idx.extrasCount = idx.extrasSize + 1
	idx.extrasStart = idx.extrasCount + 1

	if len(vals) <= idx.extrasCount {
		return schemaIndices{}, &errs.MalformedRecord{Reason: "record truncated before extras count"}
	}
	extrasN, err := codec.HexDecode(fieldAt(vals, idx.extrasCount))
	if err != nil {
		return schemaIndices{}, &errs.MalformedRecord{Reason: "extras count not hex"}
	}

	idx.headerCSAlgo = idx.extrasStart + int(extrasN)
	idx.contentCSAlgo = idx.headerCSAlgo + 1

	if len(vals) <= idx.contentCSAlgo {
		return schemaIndices{}, &errs.MalformedRecord{Reason: "record truncated before checksum algorithm fields"}
	}

	return idx, nil
}

func fieldAt(vals []string, i int) string {
	if i < 0 || i >= len(vals) {
		return ""
	}
	return vals[i]
}
