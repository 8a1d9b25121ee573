// Package codec implements the low-level field encoding primitives of
// the wire format: lowercase hex integers, delimiter-terminated
// fields, C-style escape decoding for a configured delimiter, and
// null-byte-terminated string lists.
package codec

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// HexEncode renders a non-negative integer as lowercase hexadecimal
// text, without a prefix or leading zero padding.
func HexEncode(n uint64) string {
	return strconv.FormatUint(n, 16)
}

// HexDecode parses lowercase or uppercase hexadecimal text. An empty
// string parses to 0, matching the reference implementation's
// `int(x or b'0', 16)` pattern used throughout record parsing.
func HexDecode(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(strings.ToLower(s), 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "codec: invalid hex field %q", s)
	}
	return n, nil
}

// IsHex reports whether s is a non-empty run of hex digits. Unlike
// HexDecode, which treats "" as the value 0, IsHex treats "" as not
// hex-shaped — this matters for schema resolution, which uses IsHex to
// tell a hex-shaped field from one that holds something else entirely.
func IsHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
