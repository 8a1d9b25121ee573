// Package neofile implements the NeoFile wire format: the resolved
// format configuration, the global header, the per-entry record codec,
// and the schema-drift resolver. It has no notion of "archive
// operations" (pack/unpack/list/validate) — that orchestration lives in
// package archive; this package only knows how to read and write the
// bytes.
package neofile

import "strings"

// FormatSpec is the resolved archive configuration every call in this
// package takes explicitly. There is no hidden global state: the
// reference implementation's one-shot process-wide INI cache is
// replaced by this struct, threaded through every call, per the design
// note "replace the one-shot process-global cache with an explicit
// FormatSpec parameter."
type FormatSpec struct {
	// Magic identifies the archive, e.g. "NeoFile" or "ArchiveFile".
	Magic string
	// VersionDigits is a decimal digit string, e.g. "001".
	VersionDigits string
	// Delimiter terminates every serialized field. Must not appear in
	// any field payload.
	Delimiter []byte
	// NewStyle is reserved for future format variants; current codec
	// behavior does not branch on it beyond the JSON descriptor shape,
	// which is resolved heuristically regardless (see schema.go).
	NewStyle bool
}

// DefaultFormatSpec returns the built-in default: magic "NeoFile",
// version "001", a single NUL delimiter, new-style on.
func DefaultFormatSpec() FormatSpec {
	return FormatSpec{
		Magic:         "NeoFile",
		VersionDigits: "001",
		Delimiter:     []byte{0x00},
		NewStyle:      true,
	}
}

// versionDigits extracts the decimal digits of ver, falling back to
// "001" when none are present — mirrors the reference implementation's
// _ver_digits.
func versionDigits(ver string) string {
	var sb strings.Builder
	for _, c := range ver {
		if c >= '0' && c <= '9' {
			sb.WriteRune(c)
		}
	}
	if sb.Len() == 0 {
		return "001"
	}
	return sb.String()
}

// Override carries partial FormatSpec overrides; unset pointer fields
// fall back to the default. This separation exists because FormatSpec
// itself mirrors the resolved configuration field for field (no
// pointers), while a caller supplying only e.g. a custom magic still
// needs "unset" to be distinguishable from "set to zero value" — a
// bare bool or empty string can't express that.
type Override struct {
	Magic         *string
	VersionDigits *string
	Delimiter     []byte
	NewStyle      *bool
}

// Resolve merges an explicit override onto the default, the way the
// reference implementation's _ensure_formatspecs merges a caller dict
// onto _default_formatspecs().
func Resolve(override *Override) FormatSpec {
	fs := DefaultFormatSpec()
	if override == nil {
		return fs
	}
	if override.Magic != nil {
		fs.Magic = *override.Magic
	}
	if override.VersionDigits != nil {
		fs.VersionDigits = versionDigits(*override.VersionDigits)
	}
	if len(override.Delimiter) > 0 {
		fs.Delimiter = override.Delimiter
	}
	if override.NewStyle != nil {
		fs.NewStyle = *override.NewStyle
	}
	return fs
}
