package codec

import (
	"bytes"
)

// AppendField appends payload followed by the delimiter to dst,
// returning the grown slice. Payloads must not contain the delimiter;
// the format assumes the delimiter byte (typically 0x00) never occurs
// in a legal field value.
func AppendField(dst []byte, payload string, delim []byte) []byte {
	dst = append(dst, payload...)
	dst = append(dst, delim...)
	return dst
}

// AppendFields appends every string in values, each terminated by
// delim, in order — the null-byte-list encoding used for extras blocks
// and record field lists alike.
func AppendFields(dst []byte, values []string, delim []byte) []byte {
	for _, v := range values {
		dst = AppendField(dst, v, delim)
	}
	return dst
}

// JoinFields is a convenience wrapper that builds a fresh byte slice.
func JoinFields(values []string, delim []byte) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		buf.WriteString(v)
		buf.Write(delim)
	}
	return buf.Bytes()
}
