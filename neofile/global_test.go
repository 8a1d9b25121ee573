package neofile

import (
	"bytes"
	"testing"

	"github.com/talvora/neofile/bytestream"
	"github.com/talvora/neofile/checksum"
)

func TestGlobalHeaderRoundTrip(t *testing.T) {
	fs := DefaultFormatSpec()
	var buf bytes.Buffer
	extras := []string{"note=hello"}

	if err := WriteGlobalHeader(&buf, fs, 3, "UTF-8", "go", extras, checksum.CRC32); err != nil {
		t.Fatalf("WriteGlobalHeader: %v", err)
	}

	s := bytestream.NewFromBytes(buf.Bytes())
	got, err := ReadGlobalHeader(s, fs, true)
	if err != nil {
		t.Fatalf("ReadGlobalHeader: %v", err)
	}
	if got.NumFiles != 3 || got.Encoding != "UTF-8" || got.OSTag != "go" {
		t.Fatalf("unexpected header: %+v", got)
	}
	if len(got.Extras) != 1 || got.Extras[0] != "note=hello" {
		t.Fatalf("unexpected extras: %v", got.Extras)
	}
	if got.ChecksumAlgo != checksum.CRC32 {
		t.Fatalf("unexpected checksum algo: %v", got.ChecksumAlgo)
	}
}

func TestGlobalHeaderVerifyRejectsTamperedChecksum(t *testing.T) {
	fs := DefaultFormatSpec()
	var buf bytes.Buffer
	if err := WriteGlobalHeader(&buf, fs, 0, "UTF-8", "go", nil, checksum.CRC32); err != nil {
		t.Fatalf("WriteGlobalHeader: %v", err)
	}

	corrupt := buf.Bytes()
	corrupt[len(corrupt)-3] ^= 0xff

	s := bytestream.NewFromBytes(corrupt)
	if _, err := ReadGlobalHeader(s, fs, true); err == nil {
		t.Fatal("expected checksum mismatch, got nil error")
	}
}

func TestGlobalHeaderNoVerifyDefaults(t *testing.T) {
	fs := DefaultFormatSpec()
	var buf bytes.Buffer
	if err := WriteGlobalHeader(&buf, fs, 0, "", "", nil, checksum.None); err != nil {
		t.Fatalf("WriteGlobalHeader: %v", err)
	}
	s := bytestream.NewFromBytes(buf.Bytes())
	got, err := ReadGlobalHeader(s, fs, false)
	if err != nil {
		t.Fatalf("ReadGlobalHeader: %v", err)
	}
	if got.Encoding != "UTF-8" || got.OSTag != DefaultOSTag {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}
