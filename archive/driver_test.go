package archive

import (
	"bytes"
	"testing"

	"github.com/talvora/neofile/checksum"
	"github.com/talvora/neofile/compression"
	"github.com/talvora/neofile/neofile"
)

func testPackOptions() PackOptions {
	return PackOptions{
		Encoding:             "UTF-8",
		OSTag:                "go",
		HeaderChecksum:       checksum.CRC32,
		EntryHeaderChecksum:  checksum.CRC32,
		EntryContentChecksum: checksum.CRC32,
		EntryJSONChecksum:    checksum.CRC32,
		Compression:          compression.None,
	}
}

func TestEmptyArchiveRoundTrip(t *testing.T) {
	fs := neofile.DefaultFormatSpec()
	d := NewDriver(fs)

	var buf bytes.Buffer
	if err := d.WriteEmpty(&buf, "UTF-8", "go", checksum.None); err != nil {
		t.Fatalf("WriteEmpty: %v", err)
	}

	prefix := fs.Magic + fs.VersionDigits
	if !bytes.HasPrefix(buf.Bytes(), append([]byte(prefix), fs.Delimiter...)) {
		t.Fatalf("expected archive to start with magic+version+delimiter, got %q", buf.Bytes()[:len(prefix)+1])
	}

	header, entries, err := d.Parse(bytes.NewReader(buf.Bytes()), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if header.NumFiles != 0 {
		t.Fatalf("expected advisory num_files 0, got %d", header.NumFiles)
	}
	if len(entries) != 0 {
		t.Fatalf("expected zero entries, got %d", len(entries))
	}
}

func TestPackAndListRoundTrip(t *testing.T) {
	fs := neofile.DefaultFormatSpec()
	d := NewDriver(fs)

	items := []*Item{
		{Entry: &neofile.Entry{Name: "hello.txt", Type: neofile.TypeFile}, Content: []byte("Hello\n")},
		{Entry: &neofile.Entry{Name: "docs/", Type: neofile.TypeDirectory}},
	}
	src := NewSliceSource(items)

	var buf bytes.Buffer
	if err := d.Pack(&buf, src, testPackOptions()); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	names, err := d.List(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"./hello.txt", "./docs/"}
	if len(names) != len(want) {
		t.Fatalf("unexpected names: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestPackUnpackToMapping(t *testing.T) {
	fs := neofile.DefaultFormatSpec()
	d := NewDriver(fs)

	src := NewMapSource(map[string][]byte{
		"a.txt": []byte("aaa"),
		"b.txt": []byte("bbb"),
	})

	var buf bytes.Buffer
	if err := d.Pack(&buf, src, testPackOptions()); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	out, err := d.Unpack(bytes.NewReader(buf.Bytes()), nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !bytes.Equal(out["./a.txt"], []byte("aaa")) || !bytes.Equal(out["./b.txt"], []byte("bbb")) {
		t.Fatalf("unexpected unpack result: %v", out)
	}
}

func TestValidateDetectsCorruption(t *testing.T) {
	fs := neofile.DefaultFormatSpec()
	d := NewDriver(fs)

	src := NewSliceSource([]*Item{
		{Entry: &neofile.Entry{Name: "hello.txt", Type: neofile.TypeFile}, Content: []byte("Hello\n")},
	})
	var buf bytes.Buffer
	if err := d.Pack(&buf, src, testPackOptions()); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	raw := buf.Bytes()
	// The archive ends with "Hello\n" D "0" D "0" D; flip the 'o' of the
	// stored content, seven bytes from the end.
	raw[len(raw)-7] ^= 0xff

	ok, details, err := d.Validate(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Validate returned a Go error instead of ok=false: %v", err)
	}
	if ok {
		t.Fatal("expected validation to fail on corrupted content")
	}
	if len(details) == 0 || details[len(details)-1].OK {
		t.Fatalf("expected a failing detail, got %+v", details)
	}
}

func TestRepackVerbatimCopy(t *testing.T) {
	fs := neofile.DefaultFormatSpec()
	d := NewDriver(fs)

	content := bytes.Repeat([]byte("a"), 32*1024)
	opts := testPackOptions()
	opts.Compression = compression.Zlib

	src := NewSliceSource([]*Item{
		{Entry: &neofile.Entry{Name: "big.bin", Type: neofile.TypeFile}, Content: content},
	})
	var buf bytes.Buffer
	if err := d.Pack(&buf, src, opts); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	build := neofile.BuildOptions{
		HeaderChecksum:  checksum.CRC32,
		ContentChecksum: checksum.CRC32,
		JSONChecksum:    checksum.CRC32,
	}
	var repacked bytes.Buffer
	if err := d.Repack(bytes.NewReader(buf.Bytes()), &repacked, compression.Zlib, 6, build); err != nil {
		t.Fatalf("Repack: %v", err)
	}

	_, entries, err := d.Parse(bytes.NewReader(repacked.Bytes()), ParseOptions{Uncompress: true})
	if err != nil {
		t.Fatalf("Parse repacked: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if !bytes.Equal(entries[0].Content, content) {
		t.Fatal("repacked content does not round-trip")
	}

	// Same destination algorithm as the source means Repack's verbatim
	// path should carry the stored (still-compressed) region over
	// byte-for-byte rather than decompressing and recompressing it.
	_, origStored, err := d.Parse(bytes.NewReader(buf.Bytes()), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse original (stored): %v", err)
	}
	_, repackedStored, err := d.Parse(bytes.NewReader(repacked.Bytes()), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse repacked (stored): %v", err)
	}
	if len(origStored) != 1 || len(repackedStored) != 1 {
		t.Fatalf("expected one stored entry each, got %d and %d", len(origStored), len(repackedStored))
	}
	if !bytes.Equal(origStored[0].Content, repackedStored[0].Content) {
		t.Fatal("repack with matching destination algorithm did not carry the stored region over verbatim")
	}
}

func TestRepackRecompress(t *testing.T) {
	fs := neofile.DefaultFormatSpec()
	d := NewDriver(fs)

	content := bytes.Repeat([]byte("b"), 32*1024)
	opts := testPackOptions()
	opts.Compression = compression.Zlib

	src := NewSliceSource([]*Item{
		{Entry: &neofile.Entry{Name: "big.bin", Type: neofile.TypeFile}, Content: content},
	})
	var buf bytes.Buffer
	if err := d.Pack(&buf, src, opts); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	build := neofile.BuildOptions{
		HeaderChecksum:  checksum.CRC32,
		ContentChecksum: checksum.CRC32,
		JSONChecksum:    checksum.CRC32,
	}
	var repacked bytes.Buffer
	if err := d.Repack(bytes.NewReader(buf.Bytes()), &repacked, compression.Gzip, 6, build); err != nil {
		t.Fatalf("Repack: %v", err)
	}

	_, entries, err := d.Parse(bytes.NewReader(repacked.Bytes()), ParseOptions{Uncompress: true})
	if err != nil {
		t.Fatalf("Parse repacked: %v", err)
	}
	if entries[0].Compression != "gzip" {
		t.Fatalf("expected gzip after repack, got %q", entries[0].Compression)
	}
	if !bytes.Equal(entries[0].Content, content) {
		t.Fatal("repacked content does not round-trip after recompression")
	}
}
