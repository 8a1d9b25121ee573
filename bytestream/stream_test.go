package bytestream_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/talvora/neofile/bytestream"
)

func TestReadDelimited(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		delim    []byte
		expected [][]byte
	}{
		{
			name:  "single byte delimiter",
			data:  []byte("alpha\x00beta\x00gamma\x00"),
			delim: []byte{0x00},
			expected: [][]byte{
				[]byte("alpha"),
				[]byte("beta"),
				[]byte("gamma"),
			},
		},
		{
			name:  "empty fields",
			data:  []byte("\x00\x00a\x00"),
			delim: []byte{0x00},
			expected: [][]byte{
				{},
				{},
				[]byte("a"),
			},
		},
		{
			name:  "multi byte delimiter",
			data:  []byte("one::two::three::"),
			delim: []byte("::"),
			expected: [][]byte{
				[]byte("one"),
				[]byte("two"),
				[]byte("three"),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := bytestream.NewFromBytes(tc.data)
			for i, want := range tc.expected {
				got, err := s.ReadDelimited(tc.delim)
				if err != nil {
					t.Fatalf("field %d: unexpected error: %v", i, err)
				}
				if !bytes.Equal(got, want) {
					t.Errorf("field %d: got %q, want %q", i, got, want)
				}
			}
			if _, err := s.ReadDelimited(tc.delim); err != io.EOF {
				t.Errorf("expected io.EOF after last field, got %v", err)
			}
		})
	}
}

func TestReadAndSkip(t *testing.T) {
	s := bytestream.NewFromBytes([]byte("0123456789"))

	got, err := s.Read(4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "0123" {
		t.Fatalf("Read: got %q", got)
	}

	if err := s.Skip(2); err != nil {
		t.Fatalf("Skip: %v", err)
	}

	got, err = s.Read(4)
	if err != nil {
		t.Fatalf("Read after skip: %v", err)
	}
	if string(got) != "6789" {
		t.Fatalf("Read after skip: got %q", got)
	}

	if s.Tell() != 10 {
		t.Errorf("Tell: got %d, want 10", s.Tell())
	}
}

func TestReadShortAtEOF(t *testing.T) {
	s := bytestream.NewFromBytes([]byte("ab"))
	got, err := s.Read(5)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if string(got) != "ab" {
		t.Fatalf("got %q", got)
	}
}

func TestSeek(t *testing.T) {
	s := bytestream.New(bytes.NewReader([]byte("0123456789")))
	if _, err := s.Seek(5, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, err := s.Read(3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "567" {
		t.Fatalf("got %q", got)
	}
}
