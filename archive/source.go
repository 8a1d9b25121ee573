// Package archive implements the driver operations layered on top of
// package neofile's wire codec: parse, list, validate, unpack, pack,
// and repack. It owns no process-global state and never touches the
// filesystem directly — callers that need entries materialized onto
// disk supply a FileSystemSink collaborator.
package archive

import (
	"sort"

	"github.com/talvora/neofile/neofile"
)

// Item pairs one entry's metadata with its logical (pre-compression)
// content. Directories carry nil content.
type Item struct {
	Entry   *neofile.Entry
	Content []byte
}

// Source yields Items one at a time for Pack. Next returns a nil Item
// and a nil error once exhausted.
type Source interface {
	Next() (*Item, error)
}

// Counter is an optional capability a Source may implement to let Pack
// write an exact num_files in the global header instead of the
// advisory zero the sentinel-terminated format tolerates.
type Counter interface {
	Len() int
}

// SliceSource packs a fixed, in-memory list of items in order.
type SliceSource struct {
	items []*Item
	pos   int
}

// NewSliceSource builds a Source over items, preserving their order.
func NewSliceSource(items []*Item) *SliceSource {
	return &SliceSource{items: items}
}

func (s *SliceSource) Next() (*Item, error) {
	if s.pos >= len(s.items) {
		return nil, nil
	}
	it := s.items[s.pos]
	s.pos++
	return it, nil
}

func (s *SliceSource) Len() int { return len(s.items) }

// MapSource packs a name→bytes mapping, every entry a plain file. Keys
// are sorted for a deterministic, reproducible archive byte stream —
// Go map iteration order is not itself stable.
type MapSource struct {
	names []string
	data  map[string][]byte
	pos   int
}

// NewMapSource builds a Source over data, iterating names in sorted order.
func NewMapSource(data map[string][]byte) *MapSource {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return &MapSource{names: names, data: data}
}

func (s *MapSource) Next() (*Item, error) {
	if s.pos >= len(s.names) {
		return nil, nil
	}
	name := s.names[s.pos]
	s.pos++
	return &Item{
		Entry:   &neofile.Entry{Name: name, Type: neofile.TypeFile},
		Content: s.data[name],
	}, nil
}

func (s *MapSource) Len() int { return len(s.names) }
