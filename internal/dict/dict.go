// Package dict loads optional decoder dictionaries: JSON documents mapping
// ORCA decoder names to hardware classes and human descriptions, used to
// annotate scan reports.
package dict

import (
	"fmt"
	"strings"
)

type Entry struct {
	Decoder     string
	ClassName   string
	Description string
}

type Store struct {
	entries map[string]Entry
}

type JSONFile struct {
	Decoders []JSONEntry `json:"decoders"`
}

type JSONEntry struct {
	Decoder     string `json:"decoder"`
	ClassName   string `json:"className,omitempty"`
	Description string `json:"description,omitempty"`
}

func FromJSON(file JSONFile) (*Store, error) {
	store := &Store{entries: make(map[string]Entry)}
	for i, entry := range file.Decoders {
		name := strings.TrimSpace(entry.Decoder)
		if name == "" {
			return nil, fmt.Errorf("decoders[%d]: empty decoder name", i)
		}
		if _, exists := store.entries[name]; exists {
			return nil, fmt.Errorf("decoders[%d]: duplicate decoder %q", i, name)
		}
		store.entries[name] = Entry{
			Decoder:     name,
			ClassName:   strings.TrimSpace(entry.ClassName),
			Description: strings.TrimSpace(entry.Description),
		}
	}
	return store, nil
}

func (s *Store) Lookup(decoder string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	entry, ok := s.entries[decoder]
	return entry, ok
}

func (s *Store) IsEmpty() bool {
	if s == nil {
		return true
	}
	return len(s.entries) == 0
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}
