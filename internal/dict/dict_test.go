package dict

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromJSON(t *testing.T) {
	store, err := FromJSON(JSONFile{Decoders: []JSONEntry{
		{Decoder: "ORFCWaveformDecoder", ClassName: "ORFlashCamListenerModel", Description: "waveforms"},
		{Decoder: " ORRunDecoderForRun ", Description: " run transitions "},
	}})
	if err != nil {
		t.Fatalf("FromJSON returned error: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}
	entry, ok := store.Lookup("ORRunDecoderForRun")
	if !ok {
		t.Fatal("trimmed decoder name not found")
	}
	if entry.Description != "run transitions" {
		t.Fatalf("Description = %q", entry.Description)
	}
	if _, ok := store.Lookup("Nope"); ok {
		t.Fatal("Lookup found a decoder that was never registered")
	}
}

func TestFromJSONRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		file JSONFile
	}{
		{
			name: "empty decoder name",
			file: JSONFile{Decoders: []JSONEntry{{Decoder: "  "}}},
		},
		{
			name: "duplicate decoder",
			file: JSONFile{Decoders: []JSONEntry{
				{Decoder: "ORFCWaveformDecoder"},
				{Decoder: "ORFCWaveformDecoder"},
			}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromJSON(tc.file); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store
	if !store.IsEmpty() {
		t.Fatal("nil store not empty")
	}
	if store.Len() != 0 {
		t.Fatal("nil store has entries")
	}
	if _, ok := store.Lookup("anything"); ok {
		t.Fatal("nil store resolved a lookup")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decoders.json")
	doc := `{"decoders":[{"decoder":"ORFCWaveformDecoder","className":"ORFlashCamListenerModel","description":"waveforms"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	entry, ok := store.Lookup("ORFCWaveformDecoder")
	if !ok || entry.ClassName != "ORFlashCamListenerModel" {
		t.Fatalf("entry = %+v (%v)", entry, ok)
	}
}

func TestEnsureLoaded(t *testing.T) {
	if _, err := EnsureLoaded(""); err == nil {
		t.Fatal("empty path accepted")
	}
	if _, err := EnsureLoaded(t.TempDir()); err == nil {
		t.Fatal("directory path accepted")
	}
	if _, err := EnsureLoaded(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file accepted")
	}
}
