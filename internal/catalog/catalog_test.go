package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"example.com/orcafile/internal/scan"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

func sampleSummary(run int) scan.Summary {
	return scan.Summary{
		File:           "/data/run.orca",
		Sha256:         "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		SizeBytes:      4096,
		ByteOrder:      "little",
		RunNumber:      &run,
		Packets:        42,
		PayloadBytes:   3000,
		UnknownPackets: 1,
		Decoders: []scan.DecoderStat{
			{DataID: 3, Decoder: "ORRunDecoderForRun", ClassName: "ORRunModel", Packets: 2, PayloadBytes: 16},
			{DataID: 5, Decoder: "ORFCWaveformDecoder", ClassName: "ORFlashCamListenerModel", Packets: 40, PayloadBytes: 2984},
		},
		ScannedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecordAndGet(t *testing.T) {
	cat := openTestCatalog(t)

	id, err := cat.Record(sampleSummary(77))
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if id == "" {
		t.Fatal("Record returned empty id")
	}

	entry, ok, err := cat.Get(id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !ok {
		t.Fatal("recorded capture not found")
	}
	if entry.Path != "/data/run.orca" || entry.SizeBytes != 4096 {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.RunNumber == nil || *entry.RunNumber != 77 {
		t.Fatalf("RunNumber = %v", entry.RunNumber)
	}
	if entry.Packets != 42 || entry.Unknown != 1 {
		t.Fatalf("counters = %d/%d", entry.Packets, entry.Unknown)
	}
	if entry.Truncated {
		t.Fatal("Truncated set on clean scan")
	}

	decoders, err := cat.Decoders(id)
	if err != nil {
		t.Fatalf("Decoders returned error: %v", err)
	}
	want := []scan.DecoderStat{
		{DataID: 3, Decoder: "ORRunDecoderForRun", ClassName: "ORRunModel", Packets: 2, PayloadBytes: 16},
		{DataID: 5, Decoder: "ORFCWaveformDecoder", ClassName: "ORFlashCamListenerModel", Packets: 40, PayloadBytes: 2984},
	}
	if diff := cmp.Diff(want, decoders); diff != "" {
		t.Fatalf("decoder stats mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMissing(t *testing.T) {
	cat := openTestCatalog(t)
	_, ok, err := cat.Get("no-such-id")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if ok {
		t.Fatal("missing id reported found")
	}
}

func TestListOrdering(t *testing.T) {
	cat := openTestCatalog(t)

	older := sampleSummary(1)
	older.ScannedAt = time.Date(2026, 8, 1, 1, 0, 0, 0, time.UTC)
	newer := sampleSummary(2)
	newer.ScannedAt = time.Date(2026, 8, 2, 1, 0, 0, 0, time.UTC)

	if _, err := cat.Record(older); err != nil {
		t.Fatalf("Record older: %v", err)
	}
	if _, err := cat.Record(newer); err != nil {
		t.Fatalf("Record newer: %v", err)
	}

	entries, err := cat.List(10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].RunNumber == nil || *entries[0].RunNumber != 2 {
		t.Fatalf("most recent first: entries[0].RunNumber = %v", entries[0].RunNumber)
	}

	limited, err := cat.List(1)
	if err != nil {
		t.Fatalf("List with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit ignored: got %d entries", len(limited))
	}
}

func TestRecordNilRunNumber(t *testing.T) {
	cat := openTestCatalog(t)
	summary := sampleSummary(0)
	summary.RunNumber = nil
	summary.Truncated = true

	id, err := cat.Record(summary)
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	entry, ok, err := cat.Get(id)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if entry.RunNumber != nil {
		t.Fatalf("RunNumber = %v, want nil", entry.RunNumber)
	}
	if !entry.Truncated {
		t.Fatal("Truncated flag lost")
	}
}
