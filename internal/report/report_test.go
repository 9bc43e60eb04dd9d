package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"example.com/orcafile/internal/scan"
)

func sampleSummary() scan.Summary {
	run := 77
	return scan.Summary{
		File:              "/data/run77.orca",
		Sha256:            "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		SizeBytes:         4096,
		ByteOrder:         "little",
		TotalLengthWords:  1024,
		HeaderLengthBytes: 2048,
		RunNumber:         &run,
		Packets:           42,
		PayloadBytes:      3000,
		UnknownPackets:    1,
		Decoders: []scan.DecoderStat{
			{DataID: 3, Decoder: "ORRunDecoderForRun", ClassName: "ORRunModel", Packets: 2, PayloadBytes: 16},
			{DataID: 5, Decoder: "ORFCWaveformDecoder", ClassName: "ORFlashCamListenerModel", Packets: 40, PayloadBytes: 2984},
		},
		Findings: []scan.Finding{
			{Ts: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), Severity: scan.WARN, Message: "data id 42 has no decoder table entry"},
		},
		ScannedAt: time.Date(2026, 8, 1, 12, 0, 1, 0, time.UTC),
	}
}

func TestSummaryJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	want := sampleSummary()
	if err := SaveSummaryJSON(want, path); err != nil {
		t.Fatalf("SaveSummaryJSON returned error: %v", err)
	}
	got, err := LoadSummaryJSON(path)
	if err != nil {
		t.Fatalf("LoadSummaryJSON returned error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveSummaryPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.pdf")
	if err := SaveSummaryPDF(sampleSummary(), path); err != nil {
		t.Fatalf("SaveSummaryPDF returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output does not start with PDF magic: %q", data[:8])
	}
}

func TestSaveSummaryPDFWithoutDigest(t *testing.T) {
	summary := sampleSummary()
	summary.Sha256 = ""
	path := filepath.Join(t.TempDir(), "summary.pdf")
	if err := SaveSummaryPDF(summary, path); err != nil {
		t.Fatalf("SaveSummaryPDF without digest returned error: %v", err)
	}
}

func TestCaptureDigestToQR(t *testing.T) {
	png, err := CaptureDigestToQR("9f86d081884c7d65", 128)
	if err != nil {
		t.Fatalf("CaptureDigestToQR returned error: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("output is not a PNG")
	}
	if _, err := CaptureDigestToQR("   ", 128); err == nil {
		t.Fatal("empty digest accepted")
	}
	if _, err := CaptureDigestToQR("zzzz", 128); err == nil {
		t.Fatal("digest with no hex characters accepted")
	}
}
