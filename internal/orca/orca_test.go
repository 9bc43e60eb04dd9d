package orca

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"howett.net/plist"
)

func marshalHeader(t *testing.T, root map[string]any) []byte {
	t.Helper()
	blob, err := plist.Marshal(root, plist.XMLFormat)
	if err != nil {
		t.Fatalf("plist marshal failed: %v", err)
	}
	return blob
}

func writePreamble(t *testing.T, buf *bytes.Buffer, order binary.ByteOrder, totalWords uint32, headerBytes uint32) {
	t.Helper()
	pre := make([]byte, 8)
	order.PutUint32(pre[0:4], totalWords)
	order.PutUint32(pre[4:8], headerBytes)
	if _, err := buf.Write(pre); err != nil {
		t.Fatalf("write preamble: %v", err)
	}
}

func TestParseHeader(t *testing.T) {
	root := map[string]any{
		"document version": 1,
		"eventDescription": map[string]any{},
	}

	for _, tc := range []struct {
		name  string
		order binary.ByteOrder
	}{
		{name: "little endian", order: binary.LittleEndian},
		{name: "big endian", order: binary.BigEndian},
	} {
		t.Run(tc.name, func(t *testing.T) {
			blob := marshalHeader(t, root)
			var buf bytes.Buffer
			writePreamble(t, &buf, tc.order, 1234, uint32(len(blob)))
			buf.Write(blob)

			hdr, err := ParseHeader(&buf, tc.order)
			if err != nil {
				t.Fatalf("ParseHeader returned error: %v", err)
			}
			if hdr.TotalLengthWords != 1234 {
				t.Fatalf("TotalLengthWords = %d, want 1234", hdr.TotalLengthWords)
			}
			if hdr.HeaderLengthBytes != uint32(len(blob)) {
				t.Fatalf("HeaderLengthBytes = %d, want %d", hdr.HeaderLengthBytes, len(blob))
			}
			if hdr.ByteSize() != int64(8+len(blob)) {
				t.Fatalf("ByteSize = %d, want %d", hdr.ByteSize(), 8+len(blob))
			}
			if v, ok := hdr.Root.Int("document version"); !ok || v != 1 {
				t.Fatalf("document version = %d (%v), want 1", v, ok)
			}
			if buf.Len() != 0 {
				t.Fatalf("ParseHeader left %d unread bytes", buf.Len())
			}
		})
	}
}

func TestParseHeaderMalformed(t *testing.T) {
	valid := marshalHeader(t, map[string]any{"k": "v"})

	tests := []struct {
		name  string
		build func(t *testing.T) []byte
	}{
		{
			name: "short preamble",
			build: func(t *testing.T) []byte {
				return []byte{0x01, 0x02, 0x03}
			},
		},
		{
			name: "short header blob",
			build: func(t *testing.T) []byte {
				var buf bytes.Buffer
				writePreamble(t, &buf, binary.LittleEndian, 10, uint32(len(valid)+100))
				buf.Write(valid)
				return buf.Bytes()
			},
		},
		{
			name: "invalid plist",
			build: func(t *testing.T) []byte {
				junk := []byte("this is not a property list")
				var buf bytes.Buffer
				writePreamble(t, &buf, binary.LittleEndian, 10, uint32(len(junk)))
				buf.Write(junk)
				return buf.Bytes()
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHeader(bytes.NewReader(tc.build(t)), binary.LittleEndian)
			if !errors.Is(err, ErrMalformedHeader) {
				t.Fatalf("expected ErrMalformedHeader, got %v", err)
			}
		})
	}
}

func TestParseHeaderWrongOrderMisreadsLengths(t *testing.T) {
	// Exactly 256 bytes so the byte-swapped misread (0x00000100 read the
	// wrong way round is 0x00010000) stays a modest 64 KiB.
	blob := bytes.Repeat([]byte{'x'}, 256)
	var buf bytes.Buffer
	writePreamble(t, &buf, binary.BigEndian, 7, uint32(len(blob)))
	buf.Write(blob)

	// Reading a big-endian capture as little-endian inflates the header
	// length; the blob read must fail rather than decode junk.
	_, err := ParseHeader(&buf, binary.LittleEndian)
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestRecordWordRoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		lengthWords uint32
		dataID      uint32
	}{
		{name: "minimal", lengthWords: 1, dataID: 0},
		{name: "typical", lengthWords: 5, dataID: 1},
		{name: "max length", lengthWords: 0x3FFFF, dataID: 0},
		{name: "max id", lengthWords: 2, dataID: 0x3FFF},
		{name: "both max", lengthWords: 0x3FFFF, dataID: 0x3FFF},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			word := EncodeRecordWord(tc.lengthWords, tc.dataID)
			gotLen, gotID := DecodeRecordWord(word)
			if gotLen != tc.lengthWords {
				t.Fatalf("lengthWords = %d, want %d", gotLen, tc.lengthWords)
			}
			if gotID != tc.dataID {
				t.Fatalf("dataID = %d, want %d", gotID, tc.dataID)
			}
		})
	}
}

func TestDictAccessors(t *testing.T) {
	d := Dict{
		"str":    "value",
		"u64":    uint64(42),
		"i":      7,
		"f":      3.5,
		"nested": map[string]any{"inner": "x"},
		"arr":    []any{"a", "b"},
	}

	if s, ok := d.String("str"); !ok || s != "value" {
		t.Fatalf("String = %q (%v)", s, ok)
	}
	if n, ok := d.Int("u64"); !ok || n != 42 {
		t.Fatalf("Int(u64) = %d (%v)", n, ok)
	}
	if n, ok := d.Uint32("i"); !ok || n != 7 {
		t.Fatalf("Uint32(i) = %d (%v)", n, ok)
	}
	if f, ok := d.Float("f"); !ok || f != 3.5 {
		t.Fatalf("Float = %v (%v)", f, ok)
	}
	if f, ok := d.Float("i"); !ok || f != 7 {
		t.Fatalf("Float(int) = %v (%v)", f, ok)
	}
	if nested, ok := d.Dict("nested"); !ok {
		t.Fatal("Dict(nested) missing")
	} else if s, ok := nested.String("inner"); !ok || s != "x" {
		t.Fatalf("nested inner = %q (%v)", s, ok)
	}
	if arr, ok := d.Array("arr"); !ok || len(arr) != 2 {
		t.Fatalf("Array = %v (%v)", arr, ok)
	}

	if _, ok := d.String("missing"); ok {
		t.Fatal("String on missing key reported ok")
	}
	if _, ok := d.Int("str"); ok {
		t.Fatal("Int on string value reported ok")
	}
	if _, ok := d.Dict("arr"); ok {
		t.Fatal("Dict on array value reported ok")
	}
	if d.Has("missing") {
		t.Fatal("Has reported a missing key")
	}
	if !d.Has("str") {
		t.Fatal("Has missed a present key")
	}

	keys := d.Keys()
	if want := "arr,f,i,nested,str,u64"; strings.Join(keys, ",") != want {
		t.Fatalf("Keys = %v, want %s", keys, want)
	}
}
