// Package orca reads ORCA data-acquisition capture files: the self-describing
// plist header at the start of a capture and the stream of length-framed
// binary packets that follows it.
package orca

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"howett.net/plist"
)

const (
	// PreambleSize is the byte length of the two-word capture preamble.
	PreambleSize = 8

	// recordLengthMask selects the low 18 bits of a leading packet word,
	// the record length in 4-byte words including the word itself. The
	// high 14 bits carry the data id.
	recordLengthMask = 0x3FFFF
	dataIDShift      = 18
)

var (
	// ErrMalformedHeader indicates the capture preamble or the embedded
	// plist header could not be read or decoded. The file is unusable.
	ErrMalformedHeader = errors.New("malformed capture header")

	// ErrTruncatedPacket indicates the stream ended mid-packet: either a
	// 1-3 byte fragment of a leading word or a short payload read. Clean
	// termination at a packet boundary is reported as io.EOF instead.
	ErrTruncatedPacket = errors.New("truncated packet")
)

// Header is the decoded preamble and plist structure of a capture file.
type Header struct {
	// TotalLengthWords is the declared capture length in 4-byte words.
	TotalLengthWords uint32
	// HeaderLengthBytes is the declared byte length of the plist blob.
	HeaderLengthBytes uint32
	// Root is the decoded plist dictionary. It is never mutated after
	// ParseHeader returns.
	Root Dict
}

// ParseHeader reads the 8-byte preamble and the plist header from r under
// the given byte order. Captures written on little- and big-endian hosts
// both occur in the wild, so the order is chosen by the caller rather than
// detected. ParseHeader consumes exactly preamble+header bytes, leaving r
// positioned at the first packet.
func ParseHeader(r io.Reader, order binary.ByteOrder) (Header, error) {
	var hdr Header
	pre := make([]byte, PreambleSize)
	if _, err := io.ReadFull(r, pre); err != nil {
		return hdr, fmt.Errorf("%w: preamble: %v", ErrMalformedHeader, err)
	}
	hdr.TotalLengthWords = order.Uint32(pre[0:4])
	hdr.HeaderLengthBytes = order.Uint32(pre[4:8])

	blob := make([]byte, hdr.HeaderLengthBytes)
	if _, err := io.ReadFull(r, blob); err != nil {
		return hdr, fmt.Errorf("%w: header blob (%d bytes): %v", ErrMalformedHeader, hdr.HeaderLengthBytes, err)
	}

	var root map[string]any
	if _, err := plist.Unmarshal(blob, &root); err != nil {
		return hdr, fmt.Errorf("%w: plist decode: %v", ErrMalformedHeader, err)
	}
	hdr.Root = Dict(root)
	return hdr, nil
}

// ByteSize returns the number of capture bytes the preamble and header blob
// occupy, i.e. the offset of the first packet.
func (h Header) ByteSize() int64 {
	return PreambleSize + int64(h.HeaderLengthBytes)
}

// DecodeRecordWord splits a leading packet word into the record length in
// 4-byte words and the decoded data id.
func DecodeRecordWord(word uint32) (lengthWords uint32, dataID uint32) {
	return word & recordLengthMask, word >> dataIDShift
}

// EncodeRecordWord packs a record length and data id back into a leading
// word. Used by tests and capture writers.
func EncodeRecordWord(lengthWords uint32, dataID uint32) uint32 {
	return dataID<<dataIDShift | lengthWords&recordLengthMask
}
