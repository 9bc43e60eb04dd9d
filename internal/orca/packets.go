package orca

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Packet is one record pulled from the packet stream: the decoded data id
// from the leading word plus the raw payload bytes. The reader hands each
// packet to the caller and retains nothing; payload ownership transfers.
type Packet struct {
	DataID  uint32
	Payload []byte
}

// PacketReader iterates the packet stream of a capture file. It is a single
// forward cursor over the underlying reader: no look-ahead, no buffering
// beyond the packet currently being assembled, not safe for concurrent use.
// The byte order is fixed at construction and never re-detected per packet.
type PacketReader struct {
	r     io.Reader
	order binary.ByteOrder
	word  [4]byte
}

// NewPacketReader returns a reader over the packet stream. r must be
// positioned at the first packet, i.e. just past the header (see
// ParseHeader).
func NewPacketReader(r io.Reader, order binary.ByteOrder) *PacketReader {
	return &PacketReader{r: r, order: order}
}

// Next returns the next packet. It returns io.EOF when the stream ends
// cleanly at a packet boundary, and an error wrapping ErrTruncatedPacket
// when the stream ends mid-word or mid-payload. After any error the reader
// must not be used again.
func (pr *PacketReader) Next() (Packet, error) {
	n, err := io.ReadFull(pr.r, pr.word[:])
	if err == io.EOF {
		// Zero bytes at a packet boundary: normal termination.
		return Packet{}, io.EOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return Packet{}, fmt.Errorf("%w: %d byte fragment of leading word", ErrTruncatedPacket, n)
	}
	if err != nil {
		return Packet{}, err
	}

	word := pr.order.Uint32(pr.word[:])
	lengthWords, dataID := DecodeRecordWord(word)
	if lengthWords == 0 {
		return Packet{}, fmt.Errorf("%w: zero record length (data id %d)", ErrTruncatedPacket, dataID)
	}

	// Record length counts the leading word itself.
	payload := make([]byte, (lengthWords-1)*4)
	if _, err := io.ReadFull(pr.r, payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return Packet{}, fmt.Errorf("%w: payload short of %d bytes (data id %d)", ErrTruncatedPacket, len(payload), dataID)
		}
		return Packet{}, err
	}
	return Packet{DataID: dataID, Payload: payload}, nil
}
