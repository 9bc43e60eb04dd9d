// Package scan runs a single forward pass over an ORCA capture: it parses
// the header, derives the id registry, then walks the packet stream
// resolving every packet against the decoder table and accumulating a
// summary suitable for reporting and cataloguing.
package scan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"example.com/orcafile/internal/common"
	"example.com/orcafile/internal/dict"
	"example.com/orcafile/internal/orca"
	"example.com/orcafile/internal/registry"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

// Finding is one noteworthy condition observed during a scan.
type Finding struct {
	Ts       time.Time `json:"ts"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	DataID   *uint32   `json:"dataId,omitempty"`
	Offset   int64     `json:"offset,omitempty"`
}

// DecoderStat aggregates the packets attributed to one decoded data id.
type DecoderStat struct {
	DataID       uint32 `json:"dataId"`
	Decoder      string `json:"decoder"`
	ClassName    string `json:"className,omitempty"`
	Description  string `json:"description,omitempty"`
	Packets      int64  `json:"packets"`
	PayloadBytes int64  `json:"payloadBytes"`
}

// PacketRecord describes one packet as it streams past. Payload bytes are
// only attached when Options.IncludePayload is set; they are owned by the
// callback for the duration of the call.
type PacketRecord struct {
	Index        int64  `json:"index"`
	Offset       int64  `json:"offset"`
	DataID       uint32 `json:"dataId"`
	Decoder      string `json:"decoder,omitempty"`
	PayloadBytes int64  `json:"payloadBytes"`
	Payload      []byte `json:"payload,omitempty"`
}

// Summary is the result of one scan pass over one capture.
type Summary struct {
	File              string        `json:"file,omitempty"`
	Sha256            string        `json:"sha256,omitempty"`
	SizeBytes         int64         `json:"sizeBytes,omitempty"`
	ByteOrder         string        `json:"byteOrder"`
	TotalLengthWords  uint32        `json:"totalLengthWords"`
	HeaderLengthBytes uint32        `json:"headerLengthBytes"`
	RunNumber         *int          `json:"runNumber,omitempty"`
	Packets           int64         `json:"packets"`
	PayloadBytes      int64         `json:"payloadBytes"`
	UnknownPackets    int64         `json:"unknownPackets"`
	Truncated         bool          `json:"truncated"`
	Decoders          []DecoderStat `json:"decoders"`
	Findings          []Finding     `json:"findings,omitempty"`
	ScannedAt         time.Time     `json:"scannedAt"`
}

// Pass reports whether the capture scanned without errors. Warnings
// (unknown ids, missing run number) do not fail a scan; truncation does.
func (s Summary) Pass() bool {
	for _, f := range s.Findings {
		if f.Severity == ERROR {
			return false
		}
	}
	return true
}

// Options configures a scan pass.
type Options struct {
	// ByteOrder applies to the preamble and every packet word. Defaults
	// to little endian.
	ByteOrder binary.ByteOrder
	// Dictionary optionally annotates decoder stats with descriptions.
	Dictionary *dict.Store
	// Metrics optionally receives throughput counters during the pass.
	Metrics *common.Metrics
	// OnPacket is invoked for every packet in stream order. Returning an
	// error aborts the scan.
	OnPacket func(PacketRecord) error
	// IncludePayload attaches payload bytes to each PacketRecord.
	IncludePayload bool
}

func (o Options) byteOrder() binary.ByteOrder {
	if o.ByteOrder == nil {
		return binary.LittleEndian
	}
	return o.ByteOrder
}

// Capture scans a capture from r. The header is parsed exactly once before
// packet iteration begins; the stream is consumed in a single forward pass.
func Capture(r io.Reader, opts Options) (Summary, error) {
	order := opts.byteOrder()
	summary := Summary{ByteOrder: orderName(order), ScannedAt: time.Now().UTC()}

	hdr, err := orca.ParseHeader(r, order)
	if err != nil {
		return summary, err
	}
	summary.TotalLengthWords = hdr.TotalLengthWords
	summary.HeaderLengthBytes = hdr.HeaderLengthBytes
	if opts.Metrics != nil {
		opts.Metrics.AddBytes(hdr.ByteSize())
	}

	reg := registry.New(hdr.Root)
	for _, c := range reg.Collisions() {
		id := c.DataID
		summary.addFinding(Finding{
			Severity: WARN,
			Message:  fmt.Sprintf("data id %d declared for both %q and %q; keeping %q", c.DataID, c.Dropped, c.Kept, c.Kept),
			DataID:   &id,
		})
	}
	if run, err := reg.RunNumber(); err == nil {
		summary.RunNumber = &run
	} else {
		summary.addFinding(Finding{Severity: WARN, Message: err.Error()})
	}

	stats := make(map[uint32]*DecoderStat)
	unknownSeen := make(map[uint32]bool)
	offset := hdr.ByteSize()
	pr := orca.NewPacketReader(r, order)
	var index int64
	for {
		pkt, err := pr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, orca.ErrTruncatedPacket) {
			summary.Truncated = true
			summary.addFinding(Finding{Severity: ERROR, Message: err.Error(), Offset: offset})
			break
		}
		if err != nil {
			return summary, err
		}

		decoder, known := reg.DecoderName(pkt.DataID)
		if !known {
			summary.UnknownPackets++
			if opts.Metrics != nil {
				opts.Metrics.IncUnknown()
			}
			if !unknownSeen[pkt.DataID] {
				unknownSeen[pkt.DataID] = true
				id := pkt.DataID
				summary.addFinding(Finding{
					Severity: WARN,
					Message:  fmt.Sprintf("data id %d has no decoder table entry", pkt.DataID),
					DataID:   &id,
					Offset:   offset,
				})
			}
		}

		stat, ok := stats[pkt.DataID]
		if !ok {
			stat = &DecoderStat{DataID: pkt.DataID, Decoder: decoder}
			if entry, ok := reg.Class(pkt.DataID); ok {
				stat.ClassName = entry.ClassName
			}
			if opts.Dictionary != nil {
				if e, ok := opts.Dictionary.Lookup(decoder); ok {
					stat.Description = e.Description
				}
			}
			stats[pkt.DataID] = stat
		}
		stat.Packets++
		stat.PayloadBytes += int64(len(pkt.Payload))

		summary.Packets++
		summary.PayloadBytes += int64(len(pkt.Payload))
		if opts.Metrics != nil {
			opts.Metrics.AddPacket(int64(len(pkt.Payload)) + 4)
		}
		if opts.OnPacket != nil {
			rec := PacketRecord{
				Index:        index,
				Offset:       offset,
				DataID:       pkt.DataID,
				Decoder:      decoder,
				PayloadBytes: int64(len(pkt.Payload)),
			}
			if opts.IncludePayload {
				rec.Payload = pkt.Payload
			}
			if err := opts.OnPacket(rec); err != nil {
				return summary, err
			}
		}
		offset += int64(len(pkt.Payload)) + 4
		index++
	}

	summary.Decoders = make([]DecoderStat, 0, len(stats))
	for _, stat := range stats {
		summary.Decoders = append(summary.Decoders, *stat)
	}
	sort.Slice(summary.Decoders, func(i, j int) bool {
		return summary.Decoders[i].DataID < summary.Decoders[j].DataID
	})
	return summary, nil
}

// File scans the capture at path and stamps file metadata (path, size,
// SHA-256) onto the summary. The digest is computed by teeing the scan's own
// forward read through a hasher; any tail left unread by the pass (a
// truncated stream stops at the damage) is drained through it afterwards so
// the digest always covers the whole file.
func File(path string, opts Options) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()
	if opts.Metrics != nil {
		if info, err := f.Stat(); err == nil {
			opts.Metrics.SetTotalBytes(info.Size())
		}
	}
	hasher := common.NewHasher()
	summary, err := Capture(io.TeeReader(f, hasher), opts)
	summary.File = path
	if err != nil {
		return summary, err
	}
	if _, err := io.Copy(hasher, f); err != nil {
		return summary, fmt.Errorf("hash tail of %s: %w", path, err)
	}
	summary.Sha256 = hasher.Sum()
	summary.SizeBytes = hasher.Size()
	return summary, nil
}

func (s *Summary) addFinding(f Finding) {
	if f.Ts.IsZero() {
		f.Ts = time.Now().UTC()
	}
	s.Findings = append(s.Findings, f)
}

func orderName(order binary.ByteOrder) string {
	if order == binary.BigEndian {
		return "big"
	}
	return "little"
}
