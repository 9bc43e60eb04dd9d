package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"example.com/orcafile/internal/catalog"
	"example.com/orcafile/internal/common"
	"example.com/orcafile/internal/dict"
	"example.com/orcafile/internal/orca"
	"example.com/orcafile/internal/registry"
	"example.com/orcafile/internal/report"
	"example.com/orcafile/internal/scan"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "info":
		infoCmd(os.Args[2:])
	case "scan":
		scanCmd(os.Args[2:])
	case "packets":
		packetsCmd(os.Args[2:])
	case "objects":
		objectsCmd(os.Args[2:])
	case "catalog":
		catalogCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`orcactl %s (built %s) <command> [options]

Commands:
  info     --in <file> [--big-endian]
  scan     --in <file> [--big-endian] [--dict <dict.json>] --out <summary.json> [--pdf <summary.pdf>] [--catalog <catalog.db>]
  packets  --in <file> [--big-endian] [--payload] [--out <packets.ndjson>]
  objects  --in <file> --class <className> [--big-endian]
  catalog  --db <catalog.db> [--id <capture id>]
`, version, buildDate)
}

func byteOrder(big bool) binary.ByteOrder {
	if big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func infoCmd(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	in := fs.String("in", "", "input ORCA capture")
	big := fs.Bool("big-endian", false, "capture was written on a big-endian host")
	fs.Parse(args)

	if *in == "" {
		common.Fatalf("required: --in")
	}

	f, err := os.Open(*in)
	if err != nil {
		common.Fatalf("open: %v", err)
	}
	defer f.Close()

	hdr, err := orca.ParseHeader(f, byteOrder(*big))
	if err != nil {
		common.Fatalf("parse header: %v", err)
	}
	reg := registry.New(hdr.Root)

	fmt.Printf("Capture: %s\n", *in)
	fmt.Printf("Total length: %d words\n", hdr.TotalLengthWords)
	fmt.Printf("Header length: %d bytes\n", hdr.HeaderLengthBytes)
	if run, err := reg.RunNumber(); err == nil {
		fmt.Printf("Run number: %d\n", run)
	} else {
		fmt.Printf("Run number: %v\n", err)
	}
	for _, c := range reg.Collisions() {
		fmt.Printf("WARNING: data id %d declared for both %q and %q\n", c.DataID, c.Dropped, c.Kept)
	}

	table := reg.Decoders()
	ids := make([]uint32, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATA ID\tDECODER\tCLASS\tINSTANCES")
	for _, id := range ids {
		class, _ := reg.Class(id)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", id, table[id], class.ClassName, strings.Join(class.Instances, ","))
	}
	w.Flush()
}

func scanCmd(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	in := fs.String("in", "", "input ORCA capture")
	big := fs.Bool("big-endian", false, "capture was written on a big-endian host")
	dictPath := fs.String("dict", "", "decoder dictionary JSON file")
	out := fs.String("out", "scan_summary.json", "summary output")
	pdfPath := fs.String("pdf", "", "summary PDF output")
	catalogPath := fs.String("catalog", "", "record the scan in this catalog database")
	metricsFlag := fs.Bool("metrics", false, "print scan throughput metrics")
	progressFlag := fs.Bool("progress", false, "display scan progress updates")
	fs.Parse(args)

	if *in == "" {
		common.Fatalf("required: --in")
	}

	opts := scan.Options{ByteOrder: byteOrder(*big)}
	if *dictPath != "" {
		store, err := dict.EnsureLoaded(*dictPath)
		if err != nil {
			common.Fatalf("dictionary: %v", err)
		}
		opts.Dictionary = store
	}
	if *metricsFlag || *progressFlag {
		opts.Metrics = common.NewMetrics()
	}

	if opts.Metrics != nil {
		opts.Metrics.Start()
	}
	var stopProgress func()
	if opts.Metrics != nil && *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, opts.Metrics, 500*time.Millisecond)
	}
	summary, err := scan.File(*in, opts)
	if stopProgress != nil {
		stopProgress()
	}
	if opts.Metrics != nil {
		opts.Metrics.Stop()
	}
	if err != nil {
		common.Fatalf("scan: %v", err)
	}

	if err := report.SaveSummaryJSON(summary, *out); err != nil {
		common.Fatalf("write summary: %v", err)
	}
	if *pdfPath != "" {
		if err := report.SaveSummaryPDF(summary, *pdfPath); err != nil {
			common.Fatalf("write pdf: %v", err)
		}
	}
	if *catalogPath != "" {
		cat, err := catalog.Open(*catalogPath)
		if err != nil {
			common.Fatalf("open catalog: %v", err)
		}
		defer cat.Close()
		id, err := cat.Record(summary)
		if err != nil {
			common.Fatalf("catalog record: %v", err)
		}
		fmt.Printf("Catalogued as %s\n", id)
	}

	fmt.Printf("PASS=%v, packets=%d, unknown=%d, findings=%d\n",
		summary.Pass(), summary.Packets, summary.UnknownPackets, len(summary.Findings))
	if opts.Metrics != nil && *metricsFlag {
		snap := opts.Metrics.Snapshot()
		throughputBps := snap.ThroughputBytesPerSecond()
		fmt.Printf("Metrics: duration=%s packets=%d unknown=%d processed=%s throughput=%.2f MB/s\n",
			snap.Duration.Round(10*time.Millisecond),
			snap.Packets,
			snap.Unknown,
			common.FormatBytes(snap.Bytes),
			throughputBps/1_000_000,
		)
	}
}

func packetsCmd(args []string) {
	fs := flag.NewFlagSet("packets", flag.ExitOnError)
	in := fs.String("in", "", "input ORCA capture")
	big := fs.Bool("big-endian", false, "capture was written on a big-endian host")
	payload := fs.Bool("payload", false, "include payload bytes in each record")
	out := fs.String("out", "", "NDJSON output (defaults to stdout)")
	fs.Parse(args)

	if *in == "" {
		common.Fatalf("required: --in")
	}

	dest := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			common.Fatalf("create output: %v", err)
		}
		defer f.Close()
		dest = f
	}
	w := bufio.NewWriter(dest)
	defer w.Flush()
	enc := json.NewEncoder(w)

	_, err := scan.File(*in, scan.Options{
		ByteOrder:      byteOrder(*big),
		IncludePayload: *payload,
		OnPacket: func(rec scan.PacketRecord) error {
			return enc.Encode(rec)
		},
	})
	if err != nil {
		common.Fatalf("scan: %v", err)
	}
}

func objectsCmd(args []string) {
	fs := flag.NewFlagSet("objects", flag.ExitOnError)
	in := fs.String("in", "", "input ORCA capture")
	className := fs.String("class", "", "hardware class name")
	big := fs.Bool("big-endian", false, "capture was written on a big-endian host")
	fs.Parse(args)

	if *in == "" || *className == "" {
		common.Fatalf("required: --in, --class")
	}

	f, err := os.Open(*in)
	if err != nil {
		common.Fatalf("open: %v", err)
	}
	defer f.Close()

	hdr, err := orca.ParseHeader(f, byteOrder(*big))
	if err != nil {
		common.Fatalf("parse header: %v", err)
	}
	records := registry.ExtractObjectInfo(hdr.Root, *className)
	if len(records) == 0 {
		fmt.Printf("No cards of class %q in this run\n", *className)
		return
	}
	for _, rec := range records {
		fmt.Printf("crate %d card %d:\n", rec.Crate, rec.Card)
		for _, key := range rec.Fields.Keys() {
			fmt.Printf("  %s: %v\n", key, rec.Fields[key])
		}
	}
}

func catalogCmd(args []string) {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	db := fs.String("db", "", "catalog database path")
	id := fs.String("id", "", "show one catalogued capture")
	limit := fs.Int("limit", 50, "maximum entries to list")
	fs.Parse(args)

	if *db == "" {
		common.Fatalf("required: --db")
	}
	cat, err := catalog.Open(*db)
	if err != nil {
		common.Fatalf("open catalog: %v", err)
	}
	defer cat.Close()

	if *id != "" {
		entry, ok, err := cat.Get(*id)
		if err != nil {
			common.Fatalf("catalog get: %v", err)
		}
		if !ok {
			common.Fatalf("capture not found")
		}
		fmt.Printf("Capture %s\n", entry.ID)
		fmt.Printf("  Path: %s\n", entry.Path)
		fmt.Printf("  SHA256: %s\n", entry.Sha256)
		fmt.Printf("  Size: %s\n", common.FormatBytes(entry.SizeBytes))
		if entry.RunNumber != nil {
			fmt.Printf("  Run: %d\n", *entry.RunNumber)
		}
		fmt.Printf("  Packets: %d (unknown %d)\n", entry.Packets, entry.Unknown)
		decoders, err := cat.Decoders(*id)
		if err != nil {
			common.Fatalf("catalog decoders: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATA ID\tDECODER\tCLASS\tPACKETS\tBYTES")
		for _, stat := range decoders {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", stat.DataID, stat.Decoder, stat.ClassName, stat.Packets, stat.PayloadBytes)
		}
		w.Flush()
		return
	}

	entries, err := cat.List(*limit)
	if err != nil {
		common.Fatalf("catalog list: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("Catalog is empty")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRUN\tPACKETS\tUNKNOWN\tSCANNED\tPATH")
	for _, entry := range entries {
		run := "-"
		if entry.RunNumber != nil {
			run = fmt.Sprintf("%d", *entry.RunNumber)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			entry.ID, run, entry.Packets, entry.Unknown,
			entry.ScannedAt.Format(time.RFC3339), entry.Path)
	}
	w.Flush()
}
