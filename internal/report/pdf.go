package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/orcafile/internal/scan"
)

// SaveSummaryPDF renders the given scan summary into a PDF document.
func SaveSummaryPDF(summary scan.Summary, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Capture Scan Report", false)
	pdf.SetAuthor("orcactl", false)
	pdf.SetCreator("orcactl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Capture Scan Report")
	addSummarySection(pdf, summary)
	addDecoderSection(pdf, summary.Decoders)
	addFindingsSection(pdf, summary.Findings)
	addDigestSection(pdf, summary.Sha256)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, summary scan.Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Capture", value: emptyFallback(summary.File, "-")},
		{label: "Run Number", value: runLabel(summary.RunNumber)},
		{label: "Byte Order", value: summary.ByteOrder},
		{label: "Packets", value: strconv.FormatInt(summary.Packets, 10)},
		{label: "Payload Bytes", value: strconv.FormatInt(summary.PayloadBytes, 10)},
		{label: "Unknown Packets", value: strconv.FormatInt(summary.UnknownPackets, 10)},
		{label: "Overall", value: passLabel(summary.Pass())},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addDecoderSection(pdf *gofpdf.Fpdf, stats []scan.DecoderStat) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Decoders")
	pdf.Ln(9)

	headers := []string{"Data ID", "Decoder", "Class", "Packets", "Bytes"}
	widths := []float64{20, 62, 52, 22, 24}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, stat := range stats {
		values := []string{
			strconv.FormatUint(uint64(stat.DataID), 10),
			emptyFallback(stat.Decoder, "(unregistered)"),
			emptyFallback(stat.ClassName, "-"),
			strconv.FormatInt(stat.Packets, 10),
			strconv.FormatInt(stat.PayloadBytes, 10),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, findings []scan.Finding) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		pdf.Ln(2)
		return
	}

	for i, f := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s", i+1, severityLabel(f.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(f.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		meta := findingMetadata(f)
		if meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}
		pdf.Ln(2)
	}
}

func addDigestSection(pdf *gofpdf.Fpdf, digest string) {
	if strings.TrimSpace(digest) == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Capture Digest")
	pdf.Ln(9)

	pdf.SetFont("Courier", "", 8)
	pdf.MultiCell(0, 4, "SHA-256 "+digest, "", "L", false)

	png, err := CaptureDigestToQR(digest, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("capture-digest-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("capture-digest-qr", 15, pdf.GetY()+2, 32, 32, false, opts, 0, "")
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func runLabel(run *int) string {
	if run == nil {
		return "unknown"
	}
	return strconv.Itoa(*run)
}

func severityLabel(sev scan.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func findingMetadata(f scan.Finding) string {
	parts := make([]string, 0, 3)
	if !f.Ts.IsZero() {
		parts = append(parts, f.Ts.Format(time.RFC3339))
	}
	if f.DataID != nil {
		parts = append(parts, fmt.Sprintf("Data ID %d", *f.DataID))
	}
	if f.Offset != 0 {
		parts = append(parts, fmt.Sprintf("Offset %d", f.Offset))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " / ")
}
