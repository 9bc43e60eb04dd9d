// Package catalog persists the results of capture scans in a local sqlite
// database so previously scanned runs can be listed and looked up without
// re-reading the capture files.
package catalog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"example.com/orcafile/internal/scan"
)

//go:embed schema.sql
var schemaSQL string

type Catalog struct {
	*sql.DB
}

// Entry is one catalogued capture scan.
type Entry struct {
	ID           string
	Path         string
	Sha256       string
	SizeBytes    int64
	ByteOrder    string
	RunNumber    *int
	Packets      int64
	PayloadBytes int64
	Unknown      int64
	Truncated    bool
	ScannedAt    time.Time
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply catalog schema: %w", err)
	}
	return &Catalog{db}, nil
}

// Record stores a scan summary and its per-decoder stats, returning the new
// entry's id.
func (c *Catalog) Record(summary scan.Summary) (string, error) {
	id := uuid.NewString()
	tx, err := c.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	truncated := 0
	if summary.Truncated {
		truncated = 1
	}
	scannedAt := summary.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}
	_, err = tx.Exec(`
		INSERT INTO captures (id, path, sha256, size_bytes, byte_order, run_number,
			packets, payload_bytes, unknown, truncated, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, summary.File, summary.Sha256, summary.SizeBytes, summary.ByteOrder,
		runValue(summary.RunNumber), summary.Packets, summary.PayloadBytes,
		summary.UnknownPackets, truncated, scannedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert capture: %w", err)
	}
	for _, stat := range summary.Decoders {
		_, err = tx.Exec(`
			INSERT INTO capture_decoders (capture_id, data_id, decoder, class_name, packets, payload_bytes)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, stat.DataID, stat.Decoder, stat.ClassName, stat.Packets, stat.PayloadBytes,
		)
		if err != nil {
			return "", fmt.Errorf("insert decoder stat: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// List returns catalogued captures, most recent first.
func (c *Catalog) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := c.Query(`
		SELECT id, path, sha256, size_bytes, byte_order, run_number,
			packets, payload_bytes, unknown, truncated, scanned_at
		FROM captures ORDER BY scanned_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get looks up one catalogued capture by id.
func (c *Catalog) Get(id string) (Entry, bool, error) {
	rows, err := c.Query(`
		SELECT id, path, sha256, size_bytes, byte_order, run_number,
			packets, payload_bytes, unknown, truncated, scanned_at
		FROM captures WHERE id = ?`, id)
	if err != nil {
		return Entry{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return Entry{}, false, rows.Err()
	}
	entry, err := scanEntry(rows)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Decoders returns the per-decoder stats stored for a catalogued capture.
func (c *Catalog) Decoders(captureID string) ([]scan.DecoderStat, error) {
	rows, err := c.Query(`
		SELECT data_id, decoder, class_name, packets, payload_bytes
		FROM capture_decoders WHERE capture_id = ? ORDER BY data_id`, captureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []scan.DecoderStat
	for rows.Next() {
		var stat scan.DecoderStat
		var class sql.NullString
		if err := rows.Scan(&stat.DataID, &stat.Decoder, &class, &stat.Packets, &stat.PayloadBytes); err != nil {
			return nil, err
		}
		stat.ClassName = class.String
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var entry Entry
	var run sql.NullInt64
	var truncated int
	if err := rows.Scan(&entry.ID, &entry.Path, &entry.Sha256, &entry.SizeBytes,
		&entry.ByteOrder, &run, &entry.Packets, &entry.PayloadBytes,
		&entry.Unknown, &truncated, &entry.ScannedAt); err != nil {
		return Entry{}, err
	}
	if run.Valid {
		n := int(run.Int64)
		entry.RunNumber = &n
	}
	entry.Truncated = truncated != 0
	return entry, nil
}

func runValue(run *int) any {
	if run == nil {
		return nil
	}
	return *run
}
