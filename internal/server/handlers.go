package server

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"example.com/orcafile/internal/catalog"
	"example.com/orcafile/internal/dict"
	"example.com/orcafile/internal/report"
	"example.com/orcafile/internal/scan"
)

// Server coordinates HTTP handlers and manages temporary artifacts produced
// by scan requests.
type Server struct {
	artifacts  *ArtifactStore
	workDir    string
	uploadsDir string
	catalog    *catalog.Catalog
	dictionary *dict.Store
	bigEndian  bool
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory.
func NewServer(opts Options) (*Server, error) {
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(storageDir, "orcad-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	var cat *catalog.Catalog
	if opts.CatalogPath != "" {
		cat, err = catalog.Open(opts.CatalogPath)
		if err != nil {
			os.RemoveAll(workDir)
			return nil, fmt.Errorf("open catalog: %w", err)
		}
	}
	var store *dict.Store
	if opts.DictionaryPath != "" {
		store, err = dict.EnsureLoaded(opts.DictionaryPath)
		if err != nil {
			if cat != nil {
				cat.Close()
			}
			os.RemoveAll(workDir)
			return nil, fmt.Errorf("load dictionary: %w", err)
		}
	}
	s := &Server{
		artifacts:  &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:    workDir,
		uploadsDir: uploadsDir,
		catalog:    cat,
		dictionary: store,
		bigEndian:  opts.BigEndian,
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	if s.catalog != nil {
		s.catalog.Close()
	}
	if s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) byteOrder(override string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(override)) {
	case "":
		if s.bigEndian {
			return binary.BigEndian, nil
		}
		return binary.LittleEndian, nil
	case "little":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", override)
	}
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	art := Artifact{
		ID:          uuid.NewString(),
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[art.ID] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) resolvePath(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty input path")
	}
	if art, ok := s.getArtifact(token); ok {
		return art.Path, nil
	}
	abs := token
	if !filepath.IsAbs(token) {
		abs = filepath.Clean(token)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

type scanRequest struct {
	Input     string `json:"input"`
	ByteOrder string `json:"byteOrder"`
	Catalog   bool   `json:"catalog"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if req.Input == "" {
		http.Error(w, "input required", http.StatusBadRequest)
		return
	}
	inputPath, err := s.resolvePath(req.Input)
	if err != nil {
		http.Error(w, fmt.Sprintf("input resolve: %v", err), http.StatusBadRequest)
		return
	}
	order, err := s.byteOrder(req.ByteOrder)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := scan.File(inputPath, scan.Options{ByteOrder: order, Dictionary: s.dictionary})
	if err != nil {
		http.Error(w, fmt.Sprintf("scan: %v", err), http.StatusUnprocessableEntity)
		return
	}

	jsonPath, err := s.tempPath("scan-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("summary temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := report.SaveSummaryJSON(summary, jsonPath); err != nil {
		http.Error(w, fmt.Sprintf("write summary: %v", err), http.StatusInternalServerError)
		return
	}
	pdfPath, err := s.tempPath("scan-*.pdf")
	if err != nil {
		http.Error(w, fmt.Sprintf("pdf temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := report.SaveSummaryPDF(summary, pdfPath); err != nil {
		http.Error(w, fmt.Sprintf("write pdf: %v", err), http.StatusInternalServerError)
		return
	}
	jsonArt, err := s.addArtifact(jsonPath, "scan_summary.json", "application/json", "summary")
	if err != nil {
		http.Error(w, fmt.Sprintf("register summary: %v", err), http.StatusInternalServerError)
		return
	}
	pdfArt, err := s.addArtifact(pdfPath, "scan_summary.pdf", "application/pdf", "summary")
	if err != nil {
		http.Error(w, fmt.Sprintf("register pdf: %v", err), http.StatusInternalServerError)
		return
	}

	var catalogID string
	if req.Catalog && s.catalog != nil {
		catalogID, err = s.catalog.Record(summary)
		if err != nil {
			http.Error(w, fmt.Sprintf("catalog record: %v", err), http.StatusInternalServerError)
			return
		}
	}

	resp := struct {
		Summary   scan.Summary  `json:"summary"`
		Artifacts []ArtifactRef `json:"artifacts"`
		CatalogID string        `json:"catalogId,omitempty"`
	}{
		Summary:   summary,
		Artifacts: []ArtifactRef{toRef(jsonArt), toRef(pdfArt)},
		CatalogID: catalogID,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePackets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Input          string `json:"input"`
		ByteOrder      string `json:"byteOrder"`
		IncludePayload bool   `json:"includePayload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if req.Input == "" {
		http.Error(w, "input required", http.StatusBadRequest)
		return
	}
	inputPath, err := s.resolvePath(req.Input)
	if err != nil {
		http.Error(w, fmt.Sprintf("input resolve: %v", err), http.StatusBadRequest)
		return
	}
	order, err := s.byteOrder(req.ByteOrder)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writer := NewNDJSONWriter(w)
	w.Header().Set("Content-Type", "application/x-ndjson")
	summary, err := scan.File(inputPath, scan.Options{
		ByteOrder:      order,
		Dictionary:     s.dictionary,
		IncludePayload: req.IncludePayload,
		OnPacket: func(rec scan.PacketRecord) error {
			return writer.WritePacket(rec)
		},
	})
	if err != nil {
		_ = writer.WriteObject(map[string]any{"type": "error", "error": err.Error()})
		return
	}
	_ = writer.WriteObject(map[string]any{"type": "summary", "summary": summary})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		http.Error(w, "catalog not configured", http.StatusNotFound)
		return
	}
	if id := strings.TrimPrefix(r.URL.Path, "/catalog/"); id != "" && id != r.URL.Path {
		entry, ok, err := s.catalog.Get(id)
		if err != nil {
			http.Error(w, fmt.Sprintf("catalog get: %v", err), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		decoders, err := s.catalog.Decoders(id)
		if err != nil {
			http.Error(w, fmt.Sprintf("catalog decoders: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Entry    catalog.Entry      `json:"entry"`
			Decoders []scan.DecoderStat `json:"decoders"`
		}{Entry: entry, Decoders: decoders})
		return
	}
	entries, err := s.catalog.List(0)
	if err != nil {
		http.Error(w, fmt.Sprintf("catalog list: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", art.Name)
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".ndjson":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
