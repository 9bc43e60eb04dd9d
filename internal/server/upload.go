package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"example.com/orcafile/internal/orca"
)

// Captures larger than this spool to disk while the form is parsed.
const uploadMemoryLimit = 256 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil {
		http.Error(w, "no captures provided", http.StatusBadRequest)
		return
	}
	var refs []ArtifactRef
	for _, files := range r.MultipartForm.File {
		for _, fh := range files {
			ref, err := s.saveCapture(fh)
			if err != nil {
				http.Error(w, fmt.Sprintf("save capture %s: %v", fh.Filename, err), http.StatusBadRequest)
				return
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		http.Error(w, "no captures uploaded", http.StatusBadRequest)
		return
	}
	resp := struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs}
	writeJSON(w, http.StatusOK, resp)
}

// saveCapture stores one uploaded capture in the uploads workspace and
// registers it as a "capture" artifact so scan requests can reference it by
// id. Anything shorter than the capture preamble is rejected outright; deeper
// validation (header decode, packet walk) is the scan's job.
func (s *Server) saveCapture(fh *multipart.FileHeader) (ArtifactRef, error) {
	if fh == nil {
		return ArtifactRef{}, fmt.Errorf("nil file header")
	}
	src, err := fh.Open()
	if err != nil {
		return ArtifactRef{}, err
	}
	defer src.Close()
	ext := filepath.Ext(fh.Filename)
	if ext == "" {
		ext = ".orca"
	}
	dest, err := os.CreateTemp(s.uploadsDir, "capture-*"+ext)
	if err != nil {
		return ArtifactRef{}, err
	}
	n, err := io.Copy(dest, src)
	if err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	dest.Close()
	if n < orca.PreambleSize {
		os.Remove(dest.Name())
		return ArtifactRef{}, fmt.Errorf("%d bytes is shorter than the %d-byte capture preamble", n, orca.PreambleSize)
	}
	name := fh.Filename
	if name == "" {
		name = filepath.Base(dest.Name())
	}
	art, err := s.addArtifact(dest.Name(), name, "application/octet-stream", "capture")
	if err != nil {
		return ArtifactRef{}, err
	}
	return toRef(art), nil
}
