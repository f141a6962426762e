package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vbonduro/renobudget/internal/blobstore"
	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/persistence"
)

const maxUploadSize = 50 * 1024 * 1024 // 50 MB

// allowedImageTypes is the set of MIME types accepted for item images.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniffing standard (and
// therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// formField returns a pointer to the named multipart value, or nil when the
// form did not carry it.
func formField(r *http.Request, name string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	vals, ok := r.MultipartForm.Value[name]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}

// formImage reads the optional "image" file of a parsed multipart form. The
// MIME type is taken from the bytes rather than the client's header, so a
// disguised file is reported under its real type and rejected by validation.
func (s *Server) formImage(r *http.Request) (*domain.Image, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	mimeType, ok := allowedImageMIME(data)
	if !ok {
		mimeType = http.DetectContentType(data)
	}
	return &domain.Image{Filename: header.Filename, MIMEType: mimeType, Data: data}, nil
}

// handleGetImage serves an item image by its storage key. Images received
// through the upload mirror endpoint are served when the snapshot store does
// not hold the key.
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	img, err := s.service.Image(r.Context(), key)
	if err == nil {
		w.Header().Set("Content-Type", img.MIMEType)
		w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
		if _, err := w.Write(img.Data); err != nil {
			s.logger.Error("write image failed", "key", key, "error", err)
		}
		return
	}
	if !errors.Is(err, blobstore.ErrNotFound) || s.images == nil {
		s.writeError(w, r, err)
		return
	}

	reader, mimeType, err := s.images.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closeWithLog(reader, "image reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write image failed", "key", key, "error", err)
	}
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path,omitempty"`
}

// handleUploadImage receives an image mirrored from another instance as form
// fields "image" (a data URI) and "path" (the relative destination).
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		s.writeJSON(w, http.StatusNotFound, statusResponse{Status: "error", Message: "image uploads are disabled"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	image := r.FormValue("image")
	savePath := strings.TrimSpace(r.FormValue("path"))
	if image == "" || savePath == "" {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "Missing image or path"})
		return
	}

	data := []byte(image)
	if strings.HasPrefix(image, "data:") {
		_, decoded, err := persistence.DecodeDataURI(image)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: err.Error()})
			return
		}
		data = decoded
	}

	if err := s.images.Save(r.Context(), savePath, bytes.NewReader(data)); err != nil {
		s.logger.Error("save mirrored image failed", "path", savePath, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success", Path: savePath})
}
