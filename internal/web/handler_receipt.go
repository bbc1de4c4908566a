package web

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vbonduro/restockr/internal/auth"
)

const maxReceiptSize = 20 * 1024 * 1024 // 20 MB

// allowedImageTypes is the set of MIME types accepted for receipt photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the stdlib sniffer has no
// WebP signature.
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

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptSize+(1<<20))
	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	file, _, err := r.FormFile("receipt")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "receipt file required")
		return
	}
	defer closeWithLog(file, "receipt upload", s.logger)

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read file")
		s.logger.Error("read receipt upload failed", "user_id", userID, "error", err)
		return
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unsupported image format")
		return
	}

	outcome, err := s.service.ImportReceipt(r.Context(), userID, imageData, mimeType)
	if err != nil {
		s.writeServiceError(w, "import receipt", err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	key := chi.URLParam(r, "key")

	reader, mimeType, err := s.service.Receipt(r.Context(), userID, key)
	if err != nil {
		s.writeServiceError(w, "get receipt", err)
		return
	}
	defer closeWithLog(reader, "receipt reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write receipt failed", "user_id", userID, "key", key, "error", err)
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
