// Package proxy forwards generate-content calls to the Gemini API with the
// server-held key, so browsers never see it.
package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const maxBodySize = 20 << 20

type request struct {
	Model   string          `json:"model"`
	Payload json.RawMessage `json:"payload"`
}

type Handler struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHandler(apiKey, baseURL string, client *http.Client, logger *slog.Logger) *Handler {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.apiKey == "" {
		h.logger.Error("gemini proxy called without GEMINI_API_KEY configured")
		writeError(w, http.StatusInternalServerError, "API key not configured")
		return
	}

	var body request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	model := strings.TrimSpace(body.Model)
	if model == "" || strings.ContainsAny(model, "/?#") {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	payload := body.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	target := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", h.baseURL, url.PathEscape(model), url.QueryEscape(h.apiKey))
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		// url.Error embeds the target, which carries the key.
		h.logger.Error("gemini proxy request failed", "model", model)
		writeError(w, http.StatusInternalServerError, "upstream request failed")
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			h.logger.Error("failed to close gemini proxy response body", "error", err)
		}
	}()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn("failed to relay gemini proxy response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
