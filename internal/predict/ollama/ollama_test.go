package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/restockr/internal/domain"
	"github.com/vbonduro/restockr/internal/predict"
)

func newTestPredictor(t *testing.T, host, model string) *Predictor {
	t.Helper()
	p, err := NewPredictor(host, model, nil)
	require.NoError(t, err)
	return p
}

func TestOllamaExtractReceipt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req api.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llava", req.Model)
		require.NotNil(t, req.Stream)
		assert.False(t, *req.Stream)
		require.Len(t, req.Images, 1)
		assert.Equal(t, api.ImageData{0xFF, 0xD8, 0xFF, 0xE0}, req.Images[0])
		assert.Contains(t, string(req.Format), `"items"`)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":    req.Model,
			"done":     true,
			"response": `{"vendor":"Costco","items":[{"name":"Milk","quantity":2,"cost":"6.50"},{"name":"Butter","quantity":1,"cost":3}]}`,
		})
	}))
	defer server.Close()

	p := newTestPredictor(t, server.URL, "llava")
	lines, err := p.ExtractReceipt(context.Background(), bytes.NewReader([]byte{0xFF, 0xD8, 0xFF, 0xE0}), "image/jpeg")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Milk", lines[0].Name)
	assert.Equal(t, "6.50", lines[0].Cost.StringFixed(2))
	assert.Equal(t, "Costco", lines[1].Vendor)
}

func TestOllamaForecast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.Images)
		assert.Contains(t, string(req.Format), `"suggestions"`)
		assert.Contains(t, req.Prompt, "Milk")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"done":     true,
			"response": `{"forecasts":[{"name":"Milk","predictedRunOutDate":"2024-06-05"}],"suggestions":[]}`,
		})
	}))
	defer server.Close()

	p := newTestPredictor(t, server.URL, "llama3")
	result, err := p.Forecast(context.Background(), &predict.ForecastRequest{
		Today:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Inventory:      []*domain.InventoryItem{{Name: "Milk", Quantity: 1}},
		MaxSuggestions: 5,
	})
	require.NoError(t, err)
	require.Len(t, result.Forecasts, 1)
	assert.True(t, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC).Equal(result.Forecasts[0].RunOut))
}

func TestOllamaNetworkError(t *testing.T) {
	p := newTestPredictor(t, "http://localhost:99999", "llava")
	_, err := p.ExtractReceipt(context.Background(), bytes.NewReader([]byte{0xFF, 0xD8}), "image/jpeg")
	assert.Error(t, err)
}

func TestOllamaInvalidHost(t *testing.T) {
	_, err := NewPredictor("http://[::1", "llava", nil)
	assert.Error(t, err)
}

func TestOllamaStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"missing\" not found"}`))
	}))
	defer server.Close()

	p := newTestPredictor(t, server.URL, "missing")
	_, err := p.ExtractReceipt(context.Background(), bytes.NewReader([]byte{0xFF, 0xD8}), "image/jpeg")
	assert.ErrorContains(t, err, "failed to call ollama")
	assert.ErrorContains(t, err, "404")
}

func TestOllamaInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	p := newTestPredictor(t, server.URL, "llava")
	_, err := p.ExtractReceipt(context.Background(), bytes.NewReader([]byte{0xFF, 0xD8}), "image/jpeg")
	assert.Error(t, err)
}
