package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upstream(t *testing.T, calls *atomic.Int32, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProxyRejectsNonPost(t *testing.T) {
	var calls atomic.Int32
	server := upstream(t, &calls, http.StatusOK, "{}")
	h := NewHandler("key", server.URL, nil, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/gemini", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
	assert.Equal(t, int32(0), calls.Load())
}

func TestProxyWithoutKeyMakesNoOutboundCall(t *testing.T) {
	var calls atomic.Int32
	server := upstream(t, &calls, http.StatusOK, "{}")
	h := NewHandler("", server.URL, nil, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/gemini", strings.NewReader(`{"model":"m","payload":{}}`)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	assert.Equal(t, int32(0), calls.Load())
}

func TestProxyRelaysVerbatim(t *testing.T) {
	var gotPath, gotKey, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429}}`))
	}))
	defer server.Close()

	h := NewHandler("secret", server.URL, nil, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/gemini",
		strings.NewReader(`{"model":"gemini-1.5-flash","payload":{"contents":[{"parts":[{"text":"hi"}]}]}}`)))

	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.JSONEq(t, `{"contents":[{"parts":[{"text":"hi"}]}]}`, gotBody)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json; charset=UTF-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"error":{"code":429}}`, w.Body.String())
}

func TestProxyBadRequest(t *testing.T) {
	var calls atomic.Int32
	server := upstream(t, &calls, http.StatusOK, "{}")
	h := NewHandler("key", server.URL, nil, nil)

	for _, body := range []string{`not json`, `{"payload":{}}`, `{"model":"../x"}`} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/gemini", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestProxyNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	h := NewHandler("key", url, nil, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/gemini", strings.NewReader(`{"model":"m","payload":{}}`)))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "key=")
}
