package httpapp

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/handlers/slogdiscard"
	httprouters "github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http"
)

func newTestServer(t *testing.T, uploadsDir string) *Server {
	t.Helper()

	log := slogdiscard.NewDiscardLogger()
	s := New(log, Options{Port: "0", BodyLimit: "1M", UploadsDir: uploadsDir},
		httprouters.NewRouter(log, nil, nil, nil))
	s.BuildRouters()

	return s
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, "")

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, "")

	// первый запрос регистрирует метрики с метками
	s.Echo().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_ServesUploads(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "listings"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "listings", "k.jpg"), []byte("img"), 0o644))

	s := newTestServer(t, dir)

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/listings/k.jpg", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "img", rec.Body.String())
}

func TestServer_RejectsOversizedBody(t *testing.T) {
	s := newTestServer(t, "")

	body := make([]byte, 2<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
