package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/config"
)

type fakeDatabase struct {
	status string
	closed bool
}

func (f *fakeDatabase) DB() *sql.DB { return nil }

func (f *fakeDatabase) Health() map[string]string {
	return map[string]string{"status": f.status}
}

func (f *fakeDatabase) Close() error {
	f.closed = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "development",
			AllowedOrigins: []string{"https://shop.example"},
		},
		JWT: config.JWTConfig{Secret: "test-secret", AccessExpiry: 15, RefreshExpiry: 7},
		Session: config.SessionConfig{
			CookieName:  "storefront_session",
			IdleTimeout: time.Hour,
		},
		Storage: config.StorageConfig{
			ImageDir:      t.TempDir(),
			PublicBaseURL: "/images",
			MaxUploadMB:   1,
		},
		RateLimit: config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, db *fakeDatabase, rdb *redis.Client) *Server {
	t.Helper()
	srv, err := NewServer(cfg, zap.NewNop(), db, rdb)
	require.NoError(t, err)
	return srv
}

func get(srv *Server, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	req.RemoteAddr = "203.0.113.7:5000"
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	db := &fakeDatabase{status: "up"}
	srv := newTestServer(t, testConfig(t), db, nil)
	defer srv.Close()

	w := get(srv, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["sessions"])

	db.status = "down"
	w = get(srv, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}

func TestServesStoredImages(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg, &fakeDatabase{status: "up"}, nil)
	defer srv.Close()

	dir := filepath.Join(cfg.Storage.ImageDir, "product-images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mug.txt"), []byte("mug"), 0o644))

	w := get(srv, "/images/product-images/mug.txt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mug", w.Body.String())

	assert.Equal(t, http.StatusNotFound, get(srv, "/images/product-images/none.txt", nil).Code)

	listing := get(srv, "/images/product-images/", nil)
	assert.Equal(t, http.StatusNotFound, listing.Code)
	assert.NotContains(t, listing.Body.String(), "mug.txt")
}

func TestCartStartsSession(t *testing.T) {
	srv := newTestServer(t, testConfig(t), &fakeDatabase{status: "up"}, nil)
	defer srv.Close()

	w := get(srv, "/api/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "storefront_session" {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found)
	assert.Equal(t, 1, srv.sessions.Len())
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, testConfig(t), &fakeDatabase{status: "up"}, nil)
	defer srv.Close()

	w := get(srv, "/health", http.Header{"Origin": {"https://shop.example"}})
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(srv, "/health", http.Header{"Origin": {"https://evil.example"}})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	srv := newTestServer(t, testConfig(t), &fakeDatabase{status: "up"}, rdb)
	defer srv.Close()

	assert.Equal(t, http.StatusOK, get(srv, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, get(srv, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(srv, "/health", nil).Code)
}

func TestClose(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	db := &fakeDatabase{status: "up"}

	srv := newTestServer(t, testConfig(t), db, rdb)
	require.NoError(t, srv.Close())

	assert.True(t, db.closed)
	assert.Error(t, rdb.Ping(t.Context()).Err())
	assert.Equal(t, http.StatusServiceUnavailable, get(srv, "/api/cart", nil).Code)
}
