package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/itportfolio/apptrack/internal/config"
)

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}, "X-Custom": {"a", "b"}}
	body := []byte(`{"success":true}`)

	raw, err := encodePayload(http.StatusOK, hdr, body)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	status, gotHdr, gotBody, ok := decodePayload(raw)
	if !ok {
		t.Fatal("decode failed")
	}
	if status != http.StatusOK {
		t.Fatalf("got status %d", status)
	}
	if gotHdr.Get("Content-Type") != "application/json" {
		t.Fatalf("headers lost: %v", gotHdr)
	}
	if string(gotBody) != string(body) {
		t.Fatalf("body lost: %q", gotBody)
	}
}

func TestDecodePayloadTruncated(t *testing.T) {
	if _, _, _, ok := decodePayload([]byte{1, 2, 3}); ok {
		t.Fatal("truncated payload decoded")
	}
}

func TestCacheKeyDistinguishesConcretePaths(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache"}
	e := echo.New()

	key := func(target string) string {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		return cacheKey(cfg, e.NewContext(req, httptest.NewRecorder()))
	}
	if key("/v1/applications/1") == key("/v1/applications/2") {
		t.Fatal("different resources share a cache key")
	}
	if key("/v1/applications/1") != key("/v1/applications/1") {
		t.Fatal("cache key is not stable")
	}
}

func TestRedisCacheDisabledPassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/applications", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := NewRedisCache(config.CacheConfig{Enabled: false}, nil)
	called := false
	err := mw(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if !called {
		t.Fatal("next not called with caching disabled")
	}
	if rec.Header().Get("X-Cache") != "" {
		t.Fatal("disabled cache must not stamp X-Cache")
	}
}
