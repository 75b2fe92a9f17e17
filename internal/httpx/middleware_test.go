package httpx

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dreschagin/devserve/pkg/logger"
)

func TestWithLoggingPassesThrough(t *testing.T) {
	handler := WithLogging(logger.New("error"), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("gone"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if rr.Body.String() != "gone" {
		t.Fatalf("body = %q, want %q", rr.Body.String(), "gone")
	}
}

func TestWithLoggingWritesAccessLine(t *testing.T) {
	var buf bytes.Buffer
	handler := WithLogging(logger.NewWithWriter(&buf, "info"), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing.html", nil))

	if !strings.Contains(buf.String(), "GET /missing.html 404") {
		t.Fatalf("access line not written: %q", buf.String())
	}
}

func TestWithCompression(t *testing.T) {
	payload := strings.Repeat("devserve|", 128)
	handler := WithCompression(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))

	t.Run("client accepts gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/app.js", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
			t.Fatalf("Content-Encoding = %q, want gzip", got)
		}

		gz, err := gzip.NewReader(rr.Body)
		if err != nil {
			t.Fatalf("gzip.NewReader() error = %v", err)
		}
		defer gz.Close()
		body, err := io.ReadAll(gz)
		if err != nil {
			t.Fatalf("failed to decompress body: %v", err)
		}
		if string(body) != payload {
			t.Fatalf("decompressed body does not match payload")
		}
	})

	t.Run("client without gzip", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/app.js", nil))

		if got := rr.Header().Get("Content-Encoding"); got != "" {
			t.Fatalf("Content-Encoding = %q, want none", got)
		}
		if rr.Body.String() != payload {
			t.Fatalf("body was modified without client opt-in")
		}
	})

	t.Run("already compressed format passthrough", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/logo.png", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get("Content-Encoding"); got != "" {
			t.Fatalf("Content-Encoding = %q, want none for png", got)
		}
		if rr.Body.String() != payload {
			t.Fatalf("png body was modified")
		}
	})

	t.Run("websocket upgrade passthrough", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/_devserve/reload", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		req.Header.Set("Upgrade", "websocket")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get("Content-Encoding"); got != "" {
			t.Fatalf("Content-Encoding = %q, want none for upgrade request", got)
		}
	})
}
