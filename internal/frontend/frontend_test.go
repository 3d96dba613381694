package frontend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/streamgen/internal/logger"
)

func newFrontend(t *testing.T, backend http.HandlerFunc) *echo.Echo {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	b, err := NewBackend(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	return NewEcho(NewServer(b, 4, logger.Discard()))
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func lineBackend(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}
}

func TestGenerateRelaysLinesAsEvents(t *testing.T) {
	t.Parallel()

	gotMessage := make(chan string, 1)
	e := newFrontend(t, func(w http.ResponseWriter, r *http.Request) {
		gotMessage <- r.URL.Query().Get("message")
		lineBackend("one\n two \nthree\n")(w, r)
	})

	rec := get(e, "/generate?message="+"a%20b%26c")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: got %q", ct)
	}
	want := "event: streamed-text\ndata: one\n\n" +
		"event: streamed-text\ndata: two\n\n" +
		"event: streamed-text\ndata: three\n\n" +
		"event: done\ndata: \n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("body:\n%q\nwant:\n%q", got, want)
	}
	if got := <-gotMessage; got != "a b&c" {
		t.Fatalf("backend message: got %q", got)
	}
}

func TestGenerateRequiresMessage(t *testing.T) {
	t.Parallel()

	var called atomic.Bool
	e := newFrontend(t, func(w http.ResponseWriter, r *http.Request) { called.Store(true) })
	rec := get(e, "/generate")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
	if called.Load() {
		t.Fatal("backend must not be called")
	}
}

func TestGenerateBackendJSONError(t *testing.T) {
	t.Parallel()

	e := newFrontend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"error":"An error occurred during text generation"}`)
	})
	body := get(e, "/generate?message=hi").Body.String()
	if !strings.HasPrefix(body, "event: error\ndata: backend error: An error occurred during text generation\n\n") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestGenerateBackendTrailerError(t *testing.T) {
	t.Parallel()

	e := newFrontend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Trailer", "X-Stream-Error")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "partial\n")
		w.Header().Set("X-Stream-Error", "boom")
	})
	body := get(e, "/generate?message=hi").Body.String()
	if !strings.HasPrefix(body, "event: streamed-text\ndata: partial\n\n") {
		t.Fatalf("missing relayed line: %q", body)
	}
	if !strings.HasSuffix(body, "event: error\ndata: backend stream failed: boom\n\n") {
		t.Fatalf("missing error event: %q", body)
	}
}

func TestGenerateBackendUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	b, err := NewBackend(url, nil)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	e := NewEcho(NewServer(b, 0, logger.Discard()))
	body := get(e, "/generate?message=hi").Body.String()
	if !strings.HasPrefix(body, "event: error\n") {
		t.Fatalf("expected error event, got %q", body)
	}
}

func TestStart(t *testing.T) {
	t.Parallel()

	e := newFrontend(t, lineBackend(""))
	cases := []struct {
		body string
		code int
	}{
		{body: `{"message":"hello"}`, code: http.StatusOK},
		{body: `{"message":""}`, code: http.StatusBadRequest},
		{body: `not json`, code: http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/start", strings.NewReader(tc.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tc.code {
			t.Fatalf("%s: status got %d want %d", tc.body, rec.Code, tc.code)
		}
	}
}

func TestHomeRendersPage(t *testing.T) {
	t.Parallel()

	rec := get(newFrontend(t, lineBackend("")), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `new EventSource("/generate?message="`) {
		t.Fatal("page is missing the event source client")
	}
	if !strings.Contains(rec.Body.String(), "<title>streamgen</title>") {
		t.Fatal("page title not rendered")
	}
}

func TestBackendLinesStopsOnEmitError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(lineBackend("a\nb\nc\n"))
	defer srv.Close()
	b, err := NewBackend(srv.URL+"/", nil)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	if got := b.GenerateURL("x y"); got != srv.URL+"/generate?message=x+y" {
		t.Fatalf("url: got %q", got)
	}

	var seen []string
	stop := context.Canceled
	err = b.Lines(context.Background(), "x", func(line string) error {
		seen = append(seen, line)
		if len(seen) == 2 {
			return stop
		}
		return nil
	})
	if err != stop {
		t.Fatalf("expected emit error, got %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("lines: got %v", seen)
	}
}

func TestNewBackendRejectsBadURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"ftp://host", "://bad", "localhost:8000"} {
		if _, err := NewBackend(raw, nil); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestFormatEventMultiline(t *testing.T) {
	t.Parallel()

	if got := formatEvent("x", "a\nb"); got != "event: x\ndata: a\ndata: b\n\n" {
		t.Fatalf("got %q", got)
	}
}
