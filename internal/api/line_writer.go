package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v5"
)

// HeaderStreamError is the trailer set when generation fails after the
// response has started.
const HeaderStreamError = "X-Stream-Error"

// lineWriter writes one fragment per newline-terminated line. Headers are
// committed on the first line, so a failure before any output can still be
// reported as a JSON body.
type lineWriter struct {
	res     http.ResponseWriter
	flusher interface{ Flush() }
	started bool
}

func newLineWriter(c *echo.Context) *lineWriter {
	res := c.Response()
	flusher, _ := res.(interface{ Flush() })
	return &lineWriter{res: res, flusher: flusher}
}

func (w *lineWriter) begin() {
	h := w.res.Header()
	h.Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Trailer", HeaderStreamError)
	w.res.WriteHeader(http.StatusOK)
	w.started = true
}

// Started reports whether the status line has been sent.
func (w *lineWriter) Started() bool {
	return w.started
}

func (w *lineWriter) WriteLine(fragment string) error {
	if !w.started {
		w.begin()
	}
	if _, err := io.WriteString(w.res, fragment+"\n"); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Finish ends an empty stream with the plain-text headers and, when err is
// non-nil, records it in the trailer.
func (w *lineWriter) Finish(err error) {
	if !w.started {
		w.begin()
	}
	if err != nil {
		w.res.Header().Set(HeaderStreamError, err.Error())
	}
}
