package frontend

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
)

// eventWriter writes Server-Sent Events and flushes after each one.
type eventWriter struct {
	res     http.ResponseWriter
	flusher interface{ Flush() }
	started bool
}

func newEventWriter(c *echo.Context) *eventWriter {
	res := c.Response()
	flusher, _ := res.(interface{ Flush() })
	return &eventWriter{res: res, flusher: flusher}
}

func (w *eventWriter) begin() {
	h := w.res.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.res.WriteHeader(http.StatusOK)
	w.started = true
}

func (w *eventWriter) Event(name, data string) error {
	if !w.started {
		w.begin()
	}
	if _, err := fmt.Fprint(w.res, formatEvent(name, data)); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// formatEvent renders one event. Multi-line data becomes one data field
// per line.
func formatEvent(name, data string) string {
	var sb strings.Builder
	sb.WriteString("event: ")
	sb.WriteString(name)
	sb.WriteByte('\n')
	for line := range strings.SplitSeq(data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String()
}
