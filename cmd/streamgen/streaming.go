package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

type StreamMode string

const (
	StreamLines   StreamMode = "lines"
	StreamInstant StreamMode = "instant"
	StreamQuiet   StreamMode = "quiet"
)

func ParseStreamMode(s string) (StreamMode, error) {
	switch m := StreamMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return StreamLines, nil
	case StreamLines, StreamInstant, StreamQuiet:
		return m, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (want lines, instant or quiet)", s)
	}
}

// StreamWriter prints fragments as they arrive from the relay.
//
//	lines    one line per fragment
//	instant  fragments back to back, flushed immediately
//	quiet    nothing until Flush
type StreamWriter struct {
	mode   StreamMode
	buffer *bufio.Writer
	text   strings.Builder
}

func NewStreamWriter(mode StreamMode, out io.Writer) *StreamWriter {
	return &StreamWriter{
		mode:   mode,
		buffer: bufio.NewWriterSize(out, 4096),
	}
}

// Write handles a single fragment. It satisfies stream.Sink.
func (w *StreamWriter) Write(fragment string) error {
	w.text.WriteString(fragment)
	switch w.mode {
	case StreamQuiet:
		return nil
	case StreamLines:
		if _, err := w.buffer.WriteString(fragment); err != nil {
			return err
		}
		if err := w.buffer.WriteByte('\n'); err != nil {
			return err
		}
	default:
		if _, err := w.buffer.WriteString(fragment); err != nil {
			return err
		}
	}
	return w.buffer.Flush()
}

// Flush writes anything still pending and returns the full text seen so
// far.
func (w *StreamWriter) Flush() (string, error) {
	if w.mode == StreamQuiet {
		if _, err := w.buffer.WriteString(w.text.String()); err != nil {
			return "", err
		}
	}
	if w.mode != StreamLines && w.text.Len() > 0 {
		if err := w.buffer.WriteByte('\n'); err != nil {
			return "", err
		}
	}
	return w.text.String(), w.buffer.Flush()
}
