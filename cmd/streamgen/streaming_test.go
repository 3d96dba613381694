package main

import (
	"bytes"
	"testing"
)

func TestStreamWriterModes(t *testing.T) {
	t.Parallel()

	fragments := []string{"An increasing", " sequence:", " one, two"}
	cases := []struct {
		mode       StreamMode
		afterWrite string
		final      string
	}{
		{mode: StreamLines, afterWrite: "An increasing\n sequence:\n one, two\n", final: "An increasing\n sequence:\n one, two\n"},
		{mode: StreamInstant, afterWrite: "An increasing sequence: one, two", final: "An increasing sequence: one, two\n"},
		{mode: StreamQuiet, afterWrite: "", final: "An increasing sequence: one, two\n"},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			w := NewStreamWriter(tc.mode, &out)
			for _, f := range fragments {
				if err := w.Write(f); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			if out.String() != tc.afterWrite {
				t.Fatalf("after writes: got %q want %q", out.String(), tc.afterWrite)
			}
			text, err := w.Flush()
			if err != nil {
				t.Fatalf("flush: %v", err)
			}
			if text != "An increasing sequence: one, two" {
				t.Fatalf("text: got %q", text)
			}
			if out.String() != tc.final {
				t.Fatalf("after flush: got %q want %q", out.String(), tc.final)
			}
		})
	}
}

func TestParseStreamMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]StreamMode{"": StreamLines, "Lines": StreamLines, " instant ": StreamInstant, "quiet": StreamQuiet} {
		got, err := ParseStreamMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseStreamMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseStreamMode("smooth"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
