package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/streamgen/internal/toy"
)

func TestInspectCheckpoint(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "gpt2")
	if err := toy.Write(dir, toy.DefaultOptions()); err != nil {
		t.Fatalf("write toy checkpoint: %v", err)
	}

	var out bytes.Buffer
	err := inspectCheckpoint(&out, dir, inspectOptions{tensors: true, tensorFilter: "ln_f", vocab: true, vocabLimit: 3})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"--- Checkpoint ---",
		fmt.Sprintf("%-24s %s", "Architecture:", "gpt2"),
		fmt.Sprintf("%-24s %s", "Layers:", "2"),
		"--- Tensors ---",
		"ln_f.weight",
		fmt.Sprintf("%-24s %d %q", "EOS:", toy.EOSID, toy.EndOfText),
		"... (3 shown of 257)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "h.0.attn") {
		t.Fatalf("tensor filter not applied:\n%s", got)
	}
}

func TestInspectCheckpointMissing(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := inspectCheckpoint(&out, t.TempDir(), inspectOptions{}); err == nil {
		t.Fatal("expected error for an empty directory")
	}
}
