package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const envModelsDir = "STREAMGEN_MODELS_DIR"

// stdinIsTTY is replaced in tests.
var stdinIsTTY = isTTY

// checkpointFiles must all be regular files for a directory to count as a
// checkpoint.
var checkpointFiles = []string{"config.json", "model.safetensors", "tokenizer.json"}

// resolveModelDir picks the checkpoint to load. An explicit --model wins;
// otherwise the models directory (flag, then environment) is scanned and a
// single hit is used directly. Several hits need an interactive choice.
func resolveModelDir(modelFlag, modelsDir string, stdin io.Reader, stderr io.Writer) (string, error) {
	if m := strings.TrimSpace(modelFlag); m != "" {
		return filepath.Clean(m), nil
	}

	root := firstNonEmpty(strings.TrimSpace(modelsDir), strings.TrimSpace(os.Getenv(envModelsDir)))
	if root == "" {
		return "", fmt.Errorf("--model or --models-path is required unless %s is set", envModelsDir)
	}
	found, err := discoverCheckpoints(root)
	if err != nil {
		return "", err
	}

	switch {
	case len(found) == 0:
		return "", fmt.Errorf("no checkpoints found in %s", root)
	case len(found) == 1:
		_, _ = fmt.Fprintf(stderr, "using model %s\n", found[0])
		return found[0], nil
	case !stdinIsTTY():
		return "", fmt.Errorf("%d checkpoints found in %s and stdin is not interactive; set --model", len(found), root)
	default:
		return pickCheckpoint(root, found, stdin, stderr)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// discoverCheckpoints returns the sorted subdirectories of root holding a
// complete checkpoint.
func discoverCheckpoints(root string) ([]string, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", root)
	}
	// Every checkpoint has a config.json, so it anchors the search.
	configs, err := filepath.Glob(filepath.Join(root, "*", checkpointFiles[0]))
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, c := range configs {
		if dir := filepath.Dir(c); isCheckpoint(dir) {
			dirs = append(dirs, dir)
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}

func isCheckpoint(dir string) bool {
	return !slices.ContainsFunc(checkpointFiles, func(name string) bool {
		st, err := os.Stat(filepath.Join(dir, name))
		return err != nil || !st.Mode().IsRegular()
	})
}

// pickCheckpoint lists dirs and reads a choice, either its number or its
// directory name, until one is valid or input ends.
func pickCheckpoint(root string, dirs []string, stdin io.Reader, stderr io.Writer) (string, error) {
	_, _ = fmt.Fprintf(stderr, "checkpoints in %s:\n", root)
	for i, d := range dirs {
		_, _ = fmt.Fprintf(stderr, "  %d) %s\n", i+1, filepath.Base(d))
	}

	in := bufio.NewScanner(stdin)
	for {
		_, _ = fmt.Fprintf(stderr, "model [1-%d]: ", len(dirs))
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return "", err
			}
			return "", errors.New("no model selected; set --model")
		}
		choice := strings.TrimSpace(in.Text())
		if choice == "" {
			continue
		}
		if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(dirs) {
			return dirs[n-1], nil
		}
		if i := slices.IndexFunc(dirs, func(d string) bool { return filepath.Base(d) == choice }); i >= 0 {
			return dirs[i], nil
		}
		_, _ = fmt.Fprintf(stderr, "no such model %q\n", choice)
	}
}

func isTTY() bool {
	st, err := os.Stdin.Stat()
	return err == nil && st.Mode()&os.ModeCharDevice != 0
}
