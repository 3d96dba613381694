package main

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// stdinLines is shared so buffered input survives between prompts.
var stdinLines = bufio.NewReader(os.Stdin)

// readPlainLine reads one line without echo control. A final line without
// a newline is returned before io.EOF.
func readPlainLine(r *bufio.Reader) (string, error) {
	s, err := r.ReadString('\n')
	if s == "" && err != nil {
		return "", err
	}
	if err != nil && err != io.EOF {
		return "", err
	}
	return trimTrailingNewline(s), nil
}

func trimTrailingNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
