//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/sys/unix"
)

var interactiveHistory []string

// readInteractiveLine reads one prompt line. On a terminal it switches to
// non-canonical mode for backspace, Ctrl-U and up/down history.
func readInteractiveLine(prompt string) (string, error) {
	if !stdinIsTTY() {
		return readPlainLine(stdinLines)
	}

	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return readPlainLine(stdinLines)
	}
	raw := *oldState
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return "", err
	}
	defer func() { _ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState) }()

	e := &lineEditor{prompt: prompt, histPos: len(interactiveHistory)}
	fmt.Print(prompt)
	var buf [1]byte
	for {
		if _, err := os.Stdin.Read(buf[:]); err != nil {
			return "", err
		}
		done, err := e.feed(buf[0])
		if err != nil {
			fmt.Println()
			return "", err
		}
		if done {
			fmt.Println()
			line := string(e.line)
			if line != "" {
				interactiveHistory = append(interactiveHistory, line)
			}
			return line, nil
		}
	}
}

type lineEditor struct {
	prompt  string
	line    []byte
	esc     []byte
	histPos int
}

func (e *lineEditor) feed(b byte) (bool, error) {
	if len(e.esc) > 0 {
		e.esc = append(e.esc, b)
		if len(e.esc) == 3 {
			switch string(e.esc) {
			case "\x1b[A":
				e.history(-1)
			case "\x1b[B":
				e.history(1)
			}
			e.esc = e.esc[:0]
		}
		return false, nil
	}

	switch b {
	case '\r', '\n':
		return true, nil
	case 0x04: // Ctrl-D
		if len(e.line) == 0 {
			return false, io.EOF
		}
	case 0x03: // Ctrl-C
		return false, io.EOF
	case 0x15: // Ctrl-U
		e.line = e.line[:0]
		e.redraw()
	case 0x7f, 0x08:
		if len(e.line) > 0 {
			_, size := utf8.DecodeLastRune(e.line)
			e.line = e.line[:len(e.line)-size]
			e.redraw()
		}
	case 0x1b:
		e.esc = append(e.esc, b)
	default:
		if b >= 0x20 {
			e.line = append(e.line, b)
			_, _ = os.Stdout.Write([]byte{b})
		}
	}
	return false, nil
}

func (e *lineEditor) history(step int) {
	pos := e.histPos + step
	if pos < 0 || pos > len(interactiveHistory) {
		return
	}
	e.histPos = pos
	if pos == len(interactiveHistory) {
		e.line = e.line[:0]
	} else {
		e.line = append(e.line[:0], interactiveHistory[pos]...)
	}
	e.redraw()
}

func (e *lineEditor) redraw() {
	fmt.Printf("\r%s%s\x1b[K", e.prompt, e.line)
}
