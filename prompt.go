package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// secretReader reads secrets one per call. On a terminal it prompts on
// stderr with echo disabled; otherwise it reads one line per secret, so
// scripts can pipe them in.
type secretReader struct {
	tty *os.File
	buf *bufio.Reader
}

func newSecretReader(in io.Reader) *secretReader {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return &secretReader{tty: f}
	}

	return &secretReader{buf: bufio.NewReader(in)}
}

func (r *secretReader) read(prompt string) (string, error) {
	if r.tty != nil {
		fmt.Fprint(os.Stderr, prompt+": ")

		b, err := term.ReadPassword(int(r.tty.Fd()))
		fmt.Fprintln(os.Stderr)

		if err != nil {
			return "", fmt.Errorf("reading %s: %w", strings.ToLower(prompt), err)
		}

		return string(b), nil
	}

	line, err := r.buf.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading %s from stdin: %w", strings.ToLower(prompt), err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
