// Package streams names the standard io streams of a command.
package streams

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
)

// IO holds the streams a command reads from and writes to. Commands take an
// IO instead of touching os.Stdin and friends so that tests can capture
// their output.
type IO struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// NewTestIO returns a valid IO and in, out, errout buffers for unit tests
func NewTestIO() (IO, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	in := &bytes.Buffer{}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	return IO{
		In:     in,
		Out:    out,
		ErrOut: errOut,
	}, in, out, errOut
}

// NewStdIO returns a valid IO for stdin, stdout, stderr
func NewStdIO() IO {
	return IO{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

// Lines calls fn with each line of r, trimmed of surrounding whitespace,
// until r is exhausted or fn returns an error.
func Lines(r io.Reader, fn func(line string) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := fn(strings.TrimSpace(scanner.Text())); err != nil {
			return err
		}
	}
	return scanner.Err()
}
